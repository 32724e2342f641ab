package cas_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.trai.ch/steppe/internal/adapters/cas"
	"go.trai.ch/steppe/internal/core/domain"
)

func newStore(t *testing.T) (*cas.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".steppe", "cache.db")
	store, err := cas.NewStore(path)
	require.NoError(t, err)
	return store, path
}

func TestStore_PutAndGet(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close() //nolint:errcheck // Best effort close in test

	entry := domain.CacheEntry{
		Fingerprint: "0123456789abcdef",
		Task:        "build",
		OutputHash:  "fedcba9876543210",
		Timestamp:   time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, store.Put(entry))

	got, err := store.Get(entry.Fingerprint)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry, *got)
}

func TestStore_GetMissing(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close() //nolint:errcheck // Best effort close in test

	got, err := store.Get("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Persistence(t *testing.T) {
	store, path := newStore(t)
	require.NoError(t, store.Put(domain.CacheEntry{Fingerprint: "fp", Task: "lint"}))
	require.NoError(t, store.Close())

	reopened, err := cas.NewStore(path)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck // Best effort close in test

	got, err := reopened.Get("fp")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "lint", got.Task)

	n, err := reopened.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_CorruptEntryIsCacheError(t *testing.T) {
	store, path := newStore(t)
	require.NoError(t, store.Close())

	db, err := bolt.Open(path, domain.PrivateFilePerm, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte("fingerprints")).Put([]byte("fp"), []byte("{not json"))
	}))
	require.NoError(t, db.Close())

	reopened, err := cas.NewStore(path)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck // Best effort close in test

	got, err := reopened.Get("fp")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, domain.KindCache, domain.KindOf(err))
}

func TestStore_CorruptFileFailsToOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a bolt database, but long enough to be read as a page header"), domain.PrivateFilePerm))

	_, err := cas.NewStore(path)
	require.Error(t, err)
	assert.Equal(t, domain.KindCache, domain.KindOf(err))
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	store, _ := newStore(t)
	defer store.Close() //nolint:errcheck // Best effort close in test

	require.NoError(t, store.Put(domain.CacheEntry{Fingerprint: "shared", Task: "a"}))

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			got, err := store.Get("shared")
			assert.NoError(t, err)
			assert.NotNil(t, got)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Put(domain.CacheEntry{Fingerprint: "shared", Task: string(rune('a' + i))}))
		}()
	}
	wg.Wait()

	got, err := store.Get("shared")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Task, 1)
}

func TestOpener_Open(t *testing.T) {
	root := t.TempDir()

	store, err := cas.NewOpener().Open(root)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = os.Stat(domain.CachePath(root))
	assert.NoError(t, err)
}

func TestDisabled(t *testing.T) {
	var store cas.Disabled

	require.NoError(t, store.Put(domain.CacheEntry{Fingerprint: "fp"}))
	got, err := store.Get("fp")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, store.Close())
}
