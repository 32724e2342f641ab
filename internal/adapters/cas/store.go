// Package cas implements the durable fingerprint cache on top of bbolt.
package cas

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	_ ports.CacheStore  = (*Store)(nil)
	_ ports.CacheOpener = (*Opener)(nil)
)

// OpenTimeout bounds how long Open waits for another process holding the database lock.
const OpenTimeout = time.Second

var fingerprintsBucket = []byte("fingerprints")

// Store implements ports.CacheStore with a bbolt database.
// Reads run in View transactions and may proceed concurrently;
// writes run in Update transactions, which bbolt serializes.
type Store struct {
	db *bolt.DB
}

// NewStore opens, or creates, the database at path.
func NewStore(path string) (*Store, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return nil, zerr.With(domain.NewCacheError("failed to create cache directory", err), "path", path)
	}

	db, err := bolt.Open(path, domain.PrivateFilePerm, &bolt.Options{Timeout: OpenTimeout})
	if err != nil {
		return nil, zerr.With(domain.NewCacheError("failed to open cache database", err), "path", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fingerprintsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, zerr.With(domain.NewCacheError("failed to initialize cache database", err), "path", path)
	}

	return &Store{db: db}, nil
}

// Get returns the entry recorded for fingerprint.
// Returns nil, nil if not found. An undecodable value is a Cache error.
func (s *Store) Get(fingerprint string) (*domain.CacheEntry, error) {
	var entry *domain.CacheEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(fingerprintsBucket)
		if b == nil {
			return nil
		}
		data := b.Get([]byte(fingerprint))
		if data == nil {
			return nil
		}
		var decoded domain.CacheEntry
		if err := json.Unmarshal(data, &decoded); err != nil {
			return zerr.With(domain.NewCacheError("corrupt cache entry", err), "fingerprint", fingerprint)
		}
		entry = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Put records entry under its fingerprint, replacing any previous value.
func (s *Store) Put(entry domain.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return domain.NewCacheError("failed to encode cache entry", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(fingerprintsBucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(entry.Fingerprint), data)
	})
	if err != nil {
		return zerr.With(domain.NewCacheError("failed to write cache entry", err), "fingerprint", entry.Fingerprint)
	}
	return nil
}

// Len returns the number of recorded entries.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket(fingerprintsBucket); b != nil {
			n = b.Stats().KeyN
		}
		return nil
	})
	if err != nil {
		return 0, domain.NewCacheError("failed to read cache database", err)
	}
	return n, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return domain.NewCacheError("failed to close cache database", err)
	}
	return nil
}

// Opener opens the store under a project's state directory.
type Opener struct{}

// NewOpener creates a new Opener.
func NewOpener() *Opener {
	return &Opener{}
}

// Open opens the store at <root>/.steppe/cache.db.
func (o *Opener) Open(root string) (ports.CacheStore, error) {
	store, err := NewStore(domain.CachePath(root))
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Disabled is a store that never hits and discards writes.
// It stands in when the database cannot be opened.
type Disabled struct{}

var _ ports.CacheStore = Disabled{}

// Get always misses.
func (Disabled) Get(string) (*domain.CacheEntry, error) { return nil, nil }

// Put discards the entry.
func (Disabled) Put(domain.CacheEntry) error { return nil }

// Close does nothing.
func (Disabled) Close() error { return nil }
