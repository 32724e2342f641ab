package watcher_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/steppe/internal/adapters/watcher"
	"go.trai.ch/steppe/internal/core/ports"
)

type collector struct {
	mu     sync.Mutex
	events []ports.WatchEvent
}

func (c *collector) run(w *watcher.Watcher) {
	for event := range w.Events() {
		c.mu.Lock()
		c.events = append(c.events, event)
		c.mu.Unlock()
	}
}

func (c *collector) sawPath(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, event := range c.events {
		if event.Path == path {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, root string) (*watcher.Watcher, *collector, <-chan struct{}) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	w := watcher.NewWatcher()
	require.NoError(t, w.Start(ctx, root))
	t.Cleanup(func() { _ = w.Stop() })

	c := &collector{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.run(w)
	}()
	return w, c, done
}

func TestWatcher_ReportsWrites(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o750))

	_, c, _ := startWatcher(t, root)

	target := filepath.Join(root, "src", "main.go")
	require.NoError(t, os.WriteFile(target, []byte("package main\n"), 0o600))

	assert.Eventually(t, func() bool { return c.sawPath(target) }, 5*time.Second, 10*time.Millisecond)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	_, c, _ := startWatcher(t, root)

	dir := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(dir, 0o750))
	require.Eventually(t, func() bool { return c.sawPath(dir) }, 5*time.Second, 10*time.Millisecond)

	target := filepath.Join(dir, "lib.go")
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(target, []byte("package pkg\n"), 0o600)
		return c.sawPath(target)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatcher_SkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{".git", "node_modules", ".steppe"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, dir), 0o750))
	}

	_, c, _ := startWatcher(t, root)

	ignored := filepath.Join(root, ".steppe", "cache.db")
	require.NoError(t, os.WriteFile(ignored, []byte("x"), 0o600))
	sentinel := filepath.Join(root, "sentinel")
	require.NoError(t, os.WriteFile(sentinel, []byte("x"), 0o600))

	require.Eventually(t, func() bool { return c.sawPath(sentinel) }, 5*time.Second, 10*time.Millisecond)
	assert.False(t, c.sawPath(ignored))
}

func TestWatcher_StopEndsEvents(t *testing.T) {
	root := t.TempDir()
	w, _, done := startWatcher(t, root)

	require.NoError(t, w.Stop())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("event stream did not end after Stop")
	}
	require.NoError(t, w.Err())
	require.NoError(t, w.Stop())
}

func TestWatcher_StartMissingRoot(t *testing.T) {
	w := watcher.NewWatcher()
	// A missing root walks nothing; fsnotify has no directories to watch.
	err := w.Start(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	require.NoError(t, w.Stop())
}
