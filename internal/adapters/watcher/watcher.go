package watcher

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Watcher = (*Watcher)(nil)

// skippedDirectories are never watched.
var skippedDirectories = map[string]bool{
	".git":              true,
	".jj":               true,
	"node_modules":      true,
	domain.StateDirName: true,
}

const eventChannelBuffer = 100

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	mu        sync.Mutex
	fsWatcher *fsnotify.Watcher
	events    chan ports.WatchEvent
	err       error
	now       func() time.Time
}

// NewWatcher creates a file system watcher. The underlying fsnotify watcher is
// opened by Start.
func NewWatcher() *Watcher {
	return &Watcher{
		events: make(chan ports.WatchEvent, eventChannelBuffer),
		now:    time.Now,
	}
}

// Start begins watching root recursively.
func (w *Watcher) Start(ctx context.Context, root string) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return domain.NewWatchError(zerr.Wrap(err, "failed to create file watcher"))
	}

	for dir := range watchRecursively(root) {
		if err := fsWatcher.Add(dir); err != nil {
			_ = fsWatcher.Close()
			return domain.NewWatchError(zerr.With(zerr.Wrap(err, "failed to watch directory"), "path", dir))
		}
	}

	w.mu.Lock()
	w.fsWatcher = fsWatcher
	w.mu.Unlock()

	go w.processEvents(ctx, fsWatcher)

	return nil
}

// Stop closes the underlying watcher, which ends the event stream.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	fsWatcher := w.fsWatcher
	w.fsWatcher = nil
	w.mu.Unlock()

	if fsWatcher == nil {
		return nil
	}
	return fsWatcher.Close()
}

// Events returns an iterator of file system events.
func (w *Watcher) Events() iter.Seq[ports.WatchEvent] {
	return func(yield func(ports.WatchEvent) bool) {
		for event := range w.events {
			if !yield(event) {
				return
			}
		}
	}
}

// Err returns the error that ended the event stream, if any.
func (w *Watcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// watchRecursively yields root and every directory below it that is not skipped.
func watchRecursively(root string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil //nolint:nilerr // Unreadable directories are not watched.
			}
			if !d.IsDir() {
				return nil
			}
			if path != root && skippedDirectories[d.Name()] {
				return fs.SkipDir
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Watcher) processEvents(ctx context.Context, fsWatcher *fsnotify.Watcher) {
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}

			watchEvent, ok := w.convertEvent(event)
			if !ok {
				continue
			}

			select {
			case w.events <- watchEvent:
			case <-ctx.Done():
				return
			}

			if watchEvent.Op == ports.OpCreate {
				info, err := os.Stat(event.Name)
				if err == nil && info.IsDir() && !skippedDirectories[info.Name()] {
					for dir := range watchRecursively(event.Name) {
						_ = fsWatcher.Add(dir)
					}
				}
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			w.err = domain.NewWatchError(err)
			w.mu.Unlock()
			return
		}
	}
}

func (w *Watcher) convertEvent(event fsnotify.Event) (ports.WatchEvent, bool) {
	var op ports.WatchOp
	switch {
	case event.Has(fsnotify.Write):
		op = ports.OpWrite
	case event.Has(fsnotify.Create):
		op = ports.OpCreate
	case event.Has(fsnotify.Remove):
		op = ports.OpRemove
	case event.Has(fsnotify.Rename):
		op = ports.OpRename
	default:
		return ports.WatchEvent{}, false
	}

	return ports.WatchEvent{Path: event.Name, Op: op, Time: w.now()}, true
}
