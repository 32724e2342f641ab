// Package fs provides file system adapters for resolving, walking and fingerprinting task inputs.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"

	"go.trai.ch/steppe/internal/core/domain"
)

// skippedDirs are never descended into, wherever they appear.
var skippedDirs = map[string]bool{
	".git":              true,
	".jj":               true,
	domain.StateDirName: true,
}

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields every regular file under root in lexical order,
// skipping VCS metadata, the state directory and names matching ignores.
// Yielded paths start with root.
func (w *Walker) WalkFiles(root string, ignores []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != root && w.ignored(d.Name(), ignores) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !yield(path) {
				return filepath.SkipAll
			}
			return nil
		})
	}
}

func (w *Walker) ignored(name string, ignores []string) bool {
	if skippedDirs[name] {
		return true
	}
	for _, ignore := range ignores {
		if matched, _ := filepath.Match(ignore, name); matched {
			return true
		}
	}
	return false
}
