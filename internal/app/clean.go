package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.trai.ch/steppe/internal/core/domain"
)

// Clean removes the state directory of the project, cache included.
func (a *App) Clean(opts LoadOptions) error {
	root, err := a.projectRoot(opts)
	if err != nil {
		return err
	}

	state := domain.StatePath(root)
	size, err := dirSize(state)
	if errors.Is(err, fs.ErrNotExist) {
		a.logger.Info("nothing to clean")
		return nil
	}
	if err != nil {
		return domain.NewIOError("inspect state directory", state, err)
	}

	a.logger.Info(fmt.Sprintf("removing %s (%s)", state, humanize.Bytes(uint64(size)))) //nolint:gosec // size is never negative
	if err := os.RemoveAll(state); err != nil {
		return domain.NewIOError("remove state directory", state, err)
	}
	return nil
}

func (a *App) projectRoot(opts LoadOptions) (string, error) {
	if opts.ConfigPath != "" {
		graph, err := a.load(opts)
		if err != nil {
			return "", err
		}
		return graph.Root(), nil
	}

	cwd, err := a.getwd()
	if err != nil {
		return "", domain.NewIOError("get working directory", "", err)
	}
	return a.configLoader.DiscoverRoot(cwd)
}

func dirSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}
