package fs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Fingerprinter = (*Hasher)(nil)

// Hasher computes task fingerprints and output hashes with xxhash.
type Hasher struct {
	resolver *Resolver
}

// NewHasher creates a new Hasher.
func NewHasher(resolver *Resolver) *Hasher {
	return &Hasher{resolver: resolver}
}

// ComputeFileHash computes the XXHash of a file's content.
func (h *Hasher) ComputeFileHash(path string) (uint64, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return 0, domain.NewIOError("open", path, err)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return 0, domain.NewIOError("read", path, err)
	}
	return hasher.Sum64(), nil
}

// Fingerprint digests the body definition followed by each declared input in order:
// the declared path, then every resolved file's root-relative path and content hash.
// The task name and dependencies do not participate.
func (h *Hasher) Fingerprint(task *domain.Task, root string) (string, error) {
	if task.Body == nil {
		return "", domain.NewInvalidTask(task.Name.String(), "task has no body")
	}
	hasher := xxhash.New()
	_, _ = hasher.Write(task.Body.Definition())
	_, _ = hasher.Write([]byte{0})

	for _, input := range task.Inputs {
		_, _ = hasher.WriteString(input.String())
		_, _ = hasher.Write([]byte{0})

		files, err := h.resolver.Resolve(input.String(), root)
		if err != nil {
			return "", zerr.With(err, "task", task.Name.String())
		}
		if err := h.hashFiles(files, root, hasher); err != nil {
			return "", err
		}
		_, _ = hasher.Write([]byte{0}) // Section separator
	}

	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

// OutputHash digests the declared outputs in sorted order. Any missing output is an error.
func (h *Hasher) OutputHash(outputs []string, root string) (string, error) {
	sorted := slices.Clone(outputs)
	slices.Sort(sorted)

	hasher := xxhash.New()
	for _, output := range sorted {
		files, err := h.resolver.Resolve(output, root)
		if err != nil {
			return "", zerr.Wrap(err, "output missing")
		}
		if len(files) == 0 {
			return "", zerr.With(zerr.New("output missing"), "path", output)
		}
		if err := h.hashFiles(files, root, hasher); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

func (h *Hasher) hashFiles(files []string, root string, w io.Writer) error {
	for _, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		_, _ = w.Write([]byte(filepath.ToSlash(rel)))
		_, _ = w.Write([]byte{0})

		hash, err := h.ComputeFileHash(path)
		if err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, hash); err != nil {
			return zerr.Wrap(err, "failed to write hash to digest")
		}
	}
	return nil
}
