package fs

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.InputResolver = (*Resolver)(nil)

// ErrInputNotFound is returned when a literal input path does not exist.
var ErrInputNotFound = zerr.New("input not found")

// Resolver expands declared inputs into concrete files.
// Literal paths may name a file or a directory; patterns use doublestar syntax ("**/*.go").
type Resolver struct {
	walker *Walker
}

// NewResolver creates a new Resolver.
func NewResolver(walker *Walker) *Resolver {
	return &Resolver{walker: walker}
}

// IsPattern reports whether input contains glob metacharacters.
func IsPattern(input string) bool {
	return strings.ContainsAny(input, "*?[{")
}

// ResolveInputs resolves the given inputs to a sorted, de-duplicated list of absolute file paths.
func (r *Resolver) ResolveInputs(inputs []string, root string) ([]string, error) {
	seen := make(map[string]struct{})
	var result []string
	for _, input := range inputs {
		files, err := r.Resolve(input, root)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			result = append(result, f)
		}
	}
	slices.Sort(result)
	return result, nil
}

// Resolve expands a single input to its files in lexical order.
// A pattern with no matches resolves to nothing; a missing literal path is an error.
func (r *Resolver) Resolve(input, root string) ([]string, error) {
	if IsPattern(input) {
		return r.glob(input, root)
	}

	path := Abs(input, root)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, zerr.With(ErrInputNotFound, "path", path)
		}
		return nil, domain.NewIOError("stat", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	for file := range r.walker.WalkFiles(path, nil) {
		files = append(files, file)
	}
	return files, nil
}

func (r *Resolver) glob(pattern, root string) ([]string, error) {
	matches, err := doublestar.FilepathGlob(Abs(pattern, root), doublestar.WithFilesOnly())
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid input pattern"), "pattern", pattern)
	}
	files := matches[:0]
	for _, m := range matches {
		if !insideSkippedDir(m, root) {
			files = append(files, m)
		}
	}
	slices.Sort(files)
	return files, nil
}

// Abs joins a relative path onto root.
func Abs(path, root string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(root, path)
}

func insideSkippedDir(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for part := range strings.SplitSeq(filepath.ToSlash(rel), "/") {
		if skippedDirs[part] {
			return true
		}
	}
	return false
}
