package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/steppe/internal/adapters/fs"
	"go.trai.ch/steppe/internal/core/domain"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
		require.NoError(t, os.WriteFile(path, []byte(content), domain.PrivateFilePerm))
	}
}

func newHasher() *fs.Hasher {
	return fs.NewHasher(fs.NewResolver(fs.NewWalker()))
}

func TestWalker_WalkFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		".git/config":      "git config",
		".jj/repo":         "jj",
		".steppe/cache.db": "db",
		"ignored/file":     "ignored content",
		"src/b.go":         "package b",
		"src/a.go":         "package a",
		"README.md":        "# Readme",
	})

	var files []string
	for path := range fs.NewWalker().WalkFiles(root, []string{"ignored"}) {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		files = append(files, filepath.ToSlash(rel))
	}

	assert.Equal(t, []string{"README.md", "src/a.go", "src/b.go"}, files)
}

func TestWalker_WalkFiles_StopsEarly(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a": "1", "b": "2", "c": "3"})

	count := 0
	for range fs.NewWalker().WalkFiles(root, nil) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestHasher_ComputeFileHash(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"f": "hello world"})
	h := newHasher()

	hash1, err := h.ComputeFileHash(filepath.Join(root, "f"))
	require.NoError(t, err)
	assert.NotZero(t, hash1)

	hash2, err := h.ComputeFileHash(filepath.Join(root, "f"))
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2)

	_, err = h.ComputeFileHash(filepath.Join(root, "missing"))
	require.Error(t, err)
	assert.Equal(t, domain.KindIO, domain.KindOf(err))
}

func TestHasher_Fingerprint(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"go.mod":        "module x",
		"src/main.go":   "package main",
		"src/util.go":   "package main // util",
		"docs/index.md": "docs",
	})
	h := newHasher()

	base := func() *domain.Task {
		tk := domain.NewCommandTask("build", "go", "build", "./...")
		tk.Inputs = domain.NewInternedStrings([]string{"go.mod", "src"})
		return tk
	}

	fp, err := h.Fingerprint(base(), root)
	require.NoError(t, err)
	assert.Len(t, fp, 16)

	t.Run("deterministic", func(t *testing.T) {
		again, err := h.Fingerprint(base(), root)
		require.NoError(t, err)
		assert.Equal(t, fp, again)
	})

	t.Run("name and dependencies do not participate", func(t *testing.T) {
		tk := base()
		tk.Name = domain.NewInternedString("compile")
		tk.Dependencies = domain.NewInternedStrings([]string{"generate"})
		tk.Outputs = domain.NewInternedStrings([]string{"bin/app"})
		got, err := h.Fingerprint(tk, root)
		require.NoError(t, err)
		assert.Equal(t, fp, got)
	})

	t.Run("body participates", func(t *testing.T) {
		tk := base()
		tk.Body = domain.CommandBody{Program: "go", Args: []string{"build", "-race", "./..."}}
		got, err := h.Fingerprint(tk, root)
		require.NoError(t, err)
		assert.NotEqual(t, fp, got)
	})

	t.Run("input order participates", func(t *testing.T) {
		tk := base()
		tk.Inputs = domain.NewInternedStrings([]string{"src", "go.mod"})
		got, err := h.Fingerprint(tk, root)
		require.NoError(t, err)
		assert.NotEqual(t, fp, got)
	})

	t.Run("unrelated files do not participate", func(t *testing.T) {
		writeFiles(t, root, map[string]string{"docs/index.md": "changed"})
		got, err := h.Fingerprint(base(), root)
		require.NoError(t, err)
		assert.Equal(t, fp, got)
	})

	t.Run("a single byte change in a walked file changes the fingerprint", func(t *testing.T) {
		writeFiles(t, root, map[string]string{"src/util.go": "package main // utiL"})
		t.Cleanup(func() { writeFiles(t, root, map[string]string{"src/util.go": "package main // util"}) })
		got, err := h.Fingerprint(base(), root)
		require.NoError(t, err)
		assert.NotEqual(t, fp, got)
	})

	t.Run("a new file under a declared directory changes the fingerprint", func(t *testing.T) {
		writeFiles(t, root, map[string]string{"src/extra.go": "package main"})
		t.Cleanup(func() { _ = os.Remove(filepath.Join(root, "src", "extra.go")) })
		got, err := h.Fingerprint(base(), root)
		require.NoError(t, err)
		assert.NotEqual(t, fp, got)
	})
}

func TestHasher_Fingerprint_ScriptAndCommandDiffer(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"in": "x"})
	h := newHasher()

	cmd := domain.NewCommandTask("a", "echo")
	cmd.Inputs = domain.NewInternedStrings([]string{"in"})
	script := domain.NewScriptTask("a", "echo")
	script.Inputs = cmd.Inputs

	fpCmd, err := h.Fingerprint(cmd, root)
	require.NoError(t, err)
	fpScript, err := h.Fingerprint(script, root)
	require.NoError(t, err)
	assert.NotEqual(t, fpCmd, fpScript)
}

func TestHasher_Fingerprint_MissingInput(t *testing.T) {
	h := newHasher()
	tk := domain.NewCommandTask("a", "echo")
	tk.Inputs = domain.NewInternedStrings([]string{"nope.txt"})

	_, err := h.Fingerprint(tk, t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrInputNotFound)
}

func TestHasher_OutputHash(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"bin/app": "elf", "bin/tool": "elf2"})
	h := newHasher()

	hash1, err := h.OutputHash([]string{"bin/tool", "bin/app"}, root)
	require.NoError(t, err)

	hash2, err := h.OutputHash([]string{"bin/app", "bin/tool"}, root)
	require.NoError(t, err)
	assert.Equal(t, hash1, hash2, "output order does not matter")

	writeFiles(t, root, map[string]string{"bin/app": "elf!"})
	hash3, err := h.OutputHash([]string{"bin/app", "bin/tool"}, root)
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash3)

	require.NoError(t, os.Remove(filepath.Join(root, "bin", "tool")))
	_, err = h.OutputHash([]string{"bin/app", "bin/tool"}, root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output missing")
}
