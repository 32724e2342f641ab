package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/steppe/internal/adapters/config"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports/mocks"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

func createFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), domain.DirPerm))
	require.NoError(t, os.WriteFile(path, []byte(content), domain.FilePerm))
	return path
}

func newLoader(t *testing.T) (*config.Loader, *mocks.MockLogger) {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	return config.NewLoader(mockLogger), mockLogger
}

func metadata(t *testing.T, err error) map[string]any {
	t.Helper()
	var zErr *zerr.Error
	require.ErrorAs(t, err, &zErr)
	return zErr.Metadata()
}

func TestLoader_Load_Success(t *testing.T) {
	t.Setenv("STEPPE_TEST_OUT", "bin/app")
	loader, _ := newLoader(t)
	rootDir := t.TempDir()

	createFile(t, rootDir, domain.ConfigFileName, `
env:
  CGO_ENABLED: "1"
  MODE: release
tasks:
  generate:
    cmd: ["go", "generate", "./..."]
  build:
    description: Compile the app
    cmd: go build -ldflags "-s -w" -o $STEPPE_TEST_OUT ./...
    dir: ./cmd/../src
    env:
      CGO_ENABLED: "0"
    depends: [generate, generate]
    inputs: [go.mod, "**/*.go", go.mod]
    outputs: [bin/app]
  lint:
    always: true
    script: |
      if not exists("go.mod"):
          fail("missing go.mod")
`)

	g, err := loader.Load(rootDir)
	require.NoError(t, err)

	assert.Equal(t, rootDir, g.Root())
	assert.Equal(t, []string{"generate", "build", "lint"}, g.Names())

	build, ok := g.GetTask(domain.NewInternedString("build"))
	require.True(t, ok)
	assert.Equal(t, "Compile the app", build.Description)
	assert.Equal(t, domain.CommandBody{
		Program: "go",
		Args:    []string{"build", "-ldflags", "-s -w", "-o", "bin/app", "./..."},
		Dir:     "src",
	}, build.Body)
	assert.Equal(t, []string{"generate"}, domain.Strings(build.Dependencies))
	assert.Equal(t, []string{"**/*.go", "go.mod"}, domain.Strings(build.Inputs))
	assert.Equal(t, []string{"bin/app"}, domain.Strings(build.Outputs))
	assert.Equal(t, map[string]string{"CGO_ENABLED": "0", "MODE": "release"}, build.Environment)
	assert.False(t, build.AlwaysRun)

	generate, ok := g.GetTask(domain.NewInternedString("generate"))
	require.True(t, ok)
	assert.Equal(t, domain.CommandBody{Program: "go", Args: []string{"generate", "./..."}}, generate.Body)

	lint, ok := g.GetTask(domain.NewInternedString("lint"))
	require.True(t, ok)
	assert.True(t, lint.AlwaysRun)
	body, ok := lint.Body.(domain.ScriptBody)
	require.True(t, ok)
	assert.Contains(t, body.Source, `fail("missing go.mod")`)
}

func TestLoader_LoadFile_Root(t *testing.T) {
	loader, _ := newLoader(t)
	rootDir := t.TempDir()
	path := createFile(t, rootDir, "config/"+domain.ConfigFileName, `
root: ..
tasks:
  hello:
    cmd: echo hello
`)

	g, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, rootDir, g.Root())
}

func TestLoader_LoadFile_Empty(t *testing.T) {
	loader, _ := newLoader(t)
	path := createFile(t, t.TempDir(), domain.ConfigFileName, "")

	g, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.Zero(t, g.TaskCount())
}

func TestLoader_LoadFile_Missing(t *testing.T) {
	loader, _ := newLoader(t)
	dir := t.TempDir()

	_, err := loader.LoadFile(filepath.Join(dir, domain.ConfigFileName))
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
	assert.Equal(t, []string{dir}, metadata(t, err)["searched"])
}

func TestLoader_LoadFile_Warnings(t *testing.T) {
	loader, mockLogger := newLoader(t)
	mockLogger.EXPECT().Warn("task build declares outputs but no inputs and is never cached")
	mockLogger.EXPECT().Warn("task check: 'dir' has no effect on script tasks")

	path := createFile(t, t.TempDir(), domain.ConfigFileName, `
tasks:
  build:
    cmd: make
    outputs: [bin/app]
  check:
    dir: sub
    script: info("ok")
`)

	_, err := loader.LoadFile(path)
	require.NoError(t, err)
}

func TestLoader_LoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		wantMsg string
	}{
		{
			name:    "malformed yaml",
			content: "tasks:\n  build: [unclosed\n",
			wantErr: domain.ErrConfigParse,
		},
		{
			name:    "tasks is not a mapping",
			content: "tasks: [build, test]\n",
			wantErr: domain.ErrConfigParse,
			wantMsg: "tasks must be a mapping",
		},
		{
			name:    "duplicate task",
			content: "tasks:\n  build:\n    cmd: make\n  build:\n    cmd: make\n",
			wantErr: domain.ErrConfigParse,
			wantMsg: "already defined",
		},
		{
			name:    "cmd of the wrong shape",
			content: "tasks:\n  build:\n    cmd: {program: make}\n",
			wantErr: domain.ErrConfigParse,
			wantMsg: "cmd must be a string or a list of strings",
		},
		{
			name:    "unterminated quote",
			content: "tasks:\n  build:\n    cmd: echo \"oops\n",
			wantErr: domain.ErrConfigParse,
			wantMsg: "failed to split command",
		},
		{
			name:    "command substitution",
			content: "tasks:\n  build:\n    cmd: echo $(date)\n",
			wantErr: domain.ErrConfigParse,
			wantMsg: "failed to expand command",
		},
		{
			name:    "both cmd and script",
			content: "tasks:\n  build:\n    cmd: make\n    script: info('x')\n",
			wantErr: domain.ErrInvalidTask,
			wantMsg: "both cmd and script",
		},
		{
			name:    "neither cmd nor script",
			content: "tasks:\n  build:\n    inputs: [a]\n",
			wantErr: domain.ErrInvalidTask,
			wantMsg: "neither cmd nor script",
		},
		{
			name:    "empty command list",
			content: "tasks:\n  build:\n    cmd: []\n    script: ''\n",
			wantErr: domain.ErrInvalidTask,
			wantMsg: "neither cmd nor script",
		},
		{
			name:    "command of blanks",
			content: "tasks:\n  build:\n    cmd: '  '\n",
			wantErr: domain.ErrInvalidTask,
			wantMsg: "command is empty",
		},
		{
			name:    "reserved name",
			content: "tasks:\n  all:\n    cmd: make\n",
			wantErr: domain.ErrInvalidTask,
			wantMsg: "reserved",
		},
		{
			name:    "whitespace in name",
			content: "tasks:\n  \"my task\":\n    cmd: make\n",
			wantErr: domain.ErrInvalidTask,
			wantMsg: "whitespace",
		},
		{
			name:    "unknown dependency",
			content: "tasks:\n  build:\n    cmd: make\n    depends: [missing]\n",
			wantErr: domain.ErrTaskNotFound,
			wantMsg: "missing",
		},
		{
			name:    "cycle",
			content: "tasks:\n  a:\n    cmd: make\n    depends: [b]\n  b:\n    cmd: make\n    depends: [a]\n",
			wantErr: domain.ErrCyclicDependency,
			wantMsg: "a → b → a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader, _ := newLoader(t)
			path := createFile(t, t.TempDir(), domain.ConfigFileName, tt.content)

			_, err := loader.LoadFile(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "want %v, got %v", tt.wantErr, err)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoader_LoadFile_ErrorLine(t *testing.T) {
	loader, _ := newLoader(t)
	path := createFile(t, t.TempDir(), domain.ConfigFileName, "tasks:\n  ok:\n    cmd: make\n  bad:\n    inputs: [a]\n")

	_, err := loader.LoadFile(path)
	require.ErrorIs(t, err, domain.ErrInvalidTask)
	meta := metadata(t, err)
	assert.Equal(t, 4, meta["line"])
	assert.Equal(t, "bad", meta["task"])
}
