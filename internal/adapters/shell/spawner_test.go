//go:build unix

package shell_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/steppe/internal/adapters/shell"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
)

func request(program string, args ...string) ports.ProcessRequest {
	return ports.ProcessRequest{
		Program: program,
		Args:    args,
		Env:     os.Environ(),
	}
}

func writeExecutable(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	//nolint:gosec // Test requires executable file
	require.NoError(t, os.WriteFile(path, []byte(content), 0o700))
	return path
}

func TestSpawner_Spawn_Success(t *testing.T) {
	var stdout, stderr bytes.Buffer

	res, err := shell.NewSpawner().Spawn(t.Context(), request("echo", "hello", "world"), &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello world\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestSpawner_Spawn_NonZeroExit(t *testing.T) {
	var stdout, stderr bytes.Buffer

	req := request("sh", "-c", "echo out; echo boom >&2; exit 3")
	res, err := shell.NewSpawner().Spawn(t.Context(), req, &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom\n", res.Stderr)
	assert.Equal(t, "out\n", stdout.String())
	assert.Equal(t, "boom\n", stderr.String())
}

func TestSpawner_Spawn_StderrTail(t *testing.T) {
	req := request("sh", "-c", "i=0; while [ $i -lt 2000 ]; do echo line-$i >&2; i=$((i+1)); done; exit 1")
	res, err := shell.NewSpawner().Spawn(t.Context(), req, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.LessOrEqual(t, len(res.Stderr), 4<<10)
	assert.True(t, strings.HasSuffix(res.Stderr, "line-1999\n"))
}

func TestSpawner_Spawn_CommandNotFound(t *testing.T) {
	_, err := shell.NewSpawner().Spawn(t.Context(), request("steppe-no-such-program"), nil, nil)
	require.ErrorIs(t, err, domain.ErrCommandNotFound)
	assert.Contains(t, err.Error(), "steppe-no-such-program")
}

func TestSpawner_Spawn_UsesRequestPath(t *testing.T) {
	toolDir := t.TempDir()
	writeExecutable(t, toolDir, "my-hermetic-tool", "#!/bin/sh\necho success\n")

	var stdout bytes.Buffer
	req := ports.ProcessRequest{
		Program: "my-hermetic-tool",
		Env:     []string{"PATH=" + toolDir},
	}
	res, err := shell.NewSpawner().Spawn(t.Context(), req, &stdout, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "success\n", stdout.String())
}

func TestSpawner_Spawn_RelativeProgramAndDir(t *testing.T) {
	dir := t.TempDir()
	writeExecutable(t, dir, "run.sh", "#!/bin/sh\npwd\n")

	var stdout bytes.Buffer
	req := request("./run.sh")
	req.Dir = dir
	res, err := shell.NewSpawner().Spawn(t.Context(), req, &stdout, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(strings.TrimSpace(stdout.String()))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSpawner_Spawn_MissingRelativeProgram(t *testing.T) {
	req := request("./missing.sh")
	req.Dir = t.TempDir()
	_, err := shell.NewSpawner().Spawn(t.Context(), req, nil, nil)
	require.ErrorIs(t, err, domain.ErrCommandNotFound)
}

func TestSpawner_Spawn_CancelKillsProcessGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	time.AfterFunc(100*time.Millisecond, cancel)

	// The background sleep keeps stdout open; only a group kill ends it promptly.
	var stdout bytes.Buffer
	req := request("sh", "-c", "sleep 30 & sleep 30")

	start := time.Now()
	res, err := shell.NewSpawner().Spawn(ctx, req, &stdout, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, -1, res.ExitCode)
	assert.Less(t, time.Since(start), 10*time.Second)
}
