// Package shell provides the process spawner used by command tasks.
package shell

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ProcessSpawner = (*Spawner)(nil)

const (
	// waitDelay bounds how long output pipes may stay open after the process exits
	// or is killed.
	waitDelay = 2 * time.Second

	// stderrTailLimit is how much trailing stderr is kept for diagnostics.
	stderrTailLimit = 4 << 10
)

// Spawner implements ports.ProcessSpawner using os/exec.
// Each process runs in its own process group so cancellation reaches its children.
type Spawner struct{}

// NewSpawner creates a new Spawner.
func NewSpawner() *Spawner {
	return &Spawner{}
}

// Spawn runs the program and waits for it. A non-zero exit is reported in the
// result, not as an error.
func (s *Spawner) Spawn(
	ctx context.Context,
	req ports.ProcessRequest,
	stdout, stderr io.Writer,
) (ports.ProcessResult, error) {
	executable, err := resolveExecutable(req.Program, req.Dir, req.Env)
	if err != nil {
		return ports.ProcessResult{ExitCode: -1}, err
	}

	cmd := exec.CommandContext(ctx, executable, req.Args...) //nolint:gosec // user provided command
	// Restore the name as invoked; CommandContext puts the resolved path in Args[0].
	cmd.Args[0] = req.Program
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	cmd.WaitDelay = waitDelay

	tail := &tailBuffer{limit: stderrTailLimit}
	cmd.Stdout = orDiscard(stdout)
	cmd.Stderr = io.MultiWriter(orDiscard(stderr), tail)
	setProcessGroup(cmd)

	runErr := cmd.Run()
	result := ports.ProcessResult{Stderr: tail.String()}

	if ctx.Err() != nil {
		result.ExitCode = -1
		return result, zerr.Wrap(context.Cause(ctx), "process aborted")
	}

	if runErr == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	result.ExitCode = -1
	if errors.Is(runErr, exec.ErrNotFound) || errors.Is(runErr, os.ErrNotExist) {
		return result, domain.NewCommandNotFound(req.Program)
	}
	return result, domain.NewIOError("start process", executable, runErr)
}

// resolveExecutable finds program on the PATH of env. Programs containing a
// separator are taken relative to dir.
func resolveExecutable(program, dir string, env []string) (string, error) {
	if strings.ContainsRune(program, filepath.Separator) || strings.ContainsRune(program, '/') {
		path := program
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := findExecutable(path); err != nil {
			return "", domain.NewCommandNotFound(program)
		}
		return path, nil
	}

	path, err := lookPath(program, env)
	if err != nil {
		return "", domain.NewCommandNotFound(program)
	}
	return path, nil
}

// lookPath searches for an executable in the directories named by the PATH entry of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if v, ok := strings.CutPrefix(e, "PATH="); ok {
			path = v
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.ToValidUTF8(string(t.buf), "")
}
