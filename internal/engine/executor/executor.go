// Package executor runs a single task attempt and classifies how it ended.
package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Executor = (*Executor)(nil)

// Executor dispatches task bodies to the process spawner or the script evaluator.
type Executor struct {
	spawner   ports.ProcessSpawner
	evaluator ports.ScriptEvaluator
	logger    ports.Logger
	forward   atomic.Bool
	environ   func() []string
}

// New creates an Executor.
func New(spawner ports.ProcessSpawner, evaluator ports.ScriptEvaluator, logger ports.Logger) *Executor {
	return &Executor{
		spawner:   spawner,
		evaluator: evaluator,
		logger:    logger,
		environ:   os.Environ,
	}
}

// ForwardOutput makes every task output line also go to the logger.
// Used when no renderer is attached, e.g. with JSON logs.
func (e *Executor) ForwardOutput(enabled bool) {
	e.forward.Store(enabled)
}

// Execute runs one attempt of task. There are no retries.
func (e *Executor) Execute(ctx context.Context, task *domain.Task, stdout, stderr io.Writer) error {
	name := task.Name.String()

	if e.forward.Load() {
		stdoutLog := &logWriter{logger: e.logger, prefix: name}
		stderrLog := &logWriter{logger: e.logger, prefix: name, warn: true}
		defer func() {
			_ = stdoutLog.Close()
			_ = stderrLog.Close()
		}()
		stdout = io.MultiWriter(stdoutLog, stdout)
		stderr = io.MultiWriter(stderrLog, stderr)
	}

	root, err := e.root(ctx)
	if err != nil {
		return err
	}
	env := resolveEnvironment(e.environ(), task.Environment)

	switch body := task.Body.(type) {
	case domain.CommandBody:
		return e.runCommand(ctx, name, body, root, env, stdout, stderr)
	case domain.ScriptBody:
		req := ports.ScriptRequest{Task: name, Source: body.Source, Dir: root, Env: env}
		if err := e.evaluator.Evaluate(ctx, req, stdout); err != nil {
			return domain.NewScriptFailed(name, err)
		}
		return nil
	default:
		return domain.NewInvalidTask(name, "task has no body")
	}
}

func (e *Executor) runCommand(
	ctx context.Context,
	name string,
	body domain.CommandBody,
	root string,
	env []string,
	stdout, stderr io.Writer,
) error {
	dir := body.Dir
	if dir == "" {
		dir = root
	} else if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}

	req := ports.ProcessRequest{
		Program: body.Program,
		Args:    body.Args,
		Dir:     dir,
		Env:     env,
	}
	res, err := e.spawner.Spawn(ctx, req, stdout, stderr)
	switch {
	case err != nil && ctx.Err() != nil:
		return domain.NewTaskAborted(name, err)
	case errors.Is(err, domain.ErrCommandNotFound):
		return zerr.With(err, "task", name)
	case err != nil:
		return zerr.With(zerr.Wrap(err, "failed to run command"), "task", name)
	case res.ExitCode != 0:
		return domain.NewTaskFailed(name, res.ExitCode, res.Stderr)
	}
	return nil
}

func (e *Executor) root(ctx context.Context) (string, error) {
	if root := ports.RootFrom(ctx); root != "" {
		return root, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", domain.NewIOError("get working directory", "", err)
	}
	return wd, nil
}

// resolveEnvironment overlays the task environment on the process environment.
// Later duplicates of a key replace earlier ones.
func resolveEnvironment(processEnv []string, taskEnv map[string]string) []string {
	env := make([]string, 0, len(processEnv)+len(taskEnv))
	index := make(map[string]int, len(processEnv)+len(taskEnv))
	set := func(key, value string) {
		if i, ok := index[key]; ok {
			env[i] = key + "=" + value
			return
		}
		index[key] = len(env)
		env = append(env, key+"="+value)
	}

	for _, entry := range processEnv {
		if key, value, ok := strings.Cut(entry, "="); ok && key != "" {
			set(key, value)
		}
	}

	keys := make([]string, 0, len(taskEnv))
	for key := range taskEnv {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		set(key, taskEnv[key])
	}
	return env
}
