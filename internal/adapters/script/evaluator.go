// Package script evaluates embedded Starlark task scripts.
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ScriptEvaluator = (*Evaluator)(nil)

const stateKey = "steppe.state"

// fileOptions allow top-level control flow so a task script reads like a plain script.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Evaluator implements ports.ScriptEvaluator with go.starlark.net.
type Evaluator struct {
	logger ports.Logger
}

// NewEvaluator creates a new Evaluator. Script warnings go to logger.
func NewEvaluator(logger ports.Logger) *Evaluator {
	return &Evaluator{logger: logger}
}

// state is the per-evaluation data builtins reach through the thread.
type state struct {
	ctx    context.Context
	task   string
	dir    string
	env    *environment
	stdout io.Writer
	logger ports.Logger
}

func stateOf(thread *starlark.Thread) *state {
	return thread.Local(stateKey).(*state)
}

// Evaluate runs req.Source on a fresh thread. Cancelling ctx cancels the thread.
func (e *Evaluator) Evaluate(ctx context.Context, req ports.ScriptRequest, stdout io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}

	thread := &starlark.Thread{
		Name: req.Task,
		Print: func(_ *starlark.Thread, msg string) {
			_, _ = fmt.Fprintln(stdout, msg)
		},
	}
	thread.SetLocal(stateKey, &state{
		ctx:    ctx,
		task:   req.Task,
		dir:    req.Dir,
		env:    newEnvironment(req.Env),
		stdout: stdout,
		logger: e.logger,
	})

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	_, err := starlark.ExecFileOptions(fileOptions, thread, req.Task+".star", req.Source, builtins())
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return zerr.Wrap(context.Cause(ctx), "script cancelled")
	}
	return evalError(err)
}

// evalError turns a Starlark failure into a zerr error positioned at the
// innermost script frame.
func evalError(err error) error {
	var evalErr *starlark.EvalError
	if !errors.As(err, &evalErr) {
		// Syntax and resolve errors already carry their position.
		return zerr.Wrap(err, "script did not compile")
	}

	result := zerr.New(evalErr.Msg)
	for i := range evalErr.CallStack {
		frame := evalErr.CallStack.At(i)
		if frame.Pos.Filename() != "<builtin>" {
			result = zerr.With(result, "position", frame.Pos.String())
			break
		}
	}
	return result
}

// environment is the script's view of the task environment. setenv changes
// are visible to getenv and sh for the rest of the evaluation.
type environment struct {
	vars map[string]string
}

func newEnvironment(pairs []string) *environment {
	env := &environment{vars: make(map[string]string, len(pairs))}
	for _, pair := range pairs {
		if k, v, ok := strings.Cut(pair, "="); ok {
			env.vars[k] = v
		}
	}
	return env
}

func (e *environment) get(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

func (e *environment) set(key, value string) {
	e.vars[key] = value
}

func (e *environment) pairs() []string {
	out := make([]string, 0, len(e.vars))
	for k, v := range e.vars {
		out = append(out, k+"="+v)
	}
	return out
}
