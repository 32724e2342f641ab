// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/steppe/internal/core/domain"
)

// Executor defines the interface for executing tasks.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs one attempt of task, streaming output to stdout and stderr.
	//
	// The returned error classifies the failure: CommandNotFound, TaskFailed,
	// ScriptFailed or InvalidTask.
	Execute(ctx context.Context, task *domain.Task, stdout, stderr io.Writer) error
}

type rootKey struct{}

// WithRoot returns a context carrying the directory that relative task
// directories resolve against.
func WithRoot(ctx context.Context, root string) context.Context {
	return context.WithValue(ctx, rootKey{}, root)
}

// RootFrom returns the root stored by WithRoot, or "" when none is set.
func RootFrom(ctx context.Context) string {
	root, _ := ctx.Value(rootKey{}).(string)
	return root
}

// ProcessRequest describes one external process.
type ProcessRequest struct {
	Program string
	Args    []string
	// Dir is an absolute working directory.
	Dir string
	// Env is the full environment in "KEY=VALUE" form.
	Env []string
}

// ProcessResult reports how a process exited.
type ProcessResult struct {
	ExitCode int
	// Stderr holds the tail of the process stderr.
	Stderr string
}

// ProcessSpawner runs external programs.
type ProcessSpawner interface {
	// Spawn starts the process and waits for it.
	//
	// A non-zero exit is reported through ProcessResult with a nil error.
	// A program that cannot be resolved yields an error of kind CommandNotFound.
	// Cancelling ctx kills the process group.
	Spawn(ctx context.Context, req ProcessRequest, stdout, stderr io.Writer) (ProcessResult, error)
}

// ScriptRequest describes one embedded script evaluation.
type ScriptRequest struct {
	Task   string
	Source string
	// Dir is the absolute directory relative script paths resolve against.
	Dir string
	// Env is the starting environment in "KEY=VALUE" form.
	Env []string
}

// ScriptEvaluator runs embedded scripts in-process.
type ScriptEvaluator interface {
	// Evaluate runs the script. Printed output goes to stdout.
	Evaluate(ctx context.Context, req ScriptRequest, stdout io.Writer) error
}
