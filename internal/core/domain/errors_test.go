package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/zerr"
)

type evalError struct{ line int }

func (e *evalError) Error() string { return fmt.Sprintf("line %d: boom", e.line) }

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.Kind
	}{
		{name: "nil", err: nil, want: domain.KindUnknown},
		{name: "foreign", err: errors.New("x"), want: domain.KindUnknown},
		{name: "config not found", err: domain.NewConfigNotFound([]string{"/a"}), want: domain.KindConfigNotFound},
		{name: "config parse", err: domain.NewConfigParse("steppe.yaml", errors.New("bad")), want: domain.KindConfigParse},
		{name: "task not found", err: domain.NewTaskNotFound("x", nil), want: domain.KindTaskNotFound},
		{name: "cycle", err: domain.NewCycle([]string{"a", "a"}), want: domain.KindCyclicDependency},
		{name: "invalid", err: domain.NewInvalidTask("a", "r"), want: domain.KindInvalidTask},
		{name: "command not found", err: domain.NewCommandNotFound("nope"), want: domain.KindCommandNotFound},
		{name: "task failed", err: domain.NewTaskFailed("a", 2, ""), want: domain.KindTaskFailed},
		{name: "task aborted", err: domain.NewTaskAborted("a", context.Canceled), want: domain.KindTaskFailed},
		{name: "script failed", err: domain.NewScriptFailed("a", errors.New("x")), want: domain.KindScriptFailed},
		{name: "blocked", err: domain.NewBlocked("a", "b"), want: domain.KindBlocked},
		{name: "cache", err: domain.NewCacheError("get", errors.New("x")), want: domain.KindCache},
		{name: "watch", err: domain.NewWatchError(errors.New("x")), want: domain.KindWatch},
		{name: "io", err: domain.NewIOError("read", "/x", errors.New("x")), want: domain.KindIO},
		{name: "wrapped", err: zerr.Wrap(domain.NewBlocked("a", "b"), "run failed"), want: domain.KindBlocked},
		{name: "bare sentinel", err: zerr.Wrap(domain.ErrCache, "ctx"), want: domain.KindCache},
		{name: "outermost kind wins", err: domain.NewScriptFailed("a", domain.NewCommandNotFound("x")), want: domain.KindScriptFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.KindOf(tt.err))
			if tt.want != domain.KindUnknown {
				assert.ErrorIs(t, tt.err, tt.want.Sentinel())
			}
		})
	}
}

func TestKinds_AreDistinct(t *testing.T) {
	notFound := domain.NewCommandNotFound("cc")
	failed := domain.NewTaskFailed("build", 127, "cc: not found")

	assert.NotEqual(t, domain.KindOf(notFound), domain.KindOf(failed))
	assert.NotErrorIs(t, notFound, domain.ErrTaskFailed)
	assert.NotErrorIs(t, failed, domain.ErrCommandNotFound)
}

func TestScriptFailed_PreservesCause(t *testing.T) {
	cause := &evalError{line: 3}
	err := domain.NewScriptFailed("lint", cause)

	var got *evalError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 3, got.line)
	assert.Equal(t, "script execution failed: lint: line 3: boom", err.Error())
}

func TestTaskAborted_PreservesContextCause(t *testing.T) {
	err := domain.NewTaskAborted("serve", context.Canceled)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, -1, metadata(err)["exit_code"])
}

func TestTaskFailed(t *testing.T) {
	err := domain.NewTaskFailed("build", 2, "  undefined: foo\n")

	assert.Equal(t, "task failed: build exited with code 2", err.Error())
	assert.Equal(t, "undefined: foo", domain.Help(err))

	meta := metadata(err)
	assert.Equal(t, "build", meta["task"])
	assert.Equal(t, 2, meta["exit_code"])
	assert.Equal(t, "undefined: foo", meta["stderr"])

	quiet := domain.NewTaskFailed("build", 1, "")
	assert.Empty(t, domain.Help(quiet))
	assert.NotContains(t, metadata(quiet), "stderr")
}

func TestCodeAndHelp(t *testing.T) {
	err := domain.NewTaskNotFound("tset", []string{"test"})

	assert.Equal(t, "steppe::task::not_found", domain.Code(err))
	assert.Equal(t, "Run `steppe list` to see available tasks", domain.Help(err))
	assert.Equal(t, "steppe::unknown", domain.Code(errors.New("x")))
	assert.Empty(t, domain.Help(errors.New("x")))
	assert.Empty(t, domain.Help(domain.NewWatchError(errors.New("x"))))
	assert.Equal(t, "TaskNotFound", domain.KindTaskNotFound.String())
	assert.Equal(t, "Unknown", domain.KindUnknown.String())
}

func TestRenderCycle(t *testing.T) {
	assert.Equal(t, "a → b → a", domain.RenderCycle([]string{"a", "b", "a"}))
}

func TestIOError_Metadata(t *testing.T) {
	err := domain.NewIOError("remove", "", errors.New("busy"))

	meta := metadata(err)
	assert.Equal(t, "remove", meta["op"])
	assert.NotContains(t, meta, "path")
	assert.Equal(t, "i/o error: remove: busy", err.Error())
}
