package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/steppe/internal/adapters/logger"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/zerr"
)

// newTestLogger creates a logger with an injected bytes.Buffer for isolated testing.
// It also sets NO_COLOR=1 to ensure deterministic output without ANSI escape codes.
func newTestLogger(t *testing.T) (*logger.Logger, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")

	buf := &bytes.Buffer{}
	lg := logger.New()
	lg.SetOutput(buf)
	return lg, buf
}

func TestLogger_InfoAndWarn(t *testing.T) {
	lg, buf := newTestLogger(t)

	lg.Info("cache opened")
	lg.Warn("cache lookup failed, executing")
	lg.Info("line1\nline2")

	goldie.New(t).Assert(t, "info_warn", buf.Bytes())
}

func TestLogger_Error(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		goldenName string
	}{
		{
			name:       "task not found with suggestion",
			err:        domain.NewTaskNotFound("tset", []string{"build", "test", "lint"}),
			goldenName: "error_task_not_found",
		},
		{
			name:       "cycle",
			err:        domain.NewCycle([]string{"a", "b", "a"}),
			goldenName: "error_cycle",
		},
		{
			name:       "task failed shows stderr as help",
			err:        zerr.Wrap(domain.NewTaskFailed("build", 2, "main.go:3: undefined: foo\n"), "run failed"),
			goldenName: "error_task_failed",
		},
		{
			name:       "script failed keeps the nested cause",
			err:        domain.NewScriptFailed("lint", errors.New("lint.star:2:5: fail: missing go.mod")),
			goldenName: "error_script_failed",
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			goldenName: "error_plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lg, buf := newTestLogger(t)
			lg.Error(tt.err)

			goldie.New(t).Assert(t, tt.goldenName, buf.Bytes())
		})
	}
}

func TestLogger_ErrorNil(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.Error(nil)
	assert.Empty(t, buf.String())
}

func TestLogger_JSON(t *testing.T) {
	lg, buf := newTestLogger(t)
	lg.SetJSON(true)

	lg.Error(domain.NewCommandNotFound("gcc"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "command not found: gcc", record["msg"])
	assert.Equal(t, "CommandNotFound", record["kind"])
	assert.Equal(t, "steppe::exec::command_not_found", record["code"])
	assert.Contains(t, record, "error")
}

func TestLogger_JSONSurvivesSetOutput(t *testing.T) {
	lg, _ := newTestLogger(t)
	lg.SetJSON(true)

	buf := &bytes.Buffer{}
	lg.SetOutput(buf)
	lg.Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "hello", record["msg"])
}
