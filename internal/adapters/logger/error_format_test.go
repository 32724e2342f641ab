package logger_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/steppe/internal/adapters/logger"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestCollectErrorEntries(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantMessages []string
		wantMetadata []map[string]any
	}{
		{
			name:         "single standard error",
			err:          errors.New("simple error"),
			wantMessages: []string{"simple error"},
			wantMetadata: []map[string]any{nil},
		},
		{
			name: "zerr wrapped chain",
			err: zerr.Wrap(
				zerr.Wrap(errors.New("root cause"), "middle layer"),
				"outer layer",
			),
			wantMessages: []string{"outer layer", "middle layer", "root cause"},
			wantMetadata: []map[string]any{{}, {}, nil},
		},
		{
			name:         "kind error folds the metadata of its empty wrapper",
			err:          domain.NewBlocked("test", "build"),
			wantMessages: []string{"task blocked by failed dependency: test"},
			wantMetadata: []map[string]any{{"task": "test", "blocked_by": "build"}},
		},
		{
			name:         "kind error cause is followed",
			err:          domain.NewScriptFailed("lint", zerr.With(zerr.New("eval error"), "line", 4)),
			wantMessages: []string{"script execution failed: lint", "eval error"},
			wantMetadata: []map[string]any{{"task": "lint"}, {"line": 4}},
		},
		{
			name:         "nil error handling",
			err:          nil,
			wantMessages: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := logger.CollectErrorEntries(tt.err)

			if tt.err == nil {
				assert.Empty(t, entries, "nil error should produce no entries")
				return
			}

			assert.Len(t, entries, len(tt.wantMessages), "entry count mismatch")
			for i, wantMsg := range tt.wantMessages {
				assert.Equal(t, wantMsg, entries[i].Message, "message mismatch at index %d", i)
				assert.Equal(t, tt.wantMetadata[i], entries[i].Metadata, "metadata mismatch at index %d", i)
			}
		})
	}
}

func TestFormatErrorEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []logger.ErrorEntry
		want    string
	}{
		{
			name:    "single entry",
			entries: []logger.ErrorEntry{{Message: "single error"}},
			want:    "Error: single error",
		},
		{
			name:    "three entries",
			entries: []logger.ErrorEntry{{Message: "first"}, {Message: "second"}, {Message: "third"}},
			want:    "Error: first\n\n  Caused by:\n    → second\n    → third",
		},
		{
			name: "metadata sorted alphabetically, lists joined, stderr hidden",
			entries: []logger.ErrorEntry{{
				Message: "error",
				Metadata: map[string]any{
					"zebra":  "z",
					"alpha":  []string{"a", "b"},
					"stderr": "hidden",
				},
			}},
			want: "Error: error\n       alpha: a, b\n       zebra: z",
		},
		{
			name:    "multiline cause message",
			entries: []logger.ErrorEntry{{Message: "main"}, {Message: "cause line1\ncause line2", Metadata: map[string]any{"k": 1}}},
			want:    "Error: main\n\n  Caused by:\n    → cause line1\n      cause line2\n      k: 1",
		},
		{
			name:    "empty entries",
			entries: []logger.ErrorEntry{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.FormatErrorEntries(tt.entries))
		})
	}
}

func TestFormatError_Hints(t *testing.T) {
	err := domain.NewTaskNotFound("biuld", []string{"build", "test"})

	got := logger.FormatError(err)
	assert.Contains(t, got, "Did you mean 'build'?")
	assert.Contains(t, got, "help: Run `steppe list` to see available tasks")
}

func TestClosest(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		candidates []string
		want       string
	}{
		{name: "transposition", input: "tset", candidates: []string{"build", "test"}, want: "test"},
		{name: "prefers smallest distance", input: "lnt", candidates: []string{"lint", "lnts"}, want: "lint"},
		{name: "too far", input: "deploy", candidates: []string{"build", "test"}, want: ""},
		{name: "empty name", input: "", candidates: []string{"a"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.Closest(tt.input, tt.candidates))
		})
	}
}
