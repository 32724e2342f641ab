package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status is the terminal state of a planned task.
type Status uint8

const (
	// StatusPending is the state of a task that has not finished yet.
	StatusPending Status = iota
	// StatusSucceeded means the task ran and completed without error.
	StatusSucceeded
	// StatusSkipped means the cache proved the task up to date.
	StatusSkipped
	// StatusFailed means the task ran and failed.
	StatusFailed
	// StatusBlocked means the task never started because a dependency failed.
	StatusBlocked
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusBlocked:
		return "blocked"
	default:
		return "pending"
	}
}

// Ok reports whether the status lets dependents start.
func (s Status) Ok() bool {
	return s == StatusSucceeded || s == StatusSkipped
}

// Outcome records how one planned task ended.
type Outcome struct {
	Task        InternedString
	Status      Status
	ExitCode    int
	Fingerprint string
	Duration    time.Duration
	Err         error
	BlockedBy   InternedString
}

// Summary counts outcomes by status.
type Summary struct {
	Succeeded int
	Skipped   int
	Failed    int
	Blocked   int
}

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for i := range outcomes {
		switch outcomes[i].Status {
		case StatusSucceeded:
			s.Succeeded++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusBlocked:
			s.Blocked++
		}
	}
	return s
}

// String renders the summary line, omitting zero counts.
func (s Summary) String() string {
	parts := make([]string, 0, 4)
	for _, c := range []struct {
		n     int
		label string
	}{
		{s.Succeeded, "succeeded"},
		{s.Skipped, "skipped"},
		{s.Failed, "failed"},
		{s.Blocked, "blocked"},
	} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.label))
		}
	}
	if len(parts) == 0 {
		return "nothing to do"
	}
	return strings.Join(parts, ", ")
}
