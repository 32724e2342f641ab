package ports

import (
	"context"
	"time"
)

// Renderer turns the telemetry event stream into terminal output.
//
//go:generate go run go.uber.org/mock/mockgen -source=renderer.go -destination=mocks/mock_renderer.go -package=mocks
type Renderer interface {
	// Start initializes the renderer and begins its lifecycle.
	Start(ctx context.Context) error

	// Stop signals the renderer to stop accepting new events and flush buffered output.
	Stop() error

	// Wait blocks until the renderer has fully terminated.
	Wait() error

	// OnPlanEmit is called when the scheduler has planned the task graph.
	OnPlanEmit(tasks []string, deps map[string][]string, targets []string)

	// OnTaskStart is called when a task begins execution.
	OnTaskStart(spanID, parentID, name string, startTime time.Time)

	// OnTaskLog is called when a task emits output. data may hold partial lines.
	OnTaskLog(spanID string, data []byte)

	// OnTaskComplete is called when a task finishes execution. err is nil on success;
	// cached reports a task satisfied from the cache.
	OnTaskComplete(spanID string, endTime time.Time, err error, cached bool)
}
