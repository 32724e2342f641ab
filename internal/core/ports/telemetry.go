package ports

import (
	"context"
	"io"
)

//go:generate go run go.uber.org/mock/mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals that a set of tasks is planned for execution.
	EmitPlan(ctx context.Context, taskNames []string, dependencies map[string][]string, targets []string)
}

// Span represents a unit of work. Writes are recorded as task output.
type Span interface {
	io.Writer
	// End completes the span.
	End()
	// RecordError records an error for the span.
	RecordError(err error)
	// SetAttribute adds a key-value pair to the span.
	SetAttribute(key string, value any)
}

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	// Cached marks a span whose task was satisfied from the cache.
	Cached bool
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithCached marks the span as a cache hit.
func WithCached() SpanOption {
	return func(c *SpanConfig) {
		c.Cached = true
	}
}
