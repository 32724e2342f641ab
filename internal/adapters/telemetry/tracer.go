package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.trai.ch/steppe/internal/core/ports"
)

// CachedAttribute marks a span whose task was satisfied from the cache.
const CachedAttribute = "steppe.cached"

var (
	_ ports.Tracer = (*OTelTracer)(nil)
	_ ports.Span   = (*OTelSpan)(nil)
)

// OTelTracer implements ports.Tracer using OpenTelemetry. Span output is batched
// and forwarded to the renderer, when one is attached.
type OTelTracer struct {
	name     string
	provider trace.TracerProvider
	renderer ports.Renderer
}

// Option configures an OTelTracer.
type Option func(*OTelTracer)

// WithProvider uses tp instead of the global tracer provider.
func WithProvider(tp trace.TracerProvider) Option {
	return func(t *OTelTracer) {
		t.provider = tp
	}
}

// WithRenderer forwards plans and span output to r.
func WithRenderer(r ports.Renderer) Option {
	return func(t *OTelTracer) {
		t.renderer = r
	}
}

// NewOTelTracer creates a tracer with the given instrumentation name.
func NewOTelTracer(name string, opts ...Option) *OTelTracer {
	t := &OTelTracer{name: name}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetRenderer attaches r after construction.
func (t *OTelTracer) SetRenderer(r ports.Renderer) {
	t.renderer = r
}

func (t *OTelTracer) tracer() trace.Tracer {
	if t.provider != nil {
		return t.provider.Tracer(t.name)
	}
	return otel.Tracer(t.name)
}

// Start creates a new span. Its Write method feeds the renderer.
func (t *OTelTracer) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	cfg := &ports.SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var startOpts []trace.SpanStartOption
	if cfg.Cached {
		startOpts = append(startOpts, trace.WithAttributes(attribute.Bool(CachedAttribute, true)))
	}
	ctx, span := t.tracer().Start(ctx, name, startOpts...)

	s := &OTelSpan{span: span}
	if r := t.renderer; r != nil {
		spanID := span.SpanContext().SpanID().String()
		s.batcher = NewBatchProcessor(0, 0, func(data []byte) {
			r.OnTaskLog(spanID, data)
		})
	}
	return ctx, s
}

// EmitPlan records the plan on the current span and hands it to the renderer.
func (t *OTelTracer) EmitPlan(ctx context.Context, taskNames []string, dependencies map[string][]string, targets []string) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("plan_emitted", trace.WithAttributes(
			attribute.StringSlice("tasks", taskNames),
			attribute.StringSlice("targets", targets),
		))
	}

	if t.renderer != nil {
		t.renderer.OnPlanEmit(taskNames, dependencies, targets)
	}
}

// OTelSpan implements ports.Span using OpenTelemetry.
type OTelSpan struct {
	span    trace.Span
	batcher *BatchProcessor
}

// End flushes buffered output and completes the span.
func (s *OTelSpan) End() {
	if s.batcher != nil {
		_ = s.batcher.Close()
	}
	s.span.End()
}

// RecordError records err and marks the span as failed.
func (s *OTelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// SetAttribute adds a key-value pair to the span.
func (s *OTelSpan) SetAttribute(key string, value any) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	case []string:
		s.span.SetAttributes(attribute.StringSlice(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

// Write sends output to the renderer, or records it as a span event when no
// renderer is attached.
func (s *OTelSpan) Write(p []byte) (int, error) {
	if s.batcher != nil {
		return s.batcher.Write(p)
	}
	s.span.AddEvent("log", trace.WithAttributes(attribute.String("message", string(p))))
	return len(p), nil
}
