package app

import (
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/steppe/internal/adapters/telemetry"
	"go.trai.ch/steppe/internal/core/ports"
)

// setupOTel registers a tracer provider whose span processor feeds renderer.
// A nil renderer still records spans, so task output lands as span events.
func setupOTel(renderer ports.Renderer) *sdktrace.TracerProvider {
	tp := telemetry.NewProvider(renderer)
	otel.SetTracerProvider(tp)
	return tp
}
