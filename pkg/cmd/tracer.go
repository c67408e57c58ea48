package cmd

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/campushive/flowkit/pkg/otelhelper"
)

// NewTracer returns an OTLP-exporting tracer when enabled, nil otherwise.
// Callers treat a nil tracer as tracing disabled.
func NewTracer(ctx context.Context, enabled bool, serviceName string) (trace.Tracer, error) {
	if !enabled {
		return nil, nil
	}

	return otelhelper.NewTracer(ctx, serviceName)
}
