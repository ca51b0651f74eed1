// Package telemetry sets up distributed tracing for the orchestrator.
// The decision-graph write at the end of a deliberation outlives the
// caller's request context, so the deliberation span has to be carried
// across that cancellation boundary; DetachedContext does the carry.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls the OTLP/HTTP trace exporter. Endpoint empty means
// tracing is disabled: Setup then returns a no-op provider.
type Config struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
}

// Setup installs a global TracerProvider per cfg and returns a
// shutdown func the caller must run before exiting. When cfg.Endpoint
// is empty, Setup installs the otel no-op provider and the returned
// shutdown is a no-op.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	if cfg.Endpoint == "" {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating otlp trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// Tracer returns the package tracer used for deliberation spans.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/blueman82/go-counsel")
}

// DetachedContext carries the trace span out of ctx into a new,
// cancellation-independent background context, for work that must
// keep running after its parent request context is done.
func DetachedContext(ctx context.Context) context.Context {
	bgCtx := context.Background()
	if span := trace.SpanFromContext(ctx); span != nil {
		bgCtx = trace.ContextWithSpanContext(bgCtx, span.SpanContext())
	}
	return bgCtx
}
