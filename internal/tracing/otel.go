package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used by the dispatch pipeline.
const TracerName = "github.com/harun/lynae"

// Config selects how spans are sampled and labelled.
type Config struct {
	ServiceName string
	Version     string
	// SampleRatio is the share of root spans kept, 0 to 1.
	SampleRatio float64
}

// Provider owns the tracer provider installed as the otel global.
type Provider struct {
	tp       *sdktrace.TracerProvider
	previous trace.TracerProvider
}

// Setup installs a tracer provider for the process. Spans stay in
// process; no exporter is attached, so they only carry ids into logs.
func Setup(cfg Config) (*Provider, error) {
	if cfg.ServiceName == "" {
		return nil, errors.New("tracing: service name is required")
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, errors.New("tracing: sample ratio must be between 0 and 1")
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", cfg.ServiceName)}
	if cfg.Version != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.Version))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, err
	}

	p := &Provider{
		tp: sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
			sdktrace.WithResource(res),
		),
		previous: otel.GetTracerProvider(),
	}
	otel.SetTracerProvider(p.tp)
	return p, nil
}

// Shutdown flushes spans and restores the provider that was installed
// before Setup.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	otel.SetTracerProvider(p.previous)
	return p.tp.Shutdown(ctx)
}

// StartSpan starts a span on the global provider. The span's trace id
// becomes the context trace id unless one is set already.
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := otel.Tracer(TracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))
	if GetTraceID(ctx) != "" {
		return ctx, span
	}
	if sc := span.SpanContext(); sc.IsValid() {
		ctx = WithTraceID(ctx, sc.TraceID().String())
	}
	return ctx, span
}
