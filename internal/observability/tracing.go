// Package observability provides OpenTelemetry tracing for snippet runs.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/harrison/snippetcheck/internal/models"
)

// TracerName is the instrumentation scope of every span this tool emits.
const TracerName = "github.com/harrison/snippetcheck"

// TracingConfig configures trace export.
type TracingConfig struct {
	// ServiceName is reported as service.name (default: "snippetcheck").
	ServiceName string

	// ServiceVersion is reported as service.version.
	ServiceVersion string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g. "localhost:4317").
	// If empty, tracing stays a no-op.
	OTLPEndpoint string

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64
}

// DefaultTracingConfig returns the configuration used when none is given.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "snippetcheck",
		ServiceVersion: "dev",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the SDK provider so callers can flush on exit.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing installs a global tracer provider exporting over OTLP gRPC.
// Without an endpoint the global no-op tracer is kept.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{tracer: otel.Tracer(TracerName)}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := NewProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return provider, nil
}

// NewProvider builds an SDK provider from opts and installs it globally.
func NewProvider(opts ...sdktrace.TracerProviderOption) *TracerProvider {
	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes and stops the provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartRunSpan starts the span covering a whole catalog run.
func StartRunSpan(ctx context.Context, runID string, snippetCount, parallel int) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "snippetcheck.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("snippetcheck.run_id", runID),
			attribute.Int("snippetcheck.snippet_count", snippetCount),
			attribute.Int("snippetcheck.parallel", parallel),
		),
	)
}

// StartSnippetSpan starts the span covering one snippet's execution and check.
func StartSnippetSpan(ctx context.Context, snippet models.Snippet) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, "snippet."+snippet.ID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("snippet.id", snippet.ID),
			attribute.String("snippet.topic", snippet.Topic),
			attribute.String("snippet.language", snippet.EffectiveLanguage()),
		),
	)
}

// RecordVerdict annotates a snippet span with its verdict.
func RecordVerdict(span trace.Span, v models.Verdict) {
	span.SetAttributes(
		attribute.Bool("snippet.passed", v.Passed),
		attribute.String("snippet.outcome", string(v.Outcome)),
		attribute.Int("snippet.mismatches", len(v.Diff)),
		attribute.Int64("snippet.duration_ms", v.DurationMs()),
	)
	if !v.Passed {
		msg := string(v.Outcome)
		if v.Error != "" {
			msg += ": " + v.Error
		}
		span.SetStatus(codes.Error, msg)
	}
}

// RecordReport annotates a run span with the final counts.
func RecordReport(span trace.Span, r models.Report) {
	span.SetAttributes(
		attribute.Int("snippetcheck.total", r.TotalCount),
		attribute.Int("snippetcheck.passed", r.PassedCount),
		attribute.Int("snippetcheck.failed", r.FailedCount),
		attribute.Int("snippetcheck.incomplete", r.IncompleteCount),
		attribute.Int("snippetcheck.cancelled", r.CancelledCount),
	)
	if r.FailedCount > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d snippets failed", r.FailedCount, r.TotalCount))
	}
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
