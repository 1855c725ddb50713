package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/wonny/canslim-screener/pkg/config"
)

const serviceName = "canslim-screener"

// Tracer wraps an OpenTelemetry tracer and its provider
// ⭐ SSOT: span 생성은 이 패키지를 통해서만
type Tracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// New creates a tracer exporting to stdout when TRACING_ENABLED, otherwise a no-op tracer
func New(cfg *config.Config) (*Tracer, error) {
	if !cfg.TracingEnabled {
		return Noop(), nil
	}
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a tracer exporting spans synchronously to w
func NewWithWriter(w io.Writer) (*Tracer, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(res),
	)

	return &Tracer{
		tracer:   provider.Tracer(serviceName),
		provider: provider,
	}, nil
}

// Noop returns a tracer whose spans are discarded
func Noop() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer(serviceName)}
}

// Enabled reports whether spans are exported
func (t *Tracer) Enabled() bool {
	return t != nil && t.provider != nil
}

// Start opens a span with string attributes
func (t *Tracer) Start(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(kv...))
}

// End closes span, recording err when non-nil
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Shutdown flushes pending spans
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceFields returns ids of the active span for log correlation
func TraceFields(ctx context.Context) (traceID, spanID string, ok bool) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", "", false
	}
	return sc.TraceID().String(), sc.SpanID().String(), true
}
