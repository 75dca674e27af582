package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CallMeta describes one memoized call for telemetry purposes.
type CallMeta struct {
	Name     string // Memoized function name (required)
	Identity string // Fingerprint of the function identity
	Key      string // Full cache key, empty if key derivation failed
}

// SpanName returns the deterministic span name for this call.
// Format: memo.call.<name>
func (m CallMeta) SpanName() string {
	return "memo.call." + m.Name
}

func (m CallMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("memo.name", m.Name)}
	if m.Identity != "" {
		attrs = append(attrs, attribute.String("memo.identity", m.Identity))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with memo-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a memoized call.
	StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the lookup outcome and any error.
	EndSpan(span trace.Span, hit bool, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta CallMeta) (context.Context, trace.Span) {
	attrs := meta.attributes()
	if meta.Key != "" {
		attrs = append(attrs, attribute.String("memo.key", meta.Key))
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, hit bool, err error) {
	span.SetAttributes(attribute.Bool("memo.hit", hit))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
