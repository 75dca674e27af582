package observe

import (
	"context"
	"time"
)

// CallFunc performs one memoized call and reports whether it was a cache hit.
type CallFunc func(ctx context.Context, meta CallMeta) (result any, hit bool, err error)

// Middleware wraps memoized calls with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe CallFunc.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Wrap wraps fn with a span, call metrics and a log entry.
func (m *Middleware) Wrap(fn CallFunc) CallFunc {
	return func(ctx context.Context, meta CallMeta) (any, bool, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		result, hit, err := fn(ctx, meta)

		duration := time.Since(start)
		m.tracer.EndSpan(span, hit, err)
		m.metrics.RecordCall(ctx, meta, duration, hit, err)

		fields := []Field{
			{Key: "memo.name", Value: meta.Name},
			{Key: "memo.hit", Value: hit},
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			m.logger.Error(ctx, "memoized call failed", fields...)
		} else {
			m.logger.Debug(ctx, "memoized call completed", fields...)
		}

		return result, hit, err
	}
}
