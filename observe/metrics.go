package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// Metrics records memoized call outcomes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, hit bool, err error)
}

type metricsImpl struct {
	total    metric.Int64Counter
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewMetrics creates the memo instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &metricsImpl{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.total, "memo.calls.total", "Total number of memoized calls", "{call}"},
		{&m.hits, "memo.calls.hits", "Calls answered from the cache", "{call}"},
		{&m.misses, "memo.calls.misses", "Calls that ran the function", "{call}"},
		{&m.errors, "memo.calls.errors", "Calls that returned an error", "{error}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.duration, err = meter.Float64Histogram(
		"memo.call.duration_ms",
		metric.WithDescription("Memoized call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metricsImpl) RecordCall(ctx context.Context, meta CallMeta, duration time.Duration, hit bool, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.total.Add(ctx, 1, opt)
	switch {
	case err != nil:
		m.errors.Add(ctx, 1, opt)
	case hit:
		m.hits.Add(ctx, 1, opt)
	default:
		m.misses.Add(ctx, 1, opt)
	}
	m.duration.Record(ctx, float64(duration.Microseconds())/1000, opt)
}
