package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	return rm
}

// findMetric searches for a metric by name in ResourceMetrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// counterValue returns the summed value of a counter, or 0 if it was never recorded.
func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_OutcomeCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := CallMeta{Name: "fib"}

	m.RecordCall(ctx, meta, time.Millisecond, false, nil)
	m.RecordCall(ctx, meta, time.Millisecond, true, nil)
	m.RecordCall(ctx, meta, time.Millisecond, true, nil)
	m.RecordCall(ctx, meta, time.Millisecond, false, errors.New("boom"))

	rm := collect(t, reader)
	tests := []struct {
		name string
		want int64
	}{
		{"memo.calls.total", 4},
		{"memo.calls.hits", 2},
		{"memo.calls.misses", 1},
		{"memo.calls.errors", 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, rm, tt.name); got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestMetrics_DurationHistogram(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordCall(context.Background(), CallMeta{Name: "f"}, 150*time.Millisecond, false, nil)

	found := findMetric(collect(t, reader), "memo.call.duration_ms")
	if found == nil {
		t.Fatal("memo.call.duration_ms not found")
	}
	hist, ok := found.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", found.Data)
	}
	if len(hist.DataPoints) != 1 {
		t.Fatalf("expected 1 data point, got %d", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 1 || dp.Sum != 150 {
		t.Errorf("count=%d sum=%f, want 1 and 150", dp.Count, dp.Sum)
	}
}

func TestMetrics_NameAttribute(t *testing.T) {
	m, reader := newTestMetrics(t)

	m.RecordCall(context.Background(), CallMeta{Name: "a"}, 0, false, nil)
	m.RecordCall(context.Background(), CallMeta{Name: "b"}, 0, false, nil)

	sum := findMetric(collect(t, reader), "memo.calls.total").Data.(metricdata.Sum[int64])
	if len(sum.DataPoints) != 2 {
		t.Fatalf("expected one data point per name, got %d", len(sum.DataPoints))
	}
	for _, dp := range sum.DataPoints {
		if _, ok := dp.Attributes.Value("memo.name"); !ok {
			t.Error("data point missing memo.name")
		}
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader := newTestMetrics(t)
	const goroutines = 50

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordCall(context.Background(), CallMeta{Name: "f"}, time.Millisecond, true, nil)
		}()
	}
	wg.Wait()

	if got := counterValue(t, collect(t, reader), "memo.calls.hits"); got != goroutines {
		t.Errorf("hits = %d, want %d", got, goroutines)
	}
}
