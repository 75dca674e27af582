package health

import (
	"context"
	"errors"
	"testing"

	"github.com/jonwraymond/reproducible/cache"
	"github.com/jonwraymond/reproducible/value"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(-1), "unknown"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.status.String(); got != tt.want {
				t.Errorf("Status.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStatus_WorstIsLargest(t *testing.T) {
	if !(StatusHealthy < StatusDegraded && StatusDegraded < StatusUnhealthy) {
		t.Fatal("statuses are not ordered from best to worst")
	}
}

func TestResult_EntriesUnknownByDefault(t *testing.T) {
	boom := errors.New("boom")
	for _, r := range []Result{Healthy("a"), Degraded("b"), Unhealthy("c", boom)} {
		if r.Entries != -1 {
			t.Errorf("%s: Entries = %d, want -1", r.Status, r.Entries)
		}
		if r.Timestamp.IsZero() {
			t.Errorf("%s: Timestamp is zero", r.Status)
		}
	}
	if r := Unhealthy("c", boom); !errors.Is(r.Error, boom) {
		t.Errorf("Unhealthy Error = %v, want %v", r.Error, boom)
	}
}

func TestStoreChecker_FileStoreCannotCount(t *testing.T) {
	s, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Set(context.Background(), "k", value.NewObject(1)); err != nil {
		t.Fatal(err)
	}

	r := NewStoreChecker("disk", s, StoreCheckerConfig{MaxEntries: 1}).Check(context.Background())
	if r.Status != StatusHealthy {
		t.Fatalf("Status = %v (%s), want healthy", r.Status, r.Message)
	}
	if r.Entries != -1 {
		t.Errorf("Entries = %d, want -1", r.Entries)
	}
	if r.Latency <= 0 {
		t.Errorf("Latency = %v, want a measured ping", r.Latency)
	}
}

func TestCheckerFunc_WrapsStoreProbe(t *testing.T) {
	s := cache.NewMemoryStore()
	checker := NewCheckerFunc("memory-ready", func(ctx context.Context) Result {
		if err := ctx.Err(); err != nil {
			return Unhealthy("probe canceled", err)
		}
		if !s.IsCached(ctx, "warmup") {
			return Degraded("warmup entry missing")
		}
		return Healthy("warm")
	})

	if checker.Name() != "memory-ready" {
		t.Errorf("Name() = %q", checker.Name())
	}
	if r := checker.Check(context.Background()); r.Status != StatusDegraded {
		t.Errorf("cold store Status = %v, want degraded", r.Status)
	}

	if err := s.Set(context.Background(), "warmup", value.NewObject(true)); err != nil {
		t.Fatal(err)
	}
	if r := checker.Check(context.Background()); r.Status != StatusHealthy {
		t.Errorf("warm store Status = %v, want healthy", r.Status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if r := checker.Check(ctx); r.Status != StatusUnhealthy || !errors.Is(r.Error, context.Canceled) {
		t.Errorf("canceled Check() = %v %v", r.Status, r.Error)
	}
}
