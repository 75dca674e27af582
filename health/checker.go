package health

import (
	"context"
	"time"
)

// Status orders store states from best to worst, so the worst of a set is
// its maximum.
type Status int

const (
	StatusHealthy Status = iota
	// StatusDegraded means the store answers but is slow or oversized.
	StatusDegraded
	// StatusUnhealthy means memoized calls against the store will fail.
	StatusUnhealthy
)

var statusNames = [...]string{"healthy", "degraded", "unhealthy"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// Result reports the state of one store, or of every registered store when
// produced by an aggregate checker.
type Result struct {
	Status  Status
	Message string
	Error   error

	// Latency is the round trip of the store's Ping.
	Latency time.Duration

	// Entries is the store's entry count, or -1 if the store cannot count.
	Entries int

	// Checks holds the per-checker results of an aggregate.
	Checks map[string]Result

	// Duration and Timestamp are filled in by the Aggregator when unset.
	Duration  time.Duration
	Timestamp time.Time
}

func newResult(status Status, message string, err error) Result {
	return Result{
		Status:    status,
		Message:   message,
		Error:     err,
		Entries:   -1,
		Timestamp: time.Now(),
	}
}

// Healthy reports a usable store.
func Healthy(message string) Result { return newResult(StatusHealthy, message, nil) }

// Degraded reports a store that answers but needs attention.
func Degraded(message string) Result { return newResult(StatusDegraded, message, nil) }

// Unhealthy reports a store that cannot serve memoized calls.
func Unhealthy(message string, err error) Result {
	return newResult(StatusUnhealthy, message, err)
}

// Checker probes one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

type funcChecker struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc adapts fn to a Checker called name.
func NewCheckerFunc(name string, fn func(context.Context) Result) Checker {
	return funcChecker{name: name, fn: fn}
}

func (c funcChecker) Name() string { return c.name }

func (c funcChecker) Check(ctx context.Context) Result { return c.fn(ctx) }
