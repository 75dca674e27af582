package health

import (
	"context"
	"fmt"
	"time"
)

// Pinger is implemented by stores that can probe their backing medium.
type Pinger interface {
	Ping(ctx context.Context) error
}

// sizer is implemented by stores that know their entry count.
type sizer interface {
	Len() int
}

// StoreCheckerConfig configures a store checker.
type StoreCheckerConfig struct {
	// SlowThreshold marks the store degraded when Ping takes longer.
	// Default: 1 second
	SlowThreshold time.Duration

	// MaxEntries marks the store degraded when it reports more entries.
	// Stores never evict, so this is the only growth signal. Zero disables it.
	MaxEntries int
}

// StoreChecker checks a cache store through its Ping method.
type StoreChecker struct {
	name   string
	store  Pinger
	config StoreCheckerConfig
}

// NewStoreChecker creates a checker for store.
func NewStoreChecker(name string, store Pinger, config StoreCheckerConfig) *StoreChecker {
	if config.SlowThreshold <= 0 {
		config.SlowThreshold = time.Second
	}
	return &StoreChecker{name: name, store: store, config: config}
}

// Name returns the name of this checker.
func (c *StoreChecker) Name() string {
	return c.name
}

// Check pings the store and, when it can count, compares its size against
// MaxEntries.
func (c *StoreChecker) Check(ctx context.Context) Result {
	if c.store == nil {
		return Unhealthy("store not configured", ErrStoreUnavailable)
	}

	start := time.Now()
	err := c.store.Ping(ctx)
	latency := time.Since(start)

	entries := -1
	if s, ok := c.store.(sizer); ok {
		entries = s.Len()
	}

	var r Result
	switch {
	case err != nil:
		r = Unhealthy("store ping failed", fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	case latency > c.config.SlowThreshold:
		r = Degraded(fmt.Sprintf("store ping slow: %s", latency))
	case c.config.MaxEntries > 0 && entries > c.config.MaxEntries:
		r = Degraded(fmt.Sprintf("store holds %d entries, limit %d", entries, c.config.MaxEntries))
	default:
		r = Healthy("store reachable")
	}
	r.Latency = latency
	r.Entries = entries
	return r
}
