package memo

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/reproducible/cache"
	"github.com/jonwraymond/reproducible/digest"
	"github.com/jonwraymond/reproducible/observe"
	"github.com/jonwraymond/reproducible/value"
)

// Func is a function that can be memoized.
type Func func(ctx context.Context, args Args) (any, error)

// Memoizer caches the results of a Func by argument fingerprint.
//
// Contract:
//   - Concurrency: safe for concurrent use; concurrent calls with the same key
//     run the function once and share its result.
//   - Cancellation: a caller whose context ends stops waiting and returns
//     ctx.Err(). The shared run keeps going for the remaining callers and
//     does not observe any caller's cancellation.
//   - Errors: errors from the function are returned unchanged and nothing is
//     stored. Fingerprint and store errors are returned to the caller.
type Memoizer struct {
	name       string
	identity   string
	identityFP string
	fn         Func

	store    cache.Store
	registry *value.Registry
	keyer    Keyer
	mw       *observe.Middleware
	running  *semaphore.Weighted

	group singleflight.Group
}

// New memoizes fn under name. The identity defaults to IdentityOf(fn).
func New(name string, fn Func, opts ...Option) *Memoizer {
	o := options{
		registry: value.Default,
		digest:   digest.Canonical,
		logger:   observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.hasIdentity {
		o.identity = IdentityOf(fn)
	}
	if o.keyer == nil {
		o.keyer = NewDefaultKeyer(o.registry, o.digest)
	}

	var running *semaphore.Weighted
	if o.maxRunning > 0 {
		running = semaphore.NewWeighted(o.maxRunning)
	}

	return &Memoizer{
		name:       name,
		identity:   o.identity,
		identityFP: digest.Hex(o.digest, []byte(o.identity)),
		fn:         fn,
		store:      o.store,
		registry:   o.registry,
		keyer:      o.keyer,
		mw:         o.buildMiddleware(),
		running:    running,
	}
}

// Memoize is shorthand for New(name, fn, opts...).Call.
func Memoize(name string, fn Func, opts ...Option) Func {
	return New(name, fn, opts...).Call
}

// Name returns the memoized function's name.
func (m *Memoizer) Name() string { return m.name }

// Identity returns the identity token the keys are derived from.
func (m *Memoizer) Identity() string { return m.identity }

// Key returns the cache key a call with args would use.
func (m *Memoizer) Key(args Args) (string, error) {
	return m.keyer.Key(m.name, m.identity, args)
}

// Call returns the cached result for args, running the function on a miss.
// A hit returns the stored value; a miss returns what the function returned.
func (m *Memoizer) Call(ctx context.Context, args Args) (any, error) {
	key, keyErr := m.Key(args)
	meta := observe.CallMeta{Name: m.name, Identity: m.identityFP, Key: key}

	call := m.mw.Wrap(func(ctx context.Context, _ observe.CallMeta) (any, bool, error) {
		if keyErr != nil {
			return nil, false, keyErr
		}
		return m.lookup(ctx, key, args)
	})
	result, _, err := call(ctx, meta)
	return result, err
}

// flightResult carries the hit flag out of the singleflight group.
type flightResult struct {
	value any
	hit   bool
}

func (m *Memoizer) lookup(ctx context.Context, key string, args Args) (any, bool, error) {
	store := m.store
	if store == nil {
		store = cache.Active()
	}

	if v, hit, err := m.cached(ctx, store, key); hit || err != nil {
		return v, hit, err
	}

	// The flight outlives any single caller's cancellation; each caller
	// stops waiting when its own context is done.
	flightCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (any, error) {
		// A flight for this key may have finished since the check above.
		if v, hit, err := m.cached(flightCtx, store, key); hit || err != nil {
			return flightResult{value: v, hit: hit}, err
		}

		result, err := m.run(flightCtx, args)
		if err != nil {
			return nil, err
		}
		w, err := m.registry.Wrap(result)
		if err != nil {
			return nil, err
		}
		if err := store.Set(flightCtx, key, w); err != nil {
			return nil, err
		}
		return flightResult{value: result}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		fr := res.Val.(flightResult)
		return fr.value, fr.hit, nil
	}
}

func (m *Memoizer) run(ctx context.Context, args Args) (any, error) {
	if m.running != nil {
		if err := m.running.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer m.running.Release(1)
	}
	return m.fn(ctx, args)
}

// cached reads key from store. An entry that is reported present but cannot
// be found is treated as a miss so the call recomputes and overwrites it.
func (m *Memoizer) cached(ctx context.Context, store cache.Store, key string) (any, bool, error) {
	if !store.IsCached(ctx, key) {
		return nil, false, nil
	}
	w, err := store.Get(ctx, key)
	switch {
	case err == nil:
		return w.Value(), true, nil
	case errors.Is(err, cache.ErrNotFound):
		return nil, false, nil
	default:
		return nil, false, err
	}
}
