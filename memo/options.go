package memo

import (
	"reflect"
	"runtime"

	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/reproducible/cache"
	"github.com/jonwraymond/reproducible/digest"
	"github.com/jonwraymond/reproducible/observe"
	"github.com/jonwraymond/reproducible/value"
)

// Option configures a Memoizer.
type Option func(*options)

type options struct {
	identity    string
	hasIdentity bool
	store       cache.Store
	registry    *value.Registry
	digest      digest.Func
	keyer       Keyer
	observer    observe.Observer
	middleware  *observe.Middleware
	logger      observe.Logger
	maxRunning  int64
}

// WithIdentity sets the token that stands for the function's behavior.
// Change it whenever the function changes in a way that invalidates
// previously cached results.
func WithIdentity(token string) Option {
	return func(o *options) {
		o.identity = token
		o.hasIdentity = true
	}
}

// WithStore binds the memoizer to s. Without it each call uses cache.Active().
func WithStore(s cache.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRegistry sets the registry used to wrap arguments and results.
func WithRegistry(r *value.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithDigest sets the digest used for the identity and argument fingerprints.
func WithDigest(d digest.Func) Option {
	return func(o *options) { o.digest = d }
}

// WithKeyer replaces the default key derivation.
func WithKeyer(k Keyer) Option {
	return func(o *options) { o.keyer = k }
}

// WithObserver instruments calls with the observer's tracer, meter and logger.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithMiddleware instruments calls with mw. It takes precedence over WithObserver.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(o *options) { o.middleware = mw }
}

// WithLogger sets the logger used when no observer or middleware is configured.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMaxConcurrent bounds how many distinct keys may run the function at
// once. Calls beyond the limit wait for a slot or for ctx to end. Hits are
// never limited. Zero or less means no limit.
func WithMaxConcurrent(n int) Option {
	return func(o *options) { o.maxRunning = int64(n) }
}

func (o *options) buildMiddleware() *observe.Middleware {
	if o.middleware != nil {
		return o.middleware
	}
	if o.observer != nil {
		if mw, err := observe.MiddlewareFromObserver(o.observer); err == nil {
			return mw
		}
		// Instrument creation failed; keep tracing and logging.
		return observe.NewMiddleware(observe.NewTracer(o.observer.Tracer()), nopMetrics(), o.observer.Logger())
	}
	return observe.NewMiddleware(
		observe.NewTracer(tracenoop.NewTracerProvider().Tracer("memo")),
		nopMetrics(),
		o.logger,
	)
}

func nopMetrics() observe.Metrics {
	m, _ := observe.NewMetrics(noop.NewMeterProvider().Meter("memo"))
	return m
}

// IdentityOf returns the qualified runtime name of fn, such as
// "example.com/pkg.compute". It is stable across runs of the same build
// but not across renames; use WithIdentity when that matters.
func IdentityOf(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	if f := runtime.FuncForPC(v.Pointer()); f != nil {
		return f.Name()
	}
	return ""
}
