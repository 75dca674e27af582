// Package observe provides observability primitives for memoized calls.
//
// It is a pure instrumentation library: a zap-backed structured Logger, an
// OpenTelemetry Tracer and Metrics pair, and a Middleware that wraps a cache
// lookup with a span, hit/miss counters and a log line. Exporter setup lives
// in the exporters subpackage.
package observe
