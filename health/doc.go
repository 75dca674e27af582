// Package health reports whether the cache stores behind memoized functions
// are usable.
//
// A Checker reports a Result with a Status of Healthy, Degraded or Unhealthy.
// NewStoreChecker turns any store with a Ping method into a Checker, and an
// Aggregator runs a set of checkers concurrently and folds their results:
//
//	agg := health.NewAggregator()
//	agg.Register("results", health.NewStoreChecker("results", fileStore, health.StoreCheckerConfig{}))
//
//	results := agg.CheckAll(ctx)
//	if agg.OverallStatus(results) == health.StatusUnhealthy {
//		...
//	}
package health
