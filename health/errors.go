package health

import "errors"

var (
	// ErrStoreUnavailable is wrapped by results for stores that are missing
	// or fail their Ping.
	ErrStoreUnavailable = errors.New("health: store unavailable")

	// ErrCheckTimeout is reported when a checker outlives the aggregator's timeout.
	ErrCheckTimeout = errors.New("health: check exceeded timeout")

	// ErrUnknownCheck is returned by Aggregator.Check for unregistered names.
	ErrUnknownCheck = errors.New("health: no checker registered under that name")
)
