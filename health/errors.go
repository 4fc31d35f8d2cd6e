package health

import "errors"

var (
	// ErrCheckTimeout is set on results of checks that outlived the aggregator timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound is returned for an unregistered checker name.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
