package resilience

import "errors"

// Sentinel errors for resilience operations.
var (
	// ErrCircuitOpen is matched by every error returned for a rejected call.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRateLimitExceeded is returned when a pacing wait cannot be satisfied
	// before the context deadline.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrInvalidPolicy is returned by policy validation.
	ErrInvalidPolicy = errors.New("resilience: invalid policy")
)
