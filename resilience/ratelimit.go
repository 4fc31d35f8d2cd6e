package resilience

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/time/rate"
)

// RateLimitPolicy paces requests to one service. The zero value disables it.
type RateLimitPolicy struct {
	// RequestsPerSecond is the sustained rate. Zero or less disables pacing.
	RequestsPerSecond float64 `json:"requests_per_second" koanf:"requests_per_second"`

	// Burst is the bucket size.
	// Default: 1
	Burst int `json:"burst" koanf:"burst"`
}

// Enabled reports whether the policy paces requests.
func (p RateLimitPolicy) Enabled() bool {
	return p.RequestsPerSecond > 0
}

// Validate rejects negative values.
func (p RateLimitPolicy) Validate() error {
	if p.RequestsPerSecond < 0 || math.IsNaN(p.RequestsPerSecond) || p.Burst < 0 {
		return fmt.Errorf("%w: rate limit %v/%d", ErrInvalidPolicy, p.RequestsPerSecond, p.Burst)
	}
	return nil
}

// RateLimiter is a token bucket. A nil *RateLimiter never blocks.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter returns nil when the policy is disabled.
func NewRateLimiter(policy RateLimitPolicy) *RateLimiter {
	if !policy.Enabled() {
		return nil
	}
	burst := policy.Burst
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	if err := rl.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", ErrRateLimitExceeded, err)
	}
	return nil
}

// Allow reports whether a request may proceed now, consuming a token if so.
func (rl *RateLimiter) Allow() bool {
	if rl == nil {
		return true
	}
	return rl.limiter.Allow()
}
