package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// RetryPolicy configures bounded exponential-backoff retry.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 3
	MaxAttempts int `json:"max_attempts" koanf:"max_attempts"`

	// MinWait is the delay after the first failed attempt.
	// Default: 1 second
	MinWait time.Duration `json:"min_wait" koanf:"min_wait"`

	// MaxWait caps the delay between attempts.
	// Default: 10 seconds
	MaxWait time.Duration `json:"max_wait" koanf:"max_wait"`

	// ExponentialBase is the backoff multiplier.
	// Default: 2.0
	ExponentialBase float64 `json:"exponential_base" koanf:"exponential_base"`

	// FailFastOnClientError stops retrying 4xx responses other than 429.
	// Default: false, so client errors are retried like server errors.
	FailFastOnClientError bool `json:"fail_fast_on_client_error" koanf:"fail_fast_on_client_error"`
}

// DefaultRetryPolicy returns the policy used for unclassified services.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		MinWait:         time.Second,
		MaxWait:         10 * time.Second,
		ExponentialBase: 2.0,
	}
}

// WithDefaults fills zero fields from DefaultRetryPolicy.
func (p RetryPolicy) WithDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.MinWait <= 0 {
		p.MinWait = def.MinWait
	}
	if p.MaxWait <= 0 {
		p.MaxWait = def.MaxWait
	}
	if p.MaxWait < p.MinWait {
		p.MaxWait = p.MinWait
	}
	if p.ExponentialBase < 1 {
		p.ExponentialBase = def.ExponentialBase
	}
	return p
}

// Validate reports policies that WithDefaults would silently rewrite.
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 0 {
		return fmt.Errorf("%w: max attempts %d", ErrInvalidPolicy, p.MaxAttempts)
	}
	if p.MinWait < 0 || p.MaxWait < 0 {
		return fmt.Errorf("%w: negative wait", ErrInvalidPolicy)
	}
	if p.MaxWait > 0 && p.MinWait > p.MaxWait {
		return fmt.Errorf("%w: min wait %v exceeds max wait %v", ErrInvalidPolicy, p.MinWait, p.MaxWait)
	}
	if p.ExponentialBase != 0 && p.ExponentialBase < 1 {
		return fmt.Errorf("%w: exponential base %v below 1", ErrInvalidPolicy, p.ExponentialBase)
	}
	return nil
}

// Backoff returns the delay that follows the given failed attempt (1-based):
// min(MaxWait, MinWait * ExponentialBase^(attempt-1)).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.MinWait) * math.Pow(p.ExponentialBase, float64(attempt-1))
	if delay > float64(p.MaxWait) || math.IsInf(delay, 0) || math.IsNaN(delay) {
		return p.MaxWait
	}
	return time.Duration(delay)
}

// Retry drives one operation through a RetryPolicy.
type Retry struct {
	policy  RetryPolicy
	retryIf func(err error) bool
	onRetry func(attempt int, err error, delay time.Duration)
}

// RetryOption configures a Retry.
type RetryOption func(*Retry)

// RetryIf sets the predicate deciding whether an error is retryable.
// Default: every non-nil error is retried.
func RetryIf(fn func(err error) bool) RetryOption {
	return func(r *Retry) {
		if fn != nil {
			r.retryIf = fn
		}
	}
}

// OnRetry is called before each backoff sleep with the failed attempt number.
func OnRetry(fn func(attempt int, err error, delay time.Duration)) RetryOption {
	return func(r *Retry) {
		r.onRetry = fn
	}
}

// NewRetry creates a retry driver for the policy.
func NewRetry(policy RetryPolicy, opts ...RetryOption) *Retry {
	r := &Retry{
		policy:  policy.WithDefaults(),
		retryIf: func(err error) bool { return err != nil },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs op until it succeeds, returns a non-retryable error, or
// MaxAttempts is reached. op receives the 1-based attempt number.
//
// The error returned after exhaustion is the last error op produced, not a
// wrapper. Cancellation of ctx stops the loop and returns ctx.Err().
func (r *Retry) Execute(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempt := 0

	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(r.policy.MaxAttempts)),
		retry.RetryIf(func(err error) bool {
			if ctx.Err() != nil {
				return false
			}
			return r.retryIf(err)
		}),
		retry.DelayType(func(n uint, err error, _ retry.DelayContext) time.Duration {
			delay := r.policy.Backoff(int(n))
			if r.onRetry != nil {
				r.onRetry(int(n), err, delay)
			}
			return delay
		}),
		retry.LastErrorOnly(true),
	).Do(func() error {
		attempt++
		return op(ctx, attempt)
	})

	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return ctxErr
	}
	return err
}

// Policy returns the effective retry policy.
func (r *Retry) Policy() RetryPolicy {
	return r.policy
}
