// Package resilience provides the policies and primitives every outbound call
// goes through.
//
// # Policies
//
// Policies are plain values, safe to share between goroutines:
//
//   - TimeoutPolicy: connect/read/write/pool bounds for one attempt.
//   - RetryPolicy: attempt budget and exponential backoff,
//     min(MaxWait, MinWait * ExponentialBase^(attempt-1)).
//   - CircuitBreakerPolicy: failure/success thresholds and open duration.
//   - RateLimitPolicy: optional request pacing, disabled by default.
//
// # Circuit breaker
//
// A CircuitBreaker cycles closed -> open -> half-open -> closed forever.
// Callers ask CheckState before a request and report the outcome with
// RecordSuccess or RecordFailure:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerPolicy{
//	    FailureThreshold: 5,
//	    SuccessThreshold: 2,
//	    OpenDuration:     time.Minute,
//	})
//
//	if !cb.CheckState() {
//	    return resilience.ErrCircuitOpen
//	}
//	if err := call(ctx); err != nil {
//	    cb.RecordFailure(err)
//	    return err
//	}
//	cb.RecordSuccess()
//
// A success in closed state decays the failure count by one instead of
// clearing it, so sporadic failures still accumulate.
//
// # Retry
//
// Retry executes an operation under a RetryPolicy and, once attempts are
// exhausted, returns the last error unchanged:
//
//	r := resilience.NewRetry(resilience.RetryPolicy{MaxAttempts: 3})
//	err := r.Execute(ctx, func(ctx context.Context, attempt int) error {
//	    return call(ctx)
//	})
package resilience
