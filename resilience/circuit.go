package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is rejecting all requests.
	StateOpen
	// StateHalfOpen means the circuit is letting probes through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerPolicy configures a circuit breaker.
type CircuitBreakerPolicy struct {
	// FailureThreshold is the failure count that opens a closed circuit.
	// Default: 5
	FailureThreshold int `json:"failure_threshold" koanf:"failure_threshold"`

	// SuccessThreshold is the number of probe successes that close a
	// half-open circuit.
	// Default: 2
	SuccessThreshold int `json:"success_threshold" koanf:"success_threshold"`

	// OpenDuration is how long the circuit stays open before a probe is allowed.
	// Default: 60 seconds
	OpenDuration time.Duration `json:"open_duration" koanf:"open_duration"`

	// Excluded lists errors that are never counted as failures.
	// Matching uses errors.Is.
	Excluded []error `json:"-"`
}

// DefaultCircuitBreakerPolicy returns the policy used for unclassified services.
func DefaultCircuitBreakerPolicy() CircuitBreakerPolicy {
	return CircuitBreakerPolicy{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenDuration:     60 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultCircuitBreakerPolicy.
func (p CircuitBreakerPolicy) WithDefaults() CircuitBreakerPolicy {
	def := DefaultCircuitBreakerPolicy()
	if p.FailureThreshold <= 0 {
		p.FailureThreshold = def.FailureThreshold
	}
	if p.SuccessThreshold <= 0 {
		p.SuccessThreshold = def.SuccessThreshold
	}
	if p.OpenDuration <= 0 {
		p.OpenDuration = def.OpenDuration
	}
	return p
}

// Validate rejects negative thresholds and durations.
func (p CircuitBreakerPolicy) Validate() error {
	if p.FailureThreshold < 0 || p.SuccessThreshold < 0 || p.OpenDuration < 0 {
		return fmt.Errorf("%w: negative breaker setting", ErrInvalidPolicy)
	}
	return nil
}

func (p CircuitBreakerPolicy) excludes(err error) bool {
	for _, target := range p.Excluded {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CircuitBreaker guards a single downstream service.
//
// Contract:
//   - Concurrency: safe for concurrent use; every method holds the breaker's
//     own mutex only for the state update.
//   - Callers that do not bypass the breaker call CheckState before a request
//     and exactly one of RecordSuccess or RecordFailure after it.
type CircuitBreaker struct {
	policy        CircuitBreakerPolicy
	onStateChange func(from, to State)
	now           func() time.Time

	mu           sync.Mutex
	state        State
	failureCount int
	successCount int
	lastFailure  time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// OnStateChange registers a hook invoked after every transition.
// The hook runs while the breaker lock is held and must not call back into it.
func OnStateChange(fn func(from, to State)) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = fn
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		if now != nil {
			cb.now = now
		}
	}
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(policy CircuitBreakerPolicy, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		policy: policy.WithDefaults(),
		now:    time.Now,
		state:  StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// IsAvailable reports whether a request could be issued right now.
// An open circuit becomes available once OpenDuration has elapsed since the
// last failure; IsAvailable never transitions the state itself.
func (cb *CircuitBreaker) IsAvailable() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.availableLocked()
}

// CheckState is called before issuing a request. It moves an expired open
// circuit to half-open and reports whether the request may proceed.
func (cb *CircuitBreaker) CheckState() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return true
	}
	if !cb.openElapsedLocked() {
		return false
	}
	cb.successCount = 0
	cb.transitionLocked(StateHalfOpen)
	return true
}

// RecordSuccess records a successful request.
//
// In half-open state successes are counted until SuccessThreshold closes the
// circuit. In closed state each success decays the failure count by one.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.policy.SuccessThreshold {
			cb.failureCount = 0
			cb.successCount = 0
			cb.transitionLocked(StateClosed)
		}
	case StateClosed:
		if cb.failureCount > 0 {
			cb.failureCount--
		}
	}
}

// RecordFailure records a failed request. Errors in the policy's exclusion
// list are ignored.
func (cb *CircuitBreaker) RecordFailure(err error) {
	if cb.policy.excludes(err) {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailure = cb.now()

	switch cb.state {
	case StateHalfOpen:
		// Any failure during a probe reopens the circuit.
		cb.successCount = 0
		cb.transitionLocked(StateOpen)
	case StateClosed:
		if cb.failureCount >= cb.policy.FailureThreshold {
			cb.transitionLocked(StateOpen)
		}
	}
}

// State returns the current state without applying the open-duration check.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Policy returns the breaker's effective policy.
func (cb *CircuitBreaker) Policy() CircuitBreakerPolicy {
	return cb.policy
}

// Status returns a consistent snapshot of the breaker.
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return BreakerStatus{
		State:        cb.state,
		FailureCount: cb.failureCount,
		SuccessCount: cb.successCount,
		Available:    cb.availableLocked(),
		LastFailure:  cb.lastFailure,
		Policy:       cb.policy,
	}
}

func (cb *CircuitBreaker) availableLocked() bool {
	switch cb.state {
	case StateOpen:
		return cb.openElapsedLocked()
	default:
		return true
	}
}

func (cb *CircuitBreaker) openElapsedLocked() bool {
	return !cb.lastFailure.IsZero() && cb.now().Sub(cb.lastFailure) >= cb.policy.OpenDuration
}

func (cb *CircuitBreaker) transitionLocked(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

// BreakerStatus is a point-in-time view of a circuit breaker.
type BreakerStatus struct {
	State        State                `json:"state"`
	FailureCount int                  `json:"failure_count"`
	SuccessCount int                  `json:"success_count"`
	Available    bool                 `json:"is_available"`
	LastFailure  time.Time            `json:"last_failure_time,omitzero"`
	Policy       CircuitBreakerPolicy `json:"policy"`
}

// MarshalText lets State render as its name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
