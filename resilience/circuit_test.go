package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

func newTestBreaker(clock *fakeClock, failures, successes int, open time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerPolicy{
		FailureThreshold: failures,
		SuccessThreshold: successes,
		OpenDuration:     open,
	}, WithClock(clock.Now))
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerPolicy{})

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 5, cb.Policy().FailureThreshold)
	assert.Equal(t, 2, cb.Policy().SuccessThreshold)
	assert.Equal(t, 60*time.Second, cb.Policy().OpenDuration)
	assert.True(t, cb.IsAvailable())
}

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock, 3, 1, time.Minute)

	for i := 0; i < 2; i++ {
		cb.RecordFailure(errBoom)
		assert.Equal(t, StateClosed, cb.State(), "after %d failures", i+1)
	}

	cb.RecordFailure(errBoom)
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.CheckState())
	assert.False(t, cb.IsAvailable())
}

func TestCircuitBreaker_CheckStateTransitionsAfterOpenDuration(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock, 1, 1, 30*time.Second)

	cb.RecordFailure(errBoom)
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(29 * time.Second)
	assert.False(t, cb.CheckState())
	assert.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Second)
	// IsAvailable signals eligibility without transitioning.
	assert.True(t, cb.IsAvailable())
	assert.Equal(t, StateOpen, cb.State())

	assert.True(t, cb.CheckState())
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.True(t, cb.CheckState(), "half-open admits probes")
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock, 1, 3, time.Second)

	cb.RecordFailure(errBoom)
	clock.Advance(time.Second)
	require.True(t, cb.CheckState())

	cb.RecordSuccess()
	require.Equal(t, 1, cb.Status().SuccessCount)

	cb.RecordFailure(errBoom)
	status := cb.Status()
	assert.Equal(t, StateOpen, status.State)
	assert.Equal(t, 0, status.SuccessCount)
	assert.False(t, cb.CheckState(), "reopened circuit waits a full open duration")
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock, 2, 2, time.Second)

	cb.RecordFailure(errBoom)
	cb.RecordFailure(errBoom)
	clock.Advance(time.Second)
	require.True(t, cb.CheckState())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	status := cb.Status()
	assert.Equal(t, StateClosed, status.State)
	assert.Equal(t, 0, status.FailureCount)
	assert.Equal(t, 0, status.SuccessCount)
}

func TestCircuitBreaker_ClosedSuccessDecaysFailures(t *testing.T) {
	clock := newFakeClock()
	cb := newTestBreaker(clock, 3, 1, time.Second)

	cb.RecordFailure(errBoom)
	cb.RecordFailure(errBoom)
	require.Equal(t, 2, cb.Status().FailureCount)

	cb.RecordSuccess()
	assert.Equal(t, 1, cb.Status().FailureCount)

	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, 0, cb.Status().FailureCount, "failure count floors at zero")

	// Decay means three more failures are needed, not one.
	cb.RecordFailure(errBoom)
	cb.RecordFailure(errBoom)
	assert.Equal(t, StateClosed, cb.State())
	cb.RecordFailure(errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_ExcludedErrors(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerPolicy{
		FailureThreshold: 1,
		Excluded:         []error{context.Canceled},
	}, WithClock(clock.Now))

	cb.RecordFailure(context.Canceled)
	cb.RecordFailure(errors.Join(errBoom, context.Canceled))

	status := cb.Status()
	assert.Equal(t, StateClosed, status.State)
	assert.Equal(t, 0, status.FailureCount)
	assert.True(t, status.LastFailure.IsZero())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	clock := newFakeClock()
	type transition struct{ from, to State }
	var got []transition

	cb := NewCircuitBreaker(CircuitBreakerPolicy{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenDuration:     time.Second,
	}, WithClock(clock.Now), OnStateChange(func(from, to State) {
		got = append(got, transition{from, to})
	}))

	cb.RecordFailure(errBoom)
	clock.Advance(time.Second)
	cb.CheckState()
	cb.RecordSuccess()

	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, got)
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerPolicy{FailureThreshold: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if cb.CheckState() {
					if (i+j)%2 == 0 {
						cb.RecordFailure(errBoom)
					} else {
						cb.RecordSuccess()
					}
				}
				_ = cb.Status()
			}
		}(i)
	}
	wg.Wait()

	status := cb.Status()
	assert.Equal(t, StateClosed, status.State)
	assert.GreaterOrEqual(t, status.FailureCount, 0)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestCircuitBreakerPolicy_Validate(t *testing.T) {
	assert.NoError(t, CircuitBreakerPolicy{}.Validate())
	assert.ErrorIs(t, CircuitBreakerPolicy{FailureThreshold: -1}.Validate(), ErrInvalidPolicy)
	assert.ErrorIs(t, CircuitBreakerPolicy{OpenDuration: -time.Second}.Validate(), ErrInvalidPolicy)
}
