package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicy_Defaults(t *testing.T) {
	p := RetryPolicy{}.WithDefaults()

	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, time.Second, p.MinWait)
	assert.Equal(t, 10*time.Second, p.MaxWait)
	assert.Equal(t, 2.0, p.ExponentialBase)
	assert.False(t, p.FailFastOnClientError)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{
		MaxAttempts:     8,
		MinWait:         100 * time.Millisecond,
		MaxWait:         time.Second,
		ExponentialBase: 2,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		assert.Equal(t, w, p.Backoff(i+1), "attempt %d", i+1)
	}
}

func TestRetryPolicy_BackoffBoundedAndMonotonic(t *testing.T) {
	policies := []RetryPolicy{
		{MinWait: time.Millisecond, MaxWait: 50 * time.Millisecond, ExponentialBase: 3},
		{MinWait: time.Second, MaxWait: time.Second, ExponentialBase: 2},
		{MinWait: 10 * time.Millisecond, MaxWait: time.Hour, ExponentialBase: 1},
		{MinWait: time.Millisecond, MaxWait: time.Minute, ExponentialBase: 10},
	}

	for _, p := range policies {
		prev := time.Duration(0)
		for attempt := 1; attempt <= 200; attempt++ {
			d := p.Backoff(attempt)
			assert.GreaterOrEqual(t, d, p.MinWait)
			assert.LessOrEqual(t, d, p.MaxWait)
			assert.GreaterOrEqual(t, d, prev)
			prev = d
		}
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	assert.NoError(t, RetryPolicy{}.Validate())
	assert.NoError(t, DefaultRetryPolicy().Validate())
	assert.ErrorIs(t, RetryPolicy{MaxAttempts: -1}.Validate(), ErrInvalidPolicy)
	assert.ErrorIs(t, RetryPolicy{MinWait: 2 * time.Second, MaxWait: time.Second}.Validate(), ErrInvalidPolicy)
	assert.ErrorIs(t, RetryPolicy{ExponentialBase: 0.5}.Validate(), ErrInvalidPolicy)
}

func fastRetryPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     attempts,
		MinWait:         time.Millisecond,
		MaxWait:         5 * time.Millisecond,
		ExponentialBase: 2,
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	r := NewRetry(fastRetryPolicy(3))

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		assert.Equal(t, attempts, attempt)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_SuccessOnRetry(t *testing.T) {
	r := NewRetry(fastRetryPolicy(3))

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		if attempt < 3 {
			return errBoom
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

type attemptError struct{ attempt int }

func (e *attemptError) Error() string { return "attempt failed" }

func TestRetry_ExhaustedReturnsLastOriginalError(t *testing.T) {
	r := NewRetry(fastRetryPolicy(4))

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		return &attemptError{attempt: attempt}
	})

	assert.Equal(t, 4, attempts)
	var ae *attemptError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 4, ae.attempt)
	assert.Same(t, ae, err, "the original error is returned unwrapped")
}

func TestRetry_RetryIfStopsEarly(t *testing.T) {
	permanent := errors.New("permanent")
	r := NewRetry(fastRetryPolicy(5), RetryIf(func(err error) bool {
		return !errors.Is(err, permanent)
	}))

	attempts := 0
	err := r.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		attempts++
		return permanent
	})

	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_OnRetryDelays(t *testing.T) {
	var delays []time.Duration
	var failed []int
	r := NewRetry(fastRetryPolicy(4), OnRetry(func(attempt int, err error, delay time.Duration) {
		failed = append(failed, attempt)
		delays = append(delays, delay)
	}))

	_ = r.Execute(context.Background(), func(ctx context.Context, attempt int) error {
		return errBoom
	})

	assert.Equal(t, []int{1, 2, 3}, failed)
	assert.Equal(t, []time.Duration{
		time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
	}, delays)
}

func TestRetry_ContextCancellation(t *testing.T) {
	r := NewRetry(RetryPolicy{
		MaxAttempts: 10,
		MinWait:     100 * time.Millisecond,
		MaxWait:     time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	attempts := 0
	err := r.Execute(ctx, func(ctx context.Context, attempt int) error {
		attempts++
		return errBoom
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
