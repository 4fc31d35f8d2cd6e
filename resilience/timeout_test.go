package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutPolicy_Defaults(t *testing.T) {
	p := TimeoutPolicy{Read: time.Minute}.WithDefaults()

	assert.Equal(t, 5*time.Second, p.Connect)
	assert.Equal(t, time.Minute, p.Read)
	assert.Equal(t, 10*time.Second, p.Write)
	assert.Equal(t, 5*time.Second, p.Pool)
	assert.Equal(t, 80*time.Second, p.AttemptBudget())
}

func TestTimeoutPolicy_Validate(t *testing.T) {
	assert.NoError(t, TimeoutPolicy{}.Validate())
	assert.ErrorIs(t, TimeoutPolicy{Read: -time.Second}.Validate(), ErrInvalidPolicy)
}

func TestRateLimiter_DisabledNeverBlocks(t *testing.T) {
	rl := NewRateLimiter(RateLimitPolicy{})
	require.Nil(t, rl)

	for i := 0; i < 100; i++ {
		assert.True(t, rl.Allow())
	}
	assert.NoError(t, rl.Wait(context.Background()))
}

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(RateLimitPolicy{RequestsPerSecond: 1, Burst: 2})
	require.NotNil(t, rl)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestRateLimiter_WaitHonorsDeadline(t *testing.T) {
	rl := NewRateLimiter(RateLimitPolicy{RequestsPerSecond: 0.1, Burst: 1})
	require.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.Error(t, err)
}

func TestRateLimitPolicy_Validate(t *testing.T) {
	assert.NoError(t, RateLimitPolicy{}.Validate())
	assert.NoError(t, RateLimitPolicy{RequestsPerSecond: 5, Burst: 10}.Validate())
	assert.ErrorIs(t, RateLimitPolicy{RequestsPerSecond: -1}.Validate(), ErrInvalidPolicy)
}
