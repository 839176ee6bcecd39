package safety

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker("bybit", CircuitBreakerConfig{FailureThreshold: 2, Timeout: time.Minute})
	now := time.Now()
	cb.now = func() time.Time { return now }

	boom := errors.New("boom")
	fail := func() error { return boom }

	assert.Equal(t, boom, cb.Call(fail, nil))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, boom, cb.Call(fail, nil))
	assert.Equal(t, StateOpen, cb.GetState())

	called := false
	err := cb.Call(func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreakerIgnoresUncountedErrors(t *testing.T) {
	cb := NewCircuitBreaker("bybit", CircuitBreakerConfig{FailureThreshold: 1})
	rejected := errors.New("order rejected")

	err := cb.Call(func() error { return rejected }, func(error) bool { return false })
	assert.Equal(t, rejected, err)
	assert.Equal(t, StateClosed, cb.GetState())

	cb.Call(func() error { return rejected }, nil)
	assert.Equal(t, StateOpen, cb.GetState())
	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter("test", 2, 50)
	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rl.Wait(ctx))
	assert.Equal(t, "test", rl.Name())
}

func TestRateLimiterWaitCancelled(t *testing.T) {
	rl := NewRateLimiter("slow", 1, 1)
	require.True(t, rl.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)
}

func TestValidator(t *testing.T) {
	v := NewValidator(10)

	assert.True(t, v.ValidatePrice(3000, "entry", "ETH").Valid)
	assert.Equal(t, "INVALID_PRICE_NEGATIVE", v.ValidatePrice(-1, "entry", "ETH").Code)
	assert.True(t, v.ValidateQuantity(2, "ETH").Valid)
	assert.Equal(t, "QUANTITY_TOO_LARGE", v.ValidateQuantity(11, "ETH").Code)
	assert.True(t, v.ValidateAsset("ETH").Valid)
	assert.False(t, v.ValidateAsset("eth").Valid)

	assert.True(t, v.ValidateStops(true, 3000, 2950).Valid)
	assert.True(t, v.ValidateStops(false, 3000, 3050).Valid)
	assert.Equal(t, "INVALID_STOP_LOSS", v.ValidateStops(false, 3000, 2950).Code)
	assert.Equal(t, "INVALID_STOP_LOSS", v.ValidateStops(true, 3000, 3000).Code)

	assert.NoError(t, v.ValidateAsset("BTC").Err())
	assert.Error(t, v.ValidateAsset("").Err())
}
