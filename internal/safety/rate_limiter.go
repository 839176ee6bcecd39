package safety

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a named token bucket in front of an exchange
type RateLimiter struct {
	limiter *rate.Limiter
	name    string
}

// NewRateLimiter creates a limiter that starts full with capacity tokens
// and refills refillRate tokens per second
func NewRateLimiter(name string, capacity, refillRate int) *RateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(refillRate), capacity),
		name:    name,
	}
}

// Allow takes a token if one is available
func (rl *RateLimiter) Allow() bool {
	return rl.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}

// Name returns the limiter name
func (rl *RateLimiter) Name() string {
	return rl.name
}
