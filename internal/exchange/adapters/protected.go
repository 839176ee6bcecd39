package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
	"github.com/ducminhle1904/signal-relay-bot/internal/safety"
	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// ProtectedExecutor wraps an executor with request validation, rate
// limiting, a circuit breaker and a per-call timeout.
type ProtectedExecutor struct {
	inner       exchange.Executor
	validator   *safety.Validator
	limiter     *safety.RateLimiter
	breaker     *safety.CircuitBreaker
	callTimeout time.Duration
}

// NewProtectedExecutor wraps inner using the given safety settings
func NewProtectedExecutor(inner exchange.Executor, cfg exchange.SafetyConfig, callTimeout time.Duration) *ProtectedExecutor {
	name := "executor"
	if named, ok := inner.(exchange.Named); ok {
		name = named.GetName()
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 10
	}
	resetTimeout := time.Duration(cfg.ResetTimeoutSec) * time.Second
	if callTimeout <= 0 {
		callTimeout = 15 * time.Second
	}

	return &ProtectedExecutor{
		inner:     inner,
		validator: safety.NewValidator(cfg.MaxQuantity),
		limiter:   safety.NewRateLimiter(name, burst, rps),
		breaker: safety.NewCircuitBreaker(name, safety.CircuitBreakerConfig{
			FailureThreshold: uint32(cfg.MaxFailures),
			Timeout:          resetTimeout,
		}),
		callTimeout: callTimeout,
	}
}

// Breaker exposes the circuit breaker for health reporting
func (p *ProtectedExecutor) Breaker() *safety.CircuitBreaker {
	return p.breaker
}

// GetName returns the wrapped executor's name
func (p *ProtectedExecutor) GetName() string {
	if named, ok := p.inner.(exchange.Named); ok {
		return named.GetName()
	}
	return "executor"
}

// GetEnvironment returns the wrapped executor's environment
func (p *ProtectedExecutor) GetEnvironment() string {
	if named, ok := p.inner.(exchange.Named); ok {
		return named.GetEnvironment()
	}
	return "unknown"
}

// PlaceOrder validates the request before forwarding it
func (p *ProtectedExecutor) PlaceOrder(ctx context.Context, req exchange.OrderRequest) error {
	if err := p.validate(req); err != nil {
		return exchange.WrapExchangeError(exchange.ErrInvalidOrder, err)
	}
	return p.call(ctx, func(ctx context.Context) error {
		return p.inner.PlaceOrder(ctx, req)
	})
}

// ClosePosition forwards the close through the protections
func (p *ProtectedExecutor) ClosePosition(ctx context.Context, asset string) error {
	return p.call(ctx, func(ctx context.Context) error {
		return p.inner.ClosePosition(ctx, asset)
	})
}

// IsPositionActive forwards the check through the protections
func (p *ProtectedExecutor) IsPositionActive(ctx context.Context, asset string) (bool, error) {
	var active bool
	err := p.call(ctx, func(ctx context.Context) error {
		var err error
		active, err = p.inner.IsPositionActive(ctx, asset)
		return err
	})
	return active, err
}

func (p *ProtectedExecutor) validate(req exchange.OrderRequest) error {
	results := []safety.ValidationResult{
		p.validator.ValidateAsset(req.Asset),
		p.validator.ValidateQuantity(req.Quantity, req.Asset),
		p.validator.ValidatePrice(req.Entry, "entry", req.Asset),
		p.validator.ValidatePrice(req.StopLoss, "stop-loss", req.Asset),
		p.validator.ValidateStops(req.Direction == types.DirectionLong, req.Entry, req.StopLoss),
	}
	for _, r := range results {
		if err := r.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProtectedExecutor) call(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return exchange.WrapExchangeError(exchange.ErrRateLimitExceeded, err)
	}

	err := p.breaker.Call(func() error { return fn(ctx) }, countsAsOutage)
	if errors.Is(err, safety.ErrCircuitOpen) {
		return exchange.WrapExchangeError(exchange.ErrCircuitOpen, err)
	}
	return err
}

// countsAsOutage reports whether err counts toward opening the breaker.
// Order rejections and warnings do not.
func countsAsOutage(err error) bool {
	var warning *exchange.OrderWarning
	if errors.As(err, &warning) {
		return false
	}
	var exErr *exchange.ExchangeError
	if errors.As(err, &exErr) {
		return exErr.IsRetryable
	}
	return true
}
