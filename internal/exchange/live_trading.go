package exchange

import (
	"context"
	"fmt"
	"strings"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// Executor is the execution service the position state machine drives.
// A nil error from PlaceOrder means the order was accepted.
type Executor interface {
	PlaceOrder(ctx context.Context, req OrderRequest) error
	ClosePosition(ctx context.Context, asset string) error
	IsPositionActive(ctx context.Context, asset string) (bool, error)
}

// Named is implemented by executors that can describe themselves
type Named interface {
	GetName() string
	GetEnvironment() string
}

// OrderRequest describes an entry order with its protective orders
type OrderRequest struct {
	Asset      string          `json:"asset"`
	Direction  types.Direction `json:"direction"`
	Quantity   float64         `json:"quantity"`
	Entry      float64         `json:"entry"`
	StopLoss   float64         `json:"stop_loss"`
	TakeProfit *float64        `json:"take_profit,omitempty"`
}

// String renders the request for log lines
func (r OrderRequest) String() string {
	s := fmt.Sprintf("%s %s qty=%.6f entry=%.4f sl=%.4f", strings.ToUpper(string(r.Direction)), r.Asset, r.Quantity, r.Entry, r.StopLoss)
	if r.TakeProfit != nil {
		s += fmt.Sprintf(" tp=%.4f", *r.TakeProfit)
	}
	return s
}

// OrderSide represents buy or sell side
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// EntrySide returns the side that opens a position in direction d
func EntrySide(d types.Direction) OrderSide {
	if d == types.DirectionShort {
		return OrderSideSell
	}
	return OrderSideBuy
}

// SymbolFor maps an asset ticker to the exchange symbol, e.g. ETH -> ETHUSDT
func SymbolFor(asset, quote string) string {
	asset = strings.ToUpper(strings.TrimSpace(asset))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if quote == "" || strings.HasSuffix(asset, quote) {
		return asset
	}
	return asset + quote
}

// ExchangeError represents standardized errors from exchanges
type ExchangeError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Details     string `json:"details,omitempty"`
	IsRetryable bool   `json:"is_retryable"`
	Underlying  error  `json:"-"`
}

func (e *ExchangeError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *ExchangeError) Unwrap() error {
	return e.Underlying
}

// Is matches exchange errors by code so the predefined errors below can be
// used with errors.Is.
func (e *ExchangeError) Is(target error) bool {
	t, ok := target.(*ExchangeError)
	return ok && t.Code == e.Code
}

// Common error types
var (
	ErrInsufficientBalance = &ExchangeError{
		Code:        "INSUFFICIENT_BALANCE",
		Message:     "Insufficient balance for trade",
		IsRetryable: false,
	}

	ErrInvalidOrder = &ExchangeError{
		Code:        "INVALID_ORDER",
		Message:     "Order rejected by validation",
		IsRetryable: false,
	}

	ErrOrderSizeTooSmall = &ExchangeError{
		Code:        "ORDER_SIZE_TOO_SMALL",
		Message:     "Order size below minimum requirements",
		IsRetryable: false,
	}

	ErrRateLimitExceeded = &ExchangeError{
		Code:        "RATE_LIMIT_EXCEEDED",
		Message:     "API rate limit exceeded",
		IsRetryable: true,
	}

	ErrCircuitOpen = &ExchangeError{
		Code:        "CIRCUIT_OPEN",
		Message:     "Exchange calls suspended after repeated failures",
		IsRetryable: true,
	}

	ErrAuthenticationFailed = &ExchangeError{
		Code:        "AUTHENTICATION_FAILED",
		Message:     "API authentication failed",
		IsRetryable: false,
	}
)

// OrderWarning is returned by PlaceOrder when the entry was filled but a
// protective order could not be attached. The position exists on the
// exchange and must be tracked.
type OrderWarning struct {
	Message string
	// TakeProfitMissing is set when the take-profit order was not placed
	TakeProfitMissing bool
	Underlying        error
}

func (w *OrderWarning) Error() string {
	if w.Underlying != nil {
		return w.Message + ": " + w.Underlying.Error()
	}
	return w.Message
}

func (w *OrderWarning) Unwrap() error {
	return w.Underlying
}

// WrapExchangeError attaches err to a copy of a predefined error
func WrapExchangeError(base *ExchangeError, err error) *ExchangeError {
	return &ExchangeError{
		Code:        base.Code,
		Message:     base.Message,
		Details:     base.Details,
		IsRetryable: base.IsRetryable,
		Underlying:  err,
	}
}
