package adapters

import (
	"context"
	"strings"

	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
	"github.com/ducminhle1904/signal-relay-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// bybitTrader is the part of bybit.Client the adapter drives
type bybitTrader interface {
	PlaceMarketOrder(ctx context.Context, params bybit.MarketOrderParams) (*bybit.OrderAck, error)
	ClosePosition(ctx context.Context, symbol string) (bool, error)
	GetPositions(ctx context.Context, symbol string) ([]bybit.PositionInfo, error)
	GetEnvironment() string
}

// BybitAdapter implements exchange.Executor for Bybit linear perpetuals
type BybitAdapter struct {
	client bybitTrader
	quote  string
}

// NewBybitAdapter creates a new Bybit adapter instance
func NewBybitAdapter(config *exchange.BybitConfig, quote string) (*BybitAdapter, error) {
	if config == nil {
		return nil, &exchange.ExchangeError{
			Code:    "MISSING_CONFIG",
			Message: "Bybit configuration is required",
		}
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    config.APIKey,
		APISecret: config.APISecret,
		Testnet:   config.Testnet,
		Demo:      config.Demo,
		Category:  config.Category,
	})

	return &BybitAdapter{client: client, quote: quote}, nil
}

// GetName returns the exchange name
func (b *BybitAdapter) GetName() string {
	return "Bybit"
}

// GetEnvironment returns the current environment string
func (b *BybitAdapter) GetEnvironment() string {
	return b.client.GetEnvironment()
}

// PlaceOrder opens a market position with the stop-loss and optional
// take-profit attached to the same order.
func (b *BybitAdapter) PlaceOrder(ctx context.Context, req exchange.OrderRequest) error {
	params := bybit.MarketOrderParams{
		Symbol:   exchange.SymbolFor(req.Asset, b.quote),
		Side:     convertSide(req.Direction),
		Qty:      req.Quantity,
		StopLoss: req.StopLoss,
	}
	if req.TakeProfit != nil {
		params.TakeProfit = *req.TakeProfit
	}

	_, err := b.client.PlaceMarketOrder(ctx, params)
	return convertError(err)
}

// ClosePosition flattens the asset's position and cancels its open orders
func (b *BybitAdapter) ClosePosition(ctx context.Context, asset string) error {
	_, err := b.client.ClosePosition(ctx, exchange.SymbolFor(asset, b.quote))
	return convertError(err)
}

// IsPositionActive reports whether Bybit still holds a position for asset
func (b *BybitAdapter) IsPositionActive(ctx context.Context, asset string) (bool, error) {
	positions, err := b.client.GetPositions(ctx, exchange.SymbolFor(asset, b.quote))
	if err != nil {
		return false, convertError(err)
	}
	for _, pos := range positions {
		if pos.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func convertSide(d types.Direction) bybit.OrderSide {
	if exchange.EntrySide(d) == exchange.OrderSideSell {
		return bybit.OrderSideSell
	}
	return bybit.OrderSideBuy
}

// convertError converts Bybit-specific errors to our standard error format
func convertError(err error) error {
	if err == nil {
		return nil
	}

	if exchangeErr, ok := err.(*exchange.ExchangeError); ok {
		return exchangeErr
	}

	switch {
	case bybit.IsAuthenticationError(err):
		return exchange.WrapExchangeError(exchange.ErrAuthenticationFailed, err)
	case bybit.IsRateLimitError(err):
		return exchange.WrapExchangeError(exchange.ErrRateLimitExceeded, err)
	case bybit.IsInsufficientBalanceError(err):
		return exchange.WrapExchangeError(exchange.ErrInsufficientBalance, err)
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "below minimum") {
		return exchange.WrapExchangeError(exchange.ErrOrderSizeTooSmall, err)
	}

	return &exchange.ExchangeError{
		Code:        "EXCHANGE_ERROR",
		Message:     "Bybit request failed",
		IsRetryable: bybit.IsRetryableError(err),
		Underlying:  err,
	}
}
