package adapters

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// BinanceAdapter implements exchange.Executor for Binance USD-M futures.
// The entry is a market order, the stop-loss and take-profit are separate
// close-position trigger orders.
type BinanceAdapter struct {
	client  *futures.Client
	quote   string
	testnet bool

	mu      sync.Mutex
	filters map[string]symbolFilters
}

type symbolFilters struct {
	stepSize decimal.Decimal
	minQty   decimal.Decimal
	tickSize decimal.Decimal
}

// NewBinanceAdapter creates a new Binance futures adapter
func NewBinanceAdapter(config *exchange.BinanceConfig, quote string) (*BinanceAdapter, error) {
	if config == nil {
		return nil, &exchange.ExchangeError{
			Code:    "MISSING_CONFIG",
			Message: "Binance configuration is required",
		}
	}

	futures.UseTestnet = config.Testnet
	return newBinanceAdapter(futures.NewClient(config.APIKey, config.APISecret), quote, config.Testnet), nil
}

func newBinanceAdapter(client *futures.Client, quote string, testnet bool) *BinanceAdapter {
	return &BinanceAdapter{
		client:  client,
		quote:   quote,
		testnet: testnet,
		filters: make(map[string]symbolFilters),
	}
}

// GetName returns the exchange name
func (b *BinanceAdapter) GetName() string {
	return "Binance Futures"
}

// GetEnvironment returns the current environment string
func (b *BinanceAdapter) GetEnvironment() string {
	if b.testnet {
		return "testnet"
	}
	return "mainnet"
}

// PlaceOrder opens a market position, then attaches the protective orders.
// When the stop-loss cannot be placed the position is flattened and the
// error returned. A failed take-profit returns an *exchange.OrderWarning
// and the position stays open behind its stop.
func (b *BinanceAdapter) PlaceOrder(ctx context.Context, req exchange.OrderRequest) error {
	symbol := exchange.SymbolFor(req.Asset, b.quote)
	filters, err := b.symbolFilters(ctx, symbol)
	if err != nil {
		return b.convertError(err)
	}

	qty, err := roundQuantity(req.Quantity, filters)
	if err != nil {
		return exchange.WrapExchangeError(exchange.ErrOrderSizeTooSmall, err)
	}

	side, exitSide := futures.SideTypeBuy, futures.SideTypeSell
	if req.Direction == types.DirectionShort {
		side, exitSide = futures.SideTypeSell, futures.SideTypeBuy
	}

	_, err = b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		Do(ctx)
	if err != nil {
		return b.convertError(fmt.Errorf("failed to open %s position: %w", symbol, err))
	}

	_, err = b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(exitSide).
		Type(futures.OrderTypeStopMarket).
		StopPrice(roundPrice(req.StopLoss, filters)).
		WorkingType(futures.WorkingTypeMarkPrice).
		ClosePosition(true).
		Do(ctx)
	if err != nil {
		if closeErr := b.ClosePosition(ctx, req.Asset); closeErr != nil {
			err = fmt.Errorf("%w (flatten after failed stop also failed: %v)", err, closeErr)
		}
		return b.convertError(fmt.Errorf("failed to set stop loss for %s: %w", symbol, err))
	}

	if req.TakeProfit != nil {
		_, err = b.client.NewCreateOrderService().
			Symbol(symbol).
			Side(exitSide).
			Type(futures.OrderTypeTakeProfitMarket).
			StopPrice(roundPrice(*req.TakeProfit, filters)).
			WorkingType(futures.WorkingTypeMarkPrice).
			ClosePosition(true).
			Do(ctx)
		if err != nil {
			return &exchange.OrderWarning{
				Message:           fmt.Sprintf("%s opened without take-profit", symbol),
				TakeProfitMissing: true,
				Underlying:        err,
			}
		}
	}

	return nil
}

// ClosePosition flattens the asset's position with a reduce-only market
// order and cancels the remaining trigger orders.
func (b *BinanceAdapter) ClosePosition(ctx context.Context, asset string) error {
	symbol := exchange.SymbolFor(asset, b.quote)

	amount, err := b.positionAmount(ctx, symbol)
	if err != nil {
		return b.convertError(err)
	}

	if !amount.IsZero() {
		side := futures.SideTypeSell
		if amount.IsNegative() {
			side = futures.SideTypeBuy
		}
		_, err = b.client.NewCreateOrderService().
			Symbol(symbol).
			Side(side).
			Type(futures.OrderTypeMarket).
			Quantity(amount.Abs().String()).
			ReduceOnly(true).
			Do(ctx)
		if err != nil {
			return b.convertError(fmt.Errorf("failed to close %s position: %w", symbol, err))
		}
	}

	if err := b.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return b.convertError(fmt.Errorf("failed to cancel orders: %w", err))
	}
	return nil
}

// IsPositionActive reports whether Binance still holds a position for asset
func (b *BinanceAdapter) IsPositionActive(ctx context.Context, asset string) (bool, error) {
	amount, err := b.positionAmount(ctx, exchange.SymbolFor(asset, b.quote))
	if err != nil {
		return false, b.convertError(err)
	}
	return !amount.IsZero(), nil
}

func (b *BinanceAdapter) positionAmount(ctx context.Context, symbol string) (decimal.Decimal, error) {
	positions, err := b.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get positions: %w", err)
	}

	total := decimal.Zero
	for _, pos := range positions {
		if pos.Symbol != symbol {
			continue
		}
		amt, err := decimal.NewFromString(pos.PositionAmt)
		if err != nil {
			continue
		}
		total = total.Add(amt)
	}
	return total, nil
}

func (b *BinanceAdapter) symbolFilters(ctx context.Context, symbol string) (symbolFilters, error) {
	b.mu.Lock()
	cached, ok := b.filters[symbol]
	b.mu.Unlock()
	if ok {
		return cached, nil
	}

	info, err := b.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return symbolFilters{}, fmt.Errorf("failed to get exchange info: %w", err)
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		var f symbolFilters
		if lot := s.LotSizeFilter(); lot != nil {
			f.stepSize, _ = decimal.NewFromString(lot.StepSize)
			f.minQty, _ = decimal.NewFromString(lot.MinQuantity)
		}
		if price := s.PriceFilter(); price != nil {
			f.tickSize, _ = decimal.NewFromString(price.TickSize)
		}

		b.mu.Lock()
		b.filters[symbol] = f
		b.mu.Unlock()
		return f, nil
	}

	return symbolFilters{}, fmt.Errorf("symbol %s not found on Binance futures", symbol)
}

// roundQuantity rounds down to the step size and rejects quantities below
// the minimum
func roundQuantity(qty float64, f symbolFilters) (string, error) {
	q := decimal.NewFromFloat(qty)
	if f.stepSize.IsPositive() {
		q = q.Div(f.stepSize).Floor().Mul(f.stepSize)
	}
	if !q.IsPositive() || q.LessThan(f.minQty) {
		return "", fmt.Errorf("quantity %v below minimum %s", qty, f.minQty)
	}
	return q.String(), nil
}

func roundPrice(price float64, f symbolFilters) string {
	p := decimal.NewFromFloat(price)
	if f.tickSize.IsPositive() {
		p = p.Div(f.tickSize).Round(0).Mul(f.tickSize)
	}
	return p.String()
}

func (b *BinanceAdapter) convertError(err error) error {
	if err == nil {
		return nil
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "-2015") || strings.Contains(errStr, "-2014") || strings.Contains(errStr, "api-key"):
		return exchange.WrapExchangeError(exchange.ErrAuthenticationFailed, err)
	case strings.Contains(errStr, "-1003") || strings.Contains(errStr, "too many requests"):
		return exchange.WrapExchangeError(exchange.ErrRateLimitExceeded, err)
	case strings.Contains(errStr, "-2019") || strings.Contains(errStr, "insufficient"):
		return exchange.WrapExchangeError(exchange.ErrInsufficientBalance, err)
	}
	return &exchange.ExchangeError{
		Code:        "EXCHANGE_ERROR",
		Message:     "Binance request failed",
		IsRetryable: strings.Contains(errStr, "timeout") || strings.Contains(errStr, "-1001"),
		Underlying:  err,
	}
}
