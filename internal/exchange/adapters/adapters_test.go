package adapters

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
	"github.com/ducminhle1904/signal-relay-bot/internal/exchange/bybit"
	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

type fakeBybit struct {
	mu        sync.Mutex
	orders    []bybit.MarketOrderParams
	closed    []string
	positions []bybit.PositionInfo
	err       error
}

func (f *fakeBybit) PlaceMarketOrder(_ context.Context, params bybit.MarketOrderParams) (*bybit.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.orders = append(f.orders, params)
	return &bybit.OrderAck{OrderID: "1"}, nil
}

func (f *fakeBybit) ClosePosition(_ context.Context, symbol string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, symbol)
	return true, f.err
}

func (f *fakeBybit) GetPositions(_ context.Context, _ string) ([]bybit.PositionInfo, error) {
	return f.positions, f.err
}

func (f *fakeBybit) GetEnvironment() string { return "demo" }

func ethRequest() exchange.OrderRequest {
	tp := 3100.0
	return exchange.OrderRequest{
		Asset:      "ETH",
		Direction:  types.DirectionLong,
		Quantity:   2,
		Entry:      3000,
		StopLoss:   2950,
		TakeProfit: &tp,
	}
}

func TestBybitAdapterPlaceOrder(t *testing.T) {
	fake := &fakeBybit{}
	adapter := &BybitAdapter{client: fake, quote: "USDT"}

	require.NoError(t, adapter.PlaceOrder(context.Background(), ethRequest()))
	require.Len(t, fake.orders, 1)
	order := fake.orders[0]
	assert.Equal(t, "ETHUSDT", order.Symbol)
	assert.Equal(t, bybit.OrderSideBuy, order.Side)
	assert.Equal(t, 2.0, order.Qty)
	assert.Equal(t, 2950.0, order.StopLoss)
	assert.Equal(t, 3100.0, order.TakeProfit)

	short := ethRequest()
	short.Direction = types.DirectionShort
	short.TakeProfit = nil
	require.NoError(t, adapter.PlaceOrder(context.Background(), short))
	assert.Equal(t, bybit.OrderSideSell, fake.orders[1].Side)
	assert.Zero(t, fake.orders[1].TakeProfit)
}

func TestBybitAdapterPositionChecks(t *testing.T) {
	fake := &fakeBybit{positions: []bybit.PositionInfo{{Symbol: "ETHUSDT", Size: decimal.Zero}}}
	adapter := &BybitAdapter{client: fake, quote: "USDT"}

	active, err := adapter.IsPositionActive(context.Background(), "ETH")
	require.NoError(t, err)
	assert.False(t, active)

	fake.positions = append(fake.positions, bybit.PositionInfo{Symbol: "ETHUSDT", Side: "Buy", Size: decimal.NewFromInt(2)})
	active, err = adapter.IsPositionActive(context.Background(), "ETH")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, adapter.ClosePosition(context.Background(), "ETH"))
	assert.Equal(t, []string{"ETHUSDT"}, fake.closed)
}

func TestBybitConvertError(t *testing.T) {
	err := convertError(bybit.NewBybitError(bybit.ErrCodeRateLimitExceeded, "too fast"))
	assert.True(t, errors.Is(err, exchange.ErrRateLimitExceeded))

	err = convertError(bybit.NewBybitError(bybit.ErrCodeInvalidAPIKey, "bad key"))
	assert.True(t, errors.Is(err, exchange.ErrAuthenticationFailed))

	err = convertError(errors.New("quantity validation failed: quantity 0.0001 below minimum 0.001 for BTCUSDT"))
	assert.True(t, errors.Is(err, exchange.ErrOrderSizeTooSmall))

	var exErr *exchange.ExchangeError
	require.True(t, errors.As(convertError(errors.New("weird")), &exErr))
	assert.Equal(t, "EXCHANGE_ERROR", exErr.Code)

	assert.NoError(t, convertError(nil))
}

func TestBinanceRounding(t *testing.T) {
	f := symbolFilters{
		stepSize: decimal.RequireFromString("0.001"),
		minQty:   decimal.RequireFromString("0.001"),
		tickSize: decimal.RequireFromString("0.1"),
	}

	qty, err := roundQuantity(0.2049, f)
	require.NoError(t, err)
	assert.Equal(t, "0.204", qty)

	_, err = roundQuantity(0.0009, f)
	assert.Error(t, err)

	assert.Equal(t, "49500.1", roundPrice(49500.06, f))
}

func TestPaperExchange(t *testing.T) {
	paper := NewPaperExchange()
	ctx := context.Background()

	require.NoError(t, paper.PlaceOrder(ctx, ethRequest()))
	active, err := paper.IsPositionActive(ctx, "ETH")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, []string{"ETH"}, paper.OpenAssets())

	paper.MarkClosed("ETH")
	active, _ = paper.IsPositionActive(ctx, "ETH")
	assert.False(t, active)

	require.NoError(t, paper.ClosePosition(ctx, "BTC"), "closing a flat asset is a no-op")
	assert.Len(t, paper.History(), 1)
}

type failingExecutor struct {
	err   error
	calls int
}

func (f *failingExecutor) PlaceOrder(context.Context, exchange.OrderRequest) error {
	f.calls++
	return f.err
}

func (f *failingExecutor) ClosePosition(context.Context, string) error {
	f.calls++
	return f.err
}

func (f *failingExecutor) IsPositionActive(context.Context, string) (bool, error) {
	f.calls++
	return false, f.err
}

func TestProtectedExecutorValidates(t *testing.T) {
	paper := NewPaperExchange()
	protected := NewProtectedExecutor(paper, exchange.SafetyConfig{MaxQuantity: 1}, time.Second)

	err := protected.PlaceOrder(context.Background(), ethRequest())
	assert.True(t, errors.Is(err, exchange.ErrInvalidOrder), "quantity 2 exceeds the maximum of 1")
	assert.Empty(t, paper.History())

	bad := ethRequest()
	bad.Quantity = 0.5
	bad.StopLoss = 3050
	assert.True(t, errors.Is(protected.PlaceOrder(context.Background(), bad), exchange.ErrInvalidOrder))

	ok := ethRequest()
	ok.Quantity = 0.5
	require.NoError(t, protected.PlaceOrder(context.Background(), ok))

	wrongTP := ethRequest()
	wrongTP.Asset = "BTC"
	wrongTP.Quantity = 0.5
	tp := 2900.0
	wrongTP.TakeProfit = &tp
	require.NoError(t, protected.PlaceOrder(context.Background(), wrongTP), "take-profit placement is left to the exchange")
	assert.Len(t, paper.History(), 2)
	assert.Equal(t, "Paper", protected.GetName())
	assert.Equal(t, "paper", protected.GetEnvironment())
}

func TestProtectedExecutorOpensCircuit(t *testing.T) {
	inner := &failingExecutor{err: errors.New("connection reset")}
	protected := NewProtectedExecutor(inner, exchange.SafetyConfig{MaxFailures: 2, ResetTimeoutSec: 60}, time.Second)
	ctx := context.Background()

	_, err := protected.IsPositionActive(ctx, "ETH")
	assert.Error(t, err)
	_, err = protected.IsPositionActive(ctx, "ETH")
	assert.Error(t, err)

	_, err = protected.IsPositionActive(ctx, "ETH")
	assert.True(t, errors.Is(err, exchange.ErrCircuitOpen))
	assert.Equal(t, 2, inner.calls)
}

func TestProtectedExecutorIgnoresRejections(t *testing.T) {
	inner := &failingExecutor{err: exchange.WrapExchangeError(exchange.ErrInsufficientBalance, errors.New("110007"))}
	protected := NewProtectedExecutor(inner, exchange.SafetyConfig{MaxFailures: 1}, time.Second)

	for i := 0; i < 3; i++ {
		err := protected.ClosePosition(context.Background(), "ETH")
		assert.True(t, errors.Is(err, exchange.ErrInsufficientBalance))
	}
	assert.Equal(t, 3, inner.calls)
}

func TestNewExecutor(t *testing.T) {
	executor, err := NewExecutor(exchange.ExchangeConfig{Name: "paper"}, "USDT", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Paper", executor.GetName())

	_, err = NewExecutor(exchange.ExchangeConfig{Name: "bybit"}, "USDT", time.Second)
	assert.Error(t, err)

	bybitExec, err := NewExecutor(exchange.ExchangeConfig{
		Name:  "bybit",
		Bybit: &exchange.BybitConfig{APIKey: "k", APISecret: "s", Demo: true},
	}, "USDT", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "demo", bybitExec.GetEnvironment())
}
