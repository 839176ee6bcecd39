package bybit

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// OrderSide represents the side of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// Opposite returns the side that reduces a position opened with s
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderAck is what Bybit returns for an accepted order
type OrderAck struct {
	OrderID     string
	OrderLinkID string
}

// MarketOrderParams holds the parameters of a market order with optional
// attached stop-loss and take-profit.
type MarketOrderParams struct {
	Symbol     string
	Side       OrderSide
	Qty        float64
	StopLoss   float64 // zero means none
	TakeProfit float64 // zero means none
	ReduceOnly bool
}

// PlaceMarketOrder places a market order. The quantity is rounded down to
// the instrument's step and prices are rounded to its tick size.
func (c *Client) PlaceMarketOrder(ctx context.Context, params MarketOrderParams) (*OrderAck, error) {
	if params.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if params.Side == "" {
		return nil, fmt.Errorf("side is required")
	}

	instrument, err := c.instruments.GetInstrumentInfo(ctx, params.Symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get instrument info: %w", err)
	}

	qty, err := instrument.FormatQuantity(params.Qty)
	if err != nil {
		return nil, fmt.Errorf("quantity validation failed: %w", err)
	}

	apiParams := map[string]interface{}{
		"category":    c.category,
		"symbol":      params.Symbol,
		"side":        string(params.Side),
		"orderType":   "Market",
		"qty":         qty,
		"orderLinkId": uuid.NewString(),
	}
	if params.StopLoss > 0 {
		apiParams["stopLoss"] = instrument.FormatPrice(params.StopLoss)
		apiParams["slTriggerBy"] = "MarkPrice"
	}
	if params.TakeProfit > 0 {
		apiParams["takeProfit"] = instrument.FormatPrice(params.TakeProfit)
		apiParams["tpTriggerBy"] = "MarkPrice"
	}
	if params.StopLoss > 0 || params.TakeProfit > 0 {
		apiParams["tpslMode"] = "Full"
	}
	if params.ReduceOnly {
		apiParams["reduceOnly"] = true
	}

	resp, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}
	result, err := resultOf(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	return &OrderAck{
		OrderID:     result.Get("orderId").String(),
		OrderLinkID: result.Get("orderLinkId").String(),
	}, nil
}

// PositionInfo is a single entry of the position list
type PositionInfo struct {
	Symbol        string
	Side          string // Buy, Sell or empty when flat
	Size          decimal.Decimal
	AvgPrice      string
	UnrealisedPnl string
	StopLoss      string
	TakeProfit    string
}

// IsOpen reports whether the entry holds a non-zero position
func (p PositionInfo) IsOpen() bool {
	return !p.Size.IsZero()
}

// GetPositions retrieves the positions for symbol
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]PositionInfo, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	var positions []PositionInfo
	err := retryRead(ctx, DefaultRetryConfig(), func() error {
		resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetPositionList(ctx)
		if err != nil {
			return fmt.Errorf("failed to get positions: %w", err)
		}
		result, err := resultOf(resp)
		if err != nil {
			return fmt.Errorf("failed to get positions: %w", err)
		}
		positions = parsePositions(result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func parsePositions(result gjson.Result) []PositionInfo {
	var positions []PositionInfo
	result.Get("list").ForEach(func(_, item gjson.Result) bool {
		positions = append(positions, PositionInfo{
			Symbol:        item.Get("symbol").String(),
			Side:          item.Get("side").String(),
			Size:          decimalOf(item.Get("size")).Abs(),
			AvgPrice:      item.Get("avgPrice").String(),
			UnrealisedPnl: item.Get("unrealisedPnl").String(),
			StopLoss:      item.Get("stopLoss").String(),
			TakeProfit:    item.Get("takeProfit").String(),
		})
		return true
	})
	return positions
}

// ClosePosition flattens every open position on symbol with reduce-only
// market orders and cancels the remaining orders. It reports whether
// anything was open.
func (c *Client) ClosePosition(ctx context.Context, symbol string) (bool, error) {
	positions, err := c.GetPositions(ctx, symbol)
	if err != nil {
		return false, err
	}

	closed := false
	for _, pos := range positions {
		if !pos.IsOpen() {
			continue
		}
		side := OrderSide(pos.Side).Opposite()
		size, _ := pos.Size.Float64()
		if _, err := c.PlaceMarketOrder(ctx, MarketOrderParams{
			Symbol:     symbol,
			Side:       side,
			Qty:        size,
			ReduceOnly: true,
		}); err != nil {
			return closed, fmt.Errorf("failed to close %s %s position: %w", pos.Side, symbol, err)
		}
		closed = true
	}

	if err := c.CancelAllOrders(ctx, symbol); err != nil {
		return closed, err
	}
	return closed, nil
}

// CancelAllOrders cancels all open orders for a symbol
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	resp, err := c.httpClient.NewUtaBybitServiceWithParams(params).CancelAllOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to cancel all orders: %w", err)
	}
	if _, err := resultOf(resp); err != nil {
		return fmt.Errorf("failed to cancel all orders: %w", err)
	}
	return nil
}
