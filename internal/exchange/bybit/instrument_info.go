package bybit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// InstrumentInfo holds the order constraints of a trading instrument
type InstrumentInfo struct {
	Symbol      string
	Status      string
	MinOrderQty decimal.Decimal
	MaxOrderQty decimal.Decimal
	QtyStep     decimal.Decimal
	TickSize    decimal.Decimal
}

// InstrumentManager caches instrument information per symbol
type InstrumentManager struct {
	client         *Client
	instruments    map[string]cachedInstrument
	mutex          sync.RWMutex
	updateInterval time.Duration
}

type cachedInstrument struct {
	info      *InstrumentInfo
	fetchedAt time.Time
}

// NewInstrumentManager creates a new instrument manager
func NewInstrumentManager(client *Client) *InstrumentManager {
	return &InstrumentManager{
		client:         client,
		instruments:    make(map[string]cachedInstrument),
		updateInterval: time.Hour,
	}
}

// GetInstrumentInfo retrieves and caches instrument information
func (im *InstrumentManager) GetInstrumentInfo(ctx context.Context, symbol string) (*InstrumentInfo, error) {
	im.mutex.RLock()
	cached, exists := im.instruments[symbol]
	im.mutex.RUnlock()
	if exists && time.Since(cached.fetchedAt) < im.updateInterval {
		return cached.info, nil
	}

	var info *InstrumentInfo
	err := retryRead(ctx, DefaultRetryConfig(), func() error {
		var err error
		info, err = im.fetchInstrumentInfo(ctx, symbol)
		return err
	})
	if err != nil {
		return nil, err
	}

	im.mutex.Lock()
	im.instruments[symbol] = cachedInstrument{info: info, fetchedAt: time.Now()}
	im.mutex.Unlock()

	return info, nil
}

func (im *InstrumentManager) fetchInstrumentInfo(ctx context.Context, symbol string) (*InstrumentInfo, error) {
	params := map[string]interface{}{
		"category": im.client.category,
		"symbol":   symbol,
	}

	resp, err := im.client.httpClient.NewUtaBybitServiceWithParams(params).GetInstrumentInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instrument info: %w", err)
	}

	result, err := resultOf(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instrument info: %w", err)
	}

	return parseInstrumentInfo(result, symbol)
}

func parseInstrumentInfo(result gjson.Result, symbol string) (*InstrumentInfo, error) {
	var found *InstrumentInfo
	result.Get("list").ForEach(func(_, item gjson.Result) bool {
		if item.Get("symbol").String() != symbol {
			return true
		}
		found = &InstrumentInfo{
			Symbol:      symbol,
			Status:      item.Get("status").String(),
			MinOrderQty: decimalOf(item.Get("lotSizeFilter.minOrderQty")),
			MaxOrderQty: decimalOf(item.Get("lotSizeFilter.maxOrderQty")),
			QtyStep:     decimalOf(item.Get("lotSizeFilter.qtyStep")),
			TickSize:    decimalOf(item.Get("priceFilter.tickSize")),
		}
		return false
	})

	if found == nil {
		return nil, fmt.Errorf("instrument %s not found", symbol)
	}
	return found, nil
}

func decimalOf(r gjson.Result) decimal.Decimal {
	d, err := decimal.NewFromString(r.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatQuantity rounds qty down to the instrument's step. Quantities
// below the minimum order size are rejected, never bumped up.
func (ii *InstrumentInfo) FormatQuantity(qty float64) (string, error) {
	q := decimal.NewFromFloat(qty)
	if ii.QtyStep.IsPositive() {
		q = q.Div(ii.QtyStep).Floor().Mul(ii.QtyStep)
	}
	if ii.MaxOrderQty.IsPositive() && q.GreaterThan(ii.MaxOrderQty) {
		return "", fmt.Errorf("quantity %s exceeds maximum %s for %s", q, ii.MaxOrderQty, ii.Symbol)
	}
	if !q.IsPositive() || q.LessThan(ii.MinOrderQty) {
		return "", fmt.Errorf("quantity %s below minimum %s for %s", decimal.NewFromFloat(qty), ii.MinOrderQty, ii.Symbol)
	}
	return q.String(), nil
}

// FormatPrice rounds price to the nearest tick
func (ii *InstrumentInfo) FormatPrice(price float64) string {
	p := decimal.NewFromFloat(price)
	if ii.TickSize.IsPositive() {
		p = p.Div(ii.TickSize).Round(0).Mul(ii.TickSize)
	}
	return p.String()
}
