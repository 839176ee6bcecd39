package adapters

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
)

// PaperFill is a position held by the paper exchange
type PaperFill struct {
	Request  exchange.OrderRequest
	OpenedAt time.Time
}

// PaperExchange is an in-memory executor used for dry runs. Positions stay
// open until closed explicitly or flagged with MarkClosed, which simulates
// a stop-loss or take-profit fill on the exchange side.
type PaperExchange struct {
	mu        sync.Mutex
	positions map[string]PaperFill
	history   []PaperFill
	now       func() time.Time
}

// NewPaperExchange creates an empty paper exchange
func NewPaperExchange() *PaperExchange {
	return &PaperExchange{
		positions: make(map[string]PaperFill),
		now:       time.Now,
	}
}

// GetName returns the exchange name
func (p *PaperExchange) GetName() string {
	return "Paper"
}

// GetEnvironment returns the current environment string
func (p *PaperExchange) GetEnvironment() string {
	return "paper"
}

// PlaceOrder records a new position, replacing any existing one on the asset
func (p *PaperExchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	fill := PaperFill{Request: req, OpenedAt: p.now()}
	p.positions[req.Asset] = fill
	p.history = append(p.history, fill)
	return nil
}

// ClosePosition drops the asset's position. Closing a flat asset is a no-op.
func (p *PaperExchange) ClosePosition(ctx context.Context, asset string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.positions, asset)
	return nil
}

// IsPositionActive reports whether the asset has an open paper position
func (p *PaperExchange) IsPositionActive(ctx context.Context, asset string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.positions[asset]
	return ok, nil
}

// MarkClosed simulates the exchange closing the position on its own
func (p *PaperExchange) MarkClosed(asset string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.positions, asset)
}

// OpenAssets returns the assets with open positions, sorted
func (p *PaperExchange) OpenAssets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	assets := make([]string, 0, len(p.positions))
	for asset := range p.positions {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// History returns every order accepted so far
func (p *PaperExchange) History() []PaperFill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PaperFill(nil), p.history...)
}
