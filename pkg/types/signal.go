package types

import "time"

// RawMessage is one chat message as read from the feed
type RawMessage struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// DirectionFor derives the trade direction from entry and stop-loss.
// ok is false when the two are equal.
func DirectionFor(entry, stopLoss float64) (Direction, bool) {
	switch {
	case entry > stopLoss:
		return DirectionLong, true
	case entry < stopLoss:
		return DirectionShort, true
	default:
		return "", false
	}
}

// TradeSignal is either an OpenSignal or a CloseSignal
type TradeSignal interface {
	isTradeSignal()
}

// OpenSignal asks for a new position
type OpenSignal struct {
	Asset      string
	Direction  Direction
	Entry      float64
	StopLoss   float64
	TakeProfit *float64
}

// CloseSignal asks to close the active position
type CloseSignal struct {
	Reason string
}

func (OpenSignal) isTradeSignal()  {}
func (CloseSignal) isTradeSignal() {}

// ActiveTrade is the single open position tracked by the bot
type ActiveTrade struct {
	Asset      string    `json:"asset"`
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	Quantity   float64   `json:"quantity"`
	OpenedAt   time.Time `json:"opened_at"`
}
