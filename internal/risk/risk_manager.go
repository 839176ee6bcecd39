package risk

import (
	"errors"
	"fmt"
	"math"
)

// ErrSizing is matched by every *SizingError via errors.Is
var ErrSizing = errors.New("sizing error")

// SizingError reports why no quantity could be computed
type SizingError struct {
	Entry    float64
	StopLoss float64
	Reason   string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("cannot size position (entry %.8g, stop %.8g): %s", e.Entry, e.StopLoss, e.Reason)
}

func (e *SizingError) Is(target error) bool {
	return target == ErrSizing
}

// Quantity returns riskAmount / |entry - stopLoss|, the size that loses
// exactly riskAmount if the stop is hit.
func Quantity(entry, stopLoss, riskAmount float64) (float64, error) {
	if riskAmount <= 0 || math.IsNaN(riskAmount) || math.IsInf(riskAmount, 0) {
		return 0, &SizingError{Entry: entry, StopLoss: stopLoss, Reason: fmt.Sprintf("risk amount %.2f must be positive", riskAmount)}
	}
	distance := math.Abs(entry - stopLoss)
	if distance == 0 || math.IsNaN(distance) {
		return 0, &SizingError{Entry: entry, StopLoss: stopLoss, Reason: "entry equals stop-loss"}
	}
	return riskAmount / distance, nil
}

// FixedRiskSizer sizes every trade to the same monetary risk
type FixedRiskSizer struct {
	riskAmount float64
	// maxNotional caps quantity*entry, zero disables the cap
	maxNotional float64
}

// NewFixedRiskSizer creates a sizer risking riskAmount per trade
func NewFixedRiskSizer(riskAmount, maxNotional float64) *FixedRiskSizer {
	return &FixedRiskSizer{
		riskAmount:  riskAmount,
		maxNotional: maxNotional,
	}
}

// RiskAmount returns the configured risk per trade
func (s *FixedRiskSizer) RiskAmount() float64 {
	return s.riskAmount
}

// Quantity implements Sizer
func (s *FixedRiskSizer) Quantity(entry, stopLoss float64) (float64, error) {
	qty, err := Quantity(entry, stopLoss, s.riskAmount)
	if err != nil {
		return 0, err
	}
	if s.maxNotional > 0 {
		if notional := qty * math.Abs(entry); notional > s.maxNotional {
			return 0, &SizingError{
				Entry:    entry,
				StopLoss: stopLoss,
				Reason:   fmt.Sprintf("notional %.2f exceeds maximum %.2f", notional, s.maxNotional),
			}
		}
	}
	return qty, nil
}
