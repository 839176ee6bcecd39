// Package parser turns raw chat text into trade signals.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// A signed number glued to R, then "booked", anywhere in the text
var closePattern = regexp.MustCompile(`(?i)[+-]?\d+(?:\.\d*)?R\s+booked`)

// Parse returns the signal carried by text, or nil when there is none.
// The close rule is checked first and wins over the open rule.
func Parse(text string) types.TradeSignal {
	if m := closePattern.FindString(text); m != "" {
		return types.CloseSignal{Reason: strings.TrimSpace(m)}
	}

	f := tokenize(text)
	if f.asset == "" || f.entry == nil || f.stopLoss == nil {
		return nil
	}

	direction, ok := types.DirectionFor(*f.entry, *f.stopLoss)
	if !ok {
		return nil
	}

	return types.OpenSignal{
		Asset:      f.asset,
		Direction:  direction,
		Entry:      *f.entry,
		StopLoss:   *f.stopLoss,
		TakeProfit: f.takeProfit,
	}
}

// Describe renders a signal for log lines
func Describe(sig types.TradeSignal) string {
	switch s := sig.(type) {
	case types.OpenSignal:
		desc := fmt.Sprintf("OPEN %s %s entry=%g sl=%g", s.Asset, strings.ToUpper(string(s.Direction)), s.Entry, s.StopLoss)
		if s.TakeProfit != nil {
			desc += fmt.Sprintf(" tp=%g", *s.TakeProfit)
		}
		return desc
	case types.CloseSignal:
		return "CLOSE (" + s.Reason + ")"
	default:
		return "NONE"
	}
}
