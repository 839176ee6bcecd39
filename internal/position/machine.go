// Package position owns the single active trade and applies open, close
// and reconciliation events to it.
package position

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
	"github.com/ducminhle1904/signal-relay-bot/internal/risk"
	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// ClosePolicy decides what a failed ClosePosition does to the local state
type ClosePolicy string

const (
	// ClosePolicyUnconditional goes Inactive whatever ClosePosition returns
	ClosePolicyUnconditional ClosePolicy = "unconditional"
	// ClosePolicyConfirmed stays Active when ClosePosition fails
	ClosePolicyConfirmed ClosePolicy = "confirmed"
)

// ParseClosePolicy accepts the policy names, empty means unconditional
func ParseClosePolicy(s string) (ClosePolicy, error) {
	switch ClosePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", ClosePolicyUnconditional:
		return ClosePolicyUnconditional, nil
	case ClosePolicyConfirmed:
		return ClosePolicyConfirmed, nil
	default:
		return "", fmt.Errorf("unknown close policy %q (want %s or %s)", s, ClosePolicyUnconditional, ClosePolicyConfirmed)
	}
}

// Logger is the subset of the file logger the machine writes to
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
	Trade(format string, args ...interface{})
}

// Outcome names what an event did to the machine
type Outcome string

const (
	OutcomeOpened               Outcome = "opened"
	OutcomeClosed               Outcome = "closed"
	OutcomeReconciled           Outcome = "reconciled"
	OutcomeUnchanged            Outcome = "unchanged"
	OutcomeIgnoredAlreadyActive Outcome = "ignored_already_active"
	OutcomeIgnoredNoActive      Outcome = "ignored_no_active"
	OutcomeSizingRejected       Outcome = "sizing_rejected"
	OutcomeExecutionFailed      Outcome = "execution_failed"
	OutcomeCloseFailedKept      Outcome = "close_failed_kept"
	OutcomeReconcileFailed      Outcome = "reconcile_failed"
)

// Transition reports the effect of one event. Trade is the trade the event
// acted on (the new trade for opens, the removed one for closes). Err
// carries the sizing, execution or check error, if any. An Opened
// transition with a non-nil Err holds an *exchange.OrderWarning.
type Transition struct {
	Outcome Outcome
	Trade   *types.ActiveTrade
	Signal  types.TradeSignal
	Reason  string
	Err     error
	At      time.Time
}

// Changed reports whether the active slot changed
func (t Transition) Changed() bool {
	switch t.Outcome {
	case OutcomeOpened, OutcomeClosed, OutcomeReconciled:
		return true
	}
	return false
}

// Machine holds at most one active trade. opMu serializes events so a
// check-and-act is never interleaved with another event; stateMu guards
// the slot for readers that must not wait on exchange calls.
type Machine struct {
	opMu    sync.Mutex
	stateMu sync.RWMutex
	active  *types.ActiveTrade

	executor exchange.Executor
	sizer    risk.Sizer
	policy   ClosePolicy
	log      Logger
	now      func() time.Time
}

// NewMachine creates an Inactive machine
func NewMachine(executor exchange.Executor, sizer risk.Sizer, policy ClosePolicy, log Logger) *Machine {
	if policy == "" {
		policy = ClosePolicyUnconditional
	}
	return &Machine{
		executor: executor,
		sizer:    sizer,
		policy:   policy,
		log:      log,
		now:      time.Now,
	}
}

// Policy returns the configured close policy
func (m *Machine) Policy() ClosePolicy {
	return m.policy
}

// Active returns a copy of the active trade
func (m *Machine) Active() (types.ActiveTrade, bool) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if m.active == nil {
		return types.ActiveTrade{}, false
	}
	return *m.active, true
}

// StatusLine renders the per-cycle status
func (m *Machine) StatusLine() string {
	if trade, ok := m.Active(); ok {
		return fmt.Sprintf("Active %s %s (qty %.6f, entry %.4f, sl %.4f)",
			trade.Asset, strings.ToUpper(string(trade.Direction)), trade.Quantity, trade.Entry, trade.StopLoss)
	}
	return "Inactive"
}

func (m *Machine) setActive(trade *types.ActiveTrade) {
	m.stateMu.Lock()
	m.active = trade
	m.stateMu.Unlock()
}

// Apply dispatches a parsed signal
func (m *Machine) Apply(ctx context.Context, sig types.TradeSignal) Transition {
	switch s := sig.(type) {
	case types.OpenSignal:
		return m.HandleOpen(ctx, s)
	case types.CloseSignal:
		return m.HandleClose(ctx, s)
	default:
		return Transition{Outcome: OutcomeUnchanged, Signal: sig, At: m.now()}
	}
}

// HandleOpen sizes and places the order when no trade is active. The slot
// stays locked from the check until the order result is known.
func (m *Machine) HandleOpen(ctx context.Context, sig types.OpenSignal) Transition {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	tr := Transition{Signal: sig, At: m.now()}

	if current, ok := m.Active(); ok {
		tr.Outcome = OutcomeIgnoredAlreadyActive
		tr.Trade = &current
		tr.Reason = fmt.Sprintf("ignored open for %s, trade already active for %s", sig.Asset, current.Asset)
		m.log.Info("%s", tr.Reason)
		return tr
	}

	qty, err := m.sizer.Quantity(sig.Entry, sig.StopLoss)
	if err != nil {
		tr.Outcome = OutcomeSizingRejected
		tr.Err = err
		tr.Reason = fmt.Sprintf("sizing rejected open for %s", sig.Asset)
		m.log.Warning("%s: %v", tr.Reason, err)
		return tr
	}

	req := exchange.OrderRequest{
		Asset:      sig.Asset,
		Direction:  sig.Direction,
		Quantity:   qty,
		Entry:      sig.Entry,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
	}
	var warning *exchange.OrderWarning
	if err := m.executor.PlaceOrder(ctx, req); err != nil {
		if !errors.As(err, &warning) {
			tr.Outcome = OutcomeExecutionFailed
			tr.Err = err
			tr.Reason = fmt.Sprintf("order failed: %s", req)
			m.log.Error("%s: %v", tr.Reason, err)
			return tr
		}
		tr.Err = err
	}

	trade := &types.ActiveTrade{
		Asset:      sig.Asset,
		Direction:  sig.Direction,
		Entry:      sig.Entry,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Quantity:   qty,
		OpenedAt:   tr.At,
	}
	if warning != nil && warning.TakeProfitMissing {
		trade.TakeProfit = nil
	}
	m.setActive(trade)

	copied := *trade
	tr.Outcome = OutcomeOpened
	tr.Trade = &copied
	tr.Reason = fmt.Sprintf("opened %s", req)
	m.log.Trade("%s", tr.Reason)
	if warning != nil {
		m.log.Warning("order for %s placed with a warning: %v", sig.Asset, warning)
	}
	return tr
}

// HandleClose closes the active trade on the exchange and clears it
// according to the close policy.
func (m *Machine) HandleClose(ctx context.Context, sig types.CloseSignal) Transition {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	tr := Transition{Signal: sig, At: m.now(), Reason: sig.Reason}

	current, ok := m.Active()
	if !ok {
		tr.Outcome = OutcomeIgnoredNoActive
		tr.Reason = fmt.Sprintf("ignored close (%s), no active trade", sig.Reason)
		m.log.Info("%s", tr.Reason)
		return tr
	}
	tr.Trade = &current

	if err := m.executor.ClosePosition(ctx, current.Asset); err != nil {
		tr.Err = err
		if m.policy == ClosePolicyConfirmed {
			tr.Outcome = OutcomeCloseFailedKept
			m.log.Error("close of %s failed, keeping trade active: %v", current.Asset, err)
			return tr
		}
		m.log.Error("close of %s failed, clearing trade anyway: %v", current.Asset, err)
	}

	m.setActive(nil)
	tr.Outcome = OutcomeClosed
	m.log.Trade("closed %s %s (%s)", current.Asset, current.Direction, sig.Reason)
	return tr
}

// Reconcile clears the active trade when the exchange no longer holds the
// position. It never calls ClosePosition.
func (m *Machine) Reconcile(ctx context.Context) Transition {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	tr := Transition{At: m.now()}

	current, ok := m.Active()
	if !ok {
		tr.Outcome = OutcomeUnchanged
		return tr
	}
	tr.Trade = &current

	open, err := m.executor.IsPositionActive(ctx, current.Asset)
	if err != nil {
		tr.Outcome = OutcomeReconcileFailed
		tr.Err = err
		tr.Reason = fmt.Sprintf("position check for %s failed, keeping trade", current.Asset)
		m.log.Warning("%s: %v", tr.Reason, err)
		return tr
	}
	if open {
		tr.Outcome = OutcomeUnchanged
		m.log.Debug("position %s still open on exchange", current.Asset)
		return tr
	}

	m.setActive(nil)
	tr.Outcome = OutcomeReconciled
	tr.Reason = fmt.Sprintf("%s position no longer open on exchange (stop-loss or take-profit hit)", current.Asset)
	m.log.Trade("%s", tr.Reason)
	return tr
}
