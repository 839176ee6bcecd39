// Package bot runs the polling loop that turns channel messages into trades.
package bot

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ducminhle1904/signal-relay-bot/internal/detector"
	boterrors "github.com/ducminhle1904/signal-relay-bot/internal/errors"
	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
	"github.com/ducminhle1904/signal-relay-bot/internal/feed"
	"github.com/ducminhle1904/signal-relay-bot/internal/journal"
	"github.com/ducminhle1904/signal-relay-bot/internal/monitoring"
	"github.com/ducminhle1904/signal-relay-bot/internal/notifications"
	"github.com/ducminhle1904/signal-relay-bot/internal/parser"
	"github.com/ducminhle1904/signal-relay-bot/internal/position"
	"github.com/ducminhle1904/signal-relay-bot/internal/risk"
	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

// Logger is what the bot writes to; *logger.Logger satisfies it
type Logger interface {
	position.Logger
	Status(format string, args ...interface{})
}

// TradeJournal records trade events
type TradeJournal interface {
	Record(e journal.Entry) error
}

// Options wires the bot's collaborators. Feed, Executor and Sizer are
// required; everything else is optional.
type Options struct {
	Feed        feed.Feed
	Executor    exchange.Executor
	Sizer       risk.Sizer
	ClosePolicy position.ClosePolicy
	Interval    time.Duration

	ExchangeName string
	Logger       Logger
	Metrics      *monitoring.Metrics
	Health       *monitoring.HealthChecker
	Errors       *boterrors.ErrorStats
	Notifier     notifications.Notifier
	Journal      TradeJournal
	Console      io.Writer
}

// SignalBot owns the fingerprint table and the position machine and runs
// one cycle at a time.
type SignalBot struct {
	feed     feed.Feed
	table    *detector.Table
	machine  *position.Machine
	interval time.Duration

	exchangeName string
	log          Logger
	metrics      *monitoring.Metrics
	health       *monitoring.HealthChecker
	errors       *boterrors.ErrorStats
	notifier     notifications.Notifier
	journal      TradeJournal
	console      io.Writer
	now          func() time.Time
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})   {}
func (nopLogger) Info(string, ...interface{})    {}
func (nopLogger) Warning(string, ...interface{}) {}
func (nopLogger) Error(string, ...interface{})   {}
func (nopLogger) Trade(string, ...interface{})   {}
func (nopLogger) Status(string, ...interface{})  {}

// New creates a bot in the Inactive state with an empty fingerprint table
func New(opts Options) (*SignalBot, error) {
	if opts.Feed == nil {
		return nil, boterrors.NewConfigurationError("bot", "new", "message feed is required")
	}
	if opts.Executor == nil {
		return nil, boterrors.NewConfigurationError("bot", "new", "executor is required")
	}
	if opts.Sizer == nil {
		return nil, boterrors.NewConfigurationError("bot", "new", "position sizer is required")
	}
	if opts.Interval <= 0 {
		return nil, boterrors.NewConfigurationError("bot", "new", "poll interval must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Errors == nil {
		opts.Errors = boterrors.NewErrorStats(50)
	}
	if opts.Notifier == nil {
		opts.Notifier = notifications.Nop{}
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.ExchangeName == "" {
		opts.ExchangeName = "unknown"
		if named, ok := opts.Executor.(exchange.Named); ok {
			opts.ExchangeName = named.GetName()
		}
	}

	return &SignalBot{
		feed:         opts.Feed,
		table:        detector.NewTable(),
		machine:      position.NewMachine(opts.Executor, opts.Sizer, opts.ClosePolicy, opts.Logger),
		interval:     opts.Interval,
		exchangeName: opts.ExchangeName,
		log:          opts.Logger,
		metrics:      opts.Metrics,
		health:       opts.Health,
		errors:       opts.Errors,
		notifier:     opts.Notifier,
		journal:      opts.Journal,
		console:      opts.Console,
		now:          time.Now,
	}, nil
}

// Machine exposes the position machine for status readers
func (b *SignalBot) Machine() *position.Machine {
	return b.machine
}

// Run executes a cycle immediately and then one cycle per interval, with
// the interval measured from the end of the previous cycle. It returns
// when ctx is cancelled; cycle failures never stop it.
func (b *SignalBot) Run(ctx context.Context) error {
	b.log.Info("Signal loop started (interval %s, close policy %s)", b.interval, b.machine.Policy())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Info("Stop signal received - ending signal loop")
			fmt.Fprintln(b.console)
			return nil
		case <-timer.C:
			b.runAndReport(ctx)
			timer.Reset(b.interval)
		}
	}
}

func (b *SignalBot) runAndReport(ctx context.Context) {
	start := b.now()
	err := b.RunCycle(ctx)
	b.metrics.ObserveCycle(b.now().Sub(start))
	b.health.RecordCycle(err)

	if err == nil || ctx.Err() != nil {
		return
	}

	botErr := boterrors.CategorizeError(err, boterrors.ErrorCategoryTemporary, "bot", "cycle")
	b.recordError(botErr)
	b.metrics.RecordCycleError(string(botErr.Category))
	b.log.Error("Cycle failed: %v", err)
	fmt.Fprintf(b.console, "\n❌ Cycle error: %v\n", err)
}

// RunCycle performs one pass: reconcile, snapshot, detect, parse and
// apply, then report status. A panic anywhere in the cycle is returned as
// an error. Cancelling ctx can abort the snapshot but not exchange calls
// already under way; those are bounded by the executor's own timeouts.
func (b *SignalBot) RunCycle(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = boterrors.NewPanicError("bot", r)
		}
	}()

	tradeCtx := context.WithoutCancel(ctx)
	b.handleTransition(b.machine.Reconcile(tradeCtx))

	snapshot, snapErr := b.feed.Snapshot(ctx)
	if snapErr != nil {
		return boterrors.NewFeedError("snapshot", snapErr)
	}

	firstPass := !b.table.Baselined()
	changed := detector.Detect(b.table, snapshot)
	if firstPass {
		b.log.Info("Baseline captured: %d existing messages will not be traded", b.table.Len())
		fmt.Fprintf(b.console, "\n📌 Baseline captured (%d messages), waiting for new signals\n", b.table.Len())
	}
	b.metrics.RecordMessagesChanged(len(changed))

	for _, msg := range changed {
		b.processMessage(tradeCtx, msg)
	}

	b.emitStatus()
	return nil
}

func (b *SignalBot) processMessage(ctx context.Context, msg types.RawMessage) {
	sig := parser.Parse(msg.Text)
	if sig == nil {
		b.metrics.RecordSignal("none")
		b.log.Debug("Message %s carries no signal", msg.ID)
		return
	}

	kind := "open"
	if _, ok := sig.(types.CloseSignal); ok {
		kind = "close"
	}
	b.metrics.RecordSignal(kind)
	b.log.Info("Signal in message %s: %s", msg.ID, parser.Describe(sig))
	fmt.Fprintf(b.console, "\n📨 %s\n", parser.Describe(sig))

	b.handleTransition(b.machine.Apply(ctx, sig))
}

func (b *SignalBot) emitStatus() {
	line := b.machine.StatusLine()
	b.log.Status("%s", line)
	fmt.Fprintf(b.console, "\r[%s] Status: %-70s", b.now().Format("15:04:05"), line)
}

// handleTransition fans a position event out to metrics, error stats,
// notifications, the journal and the console.
func (b *SignalBot) handleTransition(tr position.Transition) {
	if tr.Outcome == position.OutcomeUnchanged {
		return
	}
	b.metrics.RecordTransition(string(tr.Outcome))
	if tr.Changed() {
		_, active := b.machine.Active()
		b.metrics.SetActiveTrade(active)
	}

	switch tr.Outcome {
	case position.OutcomeOpened:
		b.metrics.RecordOrder(b.exchangeName, string(exchange.EntrySide(tr.Trade.Direction)))
		b.printTradeTable("TRADE OPENED", *tr.Trade, "")
		b.notify(notifications.LevelSuccess, fmt.Sprintf("Opened %s %s\nEntry %g | SL %g | Qty %g",
			tr.Trade.Asset, tr.Trade.Direction, tr.Trade.Entry, tr.Trade.StopLoss, tr.Trade.Quantity))
		if tr.Err != nil {
			b.recordError(boterrors.NewExecutionError("place_order", tr.Err))
			fmt.Fprintf(b.console, "\n⚠️ %v\n", tr.Err)
			b.notify(notifications.LevelWarning, tr.Err.Error())
		}
		b.record(tr)

	case position.OutcomeClosed:
		b.metrics.RecordOrder(b.exchangeName, string(exitSide(tr.Trade.Direction)))
		b.printTradeTable("TRADE CLOSED", *tr.Trade, tr.Reason)
		msg := fmt.Sprintf("Closed %s %s (%s)", tr.Trade.Asset, tr.Trade.Direction, tr.Reason)
		if tr.Err != nil {
			msg += fmt.Sprintf("\nclose call failed: %v", tr.Err)
			b.recordError(boterrors.NewExecutionError("close_position", tr.Err))
		}
		b.notify(notifications.LevelInfo, msg)
		b.record(tr)

	case position.OutcomeReconciled:
		b.printTradeTable("POSITION CLOSED ON EXCHANGE", *tr.Trade, tr.Reason)
		b.notify(notifications.LevelInfo, tr.Reason)
		b.record(tr)

	case position.OutcomeSizingRejected:
		b.recordError(boterrors.WrapError(tr.Err, boterrors.ErrorCategorySizing, "risk", "quantity"))
		fmt.Fprintf(b.console, "\n⚠️ %s: %v\n", tr.Reason, tr.Err)
		b.notify(notifications.LevelWarning, fmt.Sprintf("%s: %v", tr.Reason, tr.Err))

	case position.OutcomeExecutionFailed:
		b.recordError(boterrors.NewExecutionError("place_order", tr.Err))
		fmt.Fprintf(b.console, "\n❌ %s: %v\n", tr.Reason, tr.Err)
		b.notify(notifications.LevelError, fmt.Sprintf("%s: %v", tr.Reason, tr.Err))
		b.record(tr)

	case position.OutcomeCloseFailedKept:
		b.recordError(boterrors.NewExecutionError("close_position", tr.Err))
		fmt.Fprintf(b.console, "\n❌ Close of %s failed, trade kept active: %v\n", tr.Trade.Asset, tr.Err)
		b.notify(notifications.LevelError, fmt.Sprintf("Close of %s failed, trade kept active: %v", tr.Trade.Asset, tr.Err))
		b.record(tr)

	case position.OutcomeReconcileFailed:
		b.recordError(boterrors.NewReconcileError(tr.Err))

	case position.OutcomeIgnoredAlreadyActive, position.OutcomeIgnoredNoActive:
		fmt.Fprintf(b.console, "\nℹ️ %s\n", tr.Reason)
	}
}

// recordError counts err and flags categories that retrying cannot fix
func (b *SignalBot) recordError(err *boterrors.BotError) {
	if err == nil {
		return
	}
	b.errors.RecordError(err)
	if err.IsFatal() {
		b.log.Error("%s error needs operator action: %v", err.Category, err)
		fmt.Fprintf(b.console, "\n🚨 %s error needs operator action: %v\n", err.Category, err)
	}
}

func exitSide(d types.Direction) exchange.OrderSide {
	if exchange.EntrySide(d) == exchange.OrderSideBuy {
		return exchange.OrderSideSell
	}
	return exchange.OrderSideBuy
}

func (b *SignalBot) notify(level, message string) {
	if err := b.notifier.SendAlert(level, message); err != nil {
		b.log.Warning("Notification failed: %v", err)
	}
}

func (b *SignalBot) record(tr position.Transition) {
	if b.journal == nil {
		return
	}

	entry := journal.Entry{Time: tr.At, Event: string(tr.Outcome), Reason: tr.Reason}
	switch {
	case tr.Trade != nil:
		entry.Asset = tr.Trade.Asset
		entry.Direction = string(tr.Trade.Direction)
		entry.Entry = tr.Trade.Entry
		entry.StopLoss = tr.Trade.StopLoss
		entry.TakeProfit = tr.Trade.TakeProfit
		entry.Quantity = tr.Trade.Quantity
	default:
		if open, ok := tr.Signal.(types.OpenSignal); ok {
			entry.Asset = open.Asset
			entry.Direction = string(open.Direction)
			entry.Entry = open.Entry
			entry.StopLoss = open.StopLoss
			entry.TakeProfit = open.TakeProfit
		}
	}
	if tr.Err != nil {
		entry.Reason = fmt.Sprintf("%s: %v", entry.Reason, tr.Err)
	}

	if err := b.journal.Record(entry); err != nil {
		b.log.Warning("Journal write failed: %v", err)
	}
}
