package bot

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/signal-relay-bot/internal/errors"
	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
	"github.com/ducminhle1904/signal-relay-bot/internal/exchange/adapters"
	"github.com/ducminhle1904/signal-relay-bot/internal/journal"
	"github.com/ducminhle1904/signal-relay-bot/internal/monitoring"
	"github.com/ducminhle1904/signal-relay-bot/internal/position"
	"github.com/ducminhle1904/signal-relay-bot/internal/risk"
	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

const ethSignal = "ETH\nEntry: 2400\nStop Loss: 2350\nTake Profit: 2700"

type fakeFeed struct {
	mu       sync.Mutex
	messages []types.RawMessage
	err      error
	panicMsg string
	calls    int
}

func (f *fakeFeed) Snapshot(ctx context.Context) ([]types.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]types.RawMessage(nil), f.messages...), nil
}

func (f *fakeFeed) Name() string { return "fake" }
func (f *fakeFeed) Close() error { return nil }

func (f *fakeFeed) post(id, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, types.RawMessage{ID: id, Text: text})
}

func (f *fakeFeed) snapshotCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// countingExecutor wraps the paper exchange and counts calls
type countingExecutor struct {
	*adapters.PaperExchange
	mu     sync.Mutex
	places int
	closes int
}

func (c *countingExecutor) PlaceOrder(ctx context.Context, req exchange.OrderRequest) error {
	c.mu.Lock()
	c.places++
	c.mu.Unlock()
	return c.PaperExchange.PlaceOrder(ctx, req)
}

func (c *countingExecutor) ClosePosition(ctx context.Context, asset string) error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	return c.PaperExchange.ClosePosition(ctx, asset)
}

type memoryJournal struct {
	entries []journal.Entry
}

func (m *memoryJournal) Record(e journal.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

type recordingNotifier struct {
	alerts []string
}

func (r *recordingNotifier) SendAlert(level, message string) error {
	r.alerts = append(r.alerts, level+": "+message)
	return nil
}

type fixture struct {
	bot      *SignalBot
	feed     *fakeFeed
	exec     *countingExecutor
	journal  *memoryJournal
	notifier *recordingNotifier
	errors   *boterrors.ErrorStats
	console  *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		feed:     &fakeFeed{messages: []types.RawMessage{{ID: "m0", Text: "gm everyone"}}},
		exec:     &countingExecutor{PaperExchange: adapters.NewPaperExchange()},
		journal:  &memoryJournal{},
		notifier: &recordingNotifier{},
		errors:   boterrors.NewErrorStats(10),
		console:  &bytes.Buffer{},
	}
	b, err := New(Options{
		Feed:        f.feed,
		Executor:    f.exec,
		Sizer:       risk.NewFixedRiskSizer(100, 0),
		ClosePolicy: position.ClosePolicyUnconditional,
		Interval:    10 * time.Millisecond,
		Metrics:     monitoring.NewMetrics(),
		Health:      monitoring.NewHealthChecker(nil, time.Minute, 0),
		Errors:      f.errors,
		Notifier:    f.notifier,
		Journal:     f.journal,
		Console:     f.console,
	})
	require.NoError(t, err)
	f.bot = b
	return f
}

func TestEndToEndOpenThenClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bot.RunCycle(ctx))
	assert.Equal(t, "Inactive", f.bot.Machine().StatusLine())

	f.feed.post("m1", ethSignal)
	require.NoError(t, f.bot.RunCycle(ctx))

	trade, ok := f.bot.Machine().Active()
	require.True(t, ok)
	assert.Equal(t, "ETH", trade.Asset)
	assert.Equal(t, types.DirectionLong, trade.Direction)
	assert.InDelta(t, 2.0, trade.Quantity, 1e-9)
	require.NotNil(t, trade.TakeProfit)
	assert.Equal(t, 2700.0, *trade.TakeProfit)
	assert.Equal(t, []string{"ETH"}, f.exec.OpenAssets())
	assert.Contains(t, f.console.String(), "TRADE OPENED")

	f.feed.post("m2", "Closed it here, 2.5R booked")
	require.NoError(t, f.bot.RunCycle(ctx))

	_, ok = f.bot.Machine().Active()
	assert.False(t, ok)
	assert.Equal(t, 1, f.exec.places)
	assert.Equal(t, 1, f.exec.closes)
	assert.Empty(t, f.exec.OpenAssets())

	require.Len(t, f.journal.entries, 2)
	assert.Equal(t, string(position.OutcomeOpened), f.journal.entries[0].Event)
	assert.Equal(t, string(position.OutcomeClosed), f.journal.entries[1].Event)
	assert.Len(t, f.notifier.alerts, 2)
}

func TestBaselineMessagesAreNotTraded(t *testing.T) {
	f := newFixture(t)
	f.feed.post("m1", ethSignal)

	require.NoError(t, f.bot.RunCycle(context.Background()))
	_, ok := f.bot.Machine().Active()
	assert.False(t, ok)
	assert.Zero(t, f.exec.places)
	assert.Contains(t, f.console.String(), "Baseline captured")
}

func TestUnchangedSnapshotIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.bot.RunCycle(ctx))

	f.feed.post("m1", ethSignal)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.bot.RunCycle(ctx))
	}

	assert.Equal(t, 1, f.exec.places)
	assert.Len(t, f.journal.entries, 1)
}

func TestSecondOpenIgnoredWhileActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.bot.RunCycle(ctx))

	f.feed.post("m1", ethSignal)
	f.feed.post("m2", "BTC\nEntry: 60000\nStop Loss: 61000")
	require.NoError(t, f.bot.RunCycle(ctx))

	trade, ok := f.bot.Machine().Active()
	require.True(t, ok)
	assert.Equal(t, "ETH", trade.Asset)
	assert.Equal(t, 1, f.exec.places)
	assert.Contains(t, f.console.String(), "already active")
}

func TestReconcileClearsExternallyClosedTrade(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.bot.RunCycle(ctx))
	f.feed.post("m1", ethSignal)
	require.NoError(t, f.bot.RunCycle(ctx))

	f.exec.MarkClosed("ETH")
	require.NoError(t, f.bot.RunCycle(ctx))

	_, ok := f.bot.Machine().Active()
	assert.False(t, ok)
	assert.Zero(t, f.exec.closes, "reconciliation never calls close")
	require.Len(t, f.journal.entries, 2)
	assert.Equal(t, string(position.OutcomeReconciled), f.journal.entries[1].Event)
}

func TestFeedErrorIsReturnedAndStateKept(t *testing.T) {
	f := newFixture(t)
	f.feed.err = fmt.Errorf("element not found")

	err := f.bot.RunCycle(context.Background())
	require.Error(t, err)

	var botErr *boterrors.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, boterrors.ErrorCategoryFeed, botErr.Category)
	assert.False(t, f.bot.table.Baselined())

	f.bot.runAndReport(context.Background())
	assert.Equal(t, 1, f.errors.Total())
	assert.Contains(t, f.console.String(), "Cycle error")
}

func TestPanicIsRecovered(t *testing.T) {
	f := newFixture(t)
	f.feed.panicMsg = "nil map write"

	var err error
	require.NotPanics(t, func() { err = f.bot.RunCycle(context.Background()) })

	var botErr *boterrors.BotError
	require.ErrorAs(t, err, &botErr)
	assert.Equal(t, boterrors.ErrorCategoryPanic, botErr.Category)
	assert.Contains(t, botErr.Error(), "nil map write")
}

func TestSizingRejectionKeepsInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.bot.RunCycle(ctx))

	// 2 ETH at 2400 is 4800 notional, over the 1000 cap
	f.bot.machine = position.NewMachine(f.exec, risk.NewFixedRiskSizer(100, 1000), position.ClosePolicyUnconditional, nopLogger{})
	f.feed.post("m1", ethSignal)
	require.NoError(t, f.bot.RunCycle(ctx))

	_, ok := f.bot.Machine().Active()
	assert.False(t, ok)
	assert.Zero(t, f.exec.places)
	assert.Equal(t, 1, f.errors.ByCategory()[boterrors.ErrorCategorySizing])
}

func TestRunLoopsUntilCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	require.Eventually(t, func() bool { return f.feed.snapshotCalls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunSurvivesFailingCycles(t *testing.T) {
	f := newFixture(t)
	f.feed.err = fmt.Errorf("browser crashed")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- f.bot.Run(ctx) }()

	require.Eventually(t, func() bool { return f.feed.snapshotCalls() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Feed: &fakeFeed{}, Executor: adapters.NewPaperExchange(), Sizer: risk.NewFixedRiskSizer(100, 0)})
	assert.ErrorContains(t, err, "interval")

	b, err := New(Options{Feed: &fakeFeed{}, Executor: adapters.NewPaperExchange(), Sizer: risk.NewFixedRiskSizer(100, 0), Interval: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "Paper", b.exchangeName)
}

func TestPrintStartupInfo(t *testing.T) {
	f := newFixture(t)
	f.bot.PrintStartupInfo(StartupInfo{Feed: "replay:x.json", Exchange: "Paper", Environment: "paper", RiskAmount: 100, QuoteAsset: "USDT"})
	out := f.console.String()
	assert.Contains(t, out, "SIGNAL BOT INITIALIZATION")
	assert.Contains(t, out, "replay:x.json")
	assert.Contains(t, out, "unconditional")
}

// blockingExecutor holds PlaceOrder until release is closed
type blockingExecutor struct {
	*adapters.PaperExchange
	started chan struct{}
	release chan struct{}
	seen    chan error
}

func (b *blockingExecutor) PlaceOrder(ctx context.Context, req exchange.OrderRequest) error {
	close(b.started)
	<-b.release
	b.seen <- ctx.Err()
	return b.PaperExchange.PlaceOrder(ctx, req)
}

func TestShutdownLetsInFlightOrderFinish(t *testing.T) {
	feed := &fakeFeed{messages: []types.RawMessage{{ID: "m0", Text: "gm"}}}
	exec := &blockingExecutor{
		PaperExchange: adapters.NewPaperExchange(),
		started:       make(chan struct{}),
		release:       make(chan struct{}),
		seen:          make(chan error, 1),
	}
	b, err := New(Options{
		Feed:     feed,
		Executor: exec,
		Sizer:    risk.NewFixedRiskSizer(100, 0),
		Interval: time.Hour,
		Console:  &bytes.Buffer{},
	})
	require.NoError(t, err)

	require.NoError(t, b.RunCycle(context.Background()))
	feed.post("m1", ethSignal)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case <-exec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("order was never placed")
	}
	cancel()
	close(exec.release)

	assert.NoError(t, <-exec.seen, "order call must not see the shutdown")
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	trade, ok := b.Machine().Active()
	require.True(t, ok)
	assert.Equal(t, "ETH", trade.Asset)
	assert.Equal(t, []string{"ETH"}, exec.OpenAssets())
}

func TestCredentialErrorsAreFlagged(t *testing.T) {
	f := newFixture(t)
	f.feed.err = fmt.Errorf("invalid api key")

	f.bot.runAndReport(context.Background())

	assert.Equal(t, 1, f.errors.ByCategory()[boterrors.ErrorCategoryCredentials])
	assert.Contains(t, f.console.String(), "needs operator action")
}

// warningExecutor opens the position but reports the take-profit as missing
type warningExecutor struct {
	*adapters.PaperExchange
}

func (w *warningExecutor) PlaceOrder(ctx context.Context, req exchange.OrderRequest) error {
	if err := w.PaperExchange.PlaceOrder(ctx, req); err != nil {
		return err
	}
	return &exchange.OrderWarning{Message: req.Asset + " opened without take-profit", TakeProfitMissing: true}
}

func TestTakeProfitWarningKeepsTrade(t *testing.T) {
	feed := &fakeFeed{messages: []types.RawMessage{{ID: "m0", Text: "gm"}}}
	notifier := &recordingNotifier{}
	stats := boterrors.NewErrorStats(10)
	console := &bytes.Buffer{}
	b, err := New(Options{
		Feed:     feed,
		Executor: &warningExecutor{PaperExchange: adapters.NewPaperExchange()},
		Sizer:    risk.NewFixedRiskSizer(100, 0),
		Notifier: notifier,
		Errors:   stats,
		Interval: time.Hour,
		Console:  console,
	})
	require.NoError(t, err)

	require.NoError(t, b.RunCycle(context.Background()))
	feed.post("m1", ethSignal)
	require.NoError(t, b.RunCycle(context.Background()))

	trade, ok := b.Machine().Active()
	require.True(t, ok)
	assert.Nil(t, trade.TakeProfit)
	assert.Equal(t, 1, stats.ByCategory()[boterrors.ErrorCategoryExecution])
	assert.Contains(t, console.String(), "opened without take-profit")
	require.Len(t, notifier.alerts, 2)
	assert.Contains(t, notifier.alerts[1], "opened without take-profit")
}
