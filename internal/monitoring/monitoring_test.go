package monitoring

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	boterrors "github.com/ducminhle1904/signal-relay-bot/internal/errors"
	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

type fakeStatus struct {
	trade  *types.ActiveTrade
	status string
}

func (f fakeStatus) Active() (types.ActiveTrade, bool) {
	if f.trade == nil {
		return types.ActiveTrade{}, false
	}
	return *f.trade, true
}

func (f fakeStatus) StatusLine() string { return f.status }

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	m.ObserveCycle(20 * time.Millisecond)
	m.ObserveCycle(30 * time.Millisecond)
	m.RecordCycleError("FEED")
	m.RecordMessagesChanged(3)
	m.RecordMessagesChanged(0)
	m.RecordSignal("open")
	m.RecordTransition("opened")
	m.RecordOrder("bybit", "Buy")
	m.SetActiveTrade(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycleErrors.WithLabelValues("FEED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.messagesChanged))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.signals.WithLabelValues("open")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues("bybit", "Buy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeTrade))

	m.SetActiveTrade(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.activeTrade))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCycle(time.Second)
		m.RecordCycleError("FEED")
		m.RecordSignal("close")
		m.SetActiveTrade(true)
	})
}

func TestHealthChecker(t *testing.T) {
	stats := boterrors.NewErrorStats(10)
	h := NewHealthChecker(stats, time.Minute, 2)
	now := time.Now()
	h.now = func() time.Time { return now }

	assert.Equal(t, StatusStarting, h.Check().Status)

	h.RecordCycle(nil)
	assert.Equal(t, StatusHealthy, h.Check().Status)

	stats.RecordError(boterrors.NewFeedError("snapshot", fmt.Errorf("page crashed")))
	stats.RecordError(boterrors.NewFeedError("snapshot", fmt.Errorf("page crashed")))
	h.RecordCycle(fmt.Errorf("page crashed"))
	status := h.Check()
	assert.Equal(t, StatusDegraded, status.Status)
	assert.Equal(t, 2, status.RecentErrors)
	assert.Equal(t, 2, status.TotalErrors)
	assert.Equal(t, map[string]int{"FEED": 2}, status.ErrorsByCategory)
	assert.Equal(t, "page crashed", status.LastError)
}

func TestHealthCheckerStale(t *testing.T) {
	h := NewHealthChecker(nil, time.Minute, 0)
	now := time.Now()
	h.now = func() time.Time { return now }
	h.RecordCycle(nil)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, StatusDegraded, h.Check().Status)
}

func TestServerRoutes(t *testing.T) {
	tp := 3100.0
	metrics := NewMetrics()
	health := NewHealthChecker(nil, time.Minute, 0)
	health.RecordCycle(nil)
	srv := NewServer(ServerConfig{
		Metrics: metrics,
		Health:  health,
		Status: fakeStatus{
			trade:  &types.ActiveTrade{Asset: "ETH", Direction: types.DirectionLong, Entry: 3000, StopLoss: 2950, TakeProfit: &tp, Quantity: 2},
			status: "Active ETH LONG",
		},
	})
	assert.Equal(t, ":9090", srv.Addr())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var hs HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hs))
	assert.Equal(t, StatusHealthy, hs.Status)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Active bool              `json:"active"`
		Trade  types.ActiveTrade `json:"trade"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Active)
	assert.Equal(t, "ETH", body.Trade.Asset)
	assert.Equal(t, 2.0, body.Trade.Quantity)

	metrics.RecordSignal("open")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `signal_bot_signals_total{kind="open"} 1`)
}

func TestServerDegradedHealth(t *testing.T) {
	health := NewHealthChecker(nil, time.Minute, 0)
	now := time.Now()
	health.now = func() time.Time { return now }
	health.RecordCycle(nil)
	now = now.Add(time.Hour)

	srv := NewServer(ServerConfig{Health: health})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
