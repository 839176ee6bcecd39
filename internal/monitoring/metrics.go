package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's Prometheus collectors on a dedicated registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles          prometheus.Counter
	cycleErrors     *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	messagesChanged prometheus.Counter
	signals         *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	orders          *prometheus.CounterVec
	activeTrade     prometheus.Gauge
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signal_bot_cycles_total",
			Help: "Total number of polling cycles run",
		}),
		cycleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_bot_cycle_errors_total",
				Help: "Errors caught by the polling loop",
			},
			[]string{"category"},
		),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signal_bot_cycle_duration_seconds",
			Help:    "Duration of a polling cycle",
			Buckets: prometheus.DefBuckets,
		}),
		messagesChanged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signal_bot_messages_changed_total",
			Help: "New or edited messages seen after the baseline",
		}),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_bot_signals_total",
				Help: "Parsed messages by signal kind",
			},
			[]string{"kind"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_bot_transitions_total",
				Help: "Position events by outcome",
			},
			[]string{"outcome"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_bot_orders_total",
				Help: "Orders sent to the exchange",
			},
			[]string{"exchange", "side"},
		),
		activeTrade: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signal_bot_active_trade",
			Help: "1 while a trade is active",
		}),
	}

	m.registry.MustRegister(
		m.cycles,
		m.cycleErrors,
		m.cycleDuration,
		m.messagesChanged,
		m.signals,
		m.transitions,
		m.orders,
		m.activeTrade,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry, mostly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCycle records one finished cycle
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// RecordCycleError counts an error caught by the loop
func (m *Metrics) RecordCycleError(category string) {
	if m == nil {
		return
	}
	m.cycleErrors.WithLabelValues(category).Inc()
}

// RecordMessagesChanged adds n changed messages
func (m *Metrics) RecordMessagesChanged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.messagesChanged.Add(float64(n))
}

// RecordSignal counts a parse result: open, close or none
func (m *Metrics) RecordSignal(kind string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(kind).Inc()
}

// RecordTransition counts a position event outcome
func (m *Metrics) RecordTransition(outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(outcome).Inc()
}

// RecordOrder counts an order sent to an exchange
func (m *Metrics) RecordOrder(exchange, side string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(exchange, side).Inc()
}

// SetActiveTrade updates the active trade gauge
func (m *Metrics) SetActiveTrade(active bool) {
	if m == nil {
		return
	}
	if active {
		m.activeTrade.Set(1)
		return
	}
	m.activeTrade.Set(0)
}
