package monitoring

import (
	"sync"
	"time"

	boterrors "github.com/ducminhle1904/signal-relay-bot/internal/errors"
)

// HealthChecker tracks loop liveness for the /healthz endpoint
type HealthChecker struct {
	mu         sync.RWMutex
	startedAt  time.Time
	lastCycle  time.Time
	lastError  string
	cycles     int64
	staleAfter time.Duration
	errorLimit int
	errors     *boterrors.ErrorStats
	now        func() time.Time
}

// HealthStatus is the JSON body of /healthz
type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LastCycle    time.Time `json:"last_cycle"`
	Cycles       int64     `json:"cycles"`
	Uptime       string    `json:"uptime"`
	RecentErrors int       `json:"recent_errors"`
	TotalErrors  int       `json:"total_errors"`
	LastError    string    `json:"last_error,omitempty"`

	ErrorsByCategory map[string]int `json:"errors_by_category,omitempty"`
}

const (
	StatusHealthy  = "healthy"
	StatusStarting = "starting"
	StatusDegraded = "degraded"
)

// NewHealthChecker creates a checker that reports degraded when no cycle
// finished within staleAfter, or when errorLimit errors were recorded in
// the last staleAfter window.
func NewHealthChecker(stats *boterrors.ErrorStats, staleAfter time.Duration, errorLimit int) *HealthChecker {
	if errorLimit <= 0 {
		errorLimit = 5
	}
	return &HealthChecker{
		startedAt:  time.Now(),
		staleAfter: staleAfter,
		errorLimit: errorLimit,
		errors:     stats,
		now:        time.Now,
	}
}

// RecordCycle marks a finished cycle; err is the cycle error, if any
func (h *HealthChecker) RecordCycle(err error) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCycle = h.now()
	h.cycles++
	if err != nil {
		h.lastError = err.Error()
	}
}

// Check computes the current health
func (h *HealthChecker) Check() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()
	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: now,
		LastCycle: h.lastCycle,
		Cycles:    h.cycles,
		Uptime:    now.Sub(h.startedAt).Truncate(time.Second).String(),
		LastError: h.lastError,
	}
	if h.errors != nil {
		if h.staleAfter > 0 {
			status.RecentErrors = h.errors.RecentSince(now.Add(-h.staleAfter))
		}
		status.TotalErrors = h.errors.Total()
		for category, n := range h.errors.ByCategory() {
			if status.ErrorsByCategory == nil {
				status.ErrorsByCategory = make(map[string]int)
			}
			status.ErrorsByCategory[string(category)] = n
		}
	}

	switch {
	case h.cycles == 0:
		status.Status = StatusStarting
	case h.staleAfter > 0 && now.Sub(h.lastCycle) > h.staleAfter:
		status.Status = StatusDegraded
	case status.RecentErrors >= h.errorLimit:
		status.Status = StatusDegraded
	}
	return status
}
