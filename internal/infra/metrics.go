package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	pollPasses      atomic.Uint64
	quotesDelivered atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
	fetchErrors     atomic.Uint64
	demoFallbacks   atomic.Uint64
	alertsTriggered atomic.Uint64

	// Pass latency tracking
	passSumNs atomic.Int64
	passCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	degraded          atomic.Int32 // 1 = degraded, 0 = healthy
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordPass records one completed polling pass and its duration.
func (m *Metrics) RecordPass(d time.Duration) {
	m.pollPasses.Add(1)
	m.passSumNs.Add(d.Nanoseconds())
	m.passCount.Add(1)
}

// IncrementQuotesDelivered counts a quote handed to the fan-out.
func (m *Metrics) IncrementQuotesDelivered() { m.quotesDelivered.Add(1) }

// IncrementCacheHits counts a response served from the quote cache.
func (m *Metrics) IncrementCacheHits() { m.cacheHits.Add(1) }

// IncrementCacheMisses counts a request that had to go to the network.
func (m *Metrics) IncrementCacheMisses() { m.cacheMisses.Add(1) }

// IncrementFetchErrors counts a failed provider call.
func (m *Metrics) IncrementFetchErrors() { m.fetchErrors.Add(1) }

// IncrementDemoFallbacks counts a synthetic substitution.
func (m *Metrics) IncrementDemoFallbacks() { m.demoFallbacks.Add(1) }

// IncrementAlertsTriggered counts a fired price alert.
func (m *Metrics) IncrementAlertsTriggered() { m.alertsTriggered.Add(1) }

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// SetDegraded records whether the market data session is degraded.
func (m *Metrics) SetDegraded(degraded bool) {
	if degraded {
		m.degraded.Store(1)
	} else {
		m.degraded.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	PollPasses        uint64    `json:"poll_passes"`
	QuotesDelivered   uint64    `json:"quotes_delivered"`
	CacheHits         uint64    `json:"cache_hits"`
	CacheMisses       uint64    `json:"cache_misses"`
	FetchErrors       uint64    `json:"fetch_errors"`
	DemoFallbacks     uint64    `json:"demo_fallbacks"`
	AlertsTriggered   uint64    `json:"alerts_triggered"`
	AvgPassNs         int64     `json:"avg_pass_ns"`
	ActiveConnections int32     `json:"active_connections"`
	Degraded          bool      `json:"degraded"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgPass int64
	count := m.passCount.Load()
	if count > 0 {
		avgPass = m.passSumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		PollPasses:        m.pollPasses.Load(),
		QuotesDelivered:   m.quotesDelivered.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
		FetchErrors:       m.fetchErrors.Load(),
		DemoFallbacks:     m.demoFallbacks.Load(),
		AlertsTriggered:   m.alertsTriggered.Load(),
		AvgPassNs:         avgPass,
		ActiveConnections: m.activeConnections.Load(),
		Degraded:          m.degraded.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.pollPasses.Store(0)
	m.quotesDelivered.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.fetchErrors.Store(0)
	m.demoFallbacks.Store(0)
	m.alertsTriggered.Store(0)
	m.passSumNs.Store(0)
	m.passCount.Store(0)
	m.activeConnections.Store(0)
	m.degraded.Store(0)
}
