// Package health tracks rolling per-provider reliability metrics.
// Pure bookkeeping: the monitor never makes external calls.
package health

import (
	"sync"
	"time"

	"rwa-swap-engine/internal/domain"
)

// Default tuning values.
const (
	DefaultWindowSize  = 50   // attempts kept per provider
	DefaultUptimeDecay = 0.95 // weight of history vs the newest attempt
)

type attempt struct {
	success bool
	latency time.Duration
}

type providerState struct {
	window []attempt // ring buffer of recent attempts
	next   int       // next write position
	filled bool      // window has wrapped at least once
	uptime float64   // exponentially decayed availability
	seen   bool      // at least one attempt recorded
}

// Monitor keeps rolling success rate, average latency and decayed uptime
// per provider. Metrics are approximate by design; a plain mutex is enough.
type Monitor struct {
	mu          sync.RWMutex
	providers   map[string]*providerState
	windowSize  int
	uptimeDecay float64
}

// NewMonitor creates a monitor with default window and decay.
func NewMonitor() *Monitor {
	return NewMonitorWithWindow(DefaultWindowSize, DefaultUptimeDecay)
}

// NewMonitorWithWindow creates a monitor with explicit tuning.
func NewMonitorWithWindow(windowSize int, uptimeDecay float64) *Monitor {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if uptimeDecay <= 0 || uptimeDecay >= 1 {
		uptimeDecay = DefaultUptimeDecay
	}
	return &Monitor{
		providers:   make(map[string]*providerState),
		windowSize:  windowSize,
		uptimeDecay: uptimeDecay,
	}
}

// RecordAttempt records one provider call outcome.
func (m *Monitor) RecordAttempt(provider string, success bool, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.providers[provider]
	if !ok {
		st = &providerState{
			window: make([]attempt, m.windowSize),
			uptime: 1.0,
		}
		m.providers[provider] = st
	}

	st.window[st.next] = attempt{success: success, latency: latency}
	st.next++
	if st.next == m.windowSize {
		st.next = 0
		st.filled = true
	}

	observed := 0.0
	if success {
		observed = 1.0
	}
	if st.seen {
		st.uptime = st.uptime*m.uptimeDecay + observed*(1-m.uptimeDecay)
	} else {
		st.uptime = observed
		st.seen = true
	}
}

// Snapshot returns current metrics for a provider. Unknown providers report
// neutral values so new providers are not penalized in routing scores.
func (m *Monitor) Snapshot(provider string) domain.HealthSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.providers[provider]
	if !ok || !st.seen {
		return domain.HealthSnapshot{
			Provider:    provider,
			SuccessRate: 1.0,
			Uptime:      1.0,
		}
	}

	count := st.next
	if st.filled {
		count = m.windowSize
	}

	var successes int
	var totalLatency time.Duration
	for i := 0; i < count; i++ {
		if st.window[i].success {
			successes++
		}
		totalLatency += st.window[i].latency
	}

	return domain.HealthSnapshot{
		Provider:     provider,
		SuccessRate:  float64(successes) / float64(count),
		AvgLatencyMs: float64(totalLatency.Milliseconds()) / float64(count),
		Uptime:       st.uptime,
		Attempts:     count,
	}
}

// Providers returns the names of all providers with recorded attempts.
func (m *Monitor) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	return names
}
