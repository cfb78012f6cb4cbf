package shardex

import (
	"sync"
	"time"
)

// Monitor tracks lookup latencies and fission activity for Stats output.
type Monitor struct {
	mu              sync.RWMutex
	lookupLatencies []time.Duration
	lookups         int64
	fissions        int64
	startTime       time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{startTime: time.Now()}
}

// RecordLookupLatency records one lookup round trip. Only the last 1000
// measurements are kept.
func (m *Monitor) RecordLookupLatency(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	m.lookupLatencies = append(m.lookupLatencies, latency)
	if len(m.lookupLatencies) > 1000 {
		m.lookupLatencies = m.lookupLatencies[len(m.lookupLatencies)-1000:]
	}
}

// RecordFission counts one executed fission plan.
func (m *Monitor) RecordFission() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fissions++
}

func (m *Monitor) Fissions() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fissions
}

// Metrics returns aggregate performance numbers.
func (m *Monitor) Metrics() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	metrics := map[string]any{
		"uptime":        time.Since(m.startTime).String(),
		"total_lookups": m.lookups,
		"fissions":      m.fissions,
	}
	if len(m.lookupLatencies) > 0 {
		var total time.Duration
		minLatency := m.lookupLatencies[0]
		maxLatency := m.lookupLatencies[0]
		for _, latency := range m.lookupLatencies {
			total += latency
			if latency < minLatency {
				minLatency = latency
			}
			if latency > maxLatency {
				maxLatency = latency
			}
		}
		metrics["avg_lookup_latency_ms"] = float64(total.Nanoseconds()) / float64(len(m.lookupLatencies)) / 1e6
		metrics["min_lookup_latency_ms"] = float64(minLatency.Nanoseconds()) / 1e6
		metrics["max_lookup_latency_ms"] = float64(maxLatency.Nanoseconds()) / 1e6
	}
	return metrics
}
