package logging

import (
	"sort"
	"sync"
)

// Metrics is a coarse counter registry shared across the server. It exists
// for cheap operational visibility (diagnostics endpoint, tests), not as a
// metrics pipeline.
type Metrics struct {
	mu     sync.RWMutex
	values map[string]uint64
}

// NewMetrics constructs an empty registry.
func NewMetrics() *Metrics {
	return &Metrics{values: make(map[string]uint64)}
}

// TelemetryAdd increments a counter by delta.
func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	m.values[key] += delta
	m.mu.Unlock()
}

// TelemetryStore overwrites a gauge value.
func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

// TelemetryValue reads one key.
func (m *Metrics) TelemetryValue(key string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key]
}

// TelemetrySnapshot copies every counter, keys sorted for stable output.
func (m *Metrics) TelemetrySnapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for key := range m.values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	snapshot := make(map[string]uint64, len(keys))
	for _, key := range keys {
		snapshot[key] = m.values[key]
	}
	return snapshot
}
