package services

import (
	"sync"
	"time"

	"vidtube/internal/core/domain"
	"vidtube/internal/core/ports"
)

// MetricsService keeps in-process counters for the relationship core and
// forwards every observation to the attached sinks.
type MetricsService struct {
	mu sync.RWMutex

	toggles         map[domain.EdgeKind]map[domain.ToggleOutcome]int64
	conflicts       map[domain.EdgeKind]int64
	aggregations    map[string]int64
	aggregationTime map[string]time.Duration
	cleanupFailures int64

	sinks []ports.MetricsSink
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Toggles         map[domain.EdgeKind]map[domain.ToggleOutcome]int64 `json:"toggles"`
	Conflicts       map[domain.EdgeKind]int64                          `json:"conflicts"`
	Aggregations    map[string]int64                                   `json:"aggregations"`
	AverageLatency  map[string]time.Duration                           `json:"average_latency"`
	CleanupFailures int64                                              `json:"cleanup_failures"`
	Timestamp       time.Time                                          `json:"timestamp"`
}

func NewMetricsService(sinks ...ports.MetricsSink) *MetricsService {
	return &MetricsService{
		toggles:         make(map[domain.EdgeKind]map[domain.ToggleOutcome]int64),
		conflicts:       make(map[domain.EdgeKind]int64),
		aggregations:    make(map[string]int64),
		aggregationTime: make(map[string]time.Duration),
		sinks:           sinks,
	}
}

func (m *MetricsService) RecordToggle(kind domain.EdgeKind, outcome domain.ToggleOutcome) {
	m.mu.Lock()
	byOutcome, ok := m.toggles[kind]
	if !ok {
		byOutcome = make(map[domain.ToggleOutcome]int64)
		m.toggles[kind] = byOutcome
	}
	byOutcome[outcome]++
	m.mu.Unlock()

	for _, s := range m.sinks {
		s.RecordToggle(kind, outcome)
	}
}

func (m *MetricsService) RecordToggleConflict(kind domain.EdgeKind) {
	m.mu.Lock()
	m.conflicts[kind]++
	m.mu.Unlock()

	for _, s := range m.sinks {
		s.RecordToggleConflict(kind)
	}
}

func (m *MetricsService) RecordAggregation(op string, d time.Duration) {
	m.mu.Lock()
	m.aggregations[op]++
	m.aggregationTime[op] += d
	m.mu.Unlock()

	for _, s := range m.sinks {
		s.RecordAggregation(op, d)
	}
}

func (m *MetricsService) RecordAssetCleanupFailure() {
	m.mu.Lock()
	m.cleanupFailures++
	m.mu.Unlock()

	for _, s := range m.sinks {
		s.RecordAssetCleanupFailure()
	}
}

func (m *MetricsService) ToggleCount(kind domain.EdgeKind, outcome domain.ToggleOutcome) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.toggles[kind][outcome]
}

func (m *MetricsService) ConflictCount(kind domain.EdgeKind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conflicts[kind]
}

func (m *MetricsService) Snapshot() *MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &MetricsSnapshot{
		Toggles:         make(map[domain.EdgeKind]map[domain.ToggleOutcome]int64, len(m.toggles)),
		Conflicts:       make(map[domain.EdgeKind]int64, len(m.conflicts)),
		Aggregations:    make(map[string]int64, len(m.aggregations)),
		AverageLatency:  make(map[string]time.Duration, len(m.aggregations)),
		CleanupFailures: m.cleanupFailures,
		Timestamp:       time.Now(),
	}
	for kind, byOutcome := range m.toggles {
		cp := make(map[domain.ToggleOutcome]int64, len(byOutcome))
		for o, n := range byOutcome {
			cp[o] = n
		}
		snap.Toggles[kind] = cp
	}
	for kind, n := range m.conflicts {
		snap.Conflicts[kind] = n
	}
	for op, n := range m.aggregations {
		snap.Aggregations[op] = n
		if n > 0 {
			snap.AverageLatency[op] = m.aggregationTime[op] / time.Duration(n)
		}
	}
	return snap
}

// time an aggregation call; use as defer m.observe(op, time.Now()).
func (m *MetricsService) observe(op string, start time.Time) {
	if m == nil {
		return
	}
	m.RecordAggregation(op, time.Since(start))
}
