package backend

import (
	"sort"
	"sync"
	"time"
)

// Metrics records one entry per backend round trip.
type Metrics interface {
	RecordRequest(endpoint string, duration time.Duration, success bool)
	Snapshot() MetricsSnapshot
}

// EndpointMetrics aggregates calls to one endpoint.
type EndpointMetrics struct {
	Endpoint  string
	Total     int64
	Success   int64
	Failed    int64
	TotalTime time.Duration
	MaxTime   time.Duration
}

// MetricsSnapshot is a point-in-time copy, sorted by endpoint.
type MetricsSnapshot struct {
	Endpoints []EndpointMetrics
}

// Total sums calls across endpoints.
func (s MetricsSnapshot) Total() int64 {
	var n int64
	for _, e := range s.Endpoints {
		n += e.Total
	}
	return n
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordRequest(string, time.Duration, bool) {}
func (NoOpMetrics) Snapshot() MetricsSnapshot                 { return MetricsSnapshot{} }

// InMemoryMetrics is a thread-safe Metrics implementation.
type InMemoryMetrics struct {
	mu        sync.Mutex
	endpoints map[string]*EndpointMetrics
}

// NewInMemoryMetrics returns an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{endpoints: make(map[string]*EndpointMetrics)}
}

func (m *InMemoryMetrics) RecordRequest(endpoint string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.endpoints[endpoint]
	if !ok {
		e = &EndpointMetrics{Endpoint: endpoint}
		m.endpoints[endpoint] = e
	}
	e.Total++
	if success {
		e.Success++
	} else {
		e.Failed++
	}
	e.TotalTime += duration
	if duration > e.MaxTime {
		e.MaxTime = duration
	}
}

func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := MetricsSnapshot{Endpoints: make([]EndpointMetrics, 0, len(m.endpoints))}
	for _, e := range m.endpoints {
		out.Endpoints = append(out.Endpoints, *e)
	}
	sort.Slice(out.Endpoints, func(i, j int) bool {
		return out.Endpoints[i].Endpoint < out.Endpoints[j].Endpoint
	})
	return out
}
