package observability

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	totalDuration map[string]time.Duration
}

// CounterSample is one counter value keyed by route, method and status/code.
type CounterSample struct {
	Route  string  `json:"route"`
	Method string  `json:"method"`
	Label  string  `json:"label"`
	Count  int64   `json:"count"`
	AvgMS  float64 `json:"avg_ms,omitempty"`
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Requests []CounterSample `json:"requests"`
	Errors   []CounterSample `json:"errors"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		totalDuration: make(map[string]time.Duration),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := counterKey(path, method, strconv.Itoa(status))
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
	m.totalDuration[key] += duration
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := counterKey(path, method, code)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// Snapshot copies the counters sorted by key.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Requests: make([]CounterSample, 0, len(m.requestCount)),
		Errors:   make([]CounterSample, 0, len(m.errorCount)),
	}
	for key, count := range m.requestCount {
		sample := sampleFromKey(key, count)
		if count > 0 {
			sample.AvgMS = float64(m.totalDuration[key].Microseconds()) / 1000 / float64(count)
		}
		snap.Requests = append(snap.Requests, sample)
	}
	for key, count := range m.errorCount {
		snap.Errors = append(snap.Errors, sampleFromKey(key, count))
	}
	sortSamples(snap.Requests)
	sortSamples(snap.Errors)
	return snap
}

func counterKey(path, method, label string) string {
	return path + "|" + method + "|" + label
}

func sampleFromKey(key string, count int64) CounterSample {
	parts := strings.SplitN(key, "|", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return CounterSample{Route: parts[0], Method: parts[1], Label: parts[2], Count: count}
}

func sortSamples(samples []CounterSample) {
	sort.Slice(samples, func(i, j int) bool {
		a, b := samples[i], samples[j]
		if a.Route != b.Route {
			return a.Route < b.Route
		}
		if a.Method != b.Method {
			return a.Method < b.Method
		}
		return a.Label < b.Label
	})
}
