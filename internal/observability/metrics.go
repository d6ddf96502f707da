package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	flushCount   map[string]int64
	flushErrors  map[string]int64
	recordsSaved map[string]int64
	connections  map[string]int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests     map[string]int64 `json:"requests"`
	Errors       map[string]int64 `json:"errors"`
	Flushes      map[string]int64 `json:"flushes"`
	FlushErrors  map[string]int64 `json:"flush_errors"`
	RecordsSaved map[string]int64 `json:"records_saved"`
	Connections  map[string]int64 `json:"connections"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		flushCount:   make(map[string]int64),
		flushErrors:  make(map[string]int64),
		recordsSaved: make(map[string]int64),
		connections:  make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordFlush counts a physical persistence write for an entity class.
func (m *Metrics) RecordFlush(class string, records int, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushCount[class]++
	if err != nil {
		m.flushErrors[class]++
		return
	}
	m.recordsSaved[class] += int64(records)
}

// RecordConnection adjusts the live connection gauge for a role.
func (m *Metrics) RecordConnection(role string, delta int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[role] += delta
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Requests:     copyCounts(m.requestCount),
		Errors:       copyCounts(m.errorCount),
		Flushes:      copyCounts(m.flushCount),
		FlushErrors:  copyCounts(m.flushErrors),
		RecordsSaved: copyCounts(m.recordsSaved),
		Connections:  copyCounts(m.connections),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
