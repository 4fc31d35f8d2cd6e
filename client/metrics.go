package client

import (
	"sync"
	"time"
)

// RequestMetrics holds the counters of one service.
//
// Counters only grow until Reset. Safe for concurrent use.
type RequestMetrics struct {
	mu                sync.Mutex
	total             int64
	successful        int64
	failed            int64
	retried           int64
	rejections        int64
	cumulativeLatency time.Duration
	lastRequest       time.Time
}

// MetricsSnapshot is a point-in-time copy of RequestMetrics with derived rates.
type MetricsSnapshot struct {
	TotalRequests      int64     `json:"total_requests"`
	SuccessfulRequests int64     `json:"successful_requests"`
	FailedRequests     int64     `json:"failed_requests"`
	RetriedRequests    int64     `json:"retried_requests"`
	BreakerRejections  int64     `json:"circuit_breaker_rejections"`
	SuccessRatePercent float64   `json:"success_rate_percent"`
	AvgLatencyMs       float64   `json:"avg_latency_ms"`
	LastRequestTime    time.Time `json:"last_request_time,omitzero"`
}

func (m *RequestMetrics) recordStart(now time.Time) {
	m.mu.Lock()
	m.total++
	m.lastRequest = now
	m.mu.Unlock()
}

func (m *RequestMetrics) recordRetry() {
	m.mu.Lock()
	m.retried++
	m.mu.Unlock()
}

func (m *RequestMetrics) recordSuccess(latency time.Duration) {
	m.mu.Lock()
	m.successful++
	m.cumulativeLatency += latency
	m.mu.Unlock()
}

func (m *RequestMetrics) recordFailure() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *RequestMetrics) recordRejection() {
	m.mu.Lock()
	m.rejections++
	m.mu.Unlock()
}

// Reset zeroes every counter.
func (m *RequestMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.total = 0
	m.successful = 0
	m.failed = 0
	m.retried = 0
	m.rejections = 0
	m.cumulativeLatency = 0
	m.lastRequest = time.Time{}
}

// Snapshot returns the counters and derived rates.
// SuccessRatePercent is 0 without requests; AvgLatencyMs is 0 without successes.
func (m *RequestMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSnapshot{
		TotalRequests:      m.total,
		SuccessfulRequests: m.successful,
		FailedRequests:     m.failed,
		RetriedRequests:    m.retried,
		BreakerRejections:  m.rejections,
		LastRequestTime:    m.lastRequest,
	}
	if m.total > 0 {
		s.SuccessRatePercent = float64(m.successful) / float64(m.total) * 100
	}
	if m.successful > 0 {
		s.AvgLatencyMs = float64(m.cumulativeLatency.Microseconds()) / 1000 / float64(m.successful)
	}
	return s
}
