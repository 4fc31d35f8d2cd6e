package client

import (
	"maps"

	"github.com/jonwraymond/egress/resilience"
)

// CircuitBreakerStatus returns the status of one service's breaker.
// ok is false when no call has created a breaker for the service yet.
func (c *Client) CircuitBreakerStatus(service string) (resilience.BreakerStatus, bool) {
	c.mu.RLock()
	cb, ok := c.breakers[service]
	c.mu.RUnlock()
	if !ok {
		return resilience.BreakerStatus{}, false
	}
	return cb.Status(), true
}

// CircuitBreakerStatuses returns the status of every known breaker.
func (c *Client) CircuitBreakerStatuses() map[string]resilience.BreakerStatus {
	breakers := c.snapshotBreakers()
	out := make(map[string]resilience.BreakerStatus, len(breakers))
	for name, cb := range breakers {
		out[name] = cb.Status()
	}
	return out
}

// BreakerStates returns the current state of every known breaker.
func (c *Client) BreakerStates() map[string]resilience.State {
	breakers := c.snapshotBreakers()
	out := make(map[string]resilience.State, len(breakers))
	for name, cb := range breakers {
		out[name] = cb.State()
	}
	return out
}

// Metrics returns a snapshot of one service's metrics.
// ok is false when the service has not been called yet.
func (c *Client) Metrics(service string) (MetricsSnapshot, bool) {
	c.mu.RLock()
	m, ok := c.metrics[service]
	c.mu.RUnlock()
	if !ok {
		return MetricsSnapshot{}, false
	}
	return m.Snapshot(), true
}

// AllMetrics returns snapshots of every service's metrics.
func (c *Client) AllMetrics() map[string]MetricsSnapshot {
	c.mu.RLock()
	metrics := maps.Clone(c.metrics)
	c.mu.RUnlock()

	out := make(map[string]MetricsSnapshot, len(metrics))
	for name, m := range metrics {
		out[name] = m.Snapshot()
	}
	return out
}

// ResetCircuitBreaker discards the service's breaker; the next call creates a
// fresh closed one. It reports whether a breaker existed.
func (c *Client) ResetCircuitBreaker(service string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.breakers[service]; !ok {
		return false
	}
	delete(c.breakers, service)
	return true
}

// ResetMetrics zeroes the service's metrics, or every service's when service
// is empty.
func (c *Client) ResetMetrics(service string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if service == "" {
		for _, m := range c.metrics {
			m.Reset()
		}
		return
	}
	if m, ok := c.metrics[service]; ok {
		m.Reset()
	}
}

func (c *Client) snapshotBreakers() map[string]*resilience.CircuitBreaker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.breakers)
}
