package client

import (
	"context"
	"net/http"
	"sync"

	"github.com/jonwraymond/egress/observe"
	"github.com/jonwraymond/egress/registry"
	"github.com/jonwraymond/egress/resilience"
)

const defaultUserAgent = "egress/1"

// Client is the resilient outbound HTTP client.
//
// Contract:
//   - Concurrency: safe for concurrent use. Calls to different services never
//     contend; calls to the same service share only the breaker and metrics
//     critical sections, never the network call.
//   - Lifecycle: construct once with New and pass it to collaborators. Close
//     releases idle pooled connections.
//   - Errors: callers see *CircuitBreakerOpenError, the last attempt's error
//     unchanged (a transport error or *HTTPStatusError), ErrInvalidRequest,
//     or ctx.Err() after cancellation.
type Client struct {
	registry     *registry.Registry
	pool         PoolConfig
	roundTripper http.RoundTripper
	inst         *observe.Instrumentation
	userAgent    string

	transport *http.Transport
	http      *http.Client

	mu       sync.RWMutex
	breakers map[string]*resilience.CircuitBreaker
	metrics  map[string]*RequestMetrics
	limiters map[string]*resilience.RateLimiter
}

// New creates a Client with one pooled transport shared by all services.
func New(opts ...Option) *Client {
	c := &Client{
		registry:  registry.Default(),
		pool:      DefaultPoolConfig(),
		inst:      observe.NopInstrumentation(),
		userAgent: defaultUserAgent,
		breakers:  make(map[string]*resilience.CircuitBreaker),
		metrics:   make(map[string]*RequestMetrics),
		limiters:  make(map[string]*resilience.RateLimiter),
	}
	for _, opt := range opts {
		opt(c)
	}

	rt := c.roundTripper
	if rt == nil {
		c.transport = newTransport(c.pool.withDefaults())
		rt = c.transport
	}
	c.http = &http.Client{Transport: rt}
	return c
}

// Registry returns the client's service registry.
func (c *Client) Registry() *registry.Registry {
	return c.registry
}

// Logger returns the client's logger, for collaborators built on the client.
func (c *Client) Logger() observe.Logger {
	return c.inst.Logger()
}

// Close releases idle connections of the pooled transport.
func (c *Client) Close() {
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodGet, url, opts...)
}

// Post issues a POST request.
func (c *Client) Post(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPost, url, opts...)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPut, url, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodDelete, url, opts...)
}

// breakerFor returns the service's breaker, creating it on first use.
func (c *Client) breakerFor(service string) *resilience.CircuitBreaker {
	c.mu.RLock()
	cb, ok := c.breakers[service]
	c.mu.RUnlock()
	if ok {
		return cb
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, ok = c.breakers[service]; ok {
		return cb
	}
	cb = resilience.NewCircuitBreaker(
		c.registry.PoliciesFor(service).Breaker,
		resilience.OnStateChange(c.onStateChange(service)),
	)
	c.breakers[service] = cb
	return cb
}

func (c *Client) onStateChange(service string) func(from, to resilience.State) {
	return func(from, to resilience.State) {
		ctx := context.Background()
		c.inst.Metrics().RecordTransition(ctx, service, from.String(), to.String())
		fields := []observe.Field{
			observe.F("service", service),
			observe.F("from", from.String()),
			observe.F("to", to.String()),
		}
		if to == resilience.StateOpen {
			c.inst.Logger().Warn(ctx, "circuit breaker opened", fields...)
			return
		}
		c.inst.Logger().Info(ctx, "circuit breaker state changed", fields...)
	}
}

// metricsFor returns the service's metrics, creating them on first use.
func (c *Client) metricsFor(service string) *RequestMetrics {
	c.mu.RLock()
	m, ok := c.metrics[service]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok = c.metrics[service]; ok {
		return m
	}
	m = &RequestMetrics{}
	c.metrics[service] = m
	return m
}

// limiterFor returns the service's rate limiter; nil when pacing is disabled.
func (c *Client) limiterFor(service string, policy resilience.RateLimitPolicy) *resilience.RateLimiter {
	if !policy.Enabled() {
		return nil
	}

	c.mu.RLock()
	rl, ok := c.limiters[service]
	c.mu.RUnlock()
	if ok {
		return rl
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rl, ok = c.limiters[service]; ok {
		return rl
	}
	rl = resilience.NewRateLimiter(policy)
	c.limiters[service] = rl
	return rl
}
