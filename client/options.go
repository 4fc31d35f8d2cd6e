package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jonwraymond/egress/observe"
	"github.com/jonwraymond/egress/registry"
	"github.com/jonwraymond/egress/resilience"
)

// Option configures a Client.
type Option func(*Client)

// WithRegistry sets the service registry.
// Default: registry.Default()
func WithRegistry(r *registry.Registry) Option {
	return func(c *Client) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithPool sets the shared connection pool limits.
func WithPool(p PoolConfig) Option {
	return func(c *Client) {
		c.pool = p
	}
}

// WithRoundTripper replaces the pooled transport, e.g. for proxies or tests.
// The connect timeout of TimeoutPolicy is then up to rt.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.roundTripper = rt
	}
}

// WithInstrumentation sets the tracing, metrics and logging hooks.
// Default: observe.NopInstrumentation()
func WithInstrumentation(inst *observe.Instrumentation) Option {
	return func(c *Client) {
		if inst != nil {
			c.inst = inst
		}
	}
}

// WithUserAgent sets the User-Agent sent when the caller does not set one.
// Default: "egress/1"
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// requestConfig holds the per-call options.
type requestConfig struct {
	service    string
	timeout    *resilience.TimeoutPolicy
	retry      *resilience.RetryPolicy
	useBreaker bool
	header     http.Header
	query      url.Values
	body       []byte
	err        error
}

// RequestOption configures one call.
type RequestOption func(*requestConfig)

func newRequestConfig(opts []RequestOption) *requestConfig {
	rc := &requestConfig{useBreaker: true, header: make(http.Header)}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// WithService names the service explicitly instead of classifying the URL.
func WithService(name string) RequestOption {
	return func(rc *requestConfig) {
		rc.service = name
	}
}

// WithTimeout overrides the service's timeout policy for this call.
func WithTimeout(p resilience.TimeoutPolicy) RequestOption {
	return func(rc *requestConfig) {
		p = p.WithDefaults()
		rc.timeout = &p
	}
}

// WithRetry overrides the service's retry policy for this call.
func WithRetry(p resilience.RetryPolicy) RequestOption {
	return func(rc *requestConfig) {
		p = p.WithDefaults()
		rc.retry = &p
	}
}

// WithoutCircuitBreaker bypasses the service's breaker for this call.
// Metrics are still recorded.
func WithoutCircuitBreaker() RequestOption {
	return func(rc *requestConfig) {
		rc.useBreaker = false
	}
}

// WithHeader sets a request header, overriding static service headers.
func WithHeader(key, value string) RequestOption {
	return func(rc *requestConfig) {
		rc.header.Set(key, value)
	}
}

// WithQuery merges query parameters into the URL. Keys present in both
// replace the URL's values.
func WithQuery(q url.Values) RequestOption {
	return func(rc *requestConfig) {
		if rc.query == nil {
			rc.query = make(url.Values, len(q))
		}
		for k, v := range q {
			rc.query[k] = append([]string(nil), v...)
		}
	}
}

// WithBody sends body verbatim. It is replayed on every attempt.
func WithBody(body []byte) RequestOption {
	return func(rc *requestConfig) {
		rc.body = body
	}
}

// WithJSON encodes v as the request body and sets Content-Type.
func WithJSON(v any) RequestOption {
	return func(rc *requestConfig) {
		data, err := json.Marshal(v)
		if err != nil {
			rc.err = fmt.Errorf("%w: encode json body: %w", ErrInvalidRequest, err)
			return
		}
		rc.body = data
		if rc.header.Get("Content-Type") == "" {
			rc.header.Set("Content-Type", "application/json")
		}
	}
}
