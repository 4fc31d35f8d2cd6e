package client

import (
	"context"
	"net"
	"net/http"
	"time"
)

// PoolConfig bounds the shared connection pool.
type PoolConfig struct {
	// MaxConnsPerHost limits connections per host, including those in use.
	// Default: 100
	MaxConnsPerHost int `json:"max_conns_per_host" koanf:"max_conns_per_host"`

	// MaxIdleConns limits idle keep-alive connections across all hosts.
	// Default: 100
	MaxIdleConns int `json:"max_idle_conns" koanf:"max_idle_conns"`

	// MaxIdleConnsPerHost limits idle keep-alive connections per host.
	// Default: 20
	MaxIdleConnsPerHost int `json:"max_idle_conns_per_host" koanf:"max_idle_conns_per_host"`

	// IdleConnTimeout closes idle connections after this long.
	// Default: 90 seconds
	IdleConnTimeout time.Duration `json:"idle_conn_timeout" koanf:"idle_conn_timeout"`

	// TLSHandshakeTimeout bounds the TLS handshake.
	// Default: 10 seconds
	TLSHandshakeTimeout time.Duration `json:"tls_handshake_timeout" koanf:"tls_handshake_timeout"`
}

// DefaultPoolConfig returns the pool limits used when none are configured.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConnsPerHost:     100,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

func (p PoolConfig) withDefaults() PoolConfig {
	def := DefaultPoolConfig()
	if p.MaxConnsPerHost <= 0 {
		p.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if p.MaxIdleConns <= 0 {
		p.MaxIdleConns = def.MaxIdleConns
	}
	if p.MaxIdleConnsPerHost <= 0 {
		p.MaxIdleConnsPerHost = def.MaxIdleConnsPerHost
	}
	if p.IdleConnTimeout <= 0 {
		p.IdleConnTimeout = def.IdleConnTimeout
	}
	if p.TLSHandshakeTimeout <= 0 {
		p.TLSHandshakeTimeout = def.TLSHandshakeTimeout
	}
	return p
}

type connectTimeoutKey struct{}

// withConnectTimeout makes the dialer bound connection setup for this request.
func withConnectTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, connectTimeoutKey{}, d)
}

func connectTimeout(ctx context.Context) time.Duration {
	d, _ := ctx.Value(connectTimeoutKey{}).(time.Duration)
	return d
}

// newTransport builds the pooled transport shared by every service.
// The connect timeout is taken per request from the dial context.
func newTransport(pool PoolConfig) *http.Transport {
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if d := connectTimeout(ctx); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2:     true,
		MaxConnsPerHost:       pool.MaxConnsPerHost,
		MaxIdleConns:          pool.MaxIdleConns,
		MaxIdleConnsPerHost:   pool.MaxIdleConnsPerHost,
		IdleConnTimeout:       pool.IdleConnTimeout,
		TLSHandshakeTimeout:   pool.TLSHandshakeTimeout,
		ExpectContinueTimeout: time.Second,
	}
}
