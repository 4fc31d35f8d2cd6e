package config

import (
	"errors"
	"fmt"
	"maps"

	"github.com/jonwraymond/egress/client"
	"github.com/jonwraymond/egress/observe"
	"github.com/jonwraymond/egress/paginate"
	"github.com/jonwraymond/egress/registry"
	"github.com/jonwraymond/egress/resilience"
)

// Config is the egress configuration file.
//
// Durations are strings such as "5s" or "1m30s".
type Config struct {
	UserAgent string `koanf:"user_agent"`

	Pool client.PoolConfig `koanf:"pool"`

	// Defaults apply to unclassified calls and fill the policies a service
	// leaves unset.
	Defaults registry.Policies `koanf:"defaults"`

	// DisableBuiltin drops the built-in providers from the registry.
	DisableBuiltin bool `koanf:"disable_builtin"`

	// Services are registered after the built-ins. A service named like a
	// built-in one overrides it.
	Services []Service `koanf:"services"`

	Pagination Pagination `koanf:"pagination"`

	Observe observe.Config `koanf:"observe"`
}

// Service configures one upstream.
type Service struct {
	Name    string            `koanf:"name"`
	Match   []string          `koanf:"match"`
	Headers map[string]string `koanf:"headers"`

	registry.Policies `koanf:",squash"`
}

// Pagination configures paginate.Fetcher.
type Pagination struct {
	MaxPages int `koanf:"max_pages"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Pool:       client.DefaultPoolConfig(),
		Defaults:   registry.DefaultPolicies(),
		Pagination: Pagination{MaxPages: paginate.DefaultMaxPages},
		Observe: observe.Config{
			ServiceName: "egress",
			Tracing:     observe.TracingConfig{Exporter: "none", SamplePct: 1},
			Metrics:     observe.MetricsConfig{Exporter: "none"},
			Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
		},
	}
}

// Validate reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Defaults.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("defaults: %w", err))
	}

	names := make(map[string]bool, len(c.Services))
	for i, s := range c.Services {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("services[%d]: name is required", i))
		case s.Name == registry.DefaultService:
			errs = append(errs, fmt.Errorf("services[%d]: %q is reserved, use defaults", i, s.Name))
		case names[s.Name]:
			errs = append(errs, fmt.Errorf("services[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = true
		if err := s.Policies.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("services[%d] %s: %w", i, s.Name, err))
		}
	}

	if c.Pool.MaxConnsPerHost < 0 || c.Pool.MaxIdleConns < 0 || c.Pool.MaxIdleConnsPerHost < 0 {
		errs = append(errs, errors.New("pool: negative connection limit"))
	}
	if c.Pagination.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("pagination: negative max_pages %d", c.Pagination.MaxPages))
	}
	if err := c.Observe.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("observe: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Registry builds the service registry: built-ins unless disabled, then the
// configured services in order.
func (c *Config) Registry() (*registry.Registry, error) {
	var reg *registry.Registry
	if c.DisableBuiltin {
		reg = registry.New(c.Defaults)
	} else {
		reg = registry.Default()
		if err := reg.SetDefaults(c.Defaults); err != nil {
			return nil, err
		}
	}

	for _, s := range c.Services {
		base, ok := reg.Lookup(s.Name)
		if !ok {
			base = registry.Entry{Name: s.Name, Policies: c.Defaults}
		}
		if len(s.Match) > 0 {
			base.Match = s.Match
		}
		if len(s.Headers) > 0 {
			if base.Headers == nil {
				base.Headers = make(map[string]string, len(s.Headers))
			}
			maps.Copy(base.Headers, s.Headers)
		}
		base.Policies = overlay(base.Policies, s.Policies)

		if err := reg.Register(base); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// ClientOptions returns the client options the configuration implies.
// inst may be nil.
func (c *Config) ClientOptions(reg *registry.Registry, inst *observe.Instrumentation) []client.Option {
	opts := []client.Option{
		client.WithRegistry(reg),
		client.WithPool(c.Pool),
		client.WithInstrumentation(inst),
	}
	if c.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(c.UserAgent))
	}
	return opts
}

// PaginateOptions returns the fetcher options the configuration implies.
func (c *Config) PaginateOptions() []paginate.Option {
	return []paginate.Option{paginate.WithMaxPages(c.Pagination.MaxPages)}
}

func (c *Config) expandHeaders() error {
	for i := range c.Services {
		for k, v := range c.Services[i].Headers {
			expanded, err := ExpandEnv(v)
			if err != nil {
				return fmt.Errorf("services[%d] %s header %s: %w", i, c.Services[i].Name, k, err)
			}
			c.Services[i].Headers[k] = expanded
		}
	}
	return nil
}

// overlay replaces each policy of base that override sets.
func overlay(base, override registry.Policies) registry.Policies {
	if override.Timeout != (resilience.TimeoutPolicy{}) {
		base.Timeout = override.Timeout
	}
	if override.Retry != (resilience.RetryPolicy{}) {
		base.Retry = override.Retry
	}
	if b := override.Breaker; b.FailureThreshold != 0 || b.SuccessThreshold != 0 || b.OpenDuration != 0 {
		base.Breaker = b
	}
	if override.RateLimit != (resilience.RateLimitPolicy{}) {
		base.RateLimit = override.RateLimit
	}
	return base
}
