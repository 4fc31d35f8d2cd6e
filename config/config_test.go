package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/egress/client"
	"github.com/jonwraymond/egress/registry"
	"github.com/jonwraymond/egress/resilience"
)

const sampleYAML = `
user_agent: acme-research/2
pool:
  max_conns_per_host: 50
  idle_conn_timeout: 30s
defaults:
  retry:
    max_attempts: 4
    min_wait: 500ms
    max_wait: 8s
    exponential_base: 2
services:
  - name: internal-search
    match: ["search.internal.example"]
    headers:
      Authorization: "Bearer ${EGRESS_TEST_TOKEN}"
      X-Price: "$$5"
    retry:
      max_attempts: 2
      min_wait: 100ms
      fail_fast_on_client_error: true
    rate_limit:
      requests_per_second: 5
      burst: 2
  - name: tavily
    headers:
      X-Api-Key: static
    circuit_breaker:
      failure_threshold: 10
      open_duration: 2m
pagination:
  max_pages: 50
observe:
  service_name: research-agent
  logging:
    enabled: true
    level: debug
`

func TestLoadBytes_YAML(t *testing.T) {
	t.Setenv("EGRESS_TEST_TOKEN", "s3cret")

	cfg, err := LoadBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "acme-research/2", cfg.UserAgent)
	assert.Equal(t, 50, cfg.Pool.MaxConnsPerHost)
	assert.Equal(t, 30*time.Second, cfg.Pool.IdleConnTimeout)
	assert.Equal(t, client.DefaultPoolConfig().MaxIdleConns, cfg.Pool.MaxIdleConns, "unset keys keep defaults")

	assert.Equal(t, 4, cfg.Defaults.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Defaults.Retry.MinWait)
	assert.Equal(t, resilience.DefaultTimeoutPolicy(), cfg.Defaults.Timeout)

	require.Len(t, cfg.Services, 2)
	search := cfg.Services[0]
	assert.Equal(t, "Bearer s3cret", search.Headers["Authorization"])
	assert.Equal(t, "$5", search.Headers["X-Price"])
	assert.True(t, search.Retry.FailFastOnClientError)
	assert.Equal(t, 5.0, search.RateLimit.RequestsPerSecond)

	assert.Equal(t, 50, cfg.Pagination.MaxPages)
	assert.Equal(t, "research-agent", cfg.Observe.ServiceName)
	assert.Equal(t, "debug", cfg.Observe.Logging.Level)
}

func TestLoadBytes_MissingEnv(t *testing.T) {
	_, err := LoadBytes([]byte(sampleYAML), FormatYAML)
	require.ErrorIs(t, err, ErrMissingEnv)
	assert.Contains(t, err.Error(), "EGRESS_TEST_TOKEN")
}

func TestLoadBytes_JSONAndEmpty(t *testing.T) {
	cfg, err := LoadBytes([]byte(`{"disable_builtin": true, "defaults": {"timeout": {"read": "2s"}}}`), FormatJSON)
	require.NoError(t, err)
	assert.True(t, cfg.DisableBuiltin)
	assert.Equal(t, 2*time.Second, cfg.Defaults.Timeout.Read)

	cfg, err = LoadBytes(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadBytes_Errors(t *testing.T) {
	_, err := LoadBytes([]byte("a: b"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadBytes([]byte("defaults: [unclosed"), FormatYAML)
	assert.ErrorIs(t, err, ErrParseFailed)

	_, err = LoadBytes([]byte(`defaults: {retry: {min_wait: 10s, max_wait: 1s}}`), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, resilience.ErrInvalidPolicy)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "egress.yml")
	require.NoError(t, os.WriteFile(path, []byte("user_agent: from-file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.UserAgent)

	_, err = Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)
	_, err = Load(filepath.Join(dir, "egress.toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unnamed service", func(c *Config) { c.Services = []Service{{}} }},
		{"reserved name", func(c *Config) { c.Services = []Service{{Name: registry.DefaultService}} }},
		{"duplicate", func(c *Config) { c.Services = []Service{{Name: "a"}, {Name: "a"}} }},
		{"negative pool", func(c *Config) { c.Pool.MaxIdleConns = -1 }},
		{"negative pages", func(c *Config) { c.Pagination.MaxPages = -1 }},
		{"observe", func(c *Config) { c.Observe.ServiceName = "" }},
		{"service policy", func(c *Config) {
			c.Services = []Service{{Name: "a", Policies: registry.Policies{Retry: resilience.RetryPolicy{MaxAttempts: -1}}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestConfig_Registry(t *testing.T) {
	t.Setenv("EGRESS_TEST_TOKEN", "tok")
	cfg, err := LoadBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	reg, err := cfg.Registry()
	require.NoError(t, err)

	assert.Equal(t, "internal-search", reg.Classify("https://search.internal.example/q"))
	assert.Equal(t, "qichacha", reg.Classify("https://api.qcc.com/x"), "built-ins kept")

	search := reg.PoliciesFor("internal-search")
	assert.Equal(t, 2, search.Retry.MaxAttempts)
	assert.Equal(t, cfg.Defaults.Timeout, search.Timeout, "unset policies come from defaults")
	assert.Equal(t, 2, search.RateLimit.Burst)

	tavily, ok := reg.Lookup("tavily")
	require.True(t, ok)
	assert.Equal(t, "tavily", reg.Classify("https://api.tavily.com/search"), "builtin match kept")
	assert.Equal(t, 10, tavily.Policies.Breaker.FailureThreshold)
	assert.Equal(t, 2*time.Minute, tavily.Policies.Breaker.OpenDuration)
	assert.Equal(t, "static", tavily.Headers["X-Api-Key"])

	assert.Equal(t, 4, reg.PoliciesFor("unknown").Retry.MaxAttempts)
}

func TestConfig_RegistryWithoutBuiltin(t *testing.T) {
	cfg := Default()
	cfg.DisableBuiltin = true
	cfg.Services = []Service{{Name: "only", Match: []string{"only.example"}}}

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, reg.Services())
	assert.Equal(t, registry.DefaultService, reg.Classify("https://api.qcc.com"))
}

func TestConfig_Options(t *testing.T) {
	cfg := Default()
	cfg.UserAgent = "ua"
	reg, err := cfg.Registry()
	require.NoError(t, err)

	assert.Len(t, cfg.ClientOptions(reg, nil), 4)
	assert.Len(t, cfg.PaginateOptions(), 1)

	c := client.New(cfg.ClientOptions(reg, nil)...)
	defer c.Close()
	assert.Same(t, reg, c.Registry())
}
