package registry

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"

	"github.com/jonwraymond/egress/resilience"
)

// DefaultService is the service name assigned to URLs no entry matches.
const DefaultService = "default"

// ErrInvalidEntry is returned when an entry cannot be registered.
var ErrInvalidEntry = errors.New("registry: invalid entry")

// Policies is the full set of resilience policies for one service.
type Policies struct {
	Timeout   resilience.TimeoutPolicy        `json:"timeout" koanf:"timeout"`
	Retry     resilience.RetryPolicy          `json:"retry" koanf:"retry"`
	Breaker   resilience.CircuitBreakerPolicy `json:"circuit_breaker" koanf:"circuit_breaker"`
	RateLimit resilience.RateLimitPolicy      `json:"rate_limit" koanf:"rate_limit"`
}

// DefaultPolicies returns the policies applied to the "default" service.
func DefaultPolicies() Policies {
	return Policies{
		Timeout: resilience.DefaultTimeoutPolicy(),
		Retry:   resilience.DefaultRetryPolicy(),
		Breaker: resilience.DefaultCircuitBreakerPolicy(),
	}
}

// WithDefaults fills zero policy fields.
func (p Policies) WithDefaults() Policies {
	p.Timeout = p.Timeout.WithDefaults()
	p.Retry = p.Retry.WithDefaults()
	p.Breaker = p.Breaker.WithDefaults()
	return p
}

// Validate validates every policy in the set.
func (p Policies) Validate() error {
	return errors.Join(
		p.Timeout.Validate(),
		p.Retry.Validate(),
		p.Breaker.Validate(),
		p.RateLimit.Validate(),
	)
}

// Entry declares one external service.
type Entry struct {
	// Name is the service name used for breakers and metrics.
	Name string

	// Match lists identifying URL substrings. Matching is case-insensitive.
	Match []string

	// Policies applies to every call classified to this service.
	Policies Policies

	// Headers are static headers sent with every call to this service.
	// Values are forwarded verbatim.
	Headers map[string]string
}

// Registry maps service names to policies and classifies URLs.
//
// Contract:
//   - Concurrency: safe for concurrent use. Policies returned are values.
//   - Classification is an ordered substring scan; the first entry in
//     declaration order wins.
type Registry struct {
	mu       sync.RWMutex
	entries  []Entry
	index    map[string]int
	defaults Policies
}

// New creates an empty registry whose fallback is the given default set.
func New(defaults Policies) *Registry {
	return &Registry{
		index:    make(map[string]int),
		defaults: defaults.WithDefaults(),
	}
}

// Default returns a registry seeded with the built-in providers.
func Default() *Registry {
	r := New(DefaultPolicies())
	for _, e := range Builtin() {
		_ = r.Register(e)
	}
	return r
}

// Register adds an entry. An entry with an existing name replaces it in place,
// keeping its classification position.
func (r *Registry) Register(e Entry) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEntry)
	}
	if e.Name == DefaultService {
		return fmt.Errorf("%w: %q is reserved, use SetDefaults", ErrInvalidEntry, DefaultService)
	}
	if err := e.Policies.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEntry, e.Name, err)
	}

	match := make([]string, 0, len(e.Match))
	for _, m := range e.Match {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			match = append(match, m)
		}
	}
	e.Match = match
	e.Policies = e.Policies.WithDefaults()
	e.Headers = maps.Clone(e.Headers)

	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[e.Name]; ok {
		r.entries[i] = e
		return nil
	}
	r.index[e.Name] = len(r.entries)
	r.entries = append(r.entries, e)
	return nil
}

// SetDefaults replaces the fallback policy set.
func (r *Registry) SetDefaults(p Policies) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidEntry, DefaultService, err)
	}
	r.mu.Lock()
	r.defaults = p.WithDefaults()
	r.mu.Unlock()
	return nil
}

// Classify returns the name of the first entry whose match substring appears
// in rawURL, or DefaultService.
func (r *Registry) Classify(rawURL string) string {
	lower := strings.ToLower(rawURL)

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.entries {
		for _, m := range e.Match {
			if strings.Contains(lower, m) {
				return e.Name
			}
		}
	}
	return DefaultService
}

// PoliciesFor returns the service's policies, or the default set when the
// service is not registered.
func (r *Registry) PoliciesFor(name string) Policies {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.index[name]; ok {
		return r.entries[i].Policies
	}
	return r.defaults
}

// Headers returns a copy of the service's static headers.
func (r *Registry) Headers(name string) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.index[name]; ok {
		return maps.Clone(r.entries[i].Headers)
	}
	return nil
}

// Lookup returns a copy of the named entry.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		return Entry{}, false
	}
	e := r.entries[i]
	e.Match = append([]string(nil), e.Match...)
	e.Headers = maps.Clone(e.Headers)
	return e, true
}

// Services returns registered names in classification order.
func (r *Registry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name)
	}
	return names
}
