package resilience

import (
	"fmt"
	"time"
)

// TimeoutPolicy bounds the phases of one outbound attempt.
type TimeoutPolicy struct {
	// Connect bounds dialing, including TLS.
	// Default: 5 seconds
	Connect time.Duration `json:"connect" koanf:"connect"`

	// Read bounds waiting for and reading the response.
	// Default: 30 seconds
	Read time.Duration `json:"read" koanf:"read"`

	// Write bounds sending the request.
	// Default: 10 seconds
	Write time.Duration `json:"write" koanf:"write"`

	// Pool bounds waiting for a pooled connection.
	// Default: 5 seconds
	Pool time.Duration `json:"pool" koanf:"pool"`
}

// DefaultTimeoutPolicy returns the policy used for unclassified services.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		Connect: 5 * time.Second,
		Read:    30 * time.Second,
		Write:   10 * time.Second,
		Pool:    5 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultTimeoutPolicy.
func (p TimeoutPolicy) WithDefaults() TimeoutPolicy {
	def := DefaultTimeoutPolicy()
	if p.Connect <= 0 {
		p.Connect = def.Connect
	}
	if p.Read <= 0 {
		p.Read = def.Read
	}
	if p.Write <= 0 {
		p.Write = def.Write
	}
	if p.Pool <= 0 {
		p.Pool = def.Pool
	}
	return p
}

// Validate rejects negative timeouts.
func (p TimeoutPolicy) Validate() error {
	if p.Connect < 0 || p.Read < 0 || p.Write < 0 || p.Pool < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalidPolicy)
	}
	return nil
}

// AttemptBudget is the deadline applied to a whole attempt.
func (p TimeoutPolicy) AttemptBudget() time.Duration {
	return p.Pool + p.Connect + p.Write + p.Read
}
