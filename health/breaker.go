package health

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonwraymond/egress/resilience"
)

// BreakerSource exposes the current state of every known circuit breaker.
// *client.Client implements it.
type BreakerSource interface {
	BreakerStates() map[string]resilience.State
}

// BreakerChecker derives health from circuit breaker states:
//   - healthy when every breaker is closed, or none exists yet;
//   - degraded when some breakers are open or half-open;
//   - unhealthy when every known breaker is open.
type BreakerChecker struct {
	source BreakerSource
}

// NewBreakerChecker creates a BreakerChecker over source.
func NewBreakerChecker(source BreakerSource) *BreakerChecker {
	return &BreakerChecker{source: source}
}

// Name returns "circuit_breakers".
func (b *BreakerChecker) Name() string {
	return "circuit_breakers"
}

// Check reads the breaker states.
func (b *BreakerChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context done", err)
	}

	states := b.source.BreakerStates()
	details := make(map[string]any, len(states))
	var open, halfOpen []string
	for name, st := range states {
		details[name] = st.String()
		switch st {
		case resilience.StateOpen:
			open = append(open, name)
		case resilience.StateHalfOpen:
			halfOpen = append(halfOpen, name)
		}
	}
	sort.Strings(open)
	sort.Strings(halfOpen)

	switch {
	case len(states) == 0:
		return Healthy("no upstream called yet")
	case len(open) == len(states):
		return Unhealthy(fmt.Sprintf("all %d circuits open", len(open)), resilience.ErrCircuitOpen).
			WithDetails(details)
	case len(open)+len(halfOpen) > 0:
		return Degraded(fmt.Sprintf("open: %v, half-open: %v", open, halfOpen)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%d circuits closed", len(states))).WithDetails(details)
	}
}
