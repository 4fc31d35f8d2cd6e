package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/jonwraymond/egress/resilience"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
		code   int
	}{
		{StatusHealthy, "healthy", http.StatusOK},
		{StatusDegraded, "degraded", http.StatusOK},
		{StatusUnhealthy, "unhealthy", http.StatusServiceUnavailable},
		{Status(42), "unknown", http.StatusOK},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
		if got := tt.status.HTTPStatus(); got != tt.code {
			t.Errorf("Status(%d).HTTPStatus() = %d, want %d", tt.status, got, tt.code)
		}
	}
}

func TestResultConstructors(t *testing.T) {
	errDown := errors.New("down")

	if r := Healthy("ok"); r.Status != StatusHealthy || r.Timestamp.IsZero() {
		t.Errorf("Healthy() = %+v", r)
	}
	if r := Degraded("slow"); r.Status != StatusDegraded || r.Message != "slow" {
		t.Errorf("Degraded() = %+v", r)
	}
	r := Unhealthy("bad", errDown).WithDetails(map[string]any{"k": 1})
	if r.Status != StatusUnhealthy || !errors.Is(r.Error, errDown) || r.Details["k"] != 1 {
		t.Errorf("Unhealthy().WithDetails() = %+v", r)
	}
}

func TestCheckerFunc(t *testing.T) {
	c := NewCheckerFunc("fn", func(ctx context.Context) Result { return Degraded("x") })
	if c.Name() != "fn" {
		t.Errorf("Name() = %q, want fn", c.Name())
	}
	if got := c.Check(context.Background()).Status; got != StatusDegraded {
		t.Errorf("Check().Status = %v, want degraded", got)
	}
}

type fakeBreakers map[string]resilience.State

func (f fakeBreakers) BreakerStates() map[string]resilience.State { return f }

func TestBreakerChecker(t *testing.T) {
	tests := []struct {
		name   string
		states fakeBreakers
		want   Status
	}{
		{"no breakers", fakeBreakers{}, StatusHealthy},
		{"all closed", fakeBreakers{"tavily": resilience.StateClosed, "serper": resilience.StateClosed}, StatusHealthy},
		{"one open", fakeBreakers{"tavily": resilience.StateOpen, "serper": resilience.StateClosed}, StatusDegraded},
		{"one half-open", fakeBreakers{"tavily": resilience.StateHalfOpen, "serper": resilience.StateClosed}, StatusDegraded},
		{"open and half-open", fakeBreakers{"tavily": resilience.StateOpen, "serper": resilience.StateHalfOpen}, StatusDegraded},
		{"all open", fakeBreakers{"tavily": resilience.StateOpen, "serper": resilience.StateOpen}, StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBreakerChecker(tt.states)
			r := c.Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("Check().Status = %v, want %v (%s)", r.Status, tt.want, r.Message)
			}
			for name, st := range tt.states {
				if r.Details[name] != st.String() {
					t.Errorf("Details[%s] = %v, want %v", name, r.Details[name], st.String())
				}
			}
		})
	}
}

func TestBreakerChecker_AllOpenCarriesError(t *testing.T) {
	r := NewBreakerChecker(fakeBreakers{"wenshu": resilience.StateOpen}).Check(context.Background())
	if !errors.Is(r.Error, resilience.ErrCircuitOpen) {
		t.Errorf("Error = %v, want ErrCircuitOpen", r.Error)
	}
}

func TestBreakerChecker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewBreakerChecker(fakeBreakers{}).Check(ctx)
	if r.Status != StatusUnhealthy {
		t.Errorf("Status = %v, want unhealthy", r.Status)
	}
}

func TestBreakerChecker_Name(t *testing.T) {
	if got := NewBreakerChecker(fakeBreakers{}).Name(); got != "circuit_breakers" {
		t.Errorf("Name() = %q", got)
	}
}
