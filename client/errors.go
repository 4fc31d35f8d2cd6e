package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonwraymond/egress/resilience"
)

// ErrInvalidRequest is returned before any attempt when the request cannot be built.
var ErrInvalidRequest = errors.New("client: invalid request")

// CircuitBreakerOpenError is returned without any network call when the
// service's circuit is open. It matches resilience.ErrCircuitOpen.
type CircuitBreakerOpenError struct {
	Service string
}

func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("client: circuit breaker open for service %q", e.Service)
}

// Is reports whether target is resilience.ErrCircuitOpen.
func (e *CircuitBreakerOpenError) Is(target error) bool {
	return target == resilience.ErrCircuitOpen
}

// HTTPStatusError is returned when the final attempt received a non-2xx
// response. The buffered response is carried so callers can inspect it.
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte

	// RetryAfter is the delay the server asked for on 429 responses.
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("client: %s %s: %s", e.Method, e.URL, e.Status)
}

// Temporary reports whether the status is one servers use for transient failure.
func (e *HTTPStatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newStatusError(meta requestTarget, res *Response) *HTTPStatusError {
	status := res.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode))
	}
	return &HTTPStatusError{
		Method:     meta.method,
		URL:        meta.safeURL,
		StatusCode: res.StatusCode,
		Status:     status,
		Header:     res.Header,
		Body:       res.Body,
	}
}

// retryable decides whether the retry loop should try again after err.
func retryable(err error, policy resilience.RetryPolicy) bool {
	if errors.Is(err, ErrInvalidRequest) {
		return false
	}
	var se *HTTPStatusError
	if errors.As(err, &se) {
		if se.Temporary() {
			return true
		}
		return !policy.FailFastOnClientError
	}
	return true
}
