package client

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// DefaultRetryAfter is used for 429 responses without a numeric Retry-After.
const DefaultRetryAfter = 5 * time.Second

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte

	// URL is the final request URL, query included.
	URL string

	// Attempts is the number of attempts the call took.
	Attempts int

	// Duration covers the whole call, retries and backoff included.
	Duration time.Duration
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("client: decode %s response: %w", r.URL, err)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// parseRetryAfter reads a Retry-After value in seconds.
// Missing, negative or non-numeric values yield DefaultRetryAfter.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return DefaultRetryAfter
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return DefaultRetryAfter
	}
	return time.Duration(secs * float64(time.Second))
}
