package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/egress/observe"
	"github.com/jonwraymond/egress/registry"
	"github.com/jonwraymond/egress/resilience"
)

// requestTarget is the resolved, immutable part of one call.
type requestTarget struct {
	service   string
	method    string
	url       string
	safeURL   string
	requestID string
	policies  registry.Policies
	headers   http.Header
	body      []byte
}

func (t requestTarget) meta() observe.RequestMeta {
	return observe.RequestMeta{
		Service:   t.service,
		Method:    t.method,
		URL:       t.url,
		RequestID: t.requestID,
	}
}

// Request issues method to rawURL through the service's breaker and retry loop.
//
// The service is taken from WithService or classified from rawURL. When the
// circuit is open the call fails with *CircuitBreakerOpenError and nothing is
// sent. Otherwise attempts are made until one returns 2xx or the retry policy
// gives up, in which case the last attempt's error is returned unwrapped.
func (c *Client) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Response, error) {
	rc := newRequestConfig(opts)
	if rc.err != nil {
		return nil, rc.err
	}

	target, err := c.resolve(ctx, method, rawURL, rc)
	if err != nil {
		return nil, err
	}

	breaker := c.breakerFor(target.service)
	metrics := c.metricsFor(target.service)

	if rc.useBreaker && !breaker.CheckState() {
		metrics.recordRejection()
		c.inst.Metrics().RecordRejection(ctx, target.service)
		c.inst.Logger().Warn(ctx, "request rejected by open circuit breaker",
			observe.F("service", target.service),
			observe.F("method", target.method),
			observe.F("url", target.safeURL),
		)
		return nil, &CircuitBreakerOpenError{Service: target.service}
	}

	ctx = observe.ContextWithRequestID(ctx, target.requestID)

	var resp *Response
	_, err = c.inst.Wrap(func(ctx context.Context, _ observe.RequestMeta) (int, error) {
		var status int
		resp, status, err = c.execute(ctx, target, rc.useBreaker, breaker, metrics)
		return status, err
	})(ctx, target.meta())
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// resolve classifies the call and merges registry and per-call settings.
func (c *Client) resolve(ctx context.Context, method, rawURL string, rc *requestConfig) (requestTarget, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return requestTarget{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return requestTarget{}, fmt.Errorf("%w: absolute URL required, got %q", ErrInvalidRequest, rawURL)
	}
	if len(rc.query) > 0 {
		q := u.Query()
		for k, v := range rc.query {
			q[k] = v
		}
		u.RawQuery = q.Encode()
	}

	// Validates the method before anything is counted.
	if _, err := http.NewRequestWithContext(ctx, method, u.String(), nil); err != nil {
		return requestTarget{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	service := rc.service
	if service == "" {
		service = c.registry.Classify(rawURL)
	}
	policies := c.registry.PoliciesFor(service)
	if rc.timeout != nil {
		policies.Timeout = *rc.timeout
	}
	if rc.retry != nil {
		policies.Retry = *rc.retry
	}

	headers := make(http.Header)
	for k, v := range c.registry.Headers(service) {
		headers.Set(k, v)
	}
	for k, v := range rc.header {
		headers[k] = v
	}
	if headers.Get("User-Agent") == "" && c.userAgent != "" {
		headers.Set("User-Agent", c.userAgent)
	}
	requestID := headers.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
		headers.Set("X-Request-ID", requestID)
	}

	t := requestTarget{
		service:   service,
		method:    method,
		url:       u.String(),
		requestID: requestID,
		policies:  policies,
		headers:   headers,
		body:      rc.body,
	}
	t.safeURL = t.meta().SafeURL()
	return t, nil
}

// execute runs the retry loop and settles metrics and breaker exactly once.
func (c *Client) execute(
	ctx context.Context,
	t requestTarget,
	useBreaker bool,
	breaker *resilience.CircuitBreaker,
	metrics *RequestMetrics,
) (*Response, int, error) {
	start := time.Now()
	metrics.recordStart(start)

	limiter := c.limiterFor(t.service, t.policies.RateLimit)
	maxAttempts := t.policies.Retry.WithDefaults().MaxAttempts
	meta := t.meta()

	retrier := resilience.NewRetry(t.policies.Retry,
		resilience.RetryIf(func(err error) bool {
			return retryable(err, t.policies.Retry)
		}),
		resilience.OnRetry(func(attempt int, err error, delay time.Duration) {
			c.inst.Metrics().RecordRetry(ctx, meta, attempt)
			c.inst.Logger().Debug(ctx, "retrying outbound request",
				observe.F("service", t.service),
				observe.F("attempt", attempt),
				observe.F("delay_ms", delay.Milliseconds()),
				observe.F("error", err),
			)
		}),
	)

	var (
		resp       *Response
		lastStatus int
		attempts   int
	)
	err := retrier.Execute(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		if attempt > 1 {
			metrics.recordRetry()
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		res, err := c.attempt(ctx, t)
		if err != nil {
			return err
		}
		lastStatus = res.StatusCode

		switch {
		case res.StatusCode == http.StatusTooManyRequests:
			statusErr := newStatusError(t, res)
			statusErr.RetryAfter = parseRetryAfter(res.Header.Get("Retry-After"))
			if attempt < maxAttempts {
				c.inst.Logger().Warn(ctx, "rate limited by upstream",
					observe.F("service", t.service),
					observe.F("retry_after_ms", statusErr.RetryAfter.Milliseconds()),
				)
				if err := sleep(ctx, statusErr.RetryAfter); err != nil {
					return err
				}
			}
			return statusErr
		case !res.OK():
			return newStatusError(t, res)
		}

		resp = res
		return nil
	})

	if err == nil {
		elapsed := time.Since(start)
		metrics.recordSuccess(elapsed)
		if useBreaker {
			breaker.RecordSuccess()
		}
		resp.Attempts = attempts
		resp.Duration = elapsed
		return resp, resp.StatusCode, nil
	}

	// An abandoned call settles neither outcome counters nor the breaker.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, 0, ctxErr
	}

	metrics.recordFailure()
	if useBreaker {
		breaker.RecordFailure(err)
	}
	return nil, lastStatus, err
}

// attempt performs one HTTP exchange and buffers the response body.
func (c *Client) attempt(ctx context.Context, t requestTarget) (*Response, error) {
	timeout := t.policies.Timeout.WithDefaults()
	ctx, cancel := context.WithTimeout(ctx, timeout.AttemptBudget())
	defer cancel()
	ctx = withConnectTimeout(ctx, timeout.Connect)

	var body io.Reader
	if t.body != nil {
		body = bytes.NewReader(t.body)
	}
	req, err := http.NewRequestWithContext(ctx, t.method, t.url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req.Header = t.headers.Clone()

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Header:     res.Header,
		Body:       data,
		URL:        t.url,
	}, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
