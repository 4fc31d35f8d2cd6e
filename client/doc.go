// Package client is the resilient outbound HTTP client.
//
// Every call is classified to a service by the registry, checked against the
// service's circuit breaker, and run through a bounded exponential-backoff
// retry loop over one shared connection pool:
//
//	c := client.New(client.WithRegistry(registry.Default()))
//	defer c.Close()
//
//	resp, err := c.Post(ctx, "https://api.tavily.com/search",
//	    client.WithJSON(map[string]any{"query": "acme corp"}))
//	var open *client.CircuitBreakerOpenError
//	switch {
//	case errors.As(err, &open):
//	    // fail fast, nothing was sent
//	case err != nil:
//	    // last attempt's error: transport error or *client.HTTPStatusError
//	}
//
// Retry behavior:
//   - transport errors and 5xx responses are retried;
//   - 429 waits for Retry-After (5s when absent) before the next attempt;
//   - other non-2xx responses are retried too unless the retry policy sets
//     FailFastOnClientError.
//
// Each service has its own RequestMetrics, readable through Metrics and
// AllMetrics, and its own breaker, readable through CircuitBreakerStatus.
package client
