// Package health reports whether the upstreams behind an egress client are
// reachable.
//
// A Checker reports a Status: healthy, degraded or unhealthy. BreakerChecker
// derives one from the client's circuit breakers; an Aggregator runs several
// checkers in parallel and the handlers expose the result:
//
//	agg := health.NewAggregator(5 * time.Second)
//	agg.Register("circuit_breakers", health.NewBreakerChecker(c))
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health
package health
