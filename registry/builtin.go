package registry

import (
	"time"

	"github.com/jonwraymond/egress/resilience"
)

// Builtin returns the providers known out of the box, in classification order.
//
// Company-registry and court-record sources are slow and rate-sensitive, so
// they get longer reads and a more patient breaker. Search APIs answer fast and
// fail over quickly.
func Builtin() []Entry {
	registryTimeout := resilience.TimeoutPolicy{
		Connect: 5 * time.Second,
		Read:    30 * time.Second,
		Write:   10 * time.Second,
		Pool:    5 * time.Second,
	}
	searchTimeout := resilience.TimeoutPolicy{
		Connect: 5 * time.Second,
		Read:    20 * time.Second,
		Write:   10 * time.Second,
		Pool:    5 * time.Second,
	}

	return []Entry{
		{
			Name:  "qichacha",
			Match: []string{"qcc.com"},
			Policies: Policies{
				Timeout: registryTimeout,
				Retry:   resilience.RetryPolicy{MaxAttempts: 3, MinWait: 2 * time.Second, MaxWait: 15 * time.Second, ExponentialBase: 2},
				Breaker: resilience.CircuitBreakerPolicy{FailureThreshold: 5, SuccessThreshold: 2, OpenDuration: 60 * time.Second},
			},
		},
		{
			Name:  "tianyancha",
			Match: []string{"tianyancha.com"},
			Policies: Policies{
				Timeout: registryTimeout,
				Retry:   resilience.RetryPolicy{MaxAttempts: 3, MinWait: 2 * time.Second, MaxWait: 15 * time.Second, ExponentialBase: 2},
				Breaker: resilience.CircuitBreakerPolicy{FailureThreshold: 5, SuccessThreshold: 2, OpenDuration: 60 * time.Second},
			},
		},
		{
			Name:  "wenshu",
			Match: []string{"wenshu.court.gov.cn"},
			Policies: Policies{
				Timeout: resilience.TimeoutPolicy{Connect: 10 * time.Second, Read: 60 * time.Second, Write: 10 * time.Second, Pool: 5 * time.Second},
				Retry:   resilience.RetryPolicy{MaxAttempts: 2, MinWait: 5 * time.Second, MaxWait: 30 * time.Second, ExponentialBase: 2},
				Breaker: resilience.CircuitBreakerPolicy{FailureThreshold: 3, SuccessThreshold: 1, OpenDuration: 120 * time.Second},
			},
		},
		{
			Name:  "tavily",
			Match: []string{"api.tavily.com"},
			Policies: Policies{
				Timeout: searchTimeout,
				Retry:   resilience.RetryPolicy{MaxAttempts: 3, MinWait: time.Second, MaxWait: 8 * time.Second, ExponentialBase: 2},
				Breaker: resilience.CircuitBreakerPolicy{FailureThreshold: 5, SuccessThreshold: 2, OpenDuration: 30 * time.Second},
			},
		},
		{
			Name:  "serper",
			Match: []string{"serper.dev"},
			Policies: Policies{
				Timeout: searchTimeout,
				Retry:   resilience.RetryPolicy{MaxAttempts: 3, MinWait: time.Second, MaxWait: 8 * time.Second, ExponentialBase: 2},
				Breaker: resilience.CircuitBreakerPolicy{FailureThreshold: 5, SuccessThreshold: 2, OpenDuration: 30 * time.Second},
			},
		},
		{
			Name:  "bocha",
			Match: []string{"bochaai.com"},
			Policies: Policies{
				Timeout: searchTimeout,
				Retry:   resilience.RetryPolicy{MaxAttempts: 3, MinWait: time.Second, MaxWait: 8 * time.Second, ExponentialBase: 2},
				Breaker: resilience.CircuitBreakerPolicy{FailureThreshold: 5, SuccessThreshold: 2, OpenDuration: 30 * time.Second},
			},
		},
	}
}
