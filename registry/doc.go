// Package registry maps external services to their resilience policies.
//
// Each Entry names a service, the URL substrings that identify it, its
// Policies and any static headers. Classify walks entries in declaration
// order and returns the first whose substring appears in the URL; URLs that
// match nothing belong to DefaultService and use the registry's default set.
//
//	reg := registry.Default()
//	_ = reg.Register(registry.Entry{
//	    Name:  "internal-search",
//	    Match: []string{"search.internal"},
//	})
//	svc := reg.Classify("https://search.internal/v1?q=x") // "internal-search"
//	p := reg.PoliciesFor(svc)
package registry
