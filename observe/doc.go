// Package observe provides observability primitives for outbound calls.
//
// It is a pure instrumentation library: no transport and no I/O beyond
// exporter and log file setup. The client package wires an Instrumentation
// around every logical request, and reports retries, breaker rejections and
// breaker transitions through its Metrics.
//
// Logging is structured JSON backed by zap, with optional rotating file
// output. Fields whose keys look like credentials are redacted.
package observe
