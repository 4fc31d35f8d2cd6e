package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records outbound call metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; breaker transitions are recorded while the
//   breaker lock is held.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one logical call after its retry loop ends.
	RecordRequest(ctx context.Context, meta RequestMeta, status int, duration time.Duration, err error)

	// RecordRetry records that attempt failed and another will follow.
	RecordRetry(ctx context.Context, meta RequestMeta, attempt int)

	// RecordRejection records a call refused by an open circuit.
	RecordRejection(ctx context.Context, service string)

	// RecordTransition records a circuit breaker state change.
	RecordTransition(ctx context.Context, service, from, to string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	totalCount      metric.Int64Counter
	errorCount      metric.Int64Counter
	retryCount      metric.Int64Counter
	rejectionCount  metric.Int64Counter
	transitionCount metric.Int64Counter
	durationHist    metric.Float64Histogram
}

// NewMetrics creates the outbound instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"outbound.request.total",
		metric.WithDescription("Total number of outbound calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"outbound.request.errors",
		metric.WithDescription("Outbound calls that failed after all attempts"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	retryCount, err := meter.Int64Counter(
		"outbound.request.retries",
		metric.WithDescription("Attempts retried after a failure"),
		metric.WithUnit("{retry}"),
	)
	if err != nil {
		return nil, err
	}

	rejectionCount, err := meter.Int64Counter(
		"outbound.breaker.rejections",
		metric.WithDescription("Calls rejected by an open circuit breaker"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	transitionCount, err := meter.Int64Counter(
		"outbound.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"outbound.request.duration_ms",
		metric.WithDescription("Outbound call duration including retries, in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:      totalCount,
		errorCount:      errorCount,
		retryCount:      retryCount,
		rejectionCount:  rejectionCount,
		transitionCount: transitionCount,
		durationHist:    durationHist,
	}, nil
}

func requestAttrs(meta RequestMeta) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrService, meta.Service),
		attribute.String(AttrMethod, meta.Method),
	}
}

// RecordRequest records metrics for one outbound call.
func (m *metricsImpl) RecordRequest(ctx context.Context, meta RequestMeta, status int, duration time.Duration, err error) {
	attrs := requestAttrs(meta)
	if status > 0 {
		attrs = append(attrs, attribute.Int(AttrStatusCode, status))
	}
	opt := metric.WithAttributes(attrs...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordRetry(ctx context.Context, meta RequestMeta, attempt int) {
	m.retryCount.Add(ctx, 1, metric.WithAttributes(requestAttrs(meta)...))
}

func (m *metricsImpl) RecordRejection(ctx context.Context, service string) {
	m.rejectionCount.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrService, service)))
}

func (m *metricsImpl) RecordTransition(ctx context.Context, service, from, to string) {
	m.transitionCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrService, service),
		attribute.String("outbound.breaker.from", from),
		attribute.String("outbound.breaker.to", to),
	))
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(ctx context.Context, meta RequestMeta, status int, duration time.Duration, err error) {
}
func (noopMetrics) RecordRetry(ctx context.Context, meta RequestMeta, attempt int)   {}
func (noopMetrics) RecordRejection(ctx context.Context, service string)              {}
func (noopMetrics) RecordTransition(ctx context.Context, service, from, to string) {}
