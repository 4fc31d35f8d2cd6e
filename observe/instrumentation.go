package observe

import (
	"context"
	"errors"
	"time"
)

// RequestFunc performs one logical outbound call and reports its final
// status code (0 when no response was received).
type RequestFunc func(ctx context.Context, meta RequestMeta) (status int, err error)

// Instrumentation wraps outbound calls with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: safe for concurrent use; Wrap returns a thread-safe RequestFunc.
//   - Context: the span context is propagated to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Instrumentation struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewInstrumentation creates an Instrumentation. Nil components are replaced
// with no-op implementations.
func NewInstrumentation(tracer Tracer, metrics Metrics, logger Logger) *Instrumentation {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Instrumentation{tracer: tracer, metrics: metrics, logger: logger}
}

// NopInstrumentation returns an Instrumentation that records nothing.
func NopInstrumentation() *Instrumentation {
	return NewInstrumentation(nil, nil, nil)
}

// InstrumentationFromObserver builds an Instrumentation from an Observer.
func InstrumentationFromObserver(obs Observer) (*Instrumentation, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewInstrumentation(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Tracer returns the tracer.
func (i *Instrumentation) Tracer() Tracer { return i.tracer }

// Metrics returns the metrics recorder.
func (i *Instrumentation) Metrics() Metrics { return i.metrics }

// Logger returns the logger.
func (i *Instrumentation) Logger() Logger { return i.logger }

// Wrap wraps fn with a client span, request metrics and a completion log entry.
func (i *Instrumentation) Wrap(fn RequestFunc) RequestFunc {
	return func(ctx context.Context, meta RequestMeta) (int, error) {
		ctx, span := i.tracer.StartSpan(ctx, meta)
		start := time.Now()

		status, err := fn(ctx, meta)

		duration := time.Since(start)
		i.tracer.EndSpan(span, status, err)
		i.metrics.RecordRequest(ctx, meta, status, duration, err)

		fields := []Field{
			F("service", meta.Service),
			F("method", meta.Method),
			F("url", meta.SafeURL()),
			F("duration_ms", float64(duration.Microseconds())/1000),
		}
		if status > 0 {
			fields = append(fields, F("status", status))
		}

		switch {
		case err == nil:
			i.logger.Info(ctx, "outbound request completed", fields...)
		case errors.Is(err, context.Canceled):
			i.logger.Warn(ctx, "outbound request canceled", fields...)
		default:
			fields = append(fields, F("error", err))
			i.logger.Error(ctx, "outbound request failed", fields...)
		}

		return status, err
	}
}
