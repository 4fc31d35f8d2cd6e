package observe

import (
	"context"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Attribute keys shared by spans, metrics and logs.
const (
	AttrService    = "outbound.service"
	AttrMethod     = "http.request.method"
	AttrURL        = "url.full"
	AttrStatusCode = "http.response.status_code"
	AttrRequestID  = "outbound.request_id"
	AttrAttempt    = "outbound.attempt"
)

// RequestMeta describes one outbound call for telemetry purposes.
type RequestMeta struct {
	Service   string // Service name the call was classified to
	Method    string // HTTP method
	URL       string // Target URL; query and userinfo are dropped before export
	RequestID string // X-Request-ID sent with every attempt
}

// SpanName returns the span name for this call.
// Format: <METHOD> <service>
func (m RequestMeta) SpanName() string {
	return m.Method + " " + m.Service
}

// SafeURL returns the URL without credentials or query string.
func (m RequestMeta) SafeURL() string {
	u, err := url.Parse(m.URL)
	if err != nil {
		return ""
	}
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// Tracer wraps OpenTelemetry tracing with outbound span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a client span for an outbound call.
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the final status code and error.
	EndSpan(span trace.Span, status int, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with request metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrService, meta.Service),
		attribute.String(AttrMethod, meta.Method),
	}
	if u := meta.SafeURL(); u != "" {
		attrs = append(attrs, attribute.String(AttrURL, u))
	}
	if meta.RequestID != "" {
		attrs = append(attrs, attribute.String(AttrRequestID, meta.RequestID))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, status int, err error) {
	if status > 0 {
		span.SetAttributes(attribute.Int(AttrStatusCode, status))
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, status int, err error) {
	span.End()
}
