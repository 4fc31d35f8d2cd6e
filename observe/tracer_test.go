package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecordingTracer() (Tracer, *tracetest.SpanRecorder) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	return NewTracer(tp.Tracer("test")), sr
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

// TestRequestMeta_SpanName verifies span naming.
func TestRequestMeta_SpanName(t *testing.T) {
	meta := RequestMeta{Service: "tavily", Method: "POST"}
	if got, want := meta.SpanName(), "POST tavily"; got != want {
		t.Errorf("SpanName() = %q, want %q", got, want)
	}
}

// TestRequestMeta_SafeURL verifies credentials and query strings are dropped.
func TestRequestMeta_SafeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://api.qcc.com/search?key=secret&q=x", "https://api.qcc.com/search"},
		{"https://user:pw@example.com/a#frag", "https://example.com/a"},
		{"://bad", ""},
	}
	for _, tt := range tests {
		if got := (RequestMeta{URL: tt.in}).SafeURL(); got != tt.want {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestTracer_ClientSpanAttributes verifies span kind and attributes.
func TestTracer_ClientSpanAttributes(t *testing.T) {
	tracer, sr := newRecordingTracer()

	meta := RequestMeta{
		Service:   "serper",
		Method:    "GET",
		URL:       "https://google.serper.dev/search?api_key=x",
		RequestID: "req-42",
	}
	_, span := tracer.StartSpan(context.Background(), meta)
	tracer.EndSpan(span, 200, nil)

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "GET serper" {
		t.Errorf("span name = %q", s.Name())
	}
	if s.SpanKind() != trace.SpanKindClient {
		t.Errorf("span kind = %v, want client", s.SpanKind())
	}
	attrs := attrMap(s.Attributes())
	if attrs[AttrService].AsString() != "serper" {
		t.Errorf("%s = %v", AttrService, attrs[AttrService])
	}
	if attrs[AttrURL].AsString() != "https://google.serper.dev/search" {
		t.Errorf("%s = %v", AttrURL, attrs[AttrURL])
	}
	if attrs[AttrRequestID].AsString() != "req-42" {
		t.Errorf("%s = %v", AttrRequestID, attrs[AttrRequestID])
	}
	if attrs[AttrStatusCode].AsInt64() != 200 {
		t.Errorf("%s = %v", AttrStatusCode, attrs[AttrStatusCode])
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}
}

// TestTracer_EndSpanRecordsError verifies error status and event.
func TestTracer_EndSpanRecordsError(t *testing.T) {
	tracer, sr := newRecordingTracer()

	_, span := tracer.StartSpan(context.Background(), RequestMeta{Service: "bocha", Method: "POST"})
	tracer.EndSpan(span, 503, errors.New("service unavailable"))

	s := sr.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if len(s.Events()) == 0 || s.Events()[0].Name != "exception" {
		t.Errorf("expected exception event, got %v", s.Events())
	}
}

// TestNopTracer verifies the no-op tracer is safe to use.
func TestNopTracer(t *testing.T) {
	tracer := NopTracer()
	ctx, span := tracer.StartSpan(context.Background(), RequestMeta{Service: "x", Method: "GET"})
	if ctx == nil || span == nil {
		t.Fatal("expected non-nil ctx and span")
	}
	tracer.EndSpan(span, 0, errors.New("ignored"))
}
