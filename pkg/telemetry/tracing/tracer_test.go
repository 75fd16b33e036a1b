package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T, cfg Config) (*Tracer, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewWithExporter(cfg, exporter)
	if err != nil {
		t.Fatalf("NewWithExporter() error = %v", err)
	}
	t.Cleanup(func() { tracer.Shutdown(context.Background()) })
	return tracer, exporter
}

func attrMap(kvs []attribute.KeyValue) map[string]attribute.Value {
	out := make(map[string]attribute.Value, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value
	}
	return out
}

func TestNew_Disabled(t *testing.T) {
	tracer, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if tracer.Enabled() {
		t.Error("expected disabled tracer")
	}

	ctx, span := tracer.Start(context.Background(), "op")
	span.End()
	if id := TraceID(ctx); id != "" {
		t.Errorf("expected no trace ID from noop span, got %q", id)
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNilTracer(t *testing.T) {
	var tracer *Tracer
	_, span := tracer.Start(context.Background(), "op")
	span.End()

	if tracer.Enabled() {
		t.Error("expected nil tracer to be disabled")
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Errorf("ForceFlush() error = %v", err)
	}
}

func TestNewWithExporter_Errors(t *testing.T) {
	if _, err := NewWithExporter(Config{}, nil); err == nil {
		t.Error("expected error for nil exporter")
	}
	if _, err := NewWithExporter(Config{Sampler: "sometimes"}, tracetest.NewInMemoryExporter()); err == nil {
		t.Error("expected error for unknown sampler")
	}
}

func TestTracer_ExportsSpans(t *testing.T) {
	tracer, exporter := newTestTracer(t, Config{ServiceName: "test-service", ServiceVersion: "1.2.3"})
	if !tracer.Enabled() {
		t.Fatal("expected enabled tracer")
	}

	ctx, parent := tracer.Start(context.Background(), "parent")
	if TraceID(ctx) == "" {
		t.Error("expected trace ID in context")
	}
	_, child := tracer.Start(ctx, "child")
	child.End()
	parent.End()

	if err := tracer.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name != "child" || spans[1].Name != "parent" {
		t.Errorf("unexpected span order: %q, %q", spans[0].Name, spans[1].Name)
	}
	if spans[0].Parent.SpanID() != spans[1].SpanContext.SpanID() {
		t.Error("expected child to be parented to parent")
	}

	res := attrMap(spans[1].Resource.Attributes())
	if got := res["service.name"].AsString(); got != "test-service" {
		t.Errorf("expected service.name %q, got %q", "test-service", got)
	}
	if got := res["service.version"].AsString(); got != "1.2.3" {
		t.Errorf("expected service.version %q, got %q", "1.2.3", got)
	}
}

func TestTracer_NeverSampler(t *testing.T) {
	tracer, exporter := newTestTracer(t, Config{Sampler: SamplerNever})

	_, span := tracer.Start(context.Background(), "op")
	span.End()
	tracer.ForceFlush(context.Background())

	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("expected no exported spans, got %d", n)
	}
}

func TestAttributes(t *testing.T) {
	tracer, exporter := newTestTracer(t, Config{})

	_, span := tracer.Start(context.Background(), "switchboard.request")
	SetProviderAttributes(span, "google", "gemini-2.0-flash")
	SetRequestAttributes(span, "req-1", "chat", "", true, false)
	SetTokenAttributes(span, 8, 12, 20, true)
	SetRetryAttributes(span, 3, 2)
	SetErrorAttributes(span, errors.New("All API keys are invalid"), "invalid_key")
	span.End()
	tracer.ForceFlush(context.Background())

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	got := spans[0]
	attrs := attrMap(got.Attributes)

	if v := attrs[AttrProvider].AsString(); v != "google" {
		t.Errorf("expected provider %q, got %q", "google", v)
	}
	if v := attrs[AttrOrigin].AsString(); v != "chat" {
		t.Errorf("expected origin %q, got %q", "chat", v)
	}
	if _, ok := attrs[AttrSession]; ok {
		t.Error("expected empty session to be left out")
	}
	if !attrs[AttrStreaming].AsBool() {
		t.Error("expected streaming attribute")
	}
	if v := attrs[AttrTokensTotal].AsInt64(); v != 20 {
		t.Errorf("expected 20 total tokens, got %d", v)
	}
	if !attrs[AttrTokensEstimated].AsBool() {
		t.Error("expected estimated attribute")
	}
	if v := attrs[AttrRetryCount].AsInt64(); v != 2 {
		t.Errorf("expected retry count 2, got %d", v)
	}
	if v := attrs[AttrErrorKind].AsString(); v != "invalid_key" {
		t.Errorf("expected error kind %q, got %q", "invalid_key", v)
	}

	if got.Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", got.Status.Code)
	}
	if got.Status.Description != "All API keys are invalid" {
		t.Errorf("expected status description, got %q", got.Status.Description)
	}
	if len(got.Events) != 1 || got.Events[0].Name != "exception" {
		t.Errorf("expected recorded exception event, got %v", got.Events)
	}
}

func TestSetStatus_OK(t *testing.T) {
	tracer, exporter := newTestTracer(t, Config{})

	_, span := tracer.Start(context.Background(), "op")
	SetStatus(span, nil)
	SetErrorAttributes(span, nil, "ignored")
	span.End()
	tracer.ForceFlush(context.Background())

	got := exporter.GetSpans()[0]
	if got.Status.Code != codes.Ok {
		t.Errorf("expected ok status, got %v", got.Status.Code)
	}
	if _, ok := attrMap(got.Attributes)[AttrErrorKind]; ok {
		t.Error("expected no error kind for nil error")
	}
}
