package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func installSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider()
	tp.RegisterSpanProcessor(recorder)
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(noop.NewTracerProvider())
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestRequestTracingMiddlewareCreatesRequestSpan(t *testing.T) {
	recorder := installSpanRecorder(t)

	handler := requestIDMiddleware(requestTracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/items", nil)
	req.Header.Set(requestIDHeader, "req-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	span := spans[0]
	if got, want := span.Name(), "POST /api/*"; got != want {
		t.Fatalf("expected span name %q, got %q", want, got)
	}
	if span.Status().Code != codes.Ok {
		t.Fatalf("expected span status Ok, got %v", span.Status().Code)
	}
	if !containsStringAttribute(span.Attributes(), "http.request_id", "req-123") {
		t.Fatal("expected span attribute http.request_id=req-123")
	}
	if !containsIntAttribute(span.Attributes(), "http.status_code", http.StatusCreated) {
		t.Fatal("expected span attribute http.status_code=201")
	}
}

func TestRequestTracingMiddlewareUsesMatchedPattern(t *testing.T) {
	recorder := installSpanRecorder(t)

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/items/{id}/move", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	requestTracingMiddleware(mux).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPut, "/api/items/9/move", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if got, want := spans[0].Name(), "PUT /api/items/{id}/move"; got != want {
		t.Fatalf("expected span name %q, got %q", want, got)
	}
	if !containsStringAttribute(spans[0].Attributes(), "http.route", "/api/items/{id}/move") {
		t.Fatal("expected span attribute http.route=/api/items/{id}/move")
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected span status Error, got %v", spans[0].Status().Code)
	}
}

func TestRequestTracingMiddlewareSkipsHealthEndpoint(t *testing.T) {
	recorder := installSpanRecorder(t)

	handler := requestTracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := len(recorder.Ended()); got != 0 {
		t.Fatalf("expected no spans for /healthz, got %d", got)
	}
}

func containsStringAttribute(attrs []attribute.KeyValue, key, value string) bool {
	for _, attr := range attrs {
		if string(attr.Key) == key && attr.Value.Type() == attribute.STRING && attr.Value.AsString() == value {
			return true
		}
	}
	return false
}

func containsIntAttribute(attrs []attribute.KeyValue, key string, value int) bool {
	for _, attr := range attrs {
		if string(attr.Key) == key && attr.Value.Type() == attribute.INT64 && attr.Value.AsInt64() == int64(value) {
			return true
		}
	}
	return false
}
