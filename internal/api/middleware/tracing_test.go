// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestShouldTrace(t *testing.T) {
	for _, p := range []string{"/healthz", "/readyz", "/metrics"} {
		assert.False(t, shouldTrace(httptest.NewRequest(http.MethodGet, p, nil)), p)
	}
	assert.True(t, shouldTrace(httptest.NewRequest(http.MethodPost, "/api/v1/next", nil)))
}

func TestSpanNameFormatter_HidesQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels?q=secret", nil)
	assert.Equal(t, "HTTP GET /api/v1/channels?", spanNameFormatter("", req))

	req = httptest.NewRequest(http.MethodPost, "/api/v1/next", nil)
	assert.Equal(t, "HTTP POST /api/v1/next", spanNameFormatter("", req))
}

func TestStack_Tracing(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := NewRouter(StackConfig{TracingService: "tvplay-test"})
	var traceID string
	r.Get("/api/v1/status", func(w http.ResponseWriter, r *http.Request) {
		traceID, _ = TraceIDs(r)
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /api/v1/status", spans[0].Name())
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), traceID)
}

func TestTraceIDs_NoSpan(t *testing.T) {
	traceID, spanID := TraceIDs(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}
