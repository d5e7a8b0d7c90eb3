package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"librarian/internal/api/middleware"
	"librarian/pkg/tracing/tracingtest"
)

func TestTracingSpanPerRequest(t *testing.T) {
	recorder := tracingtest.Record(t)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /books/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "999" {
			http.Error(w, "Book Not Found!", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := middleware.Tracing(mux)

	found := httptest.NewRecorder()
	handler.ServeHTTP(found, httptest.NewRequest(http.MethodGet, "/books/1", nil))
	missing := httptest.NewRecorder()
	handler.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/books/999", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "GET /books/{id}", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.Int("http.status_code", http.StatusOK))
	assert.Equal(t, spans[0].SpanContext().TraceID().String(), found.Header().Get(middleware.TraceIDHeader))

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, http.StatusText(http.StatusNotFound), spans[1].Status().Description)
	assert.Contains(t, spans[1].Attributes(), attribute.Int("http.status_code", http.StatusNotFound))
	assert.Equal(t, spans[1].SpanContext().TraceID().String(), missing.Header().Get(middleware.TraceIDHeader))
	assert.NotEqual(t, found.Header().Get(middleware.TraceIDHeader), missing.Header().Get(middleware.TraceIDHeader))
}

func TestTracingUnmatchedRoute(t *testing.T) {
	recorder := tracingtest.Record(t)

	handler := middleware.Tracing(http.NewServeMux())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "http_request", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
