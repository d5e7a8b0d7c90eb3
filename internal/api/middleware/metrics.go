package middleware

import (
	"net/http"
	"strconv"
	"time"

	"librarian/pkg/metrics"
)

// Metrics records count and latency per route pattern. It must sit inside
// any middleware that replaces the request, so the mux can fill in Pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}

		metrics.RecordHttpRequest(
			r.Method,
			endpoint,
			strconv.Itoa(rw.statusCode),
			time.Since(startTime),
		)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}
