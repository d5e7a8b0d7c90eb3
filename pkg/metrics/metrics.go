package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	BorrowOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_borrow_operations_total",
			Help: "Borrow ledger operations by kind and outcome",
		},
		[]string{"operation", "status"},
	)

	PenaltiesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "library_penalties_issued_total",
			Help: "Penalties created by late returns",
		},
	)

	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "library_cache_hits_total",
			Help: "Cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "library_cache_misses_total",
			Help: "Cache misses",
		},
	)
)

func RecordHttpRequest(method, endpoint, status string, duration time.Duration) {
	HttpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HttpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordBorrowOperation counts create, return and delete on the ledger.
func RecordBorrowOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	BorrowOperations.WithLabelValues(operation, status).Inc()
}

func RecordPenaltyIssued() {
	PenaltiesIssued.Inc()
}

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}
