package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"librarian/internal/api/middleware"
	"librarian/pkg/logger"
)

type Handlers struct {
	Users     *UserHandler
	Books     *BookHandler
	Borrows   *BorrowHandler
	Penalties *PenaltyHandler
	AuditLogs *AuditLogHandler
	Cache     *CacheHandler
	Health    *HealthHandler
}

// NewRouter mounts every handler. Routes other than auth, health and
// metrics require a bearer token.
func NewRouter(h Handlers, authenticator middleware.Authenticator, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	protect := Middleware(middleware.Auth(authenticator, log))

	h.Users.RegisterRoutes(mux, protect)
	h.Books.RegisterRoutes(mux, protect)
	h.Borrows.RegisterRoutes(mux, protect)
	h.Penalties.RegisterRoutes(mux, protect)
	h.AuditLogs.RegisterRoutes(mux, protect)
	h.Cache.RegisterRoutes(mux, protect)
	h.Health.RegisterRoutes(mux)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "Welcome to the Library API!", nil)
	})

	return middleware.RequestID(middleware.Tracing(middleware.Metrics(mux)))
}
