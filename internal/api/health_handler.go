package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"librarian/pkg/cache"
	"librarian/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

type HealthHandler struct {
	db     *sql.DB
	cache  cache.Cache
	logger logger.Logger
}

type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]interface{} `json:"services"`
}

func NewHealthHandler(db *sql.DB, cache cache.Cache, logger logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// HealthCheck reports 503 when any dependency fails its ping.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	services := map[string]interface{}{
		"database": h.checkDatabaseHealth(ctx),
		"cache":    h.checkCacheHealth(ctx),
	}

	status := "healthy"
	for name, service := range services {
		if service.(map[string]interface{})["status"] != "healthy" {
			status = "degraded"
			h.logger.WarnContext(ctx, "Health check failed", map[string]interface{}{"service": name})
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, status, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Services:  services,
	})
}

func (h *HealthHandler) checkDatabaseHealth(ctx context.Context) map[string]interface{} {
	if err := h.db.PingContext(ctx); err != nil {
		return map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	}

	stats := h.db.Stats()
	return map[string]interface{}{
		"status":           "healthy",
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration":    stats.WaitDuration.String(),
	}
}

func (h *HealthHandler) checkCacheHealth(ctx context.Context) map[string]interface{} {
	if err := h.cache.Ping(ctx); err != nil {
		return map[string]interface{}{
			"status": "unhealthy",
			"error":  err.Error(),
		}
	}
	return map[string]interface{}{"status": "healthy"}
}

func (h *HealthHandler) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "alive", map[string]interface{}{"timestamp": time.Now().UTC()})
}

func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /health/live", h.LivenessCheck)
}
