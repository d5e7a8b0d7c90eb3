package api

import (
	"net/http"

	"librarian/internal/api/middleware"
	"librarian/internal/auth"
	"librarian/pkg/cache"
	"librarian/pkg/logger"
)

// CacheHandler gives administrators manual control over the catalog cache.
type CacheHandler struct {
	cacheManager  cache.CacheStrategy
	warmUpManager *cache.WarmUpManager
	logger        logger.Logger
}

func NewCacheHandler(cacheManager cache.CacheStrategy, warmUpManager *cache.WarmUpManager, logger logger.Logger) *CacheHandler {
	return &CacheHandler{
		cacheManager:  cacheManager,
		warmUpManager: warmUpManager,
		logger:        logger,
	}
}

func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.cacheManager.Invalidate(r.Context(), cache.BookPrefixPattern)
	h.logger.InfoContext(r.Context(), "Catalog cache flushed", map[string]interface{}{"user_id": caller.UserID})

	writeJSON(w, http.StatusOK, "Success Flush Cache!", nil)
}

func (h *CacheHandler) WarmUp(w http.ResponseWriter, r *http.Request) {
	if err := auth.Authorize(auth.AdminOnly, middleware.CallerFromContext(r.Context()).Role); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.warmUpManager.Run(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Warm Up Cache!", nil)
}

func (h *CacheHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.Handle("DELETE /api/cache", protect(http.HandlerFunc(h.Invalidate)))
	mux.Handle("POST /api/cache/warmup", protect(http.HandlerFunc(h.WarmUp)))
}
