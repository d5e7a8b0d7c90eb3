package api

import (
	"net/http"

	"librarian/internal/api/middleware"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

type AuditLogHandler struct {
	service domain.AuditLogService
	logger  logger.Logger
}

func NewAuditLogHandler(service domain.AuditLogService, logger logger.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		service: service,
		logger:  logger,
	}
}

func (h *AuditLogHandler) GetAllLogs(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	logs, err := h.service.GetAllLogs(r.Context(), middleware.CallerFromContext(r.Context()), page, pageSize)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get Audit Logs!", logs)
}

func (h *AuditLogHandler) GetEntityLogs(w http.ResponseWriter, r *http.Request) {
	entityID, err := pathID(r, "entityId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	entityType := domain.EntityType(r.PathValue("entityType"))
	logs, err := h.service.GetEntityLogs(r.Context(), middleware.CallerFromContext(r.Context()), entityType, entityID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get Audit Logs!", logs)
}

func (h *AuditLogHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.Handle("GET /api/audit-logs/{entityType}/{entityId}", protect(http.HandlerFunc(h.GetEntityLogs)))
	mux.Handle("GET /api/audit-logs", protect(http.HandlerFunc(h.GetAllLogs)))
}
