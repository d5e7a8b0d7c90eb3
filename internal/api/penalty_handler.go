package api

import (
	"net/http"

	"librarian/internal/api/middleware"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

type PenaltyHandler struct {
	service domain.PenaltyService
	logger  logger.Logger
}

func NewPenaltyHandler(service domain.PenaltyService, logger logger.Logger) *PenaltyHandler {
	return &PenaltyHandler{
		service: service,
		logger:  logger,
	}
}

func (h *PenaltyHandler) List(w http.ResponseWriter, r *http.Request) {
	penalties, err := h.service.List(r.Context(), middleware.CallerFromContext(r.Context()), r.URL.Query().Get("username"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get all Penalty!", penalties)
}

func (h *PenaltyHandler) GetByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	penalties, err := h.service.GetByUser(r.Context(), middleware.CallerFromContext(r.Context()), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get user Penalty!", penalties)
}

func (h *PenaltyHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "penaltyId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req domain.UpdatePenaltyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	penalty, err := h.service.Update(r.Context(), middleware.CallerFromContext(r.Context()), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Update Penalty!", penalty)
}

func (h *PenaltyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "penaltyId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.Delete(r.Context(), middleware.CallerFromContext(r.Context()), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Delete Penalty!", nil)
}

func (h *PenaltyHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.Handle("GET /api/penalties/users/{userId}", protect(http.HandlerFunc(h.GetByUser)))
	mux.Handle("PUT /api/penalties/{penaltyId}", protect(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/penalties/{penaltyId}", protect(http.HandlerFunc(h.Delete)))
	mux.Handle("GET /api/penalties", protect(http.HandlerFunc(h.List)))
}
