package api

import (
	"net/http"

	"librarian/internal/api/middleware"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

type BorrowHandler struct {
	service domain.BorrowService
	logger  logger.Logger
}

func NewBorrowHandler(service domain.BorrowService, logger logger.Logger) *BorrowHandler {
	return &BorrowHandler{
		service: service,
		logger:  logger,
	}
}

func (h *BorrowHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	borrows, err := h.service.GetAll(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get all Borrow!", borrows)
}

func (h *BorrowHandler) GetUserBorrows(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	borrows, err := h.service.GetUserBorrowByID(r.Context(), middleware.CallerFromContext(r.Context()), userID, true)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get user Borrow!", borrows)
}

func (h *BorrowHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())

	borrows, err := h.service.GetUserBorrowByID(r.Context(), caller, caller.UserID, false)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get current user Borrow!", borrows)
}

func (h *BorrowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBorrowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	borrow, err := h.service.CreateBorrow(r.Context(), middleware.CallerFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Success Borrow Book!", borrow)
}

func (h *BorrowHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "borrowId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req domain.ReturnBorrowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	borrow, err := h.service.ReturnBorrow(r.Context(), middleware.CallerFromContext(r.Context()), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Return Book!", borrow)
}

func (h *BorrowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "borrowId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.DeleteBorrow(r.Context(), middleware.CallerFromContext(r.Context()), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Delete Borrow!", nil)
}

func (h *BorrowHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.Handle("GET /api/borrows/current", protect(http.HandlerFunc(h.GetCurrent)))
	mux.Handle("PUT /api/borrows/{borrowId}/return", protect(http.HandlerFunc(h.Return)))
	mux.Handle("DELETE /api/borrows/{borrowId}", protect(http.HandlerFunc(h.Delete)))
	mux.Handle("GET /api/borrows/users/{userId}", protect(http.HandlerFunc(h.GetUserBorrows)))
	mux.Handle("GET /api/borrows", protect(http.HandlerFunc(h.GetAll)))
	mux.Handle("POST /api/borrows", protect(http.HandlerFunc(h.Create)))
}
