package api

import (
	"net/http"

	"librarian/internal/api/middleware"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

type BookHandler struct {
	service domain.BookService
	logger  logger.Logger
}

func NewBookHandler(service domain.BookService, logger logger.Logger) *BookHandler {
	return &BookHandler{
		service: service,
		logger:  logger,
	}
}

func (h *BookHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.GetAll(r.Context(), middleware.CallerFromContext(r.Context()), r.URL.Query().Get("title"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get all Book!", list)
}

func (h *BookHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	book, err := h.service.GetByID(r.Context(), middleware.CallerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get Book By Id!", book)
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	book, err := h.service.Create(r.Context(), middleware.CallerFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Success Create Book!", book)
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req domain.UpdateBookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	book, err := h.service.Update(r.Context(), middleware.CallerFromContext(r.Context()), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Update Book!", book)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.Delete(r.Context(), middleware.CallerFromContext(r.Context()), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Delete Book!", nil)
}

func (h *BookHandler) Recover(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	book, err := h.service.Recover(r.Context(), middleware.CallerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Recover Book!", book)
}

func (h *BookHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.Handle("GET /api/books/{bookId}", protect(http.HandlerFunc(h.GetByID)))
	mux.Handle("PUT /api/books/{bookId}/recover", protect(http.HandlerFunc(h.Recover)))
	mux.Handle("PUT /api/books/{bookId}", protect(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/books/{bookId}", protect(http.HandlerFunc(h.Delete)))
	mux.Handle("GET /api/books", protect(http.HandlerFunc(h.GetAll)))
	mux.Handle("POST /api/books", protect(http.HandlerFunc(h.Create)))
}
