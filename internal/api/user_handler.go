package api

import (
	"net/http"

	"librarian/internal/api/middleware"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

type UserHandler struct {
	service domain.UserService
	logger  logger.Logger
}

func NewUserHandler(service domain.UserService, logger logger.Logger) *UserHandler {
	return &UserHandler{
		service: service,
		logger:  logger,
	}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Success Register User!", user)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Login!", result)
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.CallerFromContext(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Logout!", nil)
}

func (h *UserHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetCurrent(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get current User!", user)
}

func (h *UserHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.GetAll(r.Context(), middleware.CallerFromContext(r.Context()), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get all User!", users)
}

func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	profile, err := h.service.GetByID(r.Context(), middleware.CallerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success get User By Id!", profile)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req domain.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.service.Update(r.Context(), middleware.CallerFromContext(r.Context()), id, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Update User!", user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.service.Delete(r.Context(), middleware.CallerFromContext(r.Context()), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Delete User!", nil)
}

func (h *UserHandler) Recover(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.service.Recover(r.Context(), middleware.CallerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, "Success Recover User!", user)
}

func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, protect Middleware) {
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.Handle("GET /api/auth/logout", protect(http.HandlerFunc(h.Logout)))

	mux.Handle("GET /api/users/current", protect(http.HandlerFunc(h.GetCurrent)))
	mux.Handle("GET /api/users/{userId}", protect(http.HandlerFunc(h.GetByID)))
	mux.Handle("PUT /api/users/{userId}/recover", protect(http.HandlerFunc(h.Recover)))
	mux.Handle("PUT /api/users/{userId}", protect(http.HandlerFunc(h.Update)))
	mux.Handle("DELETE /api/users/{userId}", protect(http.HandlerFunc(h.Delete)))
	mux.Handle("GET /api/users", protect(http.HandlerFunc(h.GetAll)))
}
