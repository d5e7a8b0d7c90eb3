package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"librarian/internal/domain"
	"librarian/pkg/logger"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Middleware wraps the handlers that need an authenticated caller.
type Middleware func(http.Handler) http.Handler

func writeJSON(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{Message: message, Data: data})
}

// writeError maps a service error to its status code. Anything that is not
// a domain.Error is logged and hidden behind a 500.
func writeError(w http.ResponseWriter, r *http.Request, log logger.Logger, err error) {
	var domainErr *domain.Error
	if !errors.As(err, &domainErr) {
		log.ErrorContext(r.Context(), "Request failed", map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, "Internal Server Error!", nil)
		return
	}

	writeJSON(w, statusFor(domainErr.Kind), domainErr.Message, nil)
}

func statusFor(kind error) int {
	switch {
	case errors.Is(kind, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(kind, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(kind, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, domain.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return domain.BadRequest("Invalid request body!")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.BadRequest("Invalid %s!", name)
	}
	return id, nil
}

// queryInt reads an optional positive integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, domain.BadRequest("Invalid %s!", name)
	}
	return v, nil
}
