package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"librarian/internal/domain"
	"librarian/pkg/logger"
)

type callerKey struct{}

func WithCaller(ctx context.Context, caller domain.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext returns the authenticated caller, or the zero Caller
// when the request did not pass through Auth.
func CallerFromContext(ctx context.Context) domain.Caller {
	caller, _ := ctx.Value(callerKey{}).(domain.Caller)
	return caller
}

// Authenticator resolves a bearer token to a live user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Auth admits requests carrying a valid bearer token and stores the caller
// on the request context.
func Auth(authenticator Authenticator, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w)
				return
			}

			user, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthorized) {
					log.ErrorContext(r.Context(), "Token could not be checked", map[string]interface{}{"error": err.Error()})
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]interface{}{"message": "Internal Server Error!", "data": nil})
					return
				}
				unauthorized(w)
				return
			}

			ctx := WithCaller(r.Context(), domain.Caller{UserID: user.ID, Role: user.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]interface{}{"message": "Unauthorized!", "data": nil})
}
