package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"parkingapi/internal/db"
	apperrors "parkingapi/internal/errors"
)

type contextKey string

const callerKey contextKey = "caller"

// Middleware requires a valid bearer token and stores the Caller in the request context.
func Middleware(tm *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, apperrors.ErrUnauthorized("missing bearer token"))
				return
			}
			claims, err := tm.Parse(header)
			if err != nil {
				writeError(w, apperrors.ErrUnauthorized("invalid token"))
				return
			}
			caller, err := claims.Caller()
			if err != nil {
				writeError(w, apperrors.ErrUnauthorized("invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireRole rejects callers whose role is not listed. It must run after Middleware.
func RequireRole(roles ...db.Role) func(http.Handler) http.Handler {
	allowed := make(map[db.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFrom(r.Context())
			if !ok {
				writeError(w, apperrors.ErrUnauthorized("missing bearer token"))
				return
			}
			if _, ok := allowed[caller.Role]; !ok {
				writeError(w, apperrors.ErrForbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

func writeError(w http.ResponseWriter, e *apperrors.HTTPError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Code)
	json.NewEncoder(w).Encode(map[string]*apperrors.HTTPError{"error": e})
}
