package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/soundatlas/soundatlas/internal/auth"
)

type contextKey string

const sessionKey contextKey = "session"

// Auth returns middleware that requires a valid session. The full session,
// including a fresh Spotify access token, lands in the request context.
func Auth(authService *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			session, err := authService.ValidateSession(r.Context(), token)
			if err != nil {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext extracts the authenticated session from the context.
func SessionFromContext(ctx context.Context) *auth.Session {
	if s, ok := ctx.Value(sessionKey).(*auth.Session); ok {
		return s
	}
	return nil
}

func extractToken(r *http.Request) string {
	// Cookie first (web UI)
	if cookie, err := r.Cookie("session"); err == nil {
		return cookie.Value
	}

	// Authorization header (API clients)
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}

	return ""
}
