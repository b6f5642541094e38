package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/soundatlas/soundatlas/internal/api/middleware"
	"github.com/soundatlas/soundatlas/internal/auth"
	"github.com/soundatlas/soundatlas/internal/version"
)

const stateCookieMaxAge = 600 // seconds; covers the round trip to Spotify

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   stateCookieMaxAge,
	})
	http.Redirect(w, req, r.authService.AuthURL(state), http.StatusFound)
}

func (r *Router) handleCallback(w http.ResponseWriter, req *http.Request) {
	if errParam := req.URL.Query().Get("error"); errParam != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "authorization denied"})
		return
	}

	state := req.URL.Query().Get("state")
	cookie, err := req.Cookie("oauth_state")
	if err != nil || state == "" || state != cookie.Value {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "state mismatch"})
		return
	}

	code := req.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing authorization code"})
		return
	}

	sessionID, err := r.authService.HandleCallback(req.Context(), code)
	if err != nil {
		r.logger.Error("oauth callback failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "login failed"})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   true,
		MaxAge:   7 * 86400,
	})

	http.Redirect(w, req, r.basePath+"/", http.StatusFound)
}

func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	if cookie, err := req.Cookie("session"); err == nil {
		if logoutErr := r.authService.Logout(req.Context(), cookie.Value); logoutErr != nil {
			r.logger.Warn("failed to delete session", "error", logoutErr)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleMe(w http.ResponseWriter, req *http.Request) {
	session := middleware.SessionFromContext(req.Context())
	if session == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id":      session.SpotifyUserID,
		"display_name": session.DisplayName,
	})
}

// requireSession returns the session or writes a 401. Handlers behind
// wrapAuth should always find one; this guards direct handler tests.
func (r *Router) requireSession(w http.ResponseWriter, req *http.Request) *auth.Session {
	session := middleware.SessionFromContext(req.Context())
	if session == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	return session
}

func decodeBody(req *http.Request, v any) error {
	if req.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(req.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
