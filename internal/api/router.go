// Package api exposes the HTTP surface: Spotify login, library fetching,
// origin resolution, and cache administration.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/soundatlas/soundatlas/internal/api/middleware"
	"github.com/soundatlas/soundatlas/internal/auth"
	"github.com/soundatlas/soundatlas/internal/origincache"
	"github.com/soundatlas/soundatlas/internal/resolve"
	"github.com/soundatlas/soundatlas/internal/spotify"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	AuthService   *auth.Service
	SpotifyClient *spotify.Client
	Resolver      *resolve.Resolver
	OriginCache   *origincache.Service
	Logger        *slog.Logger
	BasePath      string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	authService   *auth.Service
	spotifyClient *spotify.Client
	resolver      *resolve.Resolver
	originCache   *origincache.Service
	logger        *slog.Logger
	basePath      string
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		authService:   deps.AuthService,
		spotifyClient: deps.SpotifyClient,
		resolver:      deps.Resolver,
		originCache:   deps.OriginCache,
		logger:        deps.Logger,
		basePath:      deps.BasePath,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
// ctx bounds background work owned by middleware, such as rate-limiter
// cleanup.
func (r *Router) Handler(ctx context.Context) http.Handler {
	authMw := middleware.Auth(r.authService)
	loginLimiter := middleware.NewLoginRateLimiter(ctx)
	mux := http.NewServeMux()
	bp := r.basePath

	// Public routes (no auth, rate-limited login flow)
	mux.HandleFunc("GET "+bp+"/api/v1/health", r.handleHealth)
	mux.Handle("GET "+bp+"/api/v1/auth/login", loginLimiter.Middleware(http.HandlerFunc(r.handleLogin)))
	mux.Handle("GET "+bp+"/api/v1/auth/callback", loginLimiter.Middleware(http.HandlerFunc(r.handleCallback)))

	// Protected routes (auth required)
	mux.HandleFunc("POST "+bp+"/api/v1/auth/logout", wrapAuth(r.handleLogout, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/auth/me", wrapAuth(r.handleMe, authMw))

	// Spotify library routes
	mux.HandleFunc("GET "+bp+"/api/v1/spotify/liked-songs", wrapAuth(r.handleLikedSongs, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/spotify/playlists", wrapAuth(r.handlePlaylists, authMw))
	mux.HandleFunc("GET "+bp+"/api/v1/spotify/playlists/{id}/tracks", wrapAuth(r.handlePlaylistTracks, authMw))

	// Origin resolution routes
	mux.HandleFunc("GET "+bp+"/api/v1/origins/artist", wrapAuth(r.handleArtistOrigin, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/origins/batch", wrapAuth(r.handleBatchOrigins, authMw))
	mux.HandleFunc("POST "+bp+"/api/v1/origins/resolve", wrapAuth(r.handleResolveTracks, authMw))

	// Admin routes
	mux.HandleFunc("POST "+bp+"/api/v1/admin/clear-unknowns", wrapAuth(r.handleClearUnknowns, authMw))

	// Apply logging and security headers to all requests
	return middleware.SecurityHeaders(middleware.Logging(r.logger)(mux))
}

// wrapAuth wraps a handler function with auth middleware.
func wrapAuth(fn http.HandlerFunc, authMw func(http.Handler) http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authMw(fn).ServeHTTP(w, r)
	}
}
