package api

import (
	"net/http"

	"github.com/soundatlas/soundatlas/internal/aggregate"
	"github.com/soundatlas/soundatlas/internal/resolve"
	"github.com/soundatlas/soundatlas/internal/spotify"
)

// handleArtistOrigin resolves one artist: cache first, then upstream.
func (r *Router) handleArtistOrigin(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("name")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name query parameter is required"})
		return
	}

	result, err := r.resolver.ResolveOne(req.Context(), name)
	if err != nil {
		r.logger.Error("artist origin resolution failed", "artist", name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to resolve artist origin"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type batchOriginsRequest struct {
	ArtistNames []string `json:"artistNames"`
}

type batchOriginEntry struct {
	Country   *string `json:"country"`
	MBID      *string `json:"mbid"`
	NameFound *string `json:"nameFound"`
}

// handleBatchOrigins serves fresh cache hits only, keyed by lowercased name.
// Misses are silently omitted; callers fall back to per-artist resolution.
func (r *Router) handleBatchOrigins(w http.ResponseWriter, req *http.Request) {
	var body batchOriginsRequest
	if err := decodeBody(req, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.ArtistNames == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "artistNames array is required"})
		return
	}

	response := make(map[string]batchOriginEntry, len(body.ArtistNames))
	for key, entry := range r.originCache.GetBatch(req.Context(), body.ArtistNames) {
		response[key] = batchOriginEntry{
			Country:   entry.CountryCode,
			MBID:      entry.MBID,
			NameFound: entry.NameFound,
		}
	}

	writeJSON(w, http.StatusOK, response)
}

type resolveTracksRequest struct {
	Tracks []spotify.Track `json:"tracks"`
}

type resolveTracksResponse struct {
	Origins       map[string]resolve.Result `json:"origins"`
	Counts        map[string]int            `json:"counts"`
	UnknownsCount int                       `json:"unknownsCount"`
	Unknowns      []aggregate.UnknownTrack  `json:"unknowns"`
}

// handleResolveTracks runs the full pipeline for a track list: resolve every
// first artist, then aggregate per-country counts and the unknowns report.
func (r *Router) handleResolveTracks(w http.ResponseWriter, req *http.Request) {
	var body resolveTracksRequest
	if err := decodeBody(req, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	names := make([]string, 0, len(body.Tracks))
	for _, track := range body.Tracks {
		if len(track.Artists) > 0 && track.Artists[0].Name != "" {
			names = append(names, track.Artists[0].Name)
		}
	}

	origins, err := r.resolver.ResolveAll(req.Context(), names, func(p resolve.Progress) {
		if p.Resolved%25 == 0 || p.Resolved == p.Total {
			r.logger.Debug("resolution progress", "resolved", p.Resolved, "total", p.Total)
		}
	})
	if err != nil {
		// Client went away mid-pass; nothing useful to write.
		r.logger.Debug("resolution pass interrupted", "error", err)
		return
	}

	unknownsCount, unknowns := aggregate.Unknowns(body.Tracks, origins)
	writeJSON(w, http.StatusOK, resolveTracksResponse{
		Origins:       origins,
		Counts:        aggregate.CountByCountry(body.Tracks, origins),
		UnknownsCount: unknownsCount,
		Unknowns:      unknowns,
	})
}

// handleClearUnknowns purges negative cache entries so their artists get
// re-resolved on the next pass.
func (r *Router) handleClearUnknowns(w http.ResponseWriter, req *http.Request) {
	count, err := r.originCache.DeleteNegatives(req.Context())
	if err != nil {
		r.logger.Error("clearing unknown origins failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to clear unknown origins"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "cleared unknown artist entries",
		"count":   count,
	})
}
