package api

import (
	"net/http"
)

// handleLikedSongs fetches the user's complete liked-songs list.
func (r *Router) handleLikedSongs(w http.ResponseWriter, req *http.Request) {
	session := r.requireSession(w, req)
	if session == nil {
		return
	}

	tracks, err := r.spotifyClient.GetLikedSongs(req.Context(), session.AccessToken)
	if err != nil {
		r.logger.Error("fetching liked songs failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to fetch liked songs"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tracks": tracks,
		"total":  len(tracks),
	})
}

// handlePlaylists lists the user's playlists.
func (r *Router) handlePlaylists(w http.ResponseWriter, req *http.Request) {
	session := r.requireSession(w, req)
	if session == nil {
		return
	}

	playlists, err := r.spotifyClient.GetPlaylists(req.Context(), session.AccessToken)
	if err != nil {
		r.logger.Error("fetching playlists failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to fetch playlists"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlists": playlists,
		"total":     len(playlists),
	})
}

// handlePlaylistTracks fetches every track of one playlist.
func (r *Router) handlePlaylistTracks(w http.ResponseWriter, req *http.Request) {
	session := r.requireSession(w, req)
	if session == nil {
		return
	}

	playlistID := req.PathValue("id")
	if playlistID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "playlist id is required"})
		return
	}

	tracks, err := r.spotifyClient.GetPlaylistTracks(req.Context(), session.AccessToken, playlistID)
	if err != nil {
		r.logger.Error("fetching playlist tracks failed", "playlist", playlistID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to fetch playlist tracks"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tracks": tracks,
		"total":  len(tracks),
	})
}
