// Package auth manages Spotify OAuth login and server-side sessions. Refresh
// tokens are stored encrypted; access tokens are refreshed transparently when
// a session is validated close to token expiry.
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	spotifyoauth "golang.org/x/oauth2/spotify"

	"github.com/soundatlas/soundatlas/internal/encryption"
)

const (
	sessionDuration = 7 * 24 * time.Hour
	// refreshLeeway renews access tokens slightly before expiry so a long
	// library fetch does not race the deadline mid-pass.
	refreshLeeway = time.Minute
)

// ErrInvalidSession indicates a missing or expired session.
var ErrInvalidSession = errors.New("invalid session")

// Session is an authenticated user's server-side state. AccessToken is fresh
// whenever ValidateSession returns.
type Session struct {
	ID             string
	SpotifyUserID  string
	DisplayName    string
	AccessToken    string
	TokenExpiresAt time.Time
}

// Service provides login, session validation, and token refresh.
type Service struct {
	db         *sql.DB
	oauth      *oauth2.Config
	enc        *encryption.Encryptor
	logger     *slog.Logger
	profileURL string
}

// NewService creates an auth service for the given Spotify app credentials.
func NewService(db *sql.DB, clientID, clientSecret, redirectURL string, enc *encryption.Encryptor, logger *slog.Logger) *Service {
	return &Service{
		db: db,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"user-library-read", "playlist-read-private"},
			Endpoint:     spotifyoauth.Endpoint,
		},
		enc:        enc,
		logger:     logger.With(slog.String("component", "auth")),
		profileURL: "https://api.spotify.com/v1/me",
	}
}

// AuthURL returns the Spotify consent page URL for the given state.
func (s *Service) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state)
}

// HandleCallback exchanges an authorization code for tokens, loads the user's
// profile, and creates a session. Returns the new session ID.
func (s *Service) HandleCallback(ctx context.Context, code string) (string, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		return "", errors.New("authorization response carried no refresh token")
	}

	profile, err := s.fetchProfile(ctx, token)
	if err != nil {
		return "", fmt.Errorf("fetching profile: %w", err)
	}

	encRefresh, err := s.enc.Encrypt(token.RefreshToken)
	if err != nil {
		return "", fmt.Errorf("encrypting refresh token: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, spotify_user_id, display_name, access_token,
			encrypted_refresh_token, token_expires_at, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, profile.ID, profile.DisplayName, token.AccessToken, encRefresh,
		token.Expiry.UTC().Format(time.RFC3339),
		now.Add(sessionDuration).Format(time.RFC3339),
		now.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	s.logger.Info("session created", slog.String("user", profile.ID))
	return id, nil
}

// ValidateSession checks a session ID, refreshing the access token when it is
// about to expire. Returns ErrInvalidSession for unknown or expired sessions.
func (s *Service) ValidateSession(ctx context.Context, id string) (*Session, error) {
	var (
		sess                              Session
		encRefresh, tokenExpires, expires string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT spotify_user_id, display_name, access_token,
			encrypted_refresh_token, token_expires_at, expires_at
		FROM sessions WHERE id = ?
	`, id).Scan(&sess.SpotifyUserID, &sess.DisplayName, &sess.AccessToken,
		&encRefresh, &tokenExpires, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}
	sess.ID = id

	expiresAt, err := time.Parse(time.RFC3339, expires)
	if err != nil {
		return nil, fmt.Errorf("parsing session expiry: %w", err)
	}
	if time.Now().UTC().After(expiresAt) {
		_ = s.Logout(ctx, id)
		return nil, ErrInvalidSession
	}

	sess.TokenExpiresAt, err = time.Parse(time.RFC3339, tokenExpires)
	if err != nil {
		return nil, fmt.Errorf("parsing token expiry: %w", err)
	}

	if time.Now().UTC().Add(refreshLeeway).After(sess.TokenExpiresAt) {
		if err := s.refreshToken(ctx, &sess, encRefresh); err != nil {
			return nil, fmt.Errorf("refreshing access token: %w", err)
		}
	}

	return &sess, nil
}

// Logout deletes a session.
func (s *Service) Logout(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CleanExpiredSessions removes sessions past their expiry.
func (s *Service) CleanExpiredSessions(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?",
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("cleaning sessions: %w", err)
	}
	if count, err := result.RowsAffected(); err == nil && count > 0 {
		s.logger.Info("cleaned expired sessions", slog.Int64("count", count))
	}
	return nil
}

// refreshToken exchanges the stored refresh token for a new access token and
// persists the rotation. Spotify may or may not issue a new refresh token.
func (s *Service) refreshToken(ctx context.Context, sess *Session, encRefresh string) error {
	refresh, err := s.enc.Decrypt(encRefresh)
	if err != nil {
		return fmt.Errorf("decrypting refresh token: %w", err)
	}

	token, err := s.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refresh}).Token()
	if err != nil {
		return err
	}

	stored := encRefresh
	if token.RefreshToken != "" && token.RefreshToken != refresh {
		if stored, err = s.enc.Encrypt(token.RefreshToken); err != nil {
			return fmt.Errorf("encrypting rotated refresh token: %w", err)
		}
	}

	sess.AccessToken = token.AccessToken
	sess.TokenExpiresAt = token.Expiry.UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE sessions SET access_token = ?, encrypted_refresh_token = ?, token_expires_at = ?
		WHERE id = ?
	`, sess.AccessToken, stored, sess.TokenExpiresAt.Format(time.RFC3339), sess.ID)
	if err != nil {
		return fmt.Errorf("persisting refreshed token: %w", err)
	}

	s.logger.Debug("access token refreshed", slog.String("session", sess.ID))
	return nil
}

type profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

func (s *Service) fetchProfile(ctx context.Context, token *oauth2.Token) (*profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.profileURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected HTTP %d", resp.StatusCode)
	}

	var p profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	if p.ID == "" {
		return nil, errors.New("profile response missing user id")
	}
	return &p, nil
}
