package origincache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// DefaultValidity is the staleness window applied when none is configured.
const DefaultValidity = 30 * 24 * time.Hour

// Service provides durable artist-origin cache operations. Every call hits
// the store directly; there is no in-process tier in front of it.
type Service struct {
	db       *sql.DB
	validity time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates an origin cache service with the given validity window.
// A non-positive validity falls back to DefaultValidity.
func NewService(db *sql.DB, validity time.Duration, logger *slog.Logger) *Service {
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Service{
		db:       db,
		validity: validity,
		logger:   logger.With(slog.String("component", "origincache")),
		now:      time.Now,
	}
}

// Key normalizes an artist name to its cache key.
func Key(artistName string) string {
	return strings.ToLower(artistName)
}

// Get returns the fresh entry for the given artist name, or nil when the
// entry is missing or stale. Callers must treat both the same way: the
// artist has to be re-resolved.
func (s *Service) Get(ctx context.Context, artistName string) (*Entry, error) {
	key := Key(artistName)

	var e Entry
	var lastFetched int64
	err := s.db.QueryRowContext(ctx, `
		SELECT artist_name_query, country_code, mbid, name_found, last_fetched
		FROM artist_origin_cache WHERE artist_name_query = ?
	`, key).Scan(&e.QueryKey, &e.CountryCode, &e.MBID, &e.NameFound, &lastFetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying origin cache: %w", err)
	}

	e.LastFetched = time.UnixMilli(lastFetched)
	if s.now().Sub(e.LastFetched) >= s.validity {
		return nil, nil
	}
	return &e, nil
}

// GetBatch returns all fresh entries for the given artist names in a single
// query, keyed by normalized name. Stale and missing names are omitted
// entirely so callers can compute the miss set by set difference. On store
// failure it returns an empty map: the whole batch degrades to the slow path
// rather than blocking resolution.
func (s *Service) GetBatch(ctx context.Context, artistNames []string) map[string]Entry {
	results := make(map[string]Entry)
	if len(artistNames) == 0 {
		return results
	}

	placeholders := make([]string, len(artistNames))
	args := make([]any, 0, len(artistNames)+1)
	for i, name := range artistNames {
		placeholders[i] = "?"
		args = append(args, Key(name))
	}
	staleBefore := s.now().Add(-s.validity).UnixMilli()
	args = append(args, staleBefore)

	query := `
		SELECT artist_name_query, country_code, mbid, name_found, last_fetched
		FROM artist_origin_cache
		WHERE artist_name_query IN (` + strings.Join(placeholders, ",") + `)
		AND last_fetched >= ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Warn("batch cache lookup failed, treating all names as misses", "error", err)
		return results
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var e Entry
		var lastFetched int64
		if err := rows.Scan(&e.QueryKey, &e.CountryCode, &e.MBID, &e.NameFound, &lastFetched); err != nil {
			s.logger.Warn("scanning cache row", "error", err)
			continue
		}
		e.LastFetched = time.UnixMilli(lastFetched)
		results[e.QueryKey] = e
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("iterating cache rows", "error", err)
	}

	return results
}

// Upsert writes the resolution result for an artist name, replacing any
// existing entry and resetting its fetch timestamp. A nil countryCode is a
// valid negative result ("resolved, no country found") and is cached like
// any other.
func (s *Service) Upsert(ctx context.Context, artistName string, countryCode, mbid, nameFound *string) error {
	key := Key(artistName)
	now := s.now().UnixMilli()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artist_origin_cache (artist_name_query, country_code, mbid, name_found, last_fetched)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (artist_name_query) DO UPDATE SET
			country_code = excluded.country_code,
			mbid = excluded.mbid,
			name_found = excluded.name_found,
			last_fetched = excluded.last_fetched
	`, key, countryCode, mbid, nameFound, now)
	if err != nil {
		return fmt.Errorf("upserting origin cache entry: %w", err)
	}
	return nil
}

// DeleteNegatives removes every entry with a NULL country code regardless of
// age and returns the number deleted. This is the manual "retry unknowns"
// escape hatch: some negatives come from transient upstream gaps rather than
// a genuinely unknown origin.
func (s *Service) DeleteNegatives(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM artist_origin_cache WHERE country_code IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("deleting negative cache entries: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted entries: %w", err)
	}
	return count, nil
}
