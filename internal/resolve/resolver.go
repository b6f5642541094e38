// Package resolve coordinates artist origin resolution: batch cache lookup
// first, then sequential upstream fetches for the misses, writing each fresh
// result back to the cache as it lands.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundatlas/soundatlas/internal/musicbrainz"
	"github.com/soundatlas/soundatlas/internal/origincache"
)

// Source labels where a resolution result came from.
type Source string

const (
	SourceCache    Source = "db_cache"
	SourceFetched  Source = "api_fetched"
	SourceNotFound Source = "api_not_found"
	SourceNoMatch  Source = "api_no_match"
)

// Result is a single artist's resolution outcome. Country is nil when the
// artist is matched but has no determinable country, or was not found at all.
type Result struct {
	ArtistName string  `json:"artistName"`
	Country    *string `json:"country"`
	MBID       *string `json:"mbid"`
	NameFound  *string `json:"nameFound"`
	Source     Source  `json:"source"`
}

// Progress reports how far a resolution pass has advanced. It exists to drive
// progress indicators and carries no correctness obligation.
type Progress struct {
	Resolved int
	Total    int
	Name     string
}

// ProgressFunc receives a progress update after each resolved artist.
type ProgressFunc func(Progress)

// Cache is the persistent origin cache surface the resolver needs.
type Cache interface {
	Get(ctx context.Context, name string) (*origincache.Entry, error)
	GetBatch(ctx context.Context, names []string) map[string]origincache.Entry
	Upsert(ctx context.Context, name string, countryCode, mbid, nameFound *string) error
}

// Lookuper resolves a single artist name upstream.
type Lookuper interface {
	LookupOrigin(ctx context.Context, name string) (*musicbrainz.Origin, error)
}

// Resolver ties the cache and the upstream client together.
type Resolver struct {
	cache  Cache
	mb     Lookuper
	logger *slog.Logger
}

// New creates a resolver.
func New(cache Cache, mb Lookuper, logger *slog.Logger) *Resolver {
	return &Resolver{
		cache:  cache,
		mb:     mb,
		logger: logger.With(slog.String("component", "resolve")),
	}
}

// ResolveOne resolves a single artist, serving from the cache when fresh.
// Upstream transport errors propagate to the caller and are not cached;
// definitive not-found and no-match outcomes are cached as negatives.
func (r *Resolver) ResolveOne(ctx context.Context, name string) (*Result, error) {
	entry, err := r.cache.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if entry != nil {
		return &Result{
			ArtistName: name,
			Country:    entry.CountryCode,
			MBID:       entry.MBID,
			NameFound:  entry.NameFound,
			Source:     SourceCache,
		}, nil
	}

	origin, err := r.mb.LookupOrigin(ctx, name)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Upsert(ctx, name, origin.Country, origin.MBID, origin.NameFound); err != nil {
		return nil, fmt.Errorf("caching result: %w", err)
	}

	return &Result{
		ArtistName: name,
		Country:    origin.Country,
		MBID:       origin.MBID,
		NameFound:  origin.NameFound,
		Source:     sourceForStatus(origin.Status),
	}, nil
}

// ResolveAll resolves a set of artist names: one batch cache lookup, then a
// sequential upstream fetch per miss. The returned map is keyed by the
// lowercased artist name. Individual upstream failures are recorded as
// negatives and the loop continues; only context cancellation stops the pass,
// returning whatever resolved so far alongside the context error.
func (r *Resolver) ResolveAll(ctx context.Context, names []string, onProgress ProgressFunc) (map[string]Result, error) {
	// Dedupe on the normalized key, keeping the first spelling seen.
	keys := make([]string, 0, len(names))
	original := make(map[string]string, len(names))
	for _, name := range names {
		key := origincache.Key(name)
		if _, seen := original[key]; seen {
			continue
		}
		original[key] = name
		keys = append(keys, key)
	}

	results := make(map[string]Result, len(keys))
	total := len(keys)

	hits := r.cache.GetBatch(ctx, keys)
	for key, entry := range hits {
		results[key] = Result{
			ArtistName: original[key],
			Country:    entry.CountryCode,
			MBID:       entry.MBID,
			NameFound:  entry.NameFound,
			Source:     SourceCache,
		}
	}

	resolved := len(results)
	if onProgress != nil {
		onProgress(Progress{Resolved: resolved, Total: total})
	}

	// Sequential on purpose: the upstream client enforces a strict rate
	// limit, so fanning out buys nothing.
	for _, key := range keys {
		if _, done := results[key]; done {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		name := original[key]
		result := r.fetchOne(ctx, name)
		results[key] = result

		resolved++
		if onProgress != nil {
			onProgress(Progress{Resolved: resolved, Total: total, Name: name})
		}
	}

	return results, nil
}

// fetchOne resolves a single cache miss and writes the outcome back. Upstream
// failures become cached negatives so the pass keeps moving; re-resolution is
// manual, by purging negatives.
func (r *Resolver) fetchOne(ctx context.Context, name string) Result {
	origin, err := r.mb.LookupOrigin(ctx, name)
	if err != nil {
		r.logger.Warn("origin lookup failed",
			slog.String("artist", name), slog.String("error", err.Error()))
		origin = &musicbrainz.Origin{Status: musicbrainz.StatusNotFound}
	}

	if err := r.cache.Upsert(ctx, name, origin.Country, origin.MBID, origin.NameFound); err != nil {
		r.logger.Warn("caching result failed",
			slog.String("artist", name), slog.String("error", err.Error()))
	}

	return Result{
		ArtistName: name,
		Country:    origin.Country,
		MBID:       origin.MBID,
		NameFound:  origin.NameFound,
		Source:     sourceForStatus(origin.Status),
	}
}

func sourceForStatus(status musicbrainz.Status) Source {
	switch status {
	case musicbrainz.StatusNotFound:
		return SourceNotFound
	case musicbrainz.StatusNoMatch:
		return SourceNoMatch
	default:
		return SourceFetched
	}
}
