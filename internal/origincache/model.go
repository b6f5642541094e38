// Package origincache stores resolved artist origins in SQLite. Entries are
// keyed by the lower-cased artist name that was queried, carry the resolved
// ISO 3166-1 country code (or NULL for a known "no country found" result),
// and expire after a validity window, after which they are treated as absent.
package origincache

import "time"

// Entry is a cached artist-origin lookup result.
type Entry struct {
	QueryKey    string
	CountryCode *string
	MBID        *string
	NameFound   *string
	LastFetched time.Time
}

// Negative reports whether this entry is a cached "no country found" result.
func (e *Entry) Negative() bool {
	return e.CountryCode == nil
}
