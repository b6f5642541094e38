// Package aggregate turns a track list plus a resolved origin map into
// per-country song counts and an unknown-origins report. Pure functions over
// their inputs; callers must only aggregate once resolution has settled, since
// a partially resolved map undercounts.
package aggregate

import (
	"sort"

	"github.com/soundatlas/soundatlas/internal/origincache"
	"github.com/soundatlas/soundatlas/internal/resolve"
	"github.com/soundatlas/soundatlas/internal/spotify"
)

// UnknownTrack is one track whose first artist has no known country.
type UnknownTrack struct {
	TrackName  string `json:"trackName"`
	ArtistName string `json:"artistName"`
}

// CountByCountry counts songs per country by each track's first artist.
// Tracks whose artist is absent from origins or resolved to null contribute
// to no bucket.
func CountByCountry(tracks []spotify.Track, origins map[string]resolve.Result) map[string]int {
	counts := make(map[string]int)
	for _, track := range tracks {
		artist := firstArtist(track)
		if artist == "" {
			continue
		}
		result, ok := origins[origincache.Key(artist)]
		if !ok || result.Country == nil {
			continue
		}
		counts[*result.Country]++
	}
	return counts
}

// Unknowns reports tracks whose first artist resolved to null: the number of
// unique such artists, and the per-track list sorted by artist then track
// name. Artists still absent from origins are pending, not unknown, and are
// excluded.
func Unknowns(tracks []spotify.Track, origins map[string]resolve.Result) (int, []UnknownTrack) {
	seen := make(map[string]struct{})
	var list []UnknownTrack

	for _, track := range tracks {
		artist := firstArtist(track)
		if artist == "" {
			continue
		}
		result, ok := origins[origincache.Key(artist)]
		if !ok || result.Country != nil {
			continue
		}
		seen[origincache.Key(artist)] = struct{}{}
		list = append(list, UnknownTrack{TrackName: track.Name, ArtistName: artist})
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].ArtistName != list[j].ArtistName {
			return list[i].ArtistName < list[j].ArtistName
		}
		return list[i].TrackName < list[j].TrackName
	})

	return len(seen), list
}

func firstArtist(track spotify.Track) string {
	if len(track.Artists) == 0 {
		return ""
	}
	return track.Artists[0].Name
}
