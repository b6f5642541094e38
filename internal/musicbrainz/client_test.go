package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"
)

// testUpstream is a fake MusicBrainz API: canned search results per query and
// an area graph served by ID.
type testUpstream struct {
	searches map[string][]Artist
	areas    map[string]Area
	fail     map[string]bool // paths forced to 500
}

func (u *testUpstream) handler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.URL.Path == "/artist/":
			query := strings.TrimPrefix(r.URL.Query().Get("query"), "artist:")
			if u.fail["search"] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			artists := u.searches[query]
			resp := searchResponse{Count: len(artists), Artists: artists}
			if err := json.NewEncoder(w).Encode(resp); err != nil {
				t.Errorf("encoding search response: %v", err)
			}

		case strings.HasPrefix(r.URL.Path, "/area/"):
			id := strings.TrimPrefix(r.URL.Path, "/area/")
			if u.fail["area:"+id] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			area, ok := u.areas[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			if err := json.NewEncoder(w).Encode(area); err != nil {
				t.Errorf("encoding area response: %v", err)
			}

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewWithBaseURL(baseURL, "test@example.com", logger)
	// No delays in tests.
	c.searchLimiter = rate.NewLimiter(rate.Inf, 1)
	c.areaLimiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

// areaChain builds n non-country areas a0 → a1 → ... → a(n-1) whose last
// element is "part of" the given country. Returns the leaf area reference.
func areaChain(u *testUpstream, n int, country Area) *Area {
	for i := range n {
		id := fmt.Sprintf("a%d", i)
		area := Area{ID: id, Name: fmt.Sprintf("Area %d", i), Type: "District"}
		if i == n-1 {
			area.Relations = []AreaRelation{{Type: "part of", Direction: "backward", Area: &country}}
		} else {
			parent := &Area{ID: fmt.Sprintf("a%d", i+1), Name: fmt.Sprintf("Area %d", i+1), Type: "District"}
			area.Relations = []AreaRelation{{Type: "part of", Direction: "backward", Area: parent}}
		}
		u.areas[id] = area
	}
	return &Area{ID: "a0", Name: "Area 0", Type: "District"}
}

func TestLookupOriginDirectCountry(t *testing.T) {
	u := &testUpstream{
		searches: map[string][]Artist{
			"Daft Punk": {{ID: "mb-1", Name: "Daft Punk", Country: "fr", Score: 100}},
		},
		areas: map[string]Area{},
		fail:  map[string]bool{},
	}
	srv := httptest.NewServer(u.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	origin, err := c.LookupOrigin(context.Background(), "Daft Punk")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if origin.Status != StatusFetched {
		t.Errorf("expected fetched, got %s", origin.Status)
	}
	if origin.Country == nil || *origin.Country != "FR" {
		t.Errorf("expected FR, got %v", origin.Country)
	}
	if origin.MBID == nil || *origin.MBID != "mb-1" {
		t.Errorf("unexpected mbid: %v", origin.MBID)
	}
}

func TestLookupOriginExactMatchBeatsScore(t *testing.T) {
	u := &testUpstream{
		searches: map[string][]Artist{
			"Low": {
				{ID: "mb-high", Name: "Low Roar", Country: "IS", Score: 100},
				{ID: "mb-exact", Name: "low", Country: "US", Score: 60},
			},
		},
		areas: map[string]Area{},
		fail:  map[string]bool{},
	}
	srv := httptest.NewServer(u.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	origin, err := c.LookupOrigin(context.Background(), "Low")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if origin.MBID == nil || *origin.MBID != "mb-exact" {
		t.Errorf("exact case-insensitive match must win, got %v", origin.MBID)
	}
}

func TestLookupOriginScoreFallback(t *testing.T) {
	u := &testUpstream{
		searches: map[string][]Artist{
			"Beatles": {
				{ID: "mb-low", Name: "The Beatles Revival Band", Score: 40},
				{ID: "mb-top", Name: "The Beatles", Country: "GB", Score: 99},
			},
		},
		areas: map[string]Area{},
		fail:  map[string]bool{},
	}
	srv := httptest.NewServer(u.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	origin, err := c.LookupOrigin(context.Background(), "Beatles")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if origin.MBID == nil || *origin.MBID != "mb-top" {
		t.Errorf("highest score must win without an exact match, got %v", origin.MBID)
	}
}

func TestLookupOriginNotFound(t *testing.T) {
	u := &testUpstream{searches: map[string][]Artist{}, areas: map[string]Area{}, fail: map[string]bool{}}
	srv := httptest.NewServer(u.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	origin, err := c.LookupOrigin(context.Background(), "nonexistent-artist-xyz")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if origin.Status != StatusNotFound {
		t.Errorf("expected not_found, got %s", origin.Status)
	}
	if origin.Country != nil {
		t.Errorf("expected nil country, got %v", *origin.Country)
	}
}

func TestLookupOriginAreaHierarchy(t *testing.T) {
	// City → Subdivision → Country, two hops.
	u := &testUpstream{
		searches: map[string][]Artist{},
		areas: map[string]Area{
			"philly": {ID: "philly", Name: "Philadelphia", Type: "City", Relations: []AreaRelation{
				{Type: "part of", Direction: "backward", Area: &Area{ID: "pa", Name: "Pennsylvania", Type: "Subdivision"}},
			}},
			"pa": {ID: "pa", Name: "Pennsylvania", Type: "Subdivision", Relations: []AreaRelation{
				{Type: "part of", Direction: "backward", Area: &Area{ID: "us", Name: "United States", Type: "Country", ISOCodes: []string{"US"}}},
			}},
		},
		fail: map[string]bool{},
	}
	u.searches["The Roots"] = []Artist{{
		ID: "mb-roots", Name: "The Roots", Score: 100,
		Area: &Area{ID: "philly", Name: "Philadelphia", Type: "City"},
	}}
	srv := httptest.NewServer(u.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	origin, err := c.LookupOrigin(context.Background(), "The Roots")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if origin.Country == nil || *origin.Country != "US" {
		t.Errorf("expected US after two hops, got %v", origin.Country)
	}
}

func TestLookupOriginBeginAreaFallback(t *testing.T) {
	u := &testUpstream{
		searches: map[string][]Artist{
			"Solo Act": {{
				ID: "mb-solo", Name: "Solo Act", Score: 100,
				BeginArea: &Area{ID: "se", Name: "Sweden", Type: "Country", ISOCodes: []string{"SE"}},
			}},
		},
		areas: map[string]Area{},
		fail:  map[string]bool{},
	}
	srv := httptest.NewServer(u.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	origin, err := c.LookupOrigin(context.Background(), "Solo Act")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if origin.Country == nil || *origin.Country != "SE" {
		t.Errorf("expected SE via begin-area, got %v", origin.Country)
	}
}

func TestLookupOriginUpstreamError(t *testing.T) {
	u := &testUpstream{searches: map[string][]Artist{}, areas: map[string]Area{}, fail: map[string]bool{"search": true}}
	srv := httptest.NewServer(u.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	if _, err := c.LookupOrigin(context.Background(), "anyone"); err == nil {
		t.Error("expected error on upstream 500")
	}
}

func TestLookupOriginAreaFetchFailureIsNegative(t *testing.T) {
	u := &testUpstream{
		searches: map[string][]Artist{
			"Lost Act": {{
				ID: "mb-lost", Name: "Lost Act", Score: 100,
				Area: &Area{ID: "broken", Name: "Broken Area", Type: "City"},
			}},
		},
		areas: map[string]Area{},
		fail:  map[string]bool{"area:broken": true},
	}
	srv := httptest.NewServer(u.handler(t))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	origin, err := c.LookupOrigin(context.Background(), "Lost Act")
	if err != nil {
		t.Fatalf("lookup must not fail on area errors: %v", err)
	}
	if origin.Status != StatusFetched {
		t.Errorf("expected fetched, got %s", origin.Status)
	}
	if origin.Country != nil {
		t.Errorf("expected negative result, got %v", *origin.Country)
	}
}
