// Package musicbrainz resolves artist names to countries of origin via the
// MusicBrainz API, including the area-hierarchy walk for artists whose
// metadata only names a city or subdivision.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/soundatlas/soundatlas/internal/version"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// MusicBrainz publishes a 1 req/s limit; the search interval leaves headroom.
// Area lookups are cheaper and happen mid-walk, so they run on a faster lane.
const (
	searchInterval = 1100 * time.Millisecond
	areaInterval   = 600 * time.Millisecond
)

// ErrUnavailable indicates a transient upstream failure (rate-limited,
// timeout, server error).
type ErrUnavailable struct {
	Cause error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("musicbrainz unavailable: %v", e.Cause)
}

func (e *ErrUnavailable) Unwrap() error { return e.Cause }

// Client is a rate-limited MusicBrainz API client.
type Client struct {
	client        *http.Client
	searchLimiter *rate.Limiter
	areaLimiter   *rate.Limiter
	logger        *slog.Logger
	baseURL       string
	userAgent     string
}

// New creates a MusicBrainz client against the default API endpoint.
func New(contact string, logger *slog.Logger) *Client {
	return NewWithBaseURL(defaultBaseURL, contact, logger)
}

// NewWithBaseURL creates a client with a custom base URL (for testing).
func NewWithBaseURL(baseURL, contact string, logger *slog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		searchLimiter: rate.NewLimiter(rate.Every(searchInterval), 1),
		areaLimiter:   rate.NewLimiter(rate.Every(areaInterval), 1),
		logger:        logger.With(slog.String("component", "musicbrainz")),
		baseURL:       strings.TrimRight(baseURL, "/"),
		userAgent:     userAgent(contact),
	}
}

// SearchArtist queries the artist search endpoint and returns the candidates.
func (c *Client) SearchArtist(ctx context.Context, name string) ([]Artist, error) {
	params := url.Values{
		"query": {"artist:" + name},
		"fmt":   {"json"},
		"limit": {"5"},
	}
	reqURL := c.baseURL + "/artist/?" + params.Encode()

	body, err := c.doRequest(ctx, c.searchLimiter, reqURL)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	return resp.Artists, nil
}

// LookupOrigin resolves an artist name to its country of origin. Candidate
// selection prefers an exact case-insensitive name match, then the highest
// relevance score. Country extraction tries the candidate's direct country
// field, then its area, then its begin-area, each via the hierarchy walk;
// when all fail the result is a negative with StatusFetched.
func (c *Client) LookupOrigin(ctx context.Context, name string) (*Origin, error) {
	candidates, err := c.SearchArtist(ctx, name)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 {
		return &Origin{Status: StatusNotFound}, nil
	}

	best := bestMatch(name, candidates)
	if best == nil {
		return &Origin{Status: StatusNoMatch}, nil
	}

	origin := &Origin{
		MBID:      &best.ID,
		NameFound: &best.Name,
		Status:    StatusFetched,
	}

	country := ""
	switch {
	case best.Country != "":
		country = strings.ToUpper(best.Country)
	case best.Area != nil:
		country = c.resolveAreaCountry(ctx, best.Area, 0)
	}
	if country == "" && best.BeginArea != nil {
		country = c.resolveAreaCountry(ctx, best.BeginArea, 0)
	}
	if country != "" {
		origin.Country = &country
	}

	return origin, nil
}

// bestMatch picks the candidate to use: an exact case-insensitive name match
// wins, otherwise the highest relevance score.
func bestMatch(query string, candidates []Artist) *Artist {
	lower := strings.ToLower(query)
	for i := range candidates {
		if strings.ToLower(candidates[i].Name) == lower {
			return &candidates[i]
		}
	}

	sorted := make([]Artist, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) == 0 {
		return nil
	}
	return &sorted[0]
}

// doRequest executes a rate-limited HTTP GET with standard headers.
func (c *Client) doRequest(ctx context.Context, limiter *rate.Limiter, reqURL string) ([]byte, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, &ErrUnavailable{Cause: fmt.Errorf("rate limiter: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("requesting", slog.String("url", reqURL))

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ErrUnavailable{Cause: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &ErrUnavailable{Cause: fmt.Errorf("unexpected HTTP %d", resp.StatusCode)}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

func userAgent(contact string) string {
	if contact == "" {
		contact = "https://github.com/soundatlas/soundatlas"
	}
	return fmt.Sprintf("soundatlas/%s (%s)", version.Version, contact)
}
