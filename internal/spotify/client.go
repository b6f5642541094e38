// Package spotify fetches a user's library (liked songs, playlists, playlist
// tracks) from the Spotify Web API, with pagination, bounded concurrency, and
// retry-with-backoff on rate-limit responses.
package spotify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"
)

const defaultBaseURL = "https://api.spotify.com/v1"

const (
	pageLimit       = 50
	pageBatchSize   = 10
	interBatchPause = 50 * time.Millisecond
	maxPageRetries  = 3
)

const trackFields = "total,next,items(added_at,track(id,name,uri,artists(name)))"

// Client talks to the Spotify Web API on behalf of a user's access token.
type Client struct {
	http   *resty.Client
	logger *slog.Logger
	// backoffBase seeds the exponential backoff on 429s.
	backoffBase time.Duration
}

// New creates a client against the public API endpoint.
func New(logger *slog.Logger) *Client {
	return NewWithBaseURL(defaultBaseURL, logger)
}

// NewWithBaseURL creates a client with a custom base URL (for testing).
func NewWithBaseURL(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15 * time.Second),
		logger:      logger.With(slog.String("component", "spotify")),
		backoffBase: 300 * time.Millisecond,
	}
}

// GetLikedSongs fetches the user's complete liked-songs list.
func (c *Client) GetLikedSongs(ctx context.Context, accessToken string) ([]SavedTrack, error) {
	return fetchAll[SavedTrack](ctx, c, accessToken, "/me/tracks", trackFields)
}

// GetPlaylistTracks fetches every track of one playlist.
func (c *Client) GetPlaylistTracks(ctx context.Context, accessToken, playlistID string) ([]PlaylistTrack, error) {
	return fetchAll[PlaylistTrack](ctx, c, accessToken, "/playlists/"+playlistID+"/tracks", trackFields)
}

// GetPlaylists fetches the user's playlists.
func (c *Client) GetPlaylists(ctx context.Context, accessToken string) ([]Playlist, error) {
	return fetchAll[Playlist](ctx, c, accessToken, "/me/playlists", "")
}

// fetchAll drains a paginated endpoint: the first page synchronously, then the
// remaining offsets in bounded concurrent batches with a courtesy pause in
// between. A page that still fails after retries is dropped; partial data
// beats no data for a best-effort visualization.
func fetchAll[T any](ctx context.Context, c *Client, accessToken, path, fields string) ([]T, error) {
	first, err := fetchPage[T](ctx, c, accessToken, path, fields, 0)
	if err != nil {
		return nil, fmt.Errorf("fetching first page of %s: %w", path, err)
	}
	items := first.Items
	if first.Total <= pageLimit {
		return items, nil
	}

	var offsets []int
	for offset := pageLimit; offset < first.Total; offset += pageLimit {
		offsets = append(offsets, offset)
	}

	for i := 0; i < len(offsets); i += pageBatchSize {
		end := min(i+pageBatchSize, len(offsets))
		batch := offsets[i:end]
		pages := make([]*page[T], len(batch))

		var wg sync.WaitGroup
		for j, offset := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := fetchPage[T](ctx, c, accessToken, path, fields, offset)
				if err != nil {
					c.logger.Warn("dropping failed page",
						slog.String("path", path),
						slog.Int("offset", offset),
						slog.String("error", err.Error()))
					return
				}
				pages[j] = p
			}()
		}
		wg.Wait()

		for _, p := range pages {
			if p != nil {
				items = append(items, p.Items...)
			}
		}

		if end < len(offsets) {
			select {
			case <-ctx.Done():
				return items, ctx.Err()
			case <-time.After(interBatchPause):
			}
		}
	}

	return items, nil
}

// fetchPage requests a single page, retrying on 429 with exponential backoff.
// A Retry-After header, when present, overrides the backoff for that attempt.
func fetchPage[T any](ctx context.Context, c *Client, accessToken, path, fields string, offset int) (*page[T], error) {
	var retryAfter time.Duration
	exp := retry.WithMaxRetries(maxPageRetries, retry.NewExponential(c.backoffBase))
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		wait, stop := exp.Next()
		if stop {
			return 0, true
		}
		if retryAfter > 0 {
			wait = retryAfter
			retryAfter = 0
		}
		return wait, false
	})

	var result page[T]
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req := c.http.R().
			SetContext(ctx).
			SetAuthToken(accessToken).
			SetQueryParam("limit", strconv.Itoa(pageLimit)).
			SetResult(&result)
		if offset > 0 {
			req.SetQueryParam("offset", strconv.Itoa(offset))
		}
		if fields != "" {
			req.SetQueryParam("fields", fields)
		}

		resp, err := req.Get(path)
		if err != nil {
			return retry.RetryableError(err)
		}
		if resp.StatusCode() == http.StatusTooManyRequests {
			if header := resp.Header().Get("Retry-After"); header != "" {
				if seconds, perr := strconv.Atoi(header); perr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			}
			return retry.RetryableError(fmt.Errorf("rate limited (HTTP 429)"))
		}
		if resp.IsError() {
			return fmt.Errorf("unexpected HTTP %d", resp.StatusCode())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
