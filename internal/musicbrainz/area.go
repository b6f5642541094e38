package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
)

// maxAreaDepth bounds the hierarchy walk. Real containment chains (city →
// subdivision → country) are two or three hops; anything deeper is a
// malformed or unexpected upstream graph and resolves to unknown.
const maxAreaDepth = 5

// resolveAreaCountry walks "part of" relations upward from a non-country
// area until it reaches an area of type "Country" with an ISO 3166-1 code.
// Returns the empty string when the walk fails: depth cap exceeded, a fetch
// failed, or no backward "part of" relation exists. Fetch failures are not
// retried here; retry policy belongs to the caller's level.
func (c *Client) resolveAreaCountry(ctx context.Context, area *Area, depth int) string {
	if area.Type == "Country" && len(area.ISOCodes) > 0 {
		return strings.ToUpper(area.ISOCodes[0])
	}

	if depth >= maxAreaDepth {
		c.logger.Debug("area hierarchy depth cap reached",
			slog.String("area", area.Name), slog.Int("depth", depth))
		return ""
	}

	full, err := c.getArea(ctx, area.ID)
	if err != nil {
		c.logger.Debug("area fetch failed",
			slog.String("area_id", area.ID), slog.String("error", err.Error()))
		return ""
	}

	for _, rel := range full.Relations {
		if rel.Type != "part of" || rel.Direction != "backward" || rel.Area == nil {
			continue
		}
		parent := rel.Area
		if parent.Type == "Country" && len(parent.ISOCodes) > 0 {
			return strings.ToUpper(parent.ISOCodes[0])
		}
		return c.resolveAreaCountry(ctx, parent, depth+1)
	}

	return ""
}

// getArea fetches an area node with its area relations.
func (c *Client) getArea(ctx context.Context, id string) (*Area, error) {
	params := url.Values{
		"inc": {"area-rels"},
		"fmt": {"json"},
	}
	reqURL := c.baseURL + "/area/" + url.PathEscape(id) + "?" + params.Encode()

	body, err := c.doRequest(ctx, c.areaLimiter, reqURL)
	if err != nil {
		return nil, err
	}

	var area Area
	if err := json.Unmarshal(body, &area); err != nil {
		return nil, fmt.Errorf("parsing area response: %w", err)
	}
	return &area, nil
}
