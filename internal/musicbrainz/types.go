package musicbrainz

// searchResponse is the wire shape of the artist search endpoint.
type searchResponse struct {
	Count   int      `json:"count"`
	Artists []Artist `json:"artists"`
}

// Artist is a candidate returned by the artist search endpoint.
type Artist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Country   string `json:"country,omitempty"`
	Score     int    `json:"score"`
	Area      *Area  `json:"area,omitempty"`
	BeginArea *Area  `json:"begin-area,omitempty"`
}

// Area is a node in MusicBrainz's geographic containment graph. Only areas of
// type "Country" carry ISO 3166-1 codes; anything else (City, Subdivision,
// District, ...) has to be walked upward through "part of" relations.
type Area struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      string         `json:"type,omitempty"`
	ISOCodes  []string       `json:"iso-3166-1-codes,omitempty"`
	Relations []AreaRelation `json:"relations,omitempty"`
}

// AreaRelation is an edge between two areas. Direction "backward" on a
// "part of" relation points at the containing parent area.
type AreaRelation struct {
	Type      string `json:"type"`
	Direction string `json:"direction"`
	Area      *Area  `json:"area,omitempty"`
}

// Status classifies the outcome of an origin lookup.
type Status string

// Lookup outcomes.
const (
	StatusFetched  Status = "fetched"   // candidate matched; country may still be unknown
	StatusNotFound Status = "not_found" // search returned no candidates
	StatusNoMatch  Status = "no_match"  // candidates returned but none usable
)

// Origin is the result of resolving a single artist name upstream. A nil
// Country with StatusFetched means the artist was matched but no country
// could be determined (a cacheable negative).
type Origin struct {
	MBID      *string
	NameFound *string
	Country   *string
	Status    Status
}
