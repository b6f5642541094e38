package spotify

// Lean wire types: field filters on every request keep responses down to what
// resolution and aggregation actually consume.

// Artist is a track's artist, name only.
type Artist struct {
	Name string `json:"name"`
}

// Track is a lean track object.
type Track struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	URI     string   `json:"uri"`
	Artists []Artist `json:"artists"`
}

// SavedTrack is one entry in the user's liked songs.
type SavedTrack struct {
	AddedAt string `json:"added_at"`
	Track   Track  `json:"track"`
}

// PlaylistTrack is one entry in a playlist. Track is nil when the upstream
// item is unavailable (removed or region-locked).
type PlaylistTrack struct {
	AddedAt string `json:"added_at"`
	Track   *Track `json:"track"`
}

// Playlist is a lean playlist object for the playlist picker.
type Playlist struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tracks struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// page is one page of a paginated listing endpoint.
type page[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
	Total int     `json:"total"`
}
