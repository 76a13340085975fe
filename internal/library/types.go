package library

// Item is a library item descriptor. The playback engine only relies on
// this shape; everything else the backend returns is passed through
// untouched for display.
type Item struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	MediaType       string `json:"mediaType"`
	Year            int    `json:"year,omitempty"`
	Synopsis        string `json:"synopsis,omitempty"`
	PosterURL       string `json:"posterUrl,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// Season groups episodes of a series
type Season struct {
	Number   int       `json:"number"`
	Title    string    `json:"title,omitempty"`
	Episodes []Episode `json:"episodes"`
}

// Episode is a single episode descriptor
type Episode struct {
	ID              string `json:"id"`
	Season          int    `json:"season"`
	Episode         int    `json:"episode"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// Progress is a watch-progress record as the backend stores it
type Progress struct {
	ContentID       string `json:"contentId"`
	PositionSeconds int    `json:"positionSeconds"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
}

// SearchResponse wraps a search result list
type SearchResponse struct {
	Results []Item `json:"results"`
}

// seasonsResponse wraps the seasons listing
type seasonsResponse struct {
	Seasons []Season `json:"seasons"`
}

// watchlistResponse wraps the watchlist listing
type watchlistResponse struct {
	Items []Item `json:"items"`
}

// errorResponse is the backend's JSON error envelope
type errorResponse struct {
	Error string `json:"error"`
}
