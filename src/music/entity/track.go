package entity

// Track and Artist are constructed by service modules from their API
// responses and passed through unmodified.
type Track struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`
	DurationMS int      `json:"duration_ms"`
	Artists    []Artist `json:"artists"`
	CoverURL   string   `json:"cover_url"`
}

type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SearchResults struct {
	Tracks []Track `json:"tracks"`
}
