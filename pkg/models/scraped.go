package models

// ScrapedItem is what the detail scraper extracts from one page.
//
// Optional fields are nil when their selector matched nothing; that is valid
// partial data, not an error.
type ScrapedItem struct {
	Title           string   `json:"title"`
	PrimaryMediaURL *string  `json:"primary_media_url,omitempty"`
	TrailerURL      *string  `json:"trailer_url,omitempty"`
	GenreLabels     []string `json:"genre_labels"`
	Duration        *string  `json:"duration,omitempty"`
	ReleaseYear     *string  `json:"release_year,omitempty"`
	RatingLabel     *string  `json:"rating_label,omitempty"`
	Synopsis        *string  `json:"synopsis,omitempty"`
	ThumbnailURL    *string  `json:"thumbnail_url,omitempty"`
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
