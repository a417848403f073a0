package models

import "time"

// Movie is a catalog row as produced by the ingestion pipeline and served by the API.
// ReleaseYear and RatingImdb are nil when the detail page did not carry them.
type Movie struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	ReleaseYear *int      `json:"release_year,omitempty"`
	RatingImdb  *float64  `json:"rating_imdb,omitempty"`
	VideoSrc    string    `json:"video_src,omitempty"`
	TrailerSrc  string    `json:"trailer_src,omitempty"`
	PhotoSrc    string    `json:"photo_src,omitempty"`
	Genres      []Genre   `json:"genres"`
	CreatedAt   time.Time `json:"created_at"`
}

// MovieGenre links a movie to one resolved genre.
type MovieGenre struct {
	MovieID int64 `json:"movie_id"`
	GenreID int64 `json:"genre_id"`
}
