package models

// Genre is identified by its exact name; ids are assigned by the store.
type Genre struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type GenreCount struct {
	Genre
	MovieCount int `json:"movie_count"`
}
