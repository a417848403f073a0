package ingest

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"moviehub/internal/catalog"
	"moviehub/pkg/models"
)

var (
	yearPattern   = regexp.MustCompile(`\b(\d{4})\b`)
	ratingPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
)

// CatalogWriter persists one scraped item and its genre links as a unit.
type CatalogWriter struct {
	Store Store
}

// Write coerces numeric fields, then stores the movie with its genres. It returns a
// *CoercionError before touching the store, a *PersistenceError when nothing was
// stored, and a *PartialCommitError when the movie may exist without its genres.
func (w *CatalogWriter) Write(ctx context.Context, item models.ScrapedItem, genres []models.Genre, photoSrc string) (models.Movie, error) {
	m, err := w.Prepare(item)
	if err != nil {
		return models.Movie{}, err
	}
	m.PhotoSrc = photoSrc
	return w.Commit(ctx, m, genres)
}

// Prepare maps item onto a movie row, coercing year and rating. It has no side effects.
func (w *CatalogWriter) Prepare(item models.ScrapedItem) (models.Movie, error) {
	year, err := parseYear(item.ReleaseYear)
	if err != nil {
		return models.Movie{}, err
	}
	rating, err := parseRating(item.RatingLabel)
	if err != nil {
		return models.Movie{}, err
	}

	m := models.Movie{
		Title:       item.Title,
		Description: models.Deref(item.Synopsis),
		Duration:    models.Deref(item.Duration),
		ReleaseYear: year,
		RatingImdb:  rating,
		VideoSrc:    models.Deref(item.PrimaryMediaURL),
		TrailerSrc:  models.Deref(item.TrailerURL),
	}
	return m, nil
}

// Commit stores a prepared movie and its genre links.
func (w *CatalogWriter) Commit(ctx context.Context, m models.Movie, genres []models.Genre) (models.Movie, error) {
	id, err := w.Store.CreateMovie(ctx, m, genreIDs(genres))
	if err != nil {
		var partial *catalog.PartialWriteError
		if errors.As(err, &partial) {
			return models.Movie{}, &PartialCommitError{Title: m.Title, MovieID: partial.MovieID, Err: partial.Err}
		}
		return models.Movie{}, &PersistenceError{Op: "create movie", Err: err}
	}
	m.ID = id
	m.Genres = append([]models.Genre{}, genres...)
	return m, nil
}

// parseYear takes the first four-digit run, so "2021" and "Released: 2021" both work.
func parseYear(s *string) (*int, error) {
	if s == nil || notAvailable(*s) {
		return nil, nil
	}
	match := yearPattern.FindStringSubmatch(*s)
	if match == nil {
		return nil, &CoercionError{Field: "release_year", Value: *s}
	}
	y, err := strconv.Atoi(match[1])
	if err != nil {
		return nil, &CoercionError{Field: "release_year", Value: *s}
	}
	return &y, nil
}

// parseRating takes the first decimal number; a comma decimal separator is accepted.
func parseRating(s *string) (*float64, error) {
	if s == nil || notAvailable(*s) {
		return nil, nil
	}
	match := ratingPattern.FindString(*s)
	if match == "" {
		return nil, &CoercionError{Field: "rating_imdb", Value: *s}
	}
	r, err := strconv.ParseFloat(commaToDot(match), 64)
	if err != nil {
		return nil, &CoercionError{Field: "rating_imdb", Value: *s}
	}
	return &r, nil
}

func commaToDot(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == ',' {
			b[i] = '.'
		}
	}
	return string(b)
}

// notAvailable reports placeholder text the site shows instead of a value.
func notAvailable(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "n/a", "na", "-", "tba", "unknown":
		return true
	}
	return false
}
