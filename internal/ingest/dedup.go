package ingest

import (
	"context"

	"moviehub/pkg/models"
)

// Store is the slice of the catalog the pipeline reads and writes.
type Store interface {
	FindMovieByTitle(ctx context.Context, title string) (*models.Movie, error)
	ListGenres(ctx context.Context) ([]models.Genre, error)
	CreateGenre(ctx context.Context, name string) (models.Genre, error)
	CreateMovie(ctx context.Context, m models.Movie, genreIDs []int64) (int64, error)
}

// DedupFilter drops candidates whose exact title is already in the catalog.
type DedupFilter struct {
	Store Store
}

// FilterResult splits a feed snapshot into new candidates and the rest.
type FilterResult struct {
	Fresh   []Candidate
	Skipped int
	Failed  []FilterFailure
}

type FilterFailure struct {
	Candidate Candidate
	Err       error
}

// Filter keeps feed order. A title repeated within the snapshot is kept once; a
// lookup failure drops only that candidate.
func (f *DedupFilter) Filter(ctx context.Context, candidates []Candidate) FilterResult {
	var res FilterResult
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		if _, dup := seen[c.Title]; dup {
			res.Skipped++
			continue
		}
		seen[c.Title] = struct{}{}

		existing, err := f.Store.FindMovieByTitle(ctx, c.Title)
		if err != nil {
			res.Failed = append(res.Failed, FilterFailure{
				Candidate: c,
				Err:       &PersistenceError{Op: "find movie by title", Err: err},
			})
			continue
		}
		if existing != nil {
			res.Skipped++
			continue
		}
		res.Fresh = append(res.Fresh, c)
	}
	return res
}
