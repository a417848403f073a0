package ingest

import (
	"context"
	"strings"

	"moviehub/pkg/models"
)

// GenreResolver maps genre labels to ids for one cycle. It is not safe for
// concurrent use; the cycle that loaded it owns it.
type GenreResolver struct {
	store Store
	known map[string]int64
}

// LoadGenreResolver reads every genre once so items in the cycle resolve without
// further lookups.
func LoadGenreResolver(ctx context.Context, store Store) (*GenreResolver, error) {
	genres, err := store.ListGenres(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list genres", Err: err}
	}
	known := make(map[string]int64, len(genres))
	for _, g := range genres {
		known[g.Name] = g.ID
	}
	return &GenreResolver{store: store, known: known}, nil
}

// Resolve returns one genre per distinct label in first-seen order, creating genres
// that do not exist yet. Names match exactly after trimming.
func (r *GenreResolver) Resolve(ctx context.Context, labels []string) ([]models.Genre, error) {
	out := make([]models.Genre, 0, len(labels))
	used := make(map[int64]struct{}, len(labels))

	for _, label := range labels {
		name := strings.TrimSpace(label)
		if name == "" {
			continue
		}
		id, ok := r.known[name]
		if !ok {
			g, err := r.store.CreateGenre(ctx, name)
			if err != nil {
				return nil, &PersistenceError{Op: "create genre", Err: err}
			}
			id = g.ID
			r.known[name] = id
		}
		if _, dup := used[id]; dup {
			continue
		}
		used[id] = struct{}{}
		out = append(out, models.Genre{ID: id, Name: name})
	}
	return out, nil
}

func genreIDs(genres []models.Genre) []int64 {
	ids := make([]int64, len(genres))
	for i, g := range genres {
		ids[i] = g.ID
	}
	return ids
}

// Len is the number of genres known to this cycle.
func (r *GenreResolver) Len() int { return len(r.known) }
