package ingest

import (
	"context"
	"testing"

	"moviehub/internal/catalog"
	"moviehub/internal/testsupport"
	"moviehub/pkg/models"
)

// countingStore counts genre creations on top of a real catalog.
type countingStore struct {
	*catalog.Repo
	created []string
}

func (s *countingStore) CreateGenre(ctx context.Context, name string) (models.Genre, error) {
	s.created = append(s.created, name)
	return s.Repo.CreateGenre(ctx, name)
}

func TestResolveCollapsesRepeatedLabels(t *testing.T) {
	db := testsupport.MustOpenDB(t)
	store := &countingStore{Repo: catalog.NewRepo(db)}
	ctx := context.Background()

	r, err := LoadGenreResolver(ctx, store)
	if err != nil {
		t.Fatalf("LoadGenreResolver: %v", err)
	}
	genres, err := r.Resolve(ctx, []string{"A", "B", " A ", ""})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(genres) != 2 || genres[0].Name != "A" || genres[1].Name != "B" {
		t.Fatalf("unexpected genres %+v", genres)
	}
	if n := testsupport.MustCount(t, db, `SELECT COUNT(*) FROM genres WHERE name = ?`, "A"); n != 1 {
		t.Fatalf("expected one row for A, got %d", n)
	}
	if len(store.created) != 2 {
		t.Fatalf("expected 2 creations, got %v", store.created)
	}
}

func TestResolveReusesGenresWithinCycle(t *testing.T) {
	db := testsupport.MustOpenDB(t)
	store := &countingStore{Repo: catalog.NewRepo(db)}
	ctx := context.Background()
	existing, err := store.Repo.CreateGenre(ctx, "Drama")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	r, err := LoadGenreResolver(ctx, store)
	if err != nil {
		t.Fatalf("LoadGenreResolver: %v", err)
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 known genre, got %d", r.Len())
	}

	first, err := r.Resolve(ctx, []string{"Drama", "Horror"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := r.Resolve(ctx, []string{"Horror"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if first[0].ID != existing.ID {
		t.Fatalf("existing genre not reused: %+v vs %+v", first[0], existing)
	}
	if second[0].ID != first[1].ID {
		t.Fatalf("genre created in cycle not reused: %+v vs %+v", second, first)
	}
	if len(store.created) != 1 || store.created[0] != "Horror" {
		t.Fatalf("expected only Horror to be created, got %v", store.created)
	}
}

func TestResolveEmptyLabels(t *testing.T) {
	store := &countingStore{Repo: catalog.NewRepo(testsupport.MustOpenDB(t))}
	r, err := LoadGenreResolver(context.Background(), store)
	if err != nil {
		t.Fatalf("LoadGenreResolver: %v", err)
	}
	genres, err := r.Resolve(context.Background(), nil)
	if err != nil || len(genres) != 0 {
		t.Fatalf("expected no genres, got %v %v", genres, err)
	}
}
