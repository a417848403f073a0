package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"moviehub/internal/catalog"
	"moviehub/internal/testsupport"
	"moviehub/pkg/models"
)

const moviesCSV = `id,title,release_year,rating_imdb,duration,genres,video_src,trailer_src,photo_src,description,created_at
1,Heat,1995,8.3,170 min,Crime|Drama,,,http://cdn.test/heat.jpg,LA heist.,2024-01-01T00:00:00Z
2,Arrival,2016,,116 min,Drama|Sci-Fi,,,,,2024-01-02T00:00:00Z
3,Broken,19x5,,,,,,,,2024-01-03T00:00:00Z
4,,2000,,,,,,,,2024-01-04T00:00:00Z
`

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestImportMovies(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewRepo(testsupport.MustOpenDB(t))
	if _, err := repo.CreateGenre(ctx, "Drama"); err != nil {
		t.Fatalf("CreateGenre: %v", err)
	}

	res, err := importMovies(ctx, repo, writeCSV(t, moviesCSV), nil)
	if err != nil {
		t.Fatalf("importMovies: %v", err)
	}
	if res.Created != 2 || res.Rejected != 1 || res.Skipped != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	heat, err := repo.FindMovieByTitle(ctx, "Heat")
	if err != nil || heat == nil {
		t.Fatalf("FindMovieByTitle: %v %v", heat, err)
	}
	if heat.PhotoSrc != "http://cdn.test/heat.jpg" || heat.RatingImdb == nil || *heat.RatingImdb != 8.3 {
		t.Fatalf("unexpected movie %+v", heat)
	}
	genres, err := repo.ListGenres(ctx)
	if err != nil {
		t.Fatalf("ListGenres: %v", err)
	}
	if len(genres) != 3 {
		t.Fatalf("expected Drama reused plus Crime and Sci-Fi, got %+v", genres)
	}
}

func TestImportMoviesSkipsExistingTitles(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewRepo(testsupport.MustOpenDB(t))
	if _, err := repo.CreateMovie(ctx, models.Movie{Title: "Heat"}, nil); err != nil {
		t.Fatalf("CreateMovie: %v", err)
	}
	path := writeCSV(t, moviesCSV)

	res, err := importMovies(ctx, repo, path, nil)
	if err != nil {
		t.Fatalf("importMovies: %v", err)
	}
	if res.Created != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	again, err := importMovies(ctx, repo, path, nil)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if again.Created != 0 || again.Skipped != 2 {
		t.Fatalf("second import should skip everything, got %+v", again)
	}
	if n := testsupport.MustCount(t, repo.DB, "SELECT COUNT(*) FROM movies"); n != 2 {
		t.Fatalf("expected 2 movies, got %d", n)
	}
}

func TestImportMoviesRequiresTitleColumn(t *testing.T) {
	repo := catalog.NewRepo(testsupport.MustOpenDB(t))
	if _, err := importMovies(context.Background(), repo, writeCSV(t, "id,name\n1,x\n"), nil); err == nil {
		t.Fatal("expected error for missing title column")
	}
}
