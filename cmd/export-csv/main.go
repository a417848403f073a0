package main

import (
	"context"
	"encoding/csv"
	"flag"
	stdlog "log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"moviehub/internal/app"
	"moviehub/internal/catalog"
	"moviehub/pkg/models"
)

func main() {
	var (
		moviesOut = flag.String("movies", "data/movies.csv", "output CSV path for movies")
		genresOut = flag.String("genres", "data/genres.csv", "output CSV path for genre counts")
	)
	flag.Parse()

	env, err := app.Bootstrap("export-csv")
	if err != nil {
		stdlog.Fatalf("startup failed: %v", err)
	}
	defer env.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	n, err := exportMovies(ctx, env.Catalog, *moviesOut)
	if err != nil {
		env.Log.Fatal("export movies failed", "error", err)
	}
	if err := exportGenres(ctx, env.Catalog, *genresOut); err != nil {
		env.Log.Fatal("export genres failed", "error", err)
	}
	env.Log.Info("export finished", "movies", n, "movies_csv", *moviesOut, "genres_csv", *genresOut)
}

func createCSV(outPath string) (*os.File, *csv.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, err
	}
	return f, csv.NewWriter(f), nil
}

func exportMovies(ctx context.Context, repo *catalog.Repo, outPath string) (int, error) {
	f, w, err := createCSV(outPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := w.Write([]string{
		"id", "title", "release_year", "rating_imdb", "duration", "genres",
		"video_src", "trailer_src", "photo_src", "description", "created_at",
	}); err != nil {
		return 0, err
	}

	const page = 100
	total := 0
	for offset := 0; ; offset += page {
		items, err := repo.List(ctx, catalog.ListQuery{Limit: page, Offset: offset})
		if err != nil {
			return total, err
		}
		for _, m := range items {
			if err := w.Write(movieRecord(m)); err != nil {
				return total, err
			}
		}
		total += len(items)
		if len(items) < page {
			break
		}
	}

	w.Flush()
	return total, w.Error()
}

func movieRecord(m models.Movie) []string {
	year, rating := "", ""
	if m.ReleaseYear != nil {
		year = strconv.Itoa(*m.ReleaseYear)
	}
	if m.RatingImdb != nil {
		rating = strconv.FormatFloat(*m.RatingImdb, 'f', -1, 64)
	}
	names := make([]string, len(m.Genres))
	for i, g := range m.Genres {
		names[i] = g.Name
	}
	return []string{
		strconv.FormatInt(m.ID, 10),
		m.Title,
		year,
		rating,
		m.Duration,
		strings.Join(names, "|"),
		m.VideoSrc,
		m.TrailerSrc,
		m.PhotoSrc,
		m.Description,
		m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func exportGenres(ctx context.Context, repo *catalog.Repo, outPath string) error {
	f, w, err := createCSV(outPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := w.Write([]string{"id", "name", "movie_count"}); err != nil {
		return err
	}
	genres, err := repo.CountByGenre(ctx)
	if err != nil {
		return err
	}
	for _, g := range genres {
		if err := w.Write([]string{strconv.FormatInt(g.ID, 10), g.Name, strconv.Itoa(g.MovieCount)}); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
