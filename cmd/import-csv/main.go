package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"time"

	"moviehub/internal/app"
	"moviehub/internal/ingest"
	"moviehub/pkg/logger"
	"moviehub/pkg/models"
)

// import-csv loads a movies.csv written by export-csv into the catalog. Rows whose
// title is already stored are skipped, so re-running an import is harmless.
func main() {
	moviesIn := flag.String("movies", "data/movies.csv", "input CSV path for movies")
	flag.Parse()

	env, err := app.Bootstrap("import-csv")
	if err != nil {
		stdlog.Fatalf("startup failed: %v", err)
	}
	defer env.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	res, err := importMovies(ctx, env.Catalog, *moviesIn, env.Log)
	if err != nil {
		env.Log.Fatal("import movies failed", "error", err)
	}
	env.Log.Info("import finished", "file", *moviesIn, "created", res.Created, "skipped", res.Skipped, "rejected", res.Rejected)
}

type importResult struct {
	Created  int
	Skipped  int
	Rejected int
}

// importMovies goes through the same writer as the ingestion pipeline. A row whose
// year or rating cannot be parsed is rejected and logged; a storage failure stops
// the import.
func importMovies(ctx context.Context, store ingest.Store, path string, log *logger.Logger) (importResult, error) {
	var res importResult
	log = logger.OrNop(log)

	f, err := os.Open(path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := readHeader(r)
	if err != nil {
		return res, err
	}
	if _, ok := header["title"]; !ok {
		return res, fmt.Errorf("%s: no title column", path)
	}

	resolver, err := ingest.LoadGenreResolver(ctx, store)
	if err != nil {
		return res, err
	}
	writer := &ingest.CatalogWriter{Store: store}

	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return res, err
		}
		item := rowItem(header, row)
		if item.Title == "" {
			continue
		}

		existing, err := store.FindMovieByTitle(ctx, item.Title)
		if err != nil {
			return res, err
		}
		if existing != nil {
			res.Skipped++
			continue
		}

		// coerce first so a rejected row creates no genres
		movie, err := writer.Prepare(item)
		if err != nil {
			res.Rejected++
			log.Warn("row rejected", "line", line, "title", item.Title, "error", err)
			continue
		}
		genres, err := resolver.Resolve(ctx, item.GenreLabels)
		if err != nil {
			return res, err
		}
		movie.PhotoSrc = valueAt(header, row, "photo_src")
		if _, err := writer.Commit(ctx, movie, genres); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		res.Created++
	}
	return res, nil
}

func rowItem(header map[string]int, row []string) models.ScrapedItem {
	var labels []string
	if raw := valueAt(header, row, "genres"); raw != "" {
		labels = strings.Split(raw, "|")
	}
	return models.ScrapedItem{
		Title:           valueAt(header, row, "title"),
		PrimaryMediaURL: optional(header, row, "video_src"),
		TrailerURL:      optional(header, row, "trailer_src"),
		GenreLabels:     labels,
		Duration:        optional(header, row, "duration"),
		ReleaseYear:     optional(header, row, "release_year"),
		RatingLabel:     optional(header, row, "rating_imdb"),
		Synopsis:        optional(header, row, "description"),
	}
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func optional(header map[string]int, row []string, key string) *string {
	v := valueAt(header, row, key)
	if v == "" {
		return nil
	}
	return &v
}
