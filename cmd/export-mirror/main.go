package main

import (
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"html/template"
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

// export-mirror writes the catalog out as a site feed-mirror can serve, so another
// instance can ingest it offline.
func main() {
	var (
		outDir  = flag.String("out", "data/mirror", "mirror root directory")
		baseURL = flag.String("base", "http://localhost:9000", "public base URL of the mirror")
		limit   = flag.Int("limit", 200, "how many movies to export, newest first")
	)
	flag.Parse()

	env, err := app.Bootstrap("export-mirror")
	if err != nil {
		stdlog.Fatalf("startup failed: %v", err)
	}
	defer env.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	movies, err := loadMovies(ctx, env.Catalog, *limit)
	if err != nil {
		env.Log.Fatal("load movies failed", "error", err)
	}
	if err := writeMirror(*outDir, *baseURL, movies); err != nil {
		env.Log.Fatal("write mirror failed", "error", err)
	}
	env.Log.Info("mirror exported", "movies", len(movies), "dir", *outDir)
}

func loadMovies(ctx context.Context, repo *catalog.Repo, limit int) ([]models.Movie, error) {
	var out []models.Movie
	for len(out) < limit {
		page := limit - len(out)
		if page > 100 {
			page = 100
		}
		items, err := repo.List(ctx, catalog.ListQuery{Limit: page, Offset: len(out)})
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < page {
			break
		}
	}
	return out, nil
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title string `xml:"title"`
	Link  string `xml:"link"`
	GUID  string `xml:"guid"`
}

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
  <title>{{.Title}}</title>
  {{- if .PhotoSrc}}
  <meta property="og:image" content="{{.PhotoSrc}}">
  {{- end}}
</head>
<body>
  <div class="movie-detail">
    {{- if .VideoSrc}}
    <div id="player"><iframe src="{{.VideoSrc}}"></iframe></div>
    {{- end}}
    <h1>{{.Title}}</h1>
    {{- if .TrailerSrc}}
    <div id="trailer"><iframe src="{{.TrailerSrc}}"></iframe></div>
    {{- end}}
    <ul class="genres">{{range .Genres}}<li>{{.Name}}</li>{{end}}</ul>
    {{- if .Duration}}
    <span class="duration">{{.Duration}}</span>
    {{- end}}
    {{- if .Year}}
    <span class="release-year">{{.Year}}</span>
    {{- end}}
    {{- if .Rating}}
    <a class="rating-imdb" href="#">{{.Rating}}</a>
    {{- end}}
    {{- if .Description}}
    <div class="synopsis"><p>{{.Description}}</p></div>
    {{- end}}
  </div>
</body>
</html>
`))

type pageData struct {
	models.Movie
	Year   string
	Rating string
}

// writeMirror lays movies out as feed.xml plus pages/<slug>.html, oldest first in
// the feed so re-ingesting keeps the original creation order.
func writeMirror(dir, baseURL string, movies []models.Movie) error {
	if err := os.MkdirAll(filepath.Join(dir, "pages"), 0o755); err != nil {
		return err
	}
	baseURL = strings.TrimRight(baseURL, "/")

	feed := rss{Version: "2.0", Channel: rssChannel{
		Title:       "moviehub mirror",
		Link:        baseURL + "/",
		Description: "Catalog snapshot",
	}}
	used := map[string]int{}
	for i := len(movies) - 1; i >= 0; i-- {
		m := movies[i]
		slug := slugify(m.Title)
		if n := used[slug]; n > 0 {
			slug = fmt.Sprintf("%s-%d", slug, m.ID)
		}
		used[slug]++

		if err := writePage(filepath.Join(dir, "pages", slug+".html"), m); err != nil {
			return err
		}
		link := baseURL + "/movies/" + slug
		feed.Channel.Items = append(feed.Channel.Items, rssItem{Title: m.Title, Link: link, GUID: link})
	}

	b, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "feed.xml"), append([]byte(xml.Header), b...), 0o644)
}

func writePage(path string, m models.Movie) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	d := pageData{Movie: m}
	if m.ReleaseYear != nil {
		d.Year = strconv.Itoa(*m.ReleaseYear)
	}
	if m.RatingImdb != nil {
		d.Rating = strconv.FormatFloat(*m.RatingImdb, 'f', -1, 64)
	}
	if err := pageTmpl.Execute(f, d); err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return f.Close()
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
		} else if !lastDash {
			b.WriteRune('-')
			lastDash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "untitled"
	}
	return out
}
