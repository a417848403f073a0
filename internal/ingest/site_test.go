package ingest

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"moviehub/internal/catalog"
	"moviehub/internal/testsupport"
	"moviehub/pkg/logger"
	"moviehub/pkg/utils"
)

// page is one detail page served by fakeSite.
type page struct {
	Title     string
	Player    string
	Trailer   string
	Genres    []string
	Duration  string
	Year      string
	Rating    string
	Synopsis  string
	Thumbnail string // path on the fake site, "" for no og:image
	Status    int    // non-zero to fail the page request
}

// fakeSite serves /feed.xml, /movies/<slug> and /img/<name>.
type fakeSite struct {
	srv   *httptest.Server
	mu    sync.Mutex
	feed  []Candidate // Permalink holds the slug
	pages map[string]page
	hits  map[string]int
	agent string
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	s := &fakeSite{pages: map[string]page{}, hits: map[string]int{}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *fakeSite) addMovie(slug string, p page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed = append(s.feed, Candidate{Title: p.Title, Permalink: slug})
	s.pages[slug] = p
}

func (s *fakeSite) pageHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for path, c := range s.hits {
		if strings.HasPrefix(path, "/movies/") {
			n += c
		}
	}
	return n
}

func (s *fakeSite) userAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent
}

func (s *fakeSite) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *fakeSite) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	s.agent = r.Header.Get("User-Agent")
	feed := append([]Candidate(nil), s.feed...)
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/feed.xml":
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed(feed))
	case strings.HasPrefix(r.URL.Path, "/movies/"):
		slug := strings.TrimPrefix(r.URL.Path, "/movies/")
		s.mu.Lock()
		p, ok := s.pages[slug]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if p.Status != 0 {
			w.WriteHeader(p.Status)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, detailHTML(p))
	case strings.HasPrefix(r.URL.Path, "/img/"):
		w.Header().Set("Content-Type", "image/jpeg")
		fmt.Fprint(w, "jpeg:"+strings.TrimPrefix(r.URL.Path, "/img/"))
	default:
		http.NotFound(w, r)
	}
}

func rssFeed(items []Candidate) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>New movies</title><description>latest</description>`)
	for _, it := range items {
		fmt.Fprintf(&b, `<item><title>%s</title><link>/movies/%s</link></item>`, html.EscapeString(it.Title), it.Permalink)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func detailHTML(p page) string {
	var b strings.Builder
	b.WriteString(`<!doctype html><html><head>`)
	if p.Thumbnail != "" {
		fmt.Fprintf(&b, `<meta property="og:image" content="%s">`, p.Thumbnail)
	}
	b.WriteString(`</head><body><div class="movie-detail">`)
	if p.Player != "" {
		fmt.Fprintf(&b, `<div id="player"><iframe src="%s"></iframe></div>`, p.Player)
	}
	fmt.Fprintf(&b, `<h1>%s</h1>`, html.EscapeString(p.Title))
	if p.Trailer != "" {
		fmt.Fprintf(&b, `<div id="trailer"><iframe src="%s"></iframe></div>`, p.Trailer)
	}
	b.WriteString(`<ul class="genres">`)
	for _, g := range p.Genres {
		fmt.Fprintf(&b, `<li>%s</li>`, html.EscapeString(g))
	}
	b.WriteString(`</ul>`)
	if p.Duration != "" {
		fmt.Fprintf(&b, `<span class="duration">%s</span>`, p.Duration)
	}
	if p.Year != "" {
		fmt.Fprintf(&b, `<span class="release-year">%s</span>`, p.Year)
	}
	if p.Rating != "" {
		fmt.Fprintf(&b, `<a class="rating-imdb" href="#">%s</a>`, p.Rating)
	}
	if p.Synopsis != "" {
		fmt.Fprintf(&b, `<div class="synopsis"><p>%s</p></div>`, html.EscapeString(p.Synopsis))
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

// countingAssets records every Create call on top of LocalAssets.
type countingAssets struct {
	*LocalAssets
	mu      sync.Mutex
	creates []string
}

func (c *countingAssets) Create(name string) (AssetWriter, error) {
	c.mu.Lock()
	c.creates = append(c.creates, name)
	c.mu.Unlock()
	return c.LocalAssets.Create(name)
}

type testEnv struct {
	cfg      utils.IngestConfig
	site     *fakeSite
	repo     *catalog.Repo
	assets   *countingAssets
	pipeline *Pipeline
}

func newTestEnv(t *testing.T, log *logger.Logger) *testEnv {
	t.Helper()
	site := newFakeSite(t)
	db := testsupport.MustOpenDB(t)
	repo := catalog.NewRepo(db)

	local, err := NewLocalAssets(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalAssets: %v", err)
	}
	assets := &countingAssets{LocalAssets: local}

	cfg := utils.IngestConfig{
		FeedURL:            site.srv.URL + "/feed.xml",
		SiteBaseURL:        site.srv.URL + "/",
		PublicAssetBaseURL: "http://cdn.test/assets",
		Selectors:          utils.DefaultSelectors(),
	}
	client := NewClient(cfg.FeedURL, "moviehub-test/1.0", 5*time.Second, 0)
	return &testEnv{
		cfg:      cfg,
		site:     site,
		repo:     repo,
		assets:   assets,
		pipeline: New(client, repo, assets, cfg, log),
	}
}

// sibling builds another pipeline over the same site, catalog and asset dir, the
// way a second process pointed at the same files would.
func (e *testEnv) sibling() *Pipeline {
	client := NewClient(e.cfg.FeedURL, "moviehub-test/1.0", 5*time.Second, 0)
	return New(client, e.repo, e.assets, e.cfg, nil)
}

func (e *testEnv) movieCount(t *testing.T) int {
	t.Helper()
	n, err := e.repo.Count(context.Background(), catalog.ListQuery{})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}
