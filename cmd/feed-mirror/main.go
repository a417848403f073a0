package main

import (
	"flag"
	stdlog "log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"moviehub/internal/ingest"
	"moviehub/pkg/logger"
)

// feed-mirror serves a static copy of the upstream site for offline runs:
//
//	GET /feed.xml          data/mirror/feed.xml
//	GET /movies/<slug>     data/mirror/pages/<slug>.html
//	GET /img/<name>        data/mirror/img/<name>
func main() {
	var (
		dir     = flag.String("dir", "data/mirror", "mirror root directory")
		addr    = flag.String("addr", ":9000", "listen address")
		logMode = flag.String("log", "dev", "log mode: dev or prod")
	)
	flag.Parse()

	log, err := logger.New(*logMode)
	if err != nil {
		stdlog.Fatalf("init logger: %v", err)
	}
	defer log.Sync()

	base := "http://localhost" + *addr
	if !strings.HasPrefix(*addr, ":") {
		base = "http://" + *addr
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           newMux(*dir, base+"/", log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("feed-mirror serving", "dir", *dir, "base", base)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("feed-mirror stopped", "error", err)
	}
}

func newMux(dir, base string, log *logger.Logger) http.Handler {
	log = logger.OrNop(log)
	mux := http.NewServeMux()

	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		b, err := os.ReadFile(filepath.Join(dir, "feed.xml"))
		if err != nil {
			log.Error("read feed failed", "error", err)
			http.Error(w, "cannot read feed.xml", http.StatusInternalServerError)
			return
		}
		// refuse to serve a feed the pipeline could not parse
		if _, err := ingest.ParseFeed(b, base); err != nil {
			log.Error("feed invalid", "error", err)
			http.Error(w, "feed.xml invalid: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		_, _ = w.Write(b)
	})

	mux.HandleFunc("/movies/", func(w http.ResponseWriter, r *http.Request) {
		slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/movies/"), "/")
		if slug == "" || strings.ContainsAny(slug, `/\`) || strings.HasPrefix(slug, ".") {
			http.NotFound(w, r)
			return
		}
		log.Debug("page requested", "slug", slug)
		http.ServeFile(w, r, filepath.Join(dir, "pages", slug+".html"))
	})

	mux.Handle("/img/", http.StripPrefix("/img/", http.FileServer(http.Dir(filepath.Join(dir, "img")))))
	return mux
}
