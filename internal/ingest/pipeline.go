package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"moviehub/pkg/logger"
	"moviehub/pkg/models"
	"moviehub/pkg/utils"
)

const (
	EventMovieCreated  = "movie.created"
	EventCycleFinished = "cycle.finished"
)

// Event is what the pipeline announces to live listeners.
type Event struct {
	Type   string        `json:"type"`
	RunID  string        `json:"run_id"`
	Movie  *models.Movie `json:"movie,omitempty"`
	Report *CycleReport  `json:"report,omitempty"`
	At     time.Time     `json:"at"`
}

// ErrCycleLocked means another process (or another pipeline) holds the cycle lock.
// The cycle is skipped rather than queued; the next tick or trigger tries again.
var ErrCycleLocked = errors.New("ingest: another cycle holds the lock")

// Publisher receives pipeline events. Publish must not block for long.
type Publisher interface {
	Publish(ev Event)
}

// CycleReport summarises one run over the feed.
type CycleReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Candidates int       `json:"candidates"`
	Skipped    int       `json:"skipped"`
	Created    int       `json:"created"`
	Failed     int       `json:"failed"`
	Partial    int       `json:"partial"`
	Err        string    `json:"error,omitempty"`
}

// Pipeline holds everything one ingestion cycle needs. It is built once per
// process and shared by the scheduler and manual triggers.
type Pipeline struct {
	Source      Source
	Store       Store
	Scraper     *Scraper
	Dedup       *DedupFilter
	Assets      *AssetFetcher
	Writer      *CatalogWriter
	SiteBaseURL string
	Events      Publisher

	// LockPath, when set, names a file locked for the duration of each cycle so
	// runners in separate processes sharing one catalog never overlap.
	LockPath string

	log *logger.Logger
}

func New(src Source, store Store, assets AssetStorage, cfg utils.IngestConfig, log *logger.Logger) *Pipeline {
	log = logger.OrNop(log).With("component", "ingest")
	return &Pipeline{
		Source:      src,
		Store:       store,
		Scraper:     NewScraper(src, cfg.Selectors),
		Dedup:       &DedupFilter{Store: store},
		Assets:      &AssetFetcher{Source: src, Storage: assets, PublicBaseURL: cfg.PublicAssetBaseURL, Log: log},
		Writer:      &CatalogWriter{Store: store},
		SiteBaseURL: cfg.SiteBaseURL,
		log:         log,
	}
}

// RunCycle fetches the feed once and ingests every new candidate in feed order.
// Per-candidate failures are logged and counted; the returned error is set only when
// the cycle could not get as far as processing candidates, or ctx ended.
func (p *Pipeline) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := p.log.With("run_id", report.RunID)

	unlock, err := p.lock()
	if err != nil {
		report.FinishedAt = time.Now().UTC()
		report.Err = err.Error()
		if errors.Is(err, ErrCycleLocked) {
			log.Warn("cycle skipped: lock held elsewhere", "lock", p.LockPath)
		} else {
			log.Error("cycle lock failed", "lock", p.LockPath, "error", err)
		}
		return report, err
	}
	defer unlock()
	log.Info("cycle started")

	err = p.runCycle(ctx, log, &report)
	report.FinishedAt = time.Now().UTC()
	if err != nil {
		report.Err = err.Error()
		log.Error("cycle failed", "error", err, "kind", errorKind(err))
	}
	log.Info("cycle finished",
		"candidates", report.Candidates,
		"skipped", report.Skipped,
		"created", report.Created,
		"failed", report.Failed,
		"partial", report.Partial,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
	finished := report
	p.publish(Event{Type: EventCycleFinished, RunID: report.RunID, Report: &finished, At: report.FinishedAt})
	return report, err
}

func (p *Pipeline) runCycle(ctx context.Context, log *logger.Logger, report *CycleReport) error {
	raw, err := p.Source.FetchFeed(ctx)
	if err != nil {
		return fmt.Errorf("ingest: fetch feed: %w", err)
	}
	candidates, err := ParseFeed(raw, p.SiteBaseURL)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	report.Candidates = len(candidates)

	filtered := p.Dedup.Filter(ctx, candidates)
	report.Skipped = filtered.Skipped
	for _, f := range filtered.Failed {
		report.Failed++
		log.Warn("dedup lookup failed", "title", f.Candidate.Title, "kind", errorKind(f.Err), "error", f.Err)
	}
	log.Debug("feed filtered", "fresh", len(filtered.Fresh), "skipped", filtered.Skipped)
	if len(filtered.Fresh) == 0 {
		return nil
	}

	resolver, err := LoadGenreResolver(ctx, p.Store)
	if err != nil {
		report.Failed += len(filtered.Fresh)
		return fmt.Errorf("ingest: %w", err)
	}

	for _, c := range filtered.Fresh {
		if err := ctx.Err(); err != nil {
			return err
		}
		movie, err := p.ingestOne(ctx, resolver, c)
		if err != nil {
			p.recordFailure(log, report, c, err)
			continue
		}
		report.Created++
		log.Info("movie created", "title", movie.Title, "movie_id", movie.ID, "genres", len(movie.Genres))
		created := movie
		p.publish(Event{Type: EventMovieCreated, RunID: report.RunID, Movie: &created, At: time.Now().UTC()})
	}
	return nil
}

// ingestOne runs scrape, coercion, genre resolution, asset download and the catalog
// write for one candidate. The asset is committed before the movie row is written.
func (p *Pipeline) ingestOne(ctx context.Context, resolver *GenreResolver, c Candidate) (models.Movie, error) {
	item, err := p.Scraper.Scrape(ctx, c)
	if err != nil {
		return models.Movie{}, err
	}
	// dedup and catalog identity both use the feed title
	item.Title = c.Title

	movie, err := p.Writer.Prepare(item)
	if err != nil {
		return models.Movie{}, err
	}
	genres, err := resolver.Resolve(ctx, item.GenreLabels)
	if err != nil {
		return models.Movie{}, err
	}
	photo, err := p.Assets.Fetch(ctx, item.ThumbnailURL)
	if err != nil {
		return models.Movie{}, err
	}
	movie.PhotoSrc = photo
	return p.Writer.Commit(ctx, movie, genres)
}

func (p *Pipeline) recordFailure(log *logger.Logger, report *CycleReport, c Candidate, err error) {
	kind := errorKind(err)
	if kind == "partial_commit" {
		report.Partial++
		log.Error("catalog left inconsistent: movie stored without complete genres",
			"title", c.Title, "permalink", c.Permalink, "error", err)
		return
	}
	report.Failed++
	log.Warn("candidate skipped", "title", c.Title, "permalink", c.Permalink, "kind", kind, "error", err)
}

// lock takes the cycle file lock without waiting. A fresh handle per cycle means
// two pipelines in one process also exclude each other.
func (p *Pipeline) lock() (func(), error) {
	if p.LockPath == "" {
		return func() {}, nil
	}
	fl := flock.New(p.LockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("ingest: acquire %s: %w", p.LockPath, err)
	}
	if !ok {
		return nil, ErrCycleLocked
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			p.log.Warn("cycle unlock failed", "lock", p.LockPath, "error", err)
		}
	}, nil
}

func (p *Pipeline) publish(ev Event) {
	if p.Events != nil {
		p.Events.Publish(ev)
	}
}
