package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofrs/flock"
)

func TestRunCycleSkipsWhileLockHeld(t *testing.T) {
	env := newTestEnv(t, nil)
	env.site.addMovie("a", page{Title: "Arrival"})
	env.pipeline.LockPath = filepath.Join(t.TempDir(), "catalog.db.ingest.lock")

	other := flock.New(env.pipeline.LockPath)
	ok, err := other.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}

	report, err := env.pipeline.RunCycle(context.Background())
	if !errors.Is(err, ErrCycleLocked) {
		t.Fatalf("expected ErrCycleLocked, got %v", err)
	}
	if report.Err == "" || report.FinishedAt.IsZero() {
		t.Fatalf("skipped cycle should be reported, got %+v", report)
	}
	if hits := env.site.hitsFor("/feed.xml"); hits != 0 {
		t.Fatalf("locked cycle must not touch the feed, got %d hits", hits)
	}

	if err := other.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if _, err := env.pipeline.RunCycle(context.Background()); err != nil {
		t.Fatalf("RunCycle after unlock: %v", err)
	}
	if n := env.movieCount(t); n != 1 {
		t.Fatalf("expected 1 movie, got %d", n)
	}
}

func TestPipelinesSharingCatalogNeverDuplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	for i := 0; i < 4; i++ {
		env.site.addMovie(fmt.Sprintf("m%d", i), page{Title: fmt.Sprintf("Movie %c", 'a'+i), Genres: []string{"Drama"}})
	}
	lock := filepath.Join(t.TempDir(), "catalog.db.ingest.lock")
	pipelines := []*Pipeline{env.pipeline, env.sibling()}

	for round := 0; round < 3; round++ {
		var wg sync.WaitGroup
		errs := make([]error, len(pipelines))
		for i, p := range pipelines {
			p.LockPath = lock
			wg.Add(1)
			go func(i int, p *Pipeline) {
				defer wg.Done()
				_, errs[i] = p.RunCycle(context.Background())
			}(i, p)
		}
		wg.Wait()
		for i, err := range errs {
			if err != nil && !errors.Is(err, ErrCycleLocked) {
				t.Fatalf("round %d pipeline %d: %v", round, i, err)
			}
		}
	}

	if n := env.movieCount(t); n != 4 {
		t.Fatalf("expected one row per feed title, got %d", n)
	}
	for i := 0; i < 4; i++ {
		title := fmt.Sprintf("Movie %c", 'a'+i)
		if m, err := env.repo.FindMovieByTitle(context.Background(), title); err != nil || m == nil {
			t.Fatalf("missing %q: %v", title, err)
		}
	}
}
