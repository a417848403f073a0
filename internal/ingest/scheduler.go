package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"moviehub/pkg/logger"
)

const cycleKey = "cycle"

// Cycler runs one ingestion cycle.
type Cycler interface {
	RunCycle(ctx context.Context) (CycleReport, error)
}

// Scheduler runs a cycle at start and then again interval after each cycle
// completes. Scheduled and manual runs share one flight, so at most one cycle is
// ever in progress; a trigger during a running cycle waits for that cycle.
type Scheduler struct {
	cycler   Cycler
	interval time.Duration
	log      *logger.Logger

	flight singleflight.Group

	// every cycle runs on ctx; it ends with Stop or with Run's context
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	last *CycleReport
}

func NewScheduler(c Cycler, interval time.Duration, log *logger.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cycler:   c,
		interval: interval,
		log:      logger.OrNop(log).With("component", "scheduler"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Run blocks until ctx is cancelled, which also cancels any cycle in flight,
// including one started by Trigger before Run. Cycle failures never stop the loop.
func (s *Scheduler) Run(ctx context.Context) {
	context.AfterFunc(ctx, s.cancel)
	ctx = s.ctx

	s.log.Info("scheduler started", "interval", s.interval.String())
	_, _, _ = s.run(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-timer.C:
			_, _, _ = s.run(ctx)
			timer.Reset(s.interval)
		}
	}
}

// Stop cancels the running cycle and every later one. Processes that never call
// Run use it on shutdown.
func (s *Scheduler) Stop() { s.cancel() }

// Trigger starts a cycle now, or joins the one in progress. joined reports whether
// the result came from a cycle that was already running. The cycle itself runs on
// the scheduler's context; ctx only bounds how long the caller waits. After Stop
// it fails with context.Canceled without running anything.
func (s *Scheduler) Trigger(ctx context.Context) (report CycleReport, joined bool, err error) {
	if err := s.ctx.Err(); err != nil {
		return CycleReport{}, false, err
	}
	ch := s.flight.DoChan(cycleKey, func() (any, error) {
		return s.cycle(s.ctx)
	})
	select {
	case <-ctx.Done():
		return CycleReport{}, false, ctx.Err()
	case res := <-ch:
		report, _ := res.Val.(CycleReport)
		return report, res.Shared, res.Err
	}
}

// Last returns the most recent finished cycle, if any.
func (s *Scheduler) Last() (CycleReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return CycleReport{}, false
	}
	return *s.last, true
}

func (s *Scheduler) run(ctx context.Context) (CycleReport, bool, error) {
	v, err, shared := s.flight.Do(cycleKey, func() (any, error) {
		return s.cycle(ctx)
	})
	report, _ := v.(CycleReport)
	return report, shared, err
}

func (s *Scheduler) cycle(ctx context.Context) (report CycleReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ingest: cycle panicked: %v", r)
			report.Err = err.Error()
			report.FinishedAt = time.Now().UTC()
			s.log.Error("cycle panicked", "panic", r)
		}
		s.mu.Lock()
		last := report
		s.last = &last
		s.mu.Unlock()
	}()
	return s.cycler.RunCycle(ctx)
}
