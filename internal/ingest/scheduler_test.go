package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeCycler counts runs and tracks how many overlap.
type fakeCycler struct {
	mu      sync.Mutex
	runs    int
	active  int32
	overlap bool
	delay   time.Duration
	release chan struct{}
	started chan struct{}
	err     error
	panics  bool
}

func (f *fakeCycler) RunCycle(ctx context.Context) (CycleReport, error) {
	if atomic.AddInt32(&f.active, 1) > 1 {
		f.mu.Lock()
		f.overlap = true
		f.mu.Unlock()
	}
	defer atomic.AddInt32(&f.active, -1)

	f.mu.Lock()
	f.runs++
	n := f.runs
	f.mu.Unlock()

	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics {
		panic("boom")
	}
	return CycleReport{Created: n}, f.err
}

func (f *fakeCycler) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	c := &fakeCycler{}
	s := NewScheduler(c, 20*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return c.count() >= 3 })
	cancel()
	<-done
	if _, ok := s.Last(); !ok {
		t.Fatal("expected a last report")
	}
}

func TestSchedulerNeverOverlaps(t *testing.T) {
	c := &fakeCycler{delay: 30 * time.Millisecond}
	s := NewScheduler(c, time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = s.Trigger(context.Background())
		}()
	}
	wg.Wait()
	waitFor(t, func() bool { return c.count() >= 3 })
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.overlap {
		t.Fatal("cycles overlapped")
	}
}

func TestTriggerJoinsRunningCycle(t *testing.T) {
	c := &fakeCycler{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewScheduler(c, time.Hour, nil)

	type result struct {
		report CycleReport
		joined bool
	}
	results := make(chan result, 2)
	go func() {
		r, joined, _ := s.Trigger(context.Background())
		results <- result{r, joined}
	}()
	<-c.started
	go func() {
		r, joined, _ := s.Trigger(context.Background())
		results <- result{r, joined}
	}()
	// give the second trigger time to join before the cycle ends
	time.Sleep(20 * time.Millisecond)
	close(c.release)

	a, b := <-results, <-results
	if c.count() != 1 {
		t.Fatalf("expected one cycle, got %d", c.count())
	}
	if !a.joined || !b.joined {
		t.Fatalf("both callers should share the result: %+v %+v", a, b)
	}
	if a.report.Created != 1 || b.report.Created != 1 {
		t.Fatalf("unexpected reports %+v %+v", a.report, b.report)
	}
}

func TestTriggerCallerContextOnlyBoundsWait(t *testing.T) {
	c := &fakeCycler{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewScheduler(c, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, _, err := s.Trigger(ctx)
		errc <- err
	}()
	<-c.started
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	close(c.release)
	waitFor(t, func() bool { _, ok := s.Last(); return ok })
	if last, _ := s.Last(); last.Created != 1 {
		t.Fatalf("cycle should finish after the caller left, got %+v", last)
	}
}

func TestSchedulerRecoversPanics(t *testing.T) {
	c := &fakeCycler{panics: true}
	s := NewScheduler(c, time.Hour, nil)

	_, _, err := s.Trigger(context.Background())
	if err == nil {
		t.Fatal("expected error from panicking cycle")
	}
	last, ok := s.Last()
	if !ok || last.Err == "" {
		t.Fatalf("panic should be recorded, got %+v", last)
	}
}

func TestSchedulerKeepsErrorReport(t *testing.T) {
	c := &fakeCycler{err: errors.New("feed down")}
	s := NewScheduler(c, time.Hour, nil)
	if _, _, err := s.Trigger(context.Background()); err == nil {
		t.Fatal("expected cycle error")
	}
	if _, ok := s.Last(); !ok {
		t.Fatal("failed cycles still count as last")
	}
}

// ctxCycler blocks until its context ends.
type ctxCycler struct {
	started chan struct{}
}

func (c *ctxCycler) RunCycle(ctx context.Context) (CycleReport, error) {
	c.started <- struct{}{}
	<-ctx.Done()
	return CycleReport{Err: ctx.Err().Error()}, ctx.Err()
}

func TestTriggerBeforeRunIsCancelledByRun(t *testing.T) {
	c := &ctxCycler{started: make(chan struct{}, 1)}
	s := NewScheduler(c, time.Hour, nil)

	errc := make(chan error, 1)
	go func() {
		_, _, err := s.Trigger(context.Background())
		errc <- err
	}()
	<-c.started

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not cancel a cycle triggered before Run")
	}
	<-done
}

func TestStopCancelsTriggeredCycle(t *testing.T) {
	c := &ctxCycler{started: make(chan struct{}, 1)}
	s := NewScheduler(c, time.Hour, nil)

	errc := make(chan error, 1)
	go func() {
		_, _, err := s.Trigger(context.Background())
		errc <- err
	}()
	<-c.started
	s.Stop()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the cycle")
	}

	if _, _, err := s.Trigger(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("trigger after Stop should fail, got %v", err)
	}
}
