package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

func TestNextRunEveryFiveMinutes(t *testing.T) {
	after := time.Date(2025, 6, 1, 12, 2, 0, 0, time.UTC)
	next, ok := NextRun("*/5 * * * *", after)
	if !ok {
		t.Fatal("expected parseable expression")
	}
	want := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextRunSpecificMinute(t *testing.T) {
	after := time.Date(2025, 6, 1, 12, 45, 0, 0, time.UTC)
	next, ok := NextRun("30 * * * *", after)
	if !ok {
		t.Fatal("expected parseable expression")
	}
	want := time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
}

func TestNextRunUnparseableOmitted(t *testing.T) {
	if _, ok := NextRun("every day at noon", time.Now()); ok {
		t.Fatal("expected ok=false for unparseable expression")
	}
}

func TestBuildStatusDisabledHasNoEstimate(t *testing.T) {
	st := BuildStatus(domain.SchedulerConfig{CronExpr: "* * * * *", Enabled: false}, time.Now())
	if st.NextRunEstimate != nil {
		t.Fatal("disabled scheduler must not advertise a next run")
	}
}

func TestBuildStatusEnabled(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC)
	st := BuildStatus(domain.SchedulerConfig{CronExpr: "* * * * *", Enabled: true}, now)
	if st.NextRunEstimate == nil {
		t.Fatal("expected next run estimate")
	}
	want := time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)
	if !st.NextRunEstimate.Equal(want) {
		t.Fatalf("got %v, want %v", st.NextRunEstimate, want)
	}
}

func TestBuildStatusUnparseableExprOmitsEstimate(t *testing.T) {
	st := BuildStatus(domain.SchedulerConfig{CronExpr: "@@bogus", Enabled: true}, time.Now())
	if st.NextRunEstimate != nil {
		t.Fatal("unparseable expression must omit the estimate, not guess")
	}
	if st.CronExpr != "@@bogus" {
		t.Fatal("expression is still stored verbatim")
	}
}

type loopStore struct {
	mu    sync.Mutex
	cfg   domain.SchedulerConfig
	loads int
	runs  []store.RunRecord
}

func (s *loopStore) GetSchedulerConfig(context.Context) (domain.SchedulerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	return s.cfg, nil
}

func (s *loopStore) SetSchedulerConfig(_ context.Context, in store.SchedulerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.CronExpr = in.CronExpr
	s.cfg.Enabled = in.Enabled
	return nil
}

func (s *loopStore) RecordSchedulerRun(_ context.Context, in store.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, in)
	at := in.Now
	s.cfg.LastRunAt = &at
	s.cfg.LastRunStatus = in.Status
	return nil
}

func (s *loopStore) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *loopStore) runRecords() []store.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.RunRecord(nil), s.runs...)
}

func (s *loopStore) setEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Enabled = enabled
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestLoopDisabledNeverRuns(t *testing.T) {
	st := &loopStore{cfg: domain.SchedulerConfig{CronExpr: "* * * * *", Enabled: false}}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	var runCount atomic.Int64
	ctrl := &Controller{
		Store: st,
		Run: func(context.Context) (domain.BatchSummary, error) {
			runCount.Add(1)
			return domain.BatchSummary{}, nil
		},
		Tick: time.Millisecond,
		now:  clock.now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = ctrl.Loop(ctx)
		close(done)
	}()

	// Time passes well beyond several cron firings; disabled must still win.
	clock.advance(10 * time.Minute)
	waitFor(t, func() bool { return st.loadCount() >= 5 })

	cancel()
	<-done

	if n := runCount.Load(); n != 0 {
		t.Fatalf("disabled scheduler fired %d runs", n)
	}
	if recs := st.runRecords(); len(recs) != 0 {
		t.Fatalf("disabled scheduler recorded runs: %+v", recs)
	}
}

func TestLoopPicksUpEnableWithoutRestart(t *testing.T) {
	st := &loopStore{cfg: domain.SchedulerConfig{CronExpr: "* * * * *", Enabled: false}}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	var runCount atomic.Int64
	ctrl := &Controller{
		Store: st,
		Run: func(context.Context) (domain.BatchSummary, error) {
			runCount.Add(1)
			return domain.BatchSummary{Processed: 1, Sent: 1}, nil
		},
		Tick: time.Millisecond,
		now:  clock.now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = ctrl.Loop(ctx)
		close(done)
	}()

	waitFor(t, func() bool { return st.loadCount() >= 3 })
	if runCount.Load() != 0 {
		t.Fatal("loop ran while disabled")
	}

	// Enable through the store only; a cron firing is now overdue.
	clock.advance(2 * time.Minute)
	st.setEnabled(true)

	waitFor(t, func() bool { return runCount.Load() >= 1 })

	// One overdue firing yields exactly one run; with the clock parked,
	// further ticks must not fire again.
	loads := st.loadCount()
	waitFor(t, func() bool { return st.loadCount() >= loads+5 })

	cancel()
	<-done

	if n := runCount.Load(); n != 1 {
		t.Fatalf("run count = %d, want 1", n)
	}
	recs := st.runRecords()
	if len(recs) != 1 || recs[0].Status != "ok" {
		t.Fatalf("unexpected run records: %+v", recs)
	}
	if !recs[0].Now.Equal(clock.now()) {
		t.Fatalf("run recorded at %v, want %v", recs[0].Now, clock.now())
	}
}

func TestLoopUnparseableExprNeverRuns(t *testing.T) {
	st := &loopStore{cfg: domain.SchedulerConfig{CronExpr: "every full moon", Enabled: true}}
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	var runCount atomic.Int64
	ctrl := &Controller{
		Store: st,
		Run: func(context.Context) (domain.BatchSummary, error) {
			runCount.Add(1)
			return domain.BatchSummary{}, nil
		},
		Tick: time.Millisecond,
		now:  clock.now,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = ctrl.Loop(ctx)
		close(done)
	}()

	clock.advance(time.Hour)
	waitFor(t, func() bool { return st.loadCount() >= 5 })

	cancel()
	<-done

	if n := runCount.Load(); n != 0 {
		t.Fatalf("unparseable expression fired %d runs", n)
	}
}
