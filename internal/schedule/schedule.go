// Package schedule controls the dispatcher's cadence: a cron expression and
// an enabled flag stored as a per-deployment singleton. The loop re-reads the
// config every tick, so administrator edits apply without a restart, and a
// disabled schedule stops timed runs while manual runs stay possible.
package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

type Store interface {
	GetSchedulerConfig(ctx context.Context) (domain.SchedulerConfig, error)
	SetSchedulerConfig(ctx context.Context, in store.SchedulerUpdate) error
	RecordSchedulerRun(ctx context.Context, in store.RunRecord) error
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextRun estimates the next firing time of a cron expression strictly after
// the given instant. Unparseable expressions yield ok=false: the estimate is
// omitted rather than guessed.
func NextRun(cronExpr string, after time.Time) (time.Time, bool) {
	sched, err := parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, false
	}
	return sched.Next(after), true
}

// Status is the admin-facing view of the scheduler.
type Status struct {
	CronExpr        string     `json:"cronExpr"`
	Enabled         bool       `json:"enabled"`
	LastRunAt       *time.Time `json:"lastRunAt,omitempty"`
	LastRunStatus   string     `json:"lastRunStatus,omitempty"`
	NextRunEstimate *time.Time `json:"nextRunEstimate,omitempty"`
}

// BuildStatus derives the status view, estimating the next run only while
// enabled and only when the expression parses.
func BuildStatus(cfg domain.SchedulerConfig, now time.Time) Status {
	st := Status{
		CronExpr:      cfg.CronExpr,
		Enabled:       cfg.Enabled,
		LastRunAt:     cfg.LastRunAt,
		LastRunStatus: cfg.LastRunStatus,
	}
	if cfg.Enabled {
		if next, ok := NextRun(cfg.CronExpr, now); ok {
			st.NextRunEstimate = &next
		}
	}
	return st
}

// Controller drives timed dispatch runs. Run executes one batch; the loop
// owns when it fires.
type Controller struct {
	Store Store
	Run   func(ctx context.Context) (domain.BatchSummary, error)
	Tick  time.Duration

	now func() time.Time
}

// Loop blocks until the context is canceled. Each tick it reloads the
// scheduler config; when enabled and a cron firing falls between the last
// run and now, it runs one batch and records the outcome.
func (c *Controller) Loop(ctx context.Context) error {
	tick := c.Tick
	if tick <= 0 {
		tick = 15 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	started := c.clock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cfg, err := c.Store.GetSchedulerConfig(ctx)
		if err != nil {
			slog.Error("scheduler config load failed", "err", err)
			continue
		}
		if !cfg.Enabled {
			continue
		}

		since := started
		if cfg.LastRunAt != nil && cfg.LastRunAt.After(since) {
			since = *cfg.LastRunAt
		}

		next, ok := NextRun(cfg.CronExpr, since)
		if !ok {
			slog.Warn("scheduler cron expression unparseable, skipping timed runs", "cron_expr", cfg.CronExpr)
			continue
		}
		now := c.clock()
		if next.After(now) {
			continue
		}

		sum, runErr := c.Run(ctx)
		status := "ok"
		if runErr != nil {
			status = "error: " + runErr.Error()
			slog.Error("scheduled dispatch run failed", "err", runErr)
		} else {
			slog.Info("scheduled dispatch run finished",
				"processed", sum.Processed, "sent", sum.Sent, "failed", sum.Failed)
		}
		if err := c.Store.RecordSchedulerRun(ctx, store.RunRecord{Status: status, Now: now}); err != nil {
			slog.Error("record scheduler run failed", "err", err)
		}
	}
}

func (c *Controller) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now().UTC()
}
