package service

import (
	"context"

	"mailroute/internal/domain"
	"mailroute/internal/schedule"
	"mailroute/internal/store"
)

// SetSchedule stores the cron expression as given. An unparseable expression
// is accepted; the status view simply omits the next-run estimate and the
// loop never fires on it.
func (s *Service) SetSchedule(ctx context.Context, cronExpr string) (schedule.Status, error) {
	if cronExpr == "" {
		return schedule.Status{}, domain.ErrMissingFields
	}
	cfg, err := s.Store.GetSchedulerConfig(ctx)
	if err != nil {
		return schedule.Status{}, err
	}
	cfg.CronExpr = cronExpr
	if err := s.Store.SetSchedulerConfig(ctx, store.SchedulerUpdate{
		CronExpr: cfg.CronExpr,
		Enabled:  cfg.Enabled,
		Now:      s.now(),
	}); err != nil {
		return schedule.Status{}, err
	}
	return schedule.BuildStatus(cfg, s.now()), nil
}

func (s *Service) SetScheduleEnabled(ctx context.Context, enabled bool) (schedule.Status, error) {
	cfg, err := s.Store.GetSchedulerConfig(ctx)
	if err != nil {
		return schedule.Status{}, err
	}
	cfg.Enabled = enabled
	if err := s.Store.SetSchedulerConfig(ctx, store.SchedulerUpdate{
		CronExpr: cfg.CronExpr,
		Enabled:  cfg.Enabled,
		Now:      s.now(),
	}); err != nil {
		return schedule.Status{}, err
	}
	return schedule.BuildStatus(cfg, s.now()), nil
}

func (s *Service) SchedulerStatus(ctx context.Context) (schedule.Status, error) {
	cfg, err := s.Store.GetSchedulerConfig(ctx)
	if err != nil {
		return schedule.Status{}, err
	}
	return schedule.BuildStatus(cfg, s.now()), nil
}
