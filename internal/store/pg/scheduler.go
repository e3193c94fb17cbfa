package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

// GetSchedulerConfig reads the singleton row, seeding defaults if the
// deployment has never been configured.
func (s *Store) GetSchedulerConfig(ctx context.Context) (domain.SchedulerConfig, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT cron_expr, enabled, last_run_at, COALESCE(last_run_status,'')
		FROM scheduler_config WHERE id=1
	`)
	var c domain.SchedulerConfig
	err := row.Scan(&c.CronExpr, &c.Enabled, &c.LastRunAt, &c.LastRunStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SchedulerConfig{CronExpr: "*/5 * * * *", Enabled: false}, nil
		}
		return domain.SchedulerConfig{}, err
	}
	return c, nil
}

func (s *Store) SetSchedulerConfig(ctx context.Context, in store.SchedulerUpdate) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO scheduler_config (id, cron_expr, enabled, updated_at)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET cron_expr=$1, enabled=$2, updated_at=$3
	`, in.CronExpr, in.Enabled, in.Now)
	return err
}

func (s *Store) RecordSchedulerRun(ctx context.Context, in store.RunRecord) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE scheduler_config SET last_run_at=$1, last_run_status=$2, updated_at=$1 WHERE id=1
	`, in.Now, in.Status)
	return err
}
