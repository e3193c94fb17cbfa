package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

const providerCols = `id, name, kind, active, is_primary, position, settings, created_at, updated_at`

func scanProvider(row interface{ Scan(...any) error }) (domain.Provider, error) {
	var p domain.Provider
	var settings []byte
	err := row.Scan(&p.ID, &p.Name, &p.Kind, &p.Active, &p.IsPrimary, &p.Position, &settings, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return domain.Provider{}, err
	}
	_ = json.Unmarshal(settings, &p.Settings)
	return p, nil
}

func (s *Store) InsertProvider(ctx context.Context, in store.ProviderInsert) error {
	b, _ := json.Marshal(in.Settings)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO providers (id, name, kind, active, is_primary, position, settings, created_at, updated_at)
		VALUES ($1,$2,$3,$4,false,$5,$6,$7,$7)
	`, in.ID, in.Name, in.Kind, in.Active, in.Position, b, in.Now)
	return err
}

func (s *Store) ListProviders(ctx context.Context) ([]domain.Provider, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+providerCols+` FROM providers ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveProviders(ctx context.Context) ([]domain.Provider, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+providerCols+` FROM providers WHERE active ORDER BY position, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetProvider(ctx context.Context, id string) (domain.Provider, bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+providerCols+` FROM providers WHERE id=$1`, id)
	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Provider{}, false, nil
		}
		return domain.Provider{}, false, err
	}
	return p, true, nil
}

// GetPrimaryProvider returns the active primary, if one exists.
func (s *Store) GetPrimaryProvider(ctx context.Context) (domain.Provider, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT `+providerCols+` FROM providers WHERE active AND is_primary LIMIT 1
	`)
	p, err := scanProvider(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Provider{}, false, nil
		}
		return domain.Provider{}, false, err
	}
	return p, true, nil
}

func (s *Store) SetProviderActive(ctx context.Context, id string, active bool, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE providers SET active=$2, is_primary = (is_primary AND $2), updated_at=$3 WHERE id=$1
	`, id, active, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// SetPrimaryProvider flips the primary flag to the target in one statement so
// no reader can observe two primaries. Returns false when the target does not
// exist or is inactive; nothing is changed in that case.
func (s *Store) SetPrimaryProvider(ctx context.Context, id string, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE providers
		SET is_primary = (id = $1), updated_at = $2
		WHERE EXISTS (SELECT 1 FROM providers WHERE id = $1 AND active)
	`, id, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) UpdateProviderSettings(ctx context.Context, id string, settings map[string]string, now time.Time) (bool, error) {
	b, _ := json.Marshal(settings)
	ct, err := s.DB.Exec(ctx, `
		UPDATE providers SET settings=$2, updated_at=$3 WHERE id=$1
	`, id, b, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
