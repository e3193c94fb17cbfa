package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

const templateCols = `id, name, subject, body, version, COALESCE(grouping,''), created_at, updated_at`

func scanTemplate(row interface{ Scan(...any) error }) (domain.Template, error) {
	var t domain.Template
	err := row.Scan(&t.ID, &t.Name, &t.Subject, &t.Body, &t.Version, &t.Grouping, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Template{}, err
	}
	return t, nil
}

func (s *Store) InsertTemplate(ctx context.Context, in store.TemplateUpsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO templates (id, name, subject, body, version, grouping, created_at, updated_at)
		VALUES ($1,$2,$3,$4,1,$5,$6,$6)
	`, in.ID, in.Name, in.Subject, in.Body, nullIfEmpty(in.Grouping), in.Now)
	return err
}

// UpdateTemplate bumps the version on every content change.
func (s *Store) UpdateTemplate(ctx context.Context, in store.TemplateUpsert) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE templates
		SET name=$2, subject=$3, body=$4, grouping=$5, version=version+1, updated_at=$6
		WHERE id=$1
	`, in.ID, in.Name, in.Subject, in.Body, nullIfEmpty(in.Grouping), in.Now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// GetTemplate returns domain.ErrTemplateNotFound for unknown IDs so callers
// can classify the failure as terminal without inspecting pgx errors.
func (s *Store) GetTemplate(ctx context.Context, id string) (domain.Template, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+templateCols+` FROM templates WHERE id=$1`, id)
	t, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Template{}, domain.ErrTemplateNotFound
		}
		return domain.Template{}, err
	}
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+templateCols+` FROM templates ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM templates WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
