package pg

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

const ruleCols = `id, label, category, primary_provider_id, primary_address_id,
	COALESCE(failover_provider_id,''), COALESCE(failover_address_id,''),
	is_default, active, priority, metadata, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (domain.RoutingRule, error) {
	var r domain.RoutingRule
	var meta []byte
	err := row.Scan(&r.ID, &r.Label, &r.Category, &r.PrimaryProviderID, &r.PrimaryAddressID,
		&r.FailoverProviderID, &r.FailoverAddressID,
		&r.IsDefault, &r.Active, &r.Priority, &meta, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.RoutingRule{}, err
	}
	_ = json.Unmarshal(meta, &r.Metadata)
	return r, nil
}

func (s *Store) InsertRule(ctx context.Context, in store.RuleInsert) error {
	b, _ := json.Marshal(in.Metadata)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO routing_rules (id, label, category, primary_provider_id, primary_address_id,
			failover_provider_id, failover_address_id, is_default, active, priority, metadata,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,true,$9,$10,$11,$11)
	`, in.ID, in.Label, in.Category, in.PrimaryProviderID, in.PrimaryAddressID,
		nullIfEmpty(in.FailoverProviderID), nullIfEmpty(in.FailoverAddressID),
		in.IsDefault, in.Priority, b, in.Now)
	return err
}

func (s *Store) ListRules(ctx context.Context) ([]domain.RoutingRule, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+ruleCols+` FROM routing_rules ORDER BY priority, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoutingRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListActiveRules returns active rules ordered by (priority, id) so the
// resolver's first match is already the winning rule.
func (s *Store) ListActiveRules(ctx context.Context) ([]domain.RoutingRule, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+ruleCols+` FROM routing_rules WHERE active ORDER BY priority, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoutingRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetRule(ctx context.Context, id string) (domain.RoutingRule, bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+ruleCols+` FROM routing_rules WHERE id=$1`, id)
	r, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RoutingRule{}, false, nil
		}
		return domain.RoutingRule{}, false, err
	}
	return r, true, nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	ct, err := s.DB.Exec(ctx, `DELETE FROM routing_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
