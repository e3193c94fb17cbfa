package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

const addressCols = `id, provider_id, email, display_name, COALESCE(reply_to,''), active, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (domain.Address, error) {
	var a domain.Address
	err := row.Scan(&a.ID, &a.ProviderID, &a.Email, &a.DisplayName, &a.ReplyTo, &a.Active, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Address{}, err
	}
	return a, nil
}

// InsertAddress fails with domain.ErrNotFound when the owning provider is
// unknown.
func (s *Store) InsertAddress(ctx context.Context, in store.AddressInsert) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var one int
	err = tx.QueryRow(ctx, `SELECT 1 FROM providers WHERE id=$1`, in.ProviderID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO addresses (id, provider_id, email, display_name, reply_to, active, is_default, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,true,$6,$7,$7)
	`, in.ID, in.ProviderID, in.Email, in.DisplayName, nullIfEmpty(in.ReplyTo), in.IsDefault, in.Now)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListAddresses(ctx context.Context) ([]domain.Address, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+addressCols+` FROM addresses ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListAddressesForProvider(ctx context.Context, providerID string) ([]domain.Address, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+addressCols+` FROM addresses WHERE provider_id=$1 ORDER BY id
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetAddress(ctx context.Context, id string) (domain.Address, bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+addressCols+` FROM addresses WHERE id=$1`, id)
	a, err := scanAddress(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Address{}, false, nil
		}
		return domain.Address{}, false, err
	}
	return a, true, nil
}

// DeleteAddress refuses to orphan routing rules: when any rule still
// references the address, it returns domain.ErrConflict and leaves both the
// address and the rule untouched.
func (s *Store) DeleteAddress(ctx context.Context, id string) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var one int
	err = tx.QueryRow(ctx, `
		SELECT 1 FROM routing_rules
		WHERE primary_address_id=$1 OR failover_address_id=$1
		LIMIT 1
	`, id).Scan(&one)
	if err == nil {
		return domain.ErrConflict
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	ct, err := tx.Exec(ctx, `DELETE FROM addresses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (s *Store) SetAddressActive(ctx context.Context, id string, active bool, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE addresses SET active=$2, updated_at=$3 WHERE id=$1
	`, id, active, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}
