package pg

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"mailroute/internal/domain"
	"mailroute/internal/store"
)

const messageCols = `id, recipient, category, COALESCE(template_id,''), COALESCE(subject,''),
	COALESCE(body,''), vars, status, attempt_count, COALESCE(last_error,''),
	created_at, updated_at, completed_at`

func scanMessage(row interface{ Scan(...any) error }) (domain.Message, error) {
	var m domain.Message
	var vars []byte
	err := row.Scan(&m.ID, &m.Recipient, &m.Category, &m.TemplateID, &m.Subject,
		&m.Body, &vars, &m.Status, &m.AttemptCount, &m.LastError,
		&m.CreatedAt, &m.UpdatedAt, &m.CompletedAt)
	if err != nil {
		return domain.Message{}, err
	}
	_ = json.Unmarshal(vars, &m.Vars)
	return m, nil
}

func (s *Store) InsertMessage(ctx context.Context, in store.MessageInsert) error {
	b, _ := json.Marshal(in.Vars)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO messages (id, recipient, category, template_id, subject, body, vars,
			status, attempt_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,$9)
	`, in.ID, in.Recipient, in.Category, nullIfEmpty(in.TemplateID),
		nullIfEmpty(in.Subject), nullIfEmpty(in.Body), b, domain.StatusPending, in.Now)
	return err
}

func (s *Store) GetMessage(ctx context.Context, id string) (domain.Message, bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+messageCols+` FROM messages WHERE id=$1`, id)
	m, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	return m, true, nil
}

func (s *Store) ListMessagesByStatus(ctx context.Context, status domain.MessageStatus, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+messageCols+` FROM messages WHERE status=$1 ORDER BY created_at DESC LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ClaimBatch atomically moves up to limit messages from pending to attempting
// and returns them, oldest first. SKIP LOCKED keeps overlapping runs from
// claiming the same rows. An attempting message whose updated_at is older
// than staleAfter was abandoned by a crashed run and is claimable again.
func (s *Store) ClaimBatch(ctx context.Context, limit int, now time.Time, staleAfter time.Duration) ([]domain.Message, error) {
	staleBefore := now.Add(-staleAfter)
	rows, err := s.DB.Query(ctx, `
		WITH picked AS (
			SELECT id FROM messages
			WHERE status = 'pending'
			   OR (status = 'attempting' AND updated_at < $3)
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE messages m
		SET status = 'attempting', updated_at = $2
		FROM picked
		WHERE m.id = picked.id
		RETURNING m.id, m.recipient, m.category, COALESCE(m.template_id,''),
			COALESCE(m.subject,''), COALESCE(m.body,''), m.vars, m.status,
			m.attempt_count, COALESCE(m.last_error,''), m.created_at, m.updated_at,
			m.completed_at
	`, limit, now, staleBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// RETURNING order is not guaranteed; restore oldest-first.
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// FinishMessage records the terminal outcome of a claimed message.
func (s *Store) FinishMessage(ctx context.Context, in store.MessageResult) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE messages
		SET status=$2, last_error=$3, attempt_count = attempt_count + $4,
			updated_at=$5, completed_at=$5
		WHERE id=$1
	`, in.ID, in.Status, nullIfEmpty(in.LastError), in.Attempts, in.Now)
	return err
}

// ResendMessage resets a failed message to pending. Only an explicit resend
// may take a message out of a terminal status; anything else is a conflict.
func (s *Store) ResendMessage(ctx context.Context, id string, now time.Time) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE messages
		SET status='pending', attempt_count=0, last_error=NULL, completed_at=NULL, updated_at=$2
		WHERE id=$1 AND status='failed'
	`, id, now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var one int
		err := s.DB.QueryRow(ctx, `SELECT 1 FROM messages WHERE id=$1`, id).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return domain.ErrConflict
	}
	return nil
}
