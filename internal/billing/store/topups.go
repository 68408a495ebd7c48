package store

import (
	"context"
	"database/sql"
	"errors"

	"robohire-billing/internal/models"
)

func (q *Queries) InsertTopUp(ctx context.Context, t *models.TopUp) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO top_ups (id, user_id, stripe_session_id, amount_cents, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.UserID, t.StripeSessionID, t.AmountCents, t.Currency, string(t.Status), t.CreatedAt)
	return err
}

// EnsureTopUp inserts a pending row for the session unless one already exists.
func (q *Queries) EnsureTopUp(ctx context.Context, t *models.TopUp) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO top_ups (id, user_id, stripe_session_id, amount_cents, currency, status, created_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		ON CONFLICT (stripe_session_id) DO NOTHING`,
		t.ID, t.UserID, t.StripeSessionID, t.AmountCents, t.Currency, t.CreatedAt)
	return err
}

// GetTopUpBySessionForUpdate locks the top-up row for a checkout session.
func (q *Queries) GetTopUpBySessionForUpdate(ctx context.Context, sessionID string) (*models.TopUp, error) {
	var (
		t          models.TopUp
		creditedAt sql.NullTime
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, stripe_session_id, amount_cents, currency, status, created_at, credited_at
		FROM top_ups
		WHERE stripe_session_id = $1
		FOR UPDATE`, sessionID,
	).Scan(&t.ID, &t.UserID, &t.StripeSessionID, &t.AmountCents, &t.Currency, &t.Status, &t.CreatedAt, &creditedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if creditedAt.Valid {
		c := creditedAt.Time
		t.CreditedAt = &c
	}
	return &t, nil
}

// CompleteTopUp marks a top-up credited. Completing an already completed row
// returns ErrGuardFailed.
func (q *Queries) CompleteTopUp(ctx context.Context, id string, amountCents int64) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE top_ups
		SET status = 'completed', amount_cents = $2, credited_at = NOW()
		WHERE id = $1 AND status <> 'completed'`, id, amountCents)
	if err != nil {
		return err
	}
	return guard(res)
}

// ExpireTopUp marks a pending top-up expired and reports whether a row changed.
func (q *Queries) ExpireTopUp(ctx context.Context, sessionID string) (bool, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE top_ups SET status = 'expired'
		WHERE stripe_session_id = $1 AND status = 'pending'`, sessionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
