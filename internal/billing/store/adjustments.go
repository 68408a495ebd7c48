package store

import (
	"context"
	"database/sql"

	"robohire-billing/internal/models"
)

func (q *Queries) InsertAdjustment(ctx context.Context, a *models.Adjustment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO admin_adjustments (
			id, user_id, admin_id, kind, field, old_value, new_value, reason, request_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.UserID, a.AdminID, string(a.Kind), a.Field, a.OldValue, a.NewValue, a.Reason,
		nullString(a.RequestKey), a.CreatedAt)
	return err
}

// AdjustmentsByRequest returns the rows written by one keyed request.
func (q *Queries) AdjustmentsByRequest(ctx context.Context, requestKey string) ([]models.Adjustment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, admin_id, kind, field, old_value, new_value, reason, created_at
		FROM admin_adjustments
		WHERE request_key = $1
		ORDER BY field`, requestKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanAdjustments(rows)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].RequestKey = requestKey
	}
	return out, nil
}

// ListAdjustments returns a user's adjustments, newest first.
func (q *Queries) ListAdjustments(ctx context.Context, userID string, limit int) ([]models.Adjustment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, user_id, admin_id, kind, field, old_value, new_value, reason, created_at
		FROM admin_adjustments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAdjustments(rows)
}

func scanAdjustments(rows *sql.Rows) ([]models.Adjustment, error) {
	var out []models.Adjustment
	for rows.Next() {
		var a models.Adjustment
		if err := rows.Scan(&a.ID, &a.UserID, &a.AdminID, &a.Kind, &a.Field,
			&a.OldValue, &a.NewValue, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
