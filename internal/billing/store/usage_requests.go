package store

import (
	"context"
	"database/sql"
	"errors"

	"robohire-billing/internal/models"
)

// UsageRequest returns the stored result of an already applied consume request.
func (q *Queries) UsageRequest(ctx context.Context, requestKey string) ([]byte, error) {
	var result []byte
	err := q.db.QueryRowContext(ctx,
		`SELECT result FROM usage_requests WHERE request_key = $1`, requestKey).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return result, err
}

func (q *Queries) InsertUsageRequest(ctx context.Context, requestKey, userID string, action models.Action, result []byte) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO usage_requests (request_key, user_id, action, result, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		requestKey, userID, string(action), result)
	return err
}
