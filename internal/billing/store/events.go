package store

import "context"

func (q *Queries) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM stripe_events WHERE id = $1)`, eventID).Scan(&exists)
	return exists, err
}

func (q *Queries) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO stripe_events (id, type, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO NOTHING`, eventID, eventType)
	return err
}
