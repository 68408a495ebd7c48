package store

import (
	"context"

	"robohire-billing/internal/models"
)

func (q *Queries) InsertUsageLog(ctx context.Context, l *models.UsageLog) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO usage_logs (
			id, user_id, action, module, provider, model,
			prompt_tokens, completion_tokens, total_tokens,
			cost_usd, duration_ms, status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		l.ID, nullString(l.UserID), l.Action, l.Module, l.Provider, l.Model,
		l.PromptTokens, l.CompletionTokens, l.TotalTokens,
		l.CostUSD, l.DurationMs, l.Status, nullString(l.ErrorMessage), l.CreatedAt)
	return err
}
