package usageconsume

import (
	"context"

	"robohire-billing/internal/billing/usage"
	"robohire-billing/internal/models"
)

// Input is one metered AI action plus the call details logged for analytics.
type Input struct {
	UserID           string        `json:"userId"`
	Action           models.Action `json:"action"`
	Module           string        `json:"module,omitempty"`
	Provider         string        `json:"provider,omitempty"`
	Model            string        `json:"model,omitempty"`
	PromptTokens     int           `json:"promptTokens,omitempty"`
	CompletionTokens int           `json:"completionTokens,omitempty"`
	CostUSD          float64       `json:"costUsd,omitempty"`
	DurationMs       int           `json:"durationMs,omitempty"`

	// RequestKey is the job key, so a retried job consumes only once.
	RequestKey string `json:"-"`
}

type Output struct {
	Usage      *usage.ConsumeResult `json:"usage"`
	UsageLogID string               `json:"usageLogId,omitempty"`
}

type Consumer interface {
	Consume(ctx context.Context, userID string, action models.Action, requestKey string) (*usage.ConsumeResult, error)
}

type Recorder interface {
	RecordUsage(ctx context.Context, l *models.UsageLog) error
}
