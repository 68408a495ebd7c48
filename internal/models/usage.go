package models

import "time"

const (
	UsageStatusSuccess = "success"
	UsageStatusError   = "error"
)

// UsageLog is one AI call made on behalf of a user.
type UsageLog struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId,omitempty"`
	Action           string    `json:"action"`
	Module           string    `json:"module,omitempty"`
	Provider         string    `json:"provider,omitempty"`
	Model            string    `json:"model,omitempty"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	TotalTokens      int       `json:"totalTokens"`
	CostUSD          float64   `json:"costUsd"`
	DurationMs       int       `json:"durationMs"`
	Status           string    `json:"status"`
	ErrorMessage     string    `json:"errorMessage,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}
