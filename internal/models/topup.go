package models

import "time"

type TopUpStatus string

const (
	TopUpPending   TopUpStatus = "pending"
	TopUpCompleted TopUpStatus = "completed"
	TopUpExpired   TopUpStatus = "expired"
)

type TopUp struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	StripeSessionID string      `json:"stripeSessionId"`
	AmountCents     int64       `json:"amountCents"`
	Currency        string      `json:"currency"`
	Status          TopUpStatus `json:"status"`
	CreatedAt       time.Time   `json:"createdAt"`
	CreditedAt      *time.Time  `json:"creditedAt,omitempty"`
}
