package topupcredit

import (
	"context"

	"robohire-billing/internal/billing/reconcile"
)

type Input struct {
	SessionID string `json:"sessionId"`
	// UserID, when present, must own the checkout session.
	UserID string `json:"userId,omitempty"`
}

type Output = reconcile.CreditResult

type TopUpVerifier interface {
	VerifyTopUp(ctx context.Context, sessionID, expectUserID string) (*reconcile.CreditResult, error)
}
