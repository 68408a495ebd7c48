package subscriptionsync

import (
	"context"

	"robohire-billing/internal/billing/reconcile"
)

type Input struct {
	UserID string `json:"userId"`
}

type Syncer interface {
	SyncUser(ctx context.Context, userID string) (*reconcile.SyncResult, error)
}
