package entitlementcheck

import (
	"context"

	"robohire-billing/internal/billing/usage"
	"robohire-billing/internal/models"
)

type Input struct {
	UserID string        `json:"userId"`
	Action models.Action `json:"action,omitempty"`
}

type Output struct {
	Entitlement *usage.Snapshot `json:"entitlement"`
	// Allowed is set only when the input named an action.
	Allowed *bool `json:"allowed,omitempty"`
}

type EntitlementReader interface {
	Snapshot(ctx context.Context, userID string) (*usage.Snapshot, error)
	Pricing() usage.Pricing
}
