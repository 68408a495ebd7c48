package models

import "time"

type AdjustmentKind string

const (
	KindBalance      AdjustmentKind = "balance"
	KindUsage        AdjustmentKind = "usage"
	KindUsageReset   AdjustmentKind = "usage_reset"
	KindTier         AdjustmentKind = "tier"
	KindStatus       AdjustmentKind = "status"
	KindRole         AdjustmentKind = "role"
	KindCustomLimits AdjustmentKind = "custom_limits"
)

// Adjustment is one audited field change made by an admin.
type Adjustment struct {
	ID       string         `json:"id"`
	UserID   string         `json:"userId"`
	AdminID  string         `json:"adminId"`
	Kind     AdjustmentKind `json:"kind"`
	Field    string         `json:"field"`
	OldValue string         `json:"oldValue"`
	NewValue string         `json:"newValue"`
	Reason   string         `json:"reason"`
	// RequestKey ties rows to the request that wrote them, when it carried one.
	RequestKey string    `json:"requestKey,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
