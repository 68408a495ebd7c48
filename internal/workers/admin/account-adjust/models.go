package accountadjust

import (
	"context"

	"robohire-billing/internal/billing/adjust"
	"robohire-billing/internal/models"
)

type Operation string

const (
	OpBalance      Operation = "balance"
	OpUsage        Operation = "usage"
	OpResetUsage   Operation = "reset_usage"
	OpTier         Operation = "tier"
	OpStatus       Operation = "status"
	OpRole         Operation = "role"
	OpCustomLimits Operation = "custom_limits"
)

// Input carries one admin change. Which value fields are read depends on Operation.
type Input struct {
	Operation  Operation `json:"operation"`
	UserID     string    `json:"userId"`
	AdminID    string    `json:"adminId,omitempty"`
	AdminToken string    `json:"adminToken,omitempty"`
	Reason     string    `json:"reason"`

	Mode        adjust.Mode               `json:"mode,omitempty"`
	AmountCents int64                     `json:"amountCents,omitempty"`
	Counter     models.Action             `json:"counter,omitempty"`
	Value       int                       `json:"value,omitempty"`
	Tier        string                    `json:"tier,omitempty"`
	Status      models.SubscriptionStatus `json:"status,omitempty"`
	Role        models.Role               `json:"role,omitempty"`

	CustomMaxInterviews    *int `json:"customMaxInterviews,omitempty"`
	CustomMaxResumeMatches *int `json:"customMaxResumeMatches,omitempty"`

	// RequestKey is the job key, so a retried job does not apply its change twice.
	RequestKey string `json:"-"`
}

type Adjuster interface {
	AdjustBalance(ctx context.Context, req adjust.Request, mode adjust.Mode, amountCents int64) (*adjust.Result, error)
	AdjustUsage(ctx context.Context, req adjust.Request, counter models.Action, mode adjust.Mode, value int) (*adjust.Result, error)
	ResetUsage(ctx context.Context, req adjust.Request) (*adjust.Result, error)
	SetTier(ctx context.Context, req adjust.Request, tier string) (*adjust.Result, error)
	SetStatus(ctx context.Context, req adjust.Request, status models.SubscriptionStatus) (*adjust.Result, error)
	SetRole(ctx context.Context, req adjust.Request, role models.Role) (*adjust.Result, error)
	SetCustomLimits(ctx context.Context, req adjust.Request, interviews, resumeMatches *int) (*adjust.Result, error)
}

// ActorResolver maps an access token to the calling user's id.
type ActorResolver interface {
	ResolveActor(ctx context.Context, token string) (string, error)
}
