package customersync

import (
	"context"
	"time"

	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/models"
)

type Input struct {
	UserID     string `json:"userId"`
	LeadSource string `json:"leadSource,omitempty"`
}

type Output struct {
	ContactID   string    `json:"contactId"`
	Created     bool      `json:"created"`
	CRMProvider string    `json:"crmProvider"`
	SyncedAt    time.Time `json:"syncedAt"`
}

type UserReader interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type ServiceDependencies struct {
	Users  UserReader
	Logger logger.Logger
}
