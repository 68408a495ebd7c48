package customersync

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/zoho"
	"robohire-billing/internal/models"
)

const (
	crmProvider       = "zoho"
	defaultLeadSource = "RoboHire Billing"
)

type Service struct {
	config     *Config
	users      UserReader
	logger     logger.Logger
	zohoClient *zoho.CRMClient
	now        func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	var zohoClient *zoho.CRMClient
	if config.ZohoOAuthToken != "" {
		zohoClient = zoho.NewCRMClient(config.ZohoAPIKey, config.ZohoOAuthToken).WithBaseURL(config.ZohoBaseURL)
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Service{
		config:     config,
		users:      deps.Users,
		logger:     log,
		zohoClient: zohoClient,
		now:        time.Now,
	}
}

// Execute creates or updates the CRM contact for a user, matched by email.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	if s.zohoClient == nil {
		return nil, errors.NewBusinessRuleError("Zoho CRM client not configured", "missing OAuth token")
	}

	u, err := s.users.GetUser(ctx, input.UserID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewUserNotFoundError(input.UserID)
	}
	if err != nil {
		return nil, errors.WrapDatabase("get user", err)
	}

	contact := contactFor(u, input.LeadSource)
	out := &Output{CRMProvider: crmProvider, SyncedAt: s.now().UTC()}

	existing, err := s.zohoClient.SearchContacts(ctx, u.Email)
	if err != nil {
		return nil, errors.NewCRMSyncFailedError(err)
	}

	if len(existing) > 0 {
		out.ContactID = existing[0].ID
		if err := s.zohoClient.UpdateContact(ctx, out.ContactID, contact); err != nil {
			return nil, errors.NewCRMSyncFailedError(err)
		}
	} else {
		if out.ContactID, err = s.zohoClient.CreateContact(ctx, contact); err != nil {
			return nil, errors.NewCRMSyncFailedError(err)
		}
		out.Created = true
	}

	s.logger.Info("CRM contact synced", map[string]interface{}{
		"userId":    u.ID,
		"contactId": out.ContactID,
		"created":   out.Created,
		"tier":      u.Tier,
	})
	return out, nil
}

func contactFor(u *models.User, leadSource string) *zoho.Contact {
	first, last := splitName(u.Name)
	if last == "" {
		last = strings.SplitN(u.Email, "@", 2)[0]
	}
	if leadSource == "" {
		leadSource = defaultLeadSource
	}
	return &zoho.Contact{
		Email:              u.Email,
		FirstName:          first,
		LastName:           last,
		AccountName:        u.Company,
		Source:             leadSource,
		SubscriptionTier:   u.Tier,
		SubscriptionStatus: string(u.Status),
		StripeCustomerID:   u.StripeCustomerID,
	}
}

// splitName puts everything after the first word into the last name, which
// Zoho requires.
func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
