package reconcile

import (
	"context"
	stderrors "errors"
	"time"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/models"

	"github.com/stripe/stripe-go/v76"
)

type SyncResult struct {
	UserID         string                    `json:"userId"`
	Tier           string                    `json:"tier"`
	Status         models.SubscriptionStatus `json:"status"`
	SubscriptionID string                    `json:"subscriptionId,omitempty"`
	UsageReset     bool                      `json:"usageReset"`
	Skipped        bool                      `json:"skipped"`
	Reason         string                    `json:"reason,omitempty"`
}

// MapStatus folds provider subscription states onto the four local ones.
func MapStatus(status stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.StatusActive
	case stripe.SubscriptionStatusTrialing:
		return models.StatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusIncomplete:
		return models.StatusPastDue
	default:
		return models.StatusCanceled
	}
}

func (s *Service) tierOf(sub *stripe.Subscription) (string, error) {
	var priceID string
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.Price != nil {
				priceID = item.Price.ID
				break
			}
		}
	}
	if tier, ok := s.prices.TierForPrice(priceID); ok {
		return tier, nil
	}
	if tier := sub.Metadata["tier"]; tier != "" && tier != tiers.Custom && tiers.Valid(tier) {
		return tier, nil
	}
	return "", errors.NewUnknownPriceError(priceID)
}

// SyncSubscription applies a provider subscription to the user's tier, status
// and period. A new subscription id resets usage counters. Custom-tier users
// are left alone.
func (s *Service) SyncSubscription(ctx context.Context, userID string, sub *stripe.Subscription) (*SyncResult, error) {
	status := MapStatus(sub.Status)

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	result := &SyncResult{UserID: userID, Tier: tiers.Free, Status: status, SubscriptionID: sub.ID}

	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		u, err := q.GetUserForUpdate(ctx, userID)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewUserNotFoundError(userID)
		}
		if err != nil {
			return err
		}

		if u.Tier == tiers.Custom {
			result.Skipped, result.Reason = true, "custom tier"
			result.Tier, result.Status = u.Tier, u.Status
			return nil
		}

		// Custom deals use prices outside the catalogue, so the tier is only
		// resolved once the user is known not to be custom.
		tier := tiers.Free
		if status != models.StatusCanceled {
			t, err := s.tierOf(sub)
			if err != nil {
				return err
			}
			tier = t
		}
		result.Tier = tier

		update := store.SubscriptionUpdate{
			Tier:           tier,
			Status:         status,
			SubscriptionID: sub.ID,
			PeriodEnd:      periodEnd,
		}
		if status == models.StatusCanceled {
			// An old subscription ending must not downgrade its replacement.
			if u.StripeSubscriptionID != "" && u.StripeSubscriptionID != sub.ID {
				result.Skipped, result.Reason = true, "stale subscription"
				result.Tier, result.Status = u.Tier, u.Status
				return nil
			}
			update.SubscriptionID = ""
			result.SubscriptionID = ""
		}

		if err := q.ApplySubscription(ctx, userID, update); err != nil {
			return err
		}
		if status != models.StatusCanceled && u.StripeSubscriptionID != sub.ID {
			if err := q.ResetUsage(ctx, userID); err != nil {
				return err
			}
			result.UsageReset = true
		}
		return nil
	})
	if err != nil {
		return nil, errors.WrapDatabase("sync subscription", err)
	}

	if !result.Skipped {
		s.invalidate(ctx, userID)
	}
	s.logger.Info("subscription synced", map[string]interface{}{
		"userId":         userID,
		"subscriptionId": sub.ID,
		"tier":           result.Tier,
		"status":         string(result.Status),
		"usageReset":     result.UsageReset,
		"skipped":        result.Skipped,
	})
	return result, nil
}

// SyncUser pulls the user's current subscription from the provider and applies
// it. A paid user with no subscription left is moved to the free tier.
func (s *Service) SyncUser(ctx context.Context, userID string) (*SyncResult, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var sub *stripe.Subscription
	if u.StripeSubscriptionID != "" {
		if sub, err = s.gateway.GetSubscription(ctx, u.StripeSubscriptionID); err != nil {
			return nil, err
		}
	}
	if sub == nil && u.StripeCustomerID != "" {
		if sub, err = s.gateway.LatestSubscription(ctx, u.StripeCustomerID); err != nil {
			return nil, err
		}
	}
	if sub != nil {
		return s.SyncSubscription(ctx, userID, sub)
	}

	result := &SyncResult{UserID: userID, Tier: u.Tier, Status: u.Status}
	if u.Tier == tiers.Custom || u.Tier == tiers.Free {
		result.Skipped, result.Reason = true, "no subscription"
		return result, nil
	}

	err = s.store.ApplySubscription(ctx, userID, store.SubscriptionUpdate{
		Tier:   tiers.Free,
		Status: models.StatusCanceled,
	})
	if err != nil {
		return nil, errors.WrapDatabase("downgrade user", err)
	}
	s.invalidate(ctx, userID)

	result.Tier, result.Status = tiers.Free, models.StatusCanceled
	s.logger.Info("user without subscription moved to free tier", map[string]interface{}{"userId": userID})
	return result, nil
}

func (s *Service) subscriptionOwner(ctx context.Context, sub *stripe.Subscription) (string, error) {
	if id := sub.Metadata["userId"]; id != "" {
		return id, nil
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return "", errors.NewResourceNotFoundError("stripe", "subscription "+sub.ID+" has no customer")
	}
	u, err := s.userByCustomer(ctx, sub.Customer.ID)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}
