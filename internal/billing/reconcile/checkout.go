package reconcile

import (
	"context"

	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/payments"
	"robohire-billing/internal/models"

	"github.com/google/uuid"
)

type CheckoutResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

// CreateSubscriptionCheckout opens a subscription checkout for a purchasable tier.
func (s *Service) CreateSubscriptionCheckout(ctx context.Context, userID, tier string) (*CheckoutResult, error) {
	if !tiers.Valid(tier) {
		return nil, errors.NewInvalidTierError(tier)
	}
	priceID, ok := s.prices.PriceFor(tier)
	if !ok {
		return nil, errors.NewTierNotPurchasableError(tier)
	}

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		Mode:       payments.ModeSubscription,
		CustomerID: customerID,
		UserID:     userID,
		PriceID:    priceID,
		Metadata:   map[string]string{"userId": userID, "tier": tier},
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription checkout created", map[string]interface{}{
		"userId":    userID,
		"tier":      tier,
		"sessionId": sess.ID,
	})
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreateTopUpCheckout opens a one-time payment checkout and records a pending top-up.
func (s *Service) CreateTopUpCheckout(ctx context.Context, userID string, amountCents int64) (*CheckoutResult, error) {
	if amountCents < s.limits.MinCents || (s.limits.MaxCents > 0 && amountCents > s.limits.MaxCents) || amountCents <= 0 {
		return nil, errors.NewInvalidAmountError(amountCents, s.limits.MinCents, s.limits.MaxCents)
	}

	u, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return nil, err
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		Mode:        payments.ModePayment,
		CustomerID:  customerID,
		UserID:      userID,
		AmountCents: amountCents,
		ProductName: "RoboHire balance top-up",
		Metadata:    map[string]string{"type": "topup", "userId": userID},
	})
	if err != nil {
		return nil, err
	}

	err = s.store.InsertTopUp(ctx, &models.TopUp{
		ID:              uuid.NewString(),
		UserID:          userID,
		StripeSessionID: sess.ID,
		AmountCents:     amountCents,
		Currency:        s.limits.Currency,
		Status:          models.TopUpPending,
		CreatedAt:       s.now().UTC(),
	})
	if err != nil {
		return nil, errors.WrapDatabase("insert top-up", err)
	}

	s.logger.Info("top-up checkout created", map[string]interface{}{
		"userId":      userID,
		"amountCents": amountCents,
		"sessionId":   sess.ID,
	})
	return &CheckoutResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession returns a billing portal URL for a user with a customer record.
func (s *Service) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	u, err := s.getUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.StripeCustomerID == "" {
		return "", errors.NewNoPaymentCustomerError(userID)
	}
	return s.gateway.CreatePortalSession(ctx, u.StripeCustomerID)
}

func (s *Service) ensureCustomer(ctx context.Context, u *models.User) (string, error) {
	if u.StripeCustomerID != "" {
		return u.StripeCustomerID, nil
	}
	customerID, err := s.gateway.CreateCustomer(ctx, u.Email, u.Name, u.ID)
	if err != nil {
		return "", err
	}
	if err := s.store.SetStripeCustomer(ctx, u.ID, customerID); err != nil {
		return "", errors.WrapDatabase("store customer id", err)
	}
	u.StripeCustomerID = customerID
	return customerID, nil
}
