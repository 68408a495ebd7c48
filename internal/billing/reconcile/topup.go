package reconcile

import (
	"context"
	stderrors "errors"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/metrics"
	"robohire-billing/internal/models"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
)

type CreditResult struct {
	SessionID       string `json:"sessionId"`
	UserID          string `json:"userId"`
	AmountCents     int64  `json:"amountCents"`
	BalanceCents    int64  `json:"balanceCents"`
	AlreadyCredited bool   `json:"alreadyCredited"`
}

// VerifyTopUp fetches a checkout session from the provider and credits it.
// A non-empty expectUserID must match the session owner.
func (s *Service) VerifyTopUp(ctx context.Context, sessionID, expectUserID string) (*CreditResult, error) {
	sess, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if expectUserID != "" && topUpOwner(sess) != expectUserID {
		return nil, errors.NewInvalidSessionError(sessionID, "session belongs to another user")
	}
	return s.CreditTopUp(ctx, sess)
}

// CreditTopUp adds a paid top-up session's amount to the owner's balance
// exactly once per session.
func (s *Service) CreditTopUp(ctx context.Context, sess *stripe.CheckoutSession) (*CreditResult, error) {
	if sess == nil || sess.ID == "" {
		return nil, errors.NewInvalidSessionError("", "missing session")
	}
	if !isTopUp(sess) {
		return nil, errors.NewInvalidSessionError(sess.ID, "not a top-up session")
	}
	userID := topUpOwner(sess)
	if userID == "" {
		return nil, errors.NewInvalidSessionError(sess.ID, "session has no user")
	}
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return nil, errors.NewTopUpNotPaidError(sess.ID, string(sess.PaymentStatus))
	}
	if sess.AmountTotal <= 0 {
		return nil, errors.NewInvalidSessionError(sess.ID, "session has no amount")
	}

	currency := string(sess.Currency)
	if currency == "" {
		currency = s.limits.Currency
	}

	result := &CreditResult{SessionID: sess.ID, UserID: userID, AmountCents: sess.AmountTotal}
	var email string

	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		err := q.EnsureTopUp(ctx, &models.TopUp{
			ID:              uuid.NewString(),
			UserID:          userID,
			StripeSessionID: sess.ID,
			AmountCents:     sess.AmountTotal,
			Currency:        currency,
			CreatedAt:       s.now().UTC(),
		})
		if err != nil {
			return err
		}

		topUp, err := q.GetTopUpBySessionForUpdate(ctx, sess.ID)
		if err != nil {
			return err
		}
		if topUp.UserID != userID {
			return errors.NewInvalidSessionError(sess.ID, "session belongs to another user")
		}

		u, err := q.GetUserForUpdate(ctx, userID)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewUserNotFoundError(userID)
		}
		if err != nil {
			return err
		}
		email = u.Email

		if topUp.Status == models.TopUpCompleted {
			result.AlreadyCredited = true
			result.AmountCents = topUp.AmountCents
			result.BalanceCents = u.TopUpBalanceCents
			return nil
		}

		balance, err := q.AddBalance(ctx, userID, sess.AmountTotal)
		if err != nil {
			return err
		}
		if err := q.CompleteTopUp(ctx, topUp.ID, sess.AmountTotal); err != nil {
			return err
		}
		result.BalanceCents = balance
		return nil
	})
	if err != nil {
		return nil, errors.WrapDatabase("credit top-up", err)
	}

	if result.AlreadyCredited {
		s.logger.Info("top-up already credited", map[string]interface{}{
			"sessionId": sess.ID,
			"userId":    userID,
		})
		return result, nil
	}

	metrics.TopUpsCredited.Inc()
	metrics.TopUpCentsCredited.Add(float64(sess.AmountTotal))
	s.invalidate(ctx, userID)

	s.logger.Info("top-up credited", map[string]interface{}{
		"sessionId":    sess.ID,
		"userId":       userID,
		"amountCents":  sess.AmountTotal,
		"balanceCents": result.BalanceCents,
	})

	if s.notifier != nil && email != "" {
		if err := s.notifier.SendTopUpReceipt(ctx, email, sess.AmountTotal, currency, result.BalanceCents); err != nil {
			s.logger.Warn("top-up receipt not sent", map[string]interface{}{
				"sessionId": sess.ID,
				"error":     err,
			})
		}
	}
	return result, nil
}

// ExpireTopUp marks the pending top-up for an expired session.
func (s *Service) ExpireTopUp(ctx context.Context, sessionID string) (bool, error) {
	changed, err := s.store.ExpireTopUp(ctx, sessionID)
	if err != nil {
		return false, errors.WrapDatabase("expire top-up", err)
	}
	return changed, nil
}

func isTopUp(sess *stripe.CheckoutSession) bool {
	return sess.Mode == stripe.CheckoutSessionModePayment && sess.Metadata["type"] == "topup"
}

func topUpOwner(sess *stripe.CheckoutSession) string {
	if id := sess.Metadata["userId"]; id != "" {
		return id
	}
	return sess.ClientReferenceID
}
