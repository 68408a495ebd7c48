package reconcile

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/metrics"
	"robohire-billing/internal/models"

	"github.com/stripe/stripe-go/v76"
)

type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeFailed    Outcome = "failed"
)

type CatchUpReport struct {
	Since      time.Time `json:"since"`
	Seen       int       `json:"seen"`
	Processed  int       `json:"processed"`
	Duplicates int       `json:"duplicates"`
	Ignored    int       `json:"ignored"`
	Failed     int       `json:"failed"`
	Errors     []string  `json:"errors,omitempty"`
}

// ProcessEvent applies a provider event at most once. Concurrent deliveries of
// the same event are rejected with EVENT_IN_FLIGHT so the sender retries. The
// processed check is repeated under the lock, and the event is marked before
// the lock is released.
func (s *Service) ProcessEvent(ctx context.Context, ev *stripe.Event) (Outcome, error) {
	if ev == nil || ev.ID == "" {
		return OutcomeFailed, errors.NewValidationError("event id is required")
	}
	eventType := string(ev.Type)

	seen, err := s.store.EventProcessed(ctx, ev.ID)
	if err != nil {
		return s.record(ctx, eventType, OutcomeFailed), errors.WrapDatabase("check event", err)
	}
	if seen {
		return s.record(ctx, eventType, OutcomeDuplicate), nil
	}

	if s.locker != nil {
		acquired, err := s.locker.Acquire(ctx, ev.ID)
		if err != nil {
			return s.record(ctx, eventType, OutcomeFailed), errors.NewExternalServiceError("redis", err)
		}
		if !acquired {
			return s.record(ctx, eventType, OutcomeFailed), errors.NewEventInFlightError(ev.ID)
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), ev.ID); err != nil {
				s.logger.Warn("event lock release failed", map[string]interface{}{"eventId": ev.ID, "error": err})
			}
		}()

		// A competing delivery may have finished between the first check and Acquire.
		seen, err = s.store.EventProcessed(ctx, ev.ID)
		if err != nil {
			return s.record(ctx, eventType, OutcomeFailed), errors.WrapDatabase("check event", err)
		}
		if seen {
			return s.record(ctx, eventType, OutcomeDuplicate), nil
		}
	}

	handled, err := s.dispatch(ctx, ev)
	if err != nil {
		s.logger.Error("provider event failed", map[string]interface{}{
			"eventId":   ev.ID,
			"eventType": eventType,
			"error":     err,
		})
		return s.record(ctx, eventType, OutcomeFailed), err
	}

	if err := s.store.MarkEventProcessed(ctx, ev.ID, eventType); err != nil {
		return s.record(ctx, eventType, OutcomeFailed), errors.WrapDatabase("mark event", err)
	}

	outcome := OutcomeIgnored
	if handled {
		outcome = OutcomeProcessed
	}
	s.logger.Info("provider event applied", map[string]interface{}{
		"eventId":   ev.ID,
		"eventType": eventType,
		"outcome":   string(outcome),
	})
	return s.record(ctx, eventType, outcome), nil
}

// CatchUp replays provider events created since the given time. Individual
// failures are counted and do not stop the replay.
func (s *Service) CatchUp(ctx context.Context, since time.Time) (*CatchUpReport, error) {
	report := &CatchUpReport{Since: since}
	err := s.gateway.ListEvents(ctx, since, func(ev *stripe.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Seen++
		outcome, err := s.ProcessEvent(ctx, ev)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", ev.ID, err))
			return nil
		}
		switch outcome {
		case OutcomeProcessed:
			report.Processed++
		case OutcomeDuplicate:
			report.Duplicates++
		default:
			report.Ignored++
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	s.logger.Info("provider event catch-up finished", map[string]interface{}{
		"since":      since.Format(time.RFC3339),
		"seen":       report.Seen,
		"processed":  report.Processed,
		"duplicates": report.Duplicates,
		"failed":     report.Failed,
	})
	return report, nil
}

func (s *Service) record(ctx context.Context, eventType string, outcome Outcome) Outcome {
	metrics.BillingEventsProcessed.WithLabelValues(eventType, string(outcome)).Inc()
	s.obs.RecordEvent(ctx, eventType, string(outcome))
	return outcome
}

func (s *Service) dispatch(ctx context.Context, ev *stripe.Event) (bool, error) {
	switch ev.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		var sess stripe.CheckoutSession
		if err := decode(ev, &sess); err != nil {
			return false, err
		}
		return s.onCheckoutCompleted(ctx, &sess)

	case "checkout.session.expired":
		var sess stripe.CheckoutSession
		if err := decode(ev, &sess); err != nil {
			return false, err
		}
		if !isTopUp(&sess) {
			return false, nil
		}
		return s.ExpireTopUp(ctx, sess.ID)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := decode(ev, &sub); err != nil {
			return false, err
		}
		userID, err := s.subscriptionOwner(ctx, &sub)
		if err != nil {
			return false, err
		}
		res, err := s.SyncSubscription(ctx, userID, &sub)
		if err != nil {
			return false, err
		}
		return !res.Skipped, nil

	case "invoice.paid":
		var inv stripe.Invoice
		if err := decode(ev, &inv); err != nil {
			return false, err
		}
		return s.onInvoicePaid(ctx, &inv)

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := decode(ev, &inv); err != nil {
			return false, err
		}
		return s.onPaymentFailed(ctx, &inv)
	}
	return false, nil
}

func decode(ev *stripe.Event, v interface{}) error {
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return errors.NewValidationError("event " + ev.ID + " has no data")
	}
	if err := json.Unmarshal(ev.Data.Raw, v); err != nil {
		return errors.NewInputParsingError(err)
	}
	return nil
}

func (s *Service) onCheckoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) (bool, error) {
	if isTopUp(sess) {
		// Delayed payment methods complete unpaid and settle later.
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			return false, nil
		}
		if _, err := s.CreditTopUp(ctx, sess); err != nil {
			return false, err
		}
		return true, nil
	}

	if sess.Mode != stripe.CheckoutSessionModeSubscription || sess.Subscription == nil {
		return false, nil
	}
	userID := sess.Metadata["userId"]
	if userID == "" {
		userID = sess.ClientReferenceID
	}
	if userID == "" {
		return false, errors.NewInvalidSessionError(sess.ID, "session has no user")
	}

	sub, err := s.gateway.GetSubscription(ctx, sess.Subscription.ID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, errors.NewResourceNotFoundError("stripe", "subscription "+sess.Subscription.ID)
	}
	res, err := s.SyncSubscription(ctx, userID, sub)
	if err != nil {
		return false, err
	}

	email := sess.CustomerEmail
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		email = sess.CustomerDetails.Email
	}
	s.startProcess(ctx, ProcessCustomerOnboarding, map[string]interface{}{
		"userId":         userID,
		"email":          email,
		"tier":           res.Tier,
		"subscriptionId": sub.ID,
	})
	return true, nil
}

func (s *Service) onInvoicePaid(ctx context.Context, inv *stripe.Invoice) (bool, error) {
	if inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle || inv.Customer == nil {
		return false, nil
	}
	u, err := s.userByCustomer(ctx, inv.Customer.ID)
	if err != nil {
		return false, err
	}
	if u.Tier == tiers.Custom {
		return false, nil
	}

	renewed := false
	err = s.store.WithTx(ctx, func(q *store.Queries) error {
		locked, err := q.GetUserForUpdate(ctx, u.ID)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewUserNotFoundError(u.ID)
		}
		if err != nil {
			return err
		}
		// A late invoice never revives a canceled account or touches a custom deal.
		if locked.Status == models.StatusCanceled || locked.Tier == tiers.Custom {
			return nil
		}
		if err := q.ResetUsage(ctx, u.ID); err != nil {
			return err
		}
		renewed = true
		return q.SetStatus(ctx, u.ID, models.StatusActive)
	})
	if err != nil {
		return false, errors.WrapDatabase("renew period", err)
	}
	if !renewed {
		return false, nil
	}
	s.invalidate(ctx, u.ID)
	s.logger.Info("billing period renewed", map[string]interface{}{"userId": u.ID, "invoiceId": inv.ID})
	return true, nil
}

func (s *Service) onPaymentFailed(ctx context.Context, inv *stripe.Invoice) (bool, error) {
	if inv.Customer == nil {
		return false, nil
	}
	u, err := s.userByCustomer(ctx, inv.Customer.ID)
	if err != nil {
		return false, err
	}

	err = s.store.WithTx(ctx, func(q *store.Queries) error {
		locked, err := q.GetUserForUpdate(ctx, u.ID)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewUserNotFoundError(u.ID)
		}
		if err != nil {
			return err
		}
		if locked.Status == models.StatusCanceled {
			return nil
		}
		return q.SetStatus(ctx, u.ID, models.StatusPastDue)
	})
	if err != nil {
		return false, errors.WrapDatabase("mark past due", err)
	}
	s.invalidate(ctx, u.ID)

	vars := map[string]interface{}{
		"userId":         u.ID,
		"email":          u.Email,
		"name":           u.Name,
		"amountDueCents": inv.AmountDue,
		"currency":       string(inv.Currency),
		"invoiceId":      inv.ID,
		"invoiceUrl":     inv.HostedInvoiceURL,
	}
	if !s.startProcess(ctx, ProcessPaymentFailed, vars) && s.notifier != nil {
		if err := s.notifier.SendPaymentFailed(ctx, u.Email, u.Name, inv.AmountDue, string(inv.Currency), inv.HostedInvoiceURL); err != nil {
			s.logger.Warn("payment failure notice not sent", map[string]interface{}{"userId": u.ID, "error": err})
		}
	}
	return true, nil
}

// startProcess reports whether a workflow instance was started.
func (s *Service) startProcess(ctx context.Context, processID string, vars map[string]interface{}) bool {
	if s.workflows == nil {
		return false
	}
	key, err := s.workflows.StartProcess(ctx, processID, vars)
	if err != nil {
		s.logger.Warn("workflow start failed", map[string]interface{}{
			"processId": processID,
			"error":     err,
		})
		return false
	}
	s.logger.Info("workflow started", map[string]interface{}{
		"processId":   processID,
		"instanceKey": key,
	})
	return true
}
