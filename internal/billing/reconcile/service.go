// Package reconcile keeps local billing state in step with the payment
// provider: checkout, top-up crediting, subscription sync and webhook events.
package reconcile

import (
	"context"
	stderrors "errors"
	"time"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/observability"
	"robohire-billing/internal/common/payments"
	"robohire-billing/internal/models"

	"github.com/stripe/stripe-go/v76"
)

// Process ids started on the workflow engine.
const (
	ProcessPaymentFailed      = "billing-payment-failed"
	ProcessCustomerOnboarding = "billing-customer-onboarding"
)

type Gateway interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
	LatestSubscription(ctx context.Context, customerID string) (*stripe.Subscription, error)
	ListEvents(ctx context.Context, since time.Time, fn func(*stripe.Event) error) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type Notifier interface {
	SendTopUpReceipt(ctx context.Context, to string, amountCents int64, currency string, balanceCents int64) error
	SendPaymentFailed(ctx context.Context, to, name string, amountDueCents int64, currency, invoiceURL string) error
	Alert(ctx context.Context, subject, message string) error
}

type WorkflowStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// TopUpLimits bounds top-up checkout amounts.
type TopUpLimits struct {
	MinCents int64
	MaxCents int64
	Currency string
}

type Options struct {
	Store    *store.Store
	Gateway  Gateway
	Prices   tiers.PriceBook
	Limits   TopUpLimits
	Cache    Invalidator
	Notifier Notifier
	// Workflows is optional; without it payment failures are notified directly.
	Workflows     WorkflowStarter
	Locker        EventLocker
	Observability *observability.Observability
	Logger        logger.Logger
}

type Service struct {
	store     *store.Store
	gateway   Gateway
	prices    tiers.PriceBook
	limits    TopUpLimits
	cache     Invalidator
	notifier  Notifier
	workflows WorkflowStarter
	locker    EventLocker
	obs       *observability.Observability
	logger    logger.Logger
	now       func() time.Time
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	limits := opts.Limits
	if limits.Currency == "" {
		limits.Currency = "usd"
	}
	return &Service{
		store:     opts.Store,
		gateway:   opts.Gateway,
		prices:    opts.Prices,
		limits:    limits,
		cache:     opts.Cache,
		notifier:  opts.Notifier,
		workflows: opts.Workflows,
		locker:    opts.Locker,
		obs:       opts.Observability,
		logger:    log,
		now:       time.Now,
	}
}

func (s *Service) getUser(ctx context.Context, userID string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewUserNotFoundError(userID)
	}
	if err != nil {
		return nil, errors.WrapDatabase("get user", err)
	}
	return u, nil
}

func (s *Service) userByCustomer(ctx context.Context, customerID string) (*models.User, error) {
	u, err := s.store.GetUserByCustomer(ctx, customerID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewUserNotFoundError("customer " + customerID)
	}
	if err != nil {
		return nil, errors.WrapDatabase("get user by customer", err)
	}
	return u, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("entitlement cache invalidation failed", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
	}
}
