// Package payments wraps the Stripe API calls used by billing reconciliation.
package payments

import (
	"context"
	stderrors "errors"
	"net/http"
	"sort"
	"time"

	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/errors"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	ModePayment      = string(stripe.CheckoutSessionModePayment)
	ModeSubscription = string(stripe.CheckoutSessionModeSubscription)
)

// CheckoutParams describes a checkout session. Either PriceID or AmountCents
// is set.
type CheckoutParams struct {
	Mode        string
	CustomerID  string
	UserID      string
	PriceID     string
	AmountCents int64
	ProductName string
	Metadata    map[string]string
}

type StripeClient struct {
	api *client.API
	cfg config.StripeConfig
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	return &StripeClient{api: client.New(cfg.SecretKey, nil), cfg: cfg}
}

// NewStripeClientWithURL points the client at a different API host.
func NewStripeClientWithURL(cfg config.StripeConfig, url string) *StripeClient {
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(url),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return &StripeClient{
		api: client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		cfg: cfg,
	}
}

func (s *StripeClient) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	c, err := s.api.Customers.New(params)
	if err != nil {
		return "", providerError("create customer", err)
	}
	return c.ID, nil
}

func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(p.Mode),
		Customer:          stripe.String(p.CustomerID),
		ClientReferenceID: stripe.String(p.UserID),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
	}
	params.Context = ctx

	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if p.PriceID != "" {
		item.Price = stripe.String(p.PriceID)
	} else {
		item.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(s.cfg.Currency),
			UnitAmount: stripe.Int64(p.AmountCents),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(p.ProductName),
			},
		}
	}
	params.LineItems = []*stripe.CheckoutSessionLineItemParams{item}

	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.Mode == ModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: p.Metadata}
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, providerError("create checkout session", err)
	}
	return sess, nil
}

func (s *StripeClient) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(sessionID, params)
	if isMissing(err) {
		return nil, errors.NewInvalidSessionError(sessionID, "session does not exist")
	}
	if err != nil {
		return nil, providerError("get checkout session", err)
	}
	return sess, nil
}

// CreatePortalSession returns the URL of a billing portal session.
func (s *StripeClient) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.cfg.PortalReturnURL),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", providerError("create portal session", err)
	}
	return sess.URL, nil
}

// GetSubscription returns nil, nil when the subscription no longer exists.
func (s *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if isMissing(err) {
		return nil, nil
	}
	if err != nil {
		return nil, providerError("get subscription", err)
	}
	return sub, nil
}

// LatestSubscription returns the customer's most recently created
// subscription in any status, or nil.
func (s *StripeClient) LatestSubscription(ctx context.Context, customerID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var latest *stripe.Subscription
	it := s.api.Subscriptions.List(params)
	for it.Next() {
		sub := it.Subscription()
		if latest == nil || sub.Created > latest.Created {
			latest = sub
		}
	}
	if err := it.Err(); err != nil {
		return nil, providerError("list subscriptions", err)
	}
	return latest, nil
}

// ListEvents calls fn for every event created at or after since, oldest first.
func (s *StripeClient) ListEvents(ctx context.Context, since time.Time, fn func(*stripe.Event) error) error {
	params := &stripe.EventListParams{
		CreatedRange: &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()},
	}
	params.Context = ctx

	var events []*stripe.Event
	it := s.api.Events.List(params)
	for it.Next() {
		events = append(events, it.Event())
	}
	if err := it.Err(); err != nil {
		return providerError("list events", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Created < events[j].Created
	})
	for _, ev := range events {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func isMissing(err error) bool {
	var se *stripe.Error
	return stderrors.As(err, &se) &&
		(se.Code == stripe.ErrorCodeResourceMissing || se.HTTPStatusCode == http.StatusNotFound)
}

// providerError marks client errors other than rate limiting as permanent.
func providerError(op string, err error) error {
	stdErr := errors.NewPaymentProviderError(op, err)
	var se *stripe.Error
	if stderrors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 &&
		se.HTTPStatusCode != http.StatusTooManyRequests {
		stdErr.Retryable = false
	}
	return stdErr
}
