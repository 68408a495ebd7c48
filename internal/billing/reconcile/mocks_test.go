package reconcile

import (
	"context"
	"testing"
	"time"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/observability"
	"robohire-billing/internal/common/payments"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	args := m.Called(ctx, email, name, userID)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (m *MockGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*stripe.CheckoutSession, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.CheckoutSession), args.Error(1)
}

func (m *MockGateway) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Subscription), args.Error(1)
}

func (m *MockGateway) LatestSubscription(ctx context.Context, customerID string) (*stripe.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stripe.Subscription), args.Error(1)
}

func (m *MockGateway) ListEvents(ctx context.Context, since time.Time, fn func(*stripe.Event) error) error {
	args := m.Called(ctx, since, fn)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendTopUpReceipt(ctx context.Context, to string, amountCents int64, currency string, balanceCents int64) error {
	return m.Called(ctx, to, amountCents, currency, balanceCents).Error(0)
}

func (m *MockNotifier) SendPaymentFailed(ctx context.Context, to, name string, amountDueCents int64, currency, invoiceURL string) error {
	return m.Called(ctx, to, name, amountDueCents, currency, invoiceURL).Error(0)
}

func (m *MockNotifier) Alert(ctx context.Context, subject, message string) error {
	return m.Called(ctx, subject, message).Error(0)
}

type MockWorkflows struct {
	mock.Mock
}

func (m *MockWorkflows) StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error) {
	args := m.Called(ctx, processID, variables)
	return args.Get(0).(int64), args.Error(1)
}

type testDeps struct {
	db        sqlmock.Sqlmock
	redis     *miniredis.Miniredis
	gateway   *MockGateway
	notifier  *MockNotifier
	workflows *MockWorkflows
}

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func createTestService(t *testing.T, withWorkflows bool) (*Service, *testDeps) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	deps := &testDeps{
		db:       dbMock,
		redis:    mr,
		gateway:  &MockGateway{},
		notifier: &MockNotifier{},
	}
	opts := Options{
		Store:         store.New(db),
		Gateway:       deps.gateway,
		Prices:        tiers.PriceBook{"starter": "price_starter", "growth": "price_growth", "business": "price_business"},
		Limits:        TopUpLimits{MinCents: 500, MaxCents: 100000, Currency: "usd"},
		Notifier:      deps.notifier,
		Locker:        NewRedisEventLocker(rdb, time.Minute),
		Observability: observability.NewNoop(),
		Logger:        logger.NewTestLogger(t),
	}
	if withWorkflows {
		deps.workflows = &MockWorkflows{}
		opts.Workflows = deps.workflows
	}

	svc := NewService(opts)
	svc.now = func() time.Time { return testNow }
	return svc, deps
}
