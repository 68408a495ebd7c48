package reconcile

import (
	"context"
	"testing"

	"robohire-billing/internal/billing/store/storetest"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func subscription(id string, status stripe.SubscriptionStatus, priceID string) *stripe.Subscription {
	return &stripe.Subscription{
		ID:               id,
		Status:           status,
		CurrentPeriodEnd: testNow.AddDate(0, 1, 0).Unix(),
		Customer:         &stripe.Customer{ID: "cus_1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{Price: &stripe.Price{ID: priceID}}},
		},
	}
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, models.StatusActive, MapStatus(stripe.SubscriptionStatusActive))
	assert.Equal(t, models.StatusTrialing, MapStatus(stripe.SubscriptionStatusTrialing))
	assert.Equal(t, models.StatusPastDue, MapStatus(stripe.SubscriptionStatusUnpaid))
	assert.Equal(t, models.StatusPastDue, MapStatus(stripe.SubscriptionStatusIncomplete))
	assert.Equal(t, models.StatusCanceled, MapStatus(stripe.SubscriptionStatusIncompleteExpired))
	assert.Equal(t, models.StatusCanceled, MapStatus(stripe.SubscriptionStatusCanceled))
}

func TestSyncSubscription(t *testing.T) {
	tests := []struct {
		name      string
		user      func() *models.User
		sub       *stripe.Subscription
		expect    func(m sqlmock.Sqlmock)
		wantTier  string
		wantReset bool
		wantSkip  string
	}{
		{
			name: "new subscription upgrades and resets usage",
			user: func() *models.User {
				u := storetest.NewUser("u-1")
				u.InterviewsUsed = 2
				return u
			},
			sub: subscription("sub_1", stripe.SubscriptionStatusActive, "price_growth"),
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("UPDATE users SET subscription_tier").
					WithArgs("u-1", "growth", "active", "sub_1", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
				m.ExpectExec("SET interviews_used = 0").
					WithArgs("u-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantTier:  "growth",
			wantReset: true,
		},
		{
			name: "renewal of the same subscription keeps counters",
			user: func() *models.User {
				u := storetest.NewUser("u-1")
				u.Tier = "growth"
				u.StripeSubscriptionID = "sub_1"
				return u
			},
			sub: subscription("sub_1", stripe.SubscriptionStatusPastDue, "price_growth"),
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("UPDATE users SET subscription_tier").
					WithArgs("u-1", "growth", "past_due", "sub_1", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantTier: "growth",
		},
		{
			name: "cancellation drops to free",
			user: func() *models.User {
				u := storetest.NewUser("u-1")
				u.Tier = "starter"
				u.StripeSubscriptionID = "sub_1"
				return u
			},
			sub: subscription("sub_1", stripe.SubscriptionStatusCanceled, "price_starter"),
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec("UPDATE users SET subscription_tier").
					WithArgs("u-1", "free", "canceled", nil, sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantTier: "free",
		},
		{
			name: "cancellation of a replaced subscription is ignored",
			user: func() *models.User {
				u := storetest.NewUser("u-1")
				u.Tier = "business"
				u.StripeSubscriptionID = "sub_2"
				return u
			},
			sub:      subscription("sub_1", stripe.SubscriptionStatusCanceled, "price_starter"),
			expect:   func(m sqlmock.Sqlmock) {},
			wantTier: "business",
			wantSkip: "stale subscription",
		},
		{
			name: "custom tier untouched",
			user: func() *models.User {
				u := storetest.NewUser("u-1")
				u.Tier = "custom"
				return u
			},
			sub:      subscription("sub_1", stripe.SubscriptionStatusActive, "price_starter"),
			expect:   func(m sqlmock.Sqlmock) {},
			wantTier: "custom",
			wantSkip: "custom tier",
		},
		{
			name: "custom tier with non-catalogue price",
			user: func() *models.User {
				u := storetest.NewUser("u-1")
				u.Tier = "custom"
				u.StripeSubscriptionID = "sub_enterprise"
				return u
			},
			sub:      subscription("sub_enterprise", stripe.SubscriptionStatusActive, "price_enterprise_deal"),
			expect:   func(m sqlmock.Sqlmock) {},
			wantTier: "custom",
			wantSkip: "custom tier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := createTestService(t, false)
			deps.db.ExpectBegin()
			deps.db.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").
				WithArgs("u-1").
				WillReturnRows(storetest.UserRows(tt.user()))
			tt.expect(deps.db)
			deps.db.ExpectCommit()

			res, err := svc.SyncSubscription(context.Background(), "u-1", tt.sub)

			require.NoError(t, err)
			assert.Equal(t, tt.wantTier, res.Tier)
			assert.Equal(t, tt.wantReset, res.UsageReset)
			assert.Equal(t, tt.wantSkip != "", res.Skipped)
			assert.Equal(t, tt.wantSkip, res.Reason)
			assert.NoError(t, deps.db.ExpectationsWereMet())
		})
	}
}

func TestSyncSubscription_UnknownPrice(t *testing.T) {
	svc, deps := createTestService(t, false)
	deps.db.ExpectBegin()
	deps.db.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs("u-1").
		WillReturnRows(storetest.UserRows(storetest.NewUser("u-1")))
	deps.db.ExpectRollback()

	_, err := svc.SyncSubscription(context.Background(), "u-1",
		subscription("sub_1", stripe.SubscriptionStatusActive, "price_legacy"))

	assert.Equal(t, string(errors.ErrCodeUnknownPrice), errors.CodeOf(err))
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestSyncUser_NoSubscriptionDowngrades(t *testing.T) {
	svc, deps := createTestService(t, false)
	user := storetest.NewUser("u-1")
	user.Tier = "starter"
	user.StripeCustomerID = "cus_1"

	deps.db.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("u-1").
		WillReturnRows(storetest.UserRows(user))
	deps.gateway.On("LatestSubscription", mock.Anything, "cus_1").Return(nil, nil)
	deps.db.ExpectExec("UPDATE users SET subscription_tier").
		WithArgs("u-1", "free", "canceled", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := svc.SyncUser(context.Background(), "u-1")

	require.NoError(t, err)
	assert.Equal(t, "free", res.Tier)
	assert.Equal(t, models.StatusCanceled, res.Status)
	assert.NoError(t, deps.db.ExpectationsWereMet())
}
