package reconcile

import (
	"context"
	"testing"

	"robohire-billing/internal/billing/store/storetest"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/payments"
	"robohire-billing/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func paidTopUpSession(id, userID string, amount int64) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            id,
		Mode:          stripe.CheckoutSessionModePayment,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   amount,
		Currency:      "usd",
		Metadata:      map[string]string{"type": "topup", "userId": userID},
	}
}

func expectTopUpLookup(deps *testDeps, status models.TopUpStatus, user *models.User) {
	deps.db.ExpectBegin()
	deps.db.ExpectExec("INSERT INTO top_ups").
		WithArgs(sqlmock.AnyArg(), user.ID, "cs_1", int64(2500), "usd", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.db.ExpectQuery("FROM top_ups WHERE stripe_session_id = \\$1 FOR UPDATE").
		WithArgs("cs_1").
		WillReturnRows(storetest.TopUpRows(&models.TopUp{
			ID: "t-1", UserID: user.ID, StripeSessionID: "cs_1", AmountCents: 2500,
			Currency: "usd", Status: status, CreatedAt: testNow,
		}))
	deps.db.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs(user.ID).
		WillReturnRows(storetest.UserRows(user))
}

func TestCreditTopUp_CreditsOnce(t *testing.T) {
	svc, deps := createTestService(t, false)
	user := storetest.NewUser("u-1")
	user.TopUpBalanceCents = 300

	expectTopUpLookup(deps, models.TopUpPending, user)
	deps.db.ExpectQuery("UPDATE users SET topup_balance_cents").
		WithArgs("u-1", int64(2500)).
		WillReturnRows(sqlmock.NewRows([]string{"topup_balance_cents"}).AddRow(int64(2800)))
	deps.db.ExpectExec("UPDATE top_ups SET status = 'completed'").
		WithArgs("t-1", int64(2500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.db.ExpectCommit()
	deps.notifier.On("SendTopUpReceipt", mock.Anything, "u-1@example.com", int64(2500), "usd", int64(2800)).Return(nil)

	res, err := svc.CreditTopUp(context.Background(), paidTopUpSession("cs_1", "u-1", 2500))

	require.NoError(t, err)
	assert.False(t, res.AlreadyCredited)
	assert.Equal(t, int64(2800), res.BalanceCents)
	assert.NoError(t, deps.db.ExpectationsWereMet())
	deps.notifier.AssertExpectations(t)
}

func TestCreditTopUp_AlreadyCredited(t *testing.T) {
	svc, deps := createTestService(t, false)
	user := storetest.NewUser("u-1")
	user.TopUpBalanceCents = 2800

	expectTopUpLookup(deps, models.TopUpCompleted, user)
	deps.db.ExpectCommit()

	res, err := svc.CreditTopUp(context.Background(), paidTopUpSession("cs_1", "u-1", 2500))

	require.NoError(t, err)
	assert.True(t, res.AlreadyCredited)
	assert.Equal(t, int64(2800), res.BalanceCents)
	assert.NoError(t, deps.db.ExpectationsWereMet())
	deps.notifier.AssertNotCalled(t, "SendTopUpReceipt", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreditTopUp_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		session  func() *stripe.CheckoutSession
		wantCode errors.ErrorCode
	}{
		{
			name: "unpaid session",
			session: func() *stripe.CheckoutSession {
				s := paidTopUpSession("cs_1", "u-1", 2500)
				s.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
				return s
			},
			wantCode: errors.ErrCodeTopUpNotPaid,
		},
		{
			name: "subscription session",
			session: func() *stripe.CheckoutSession {
				s := paidTopUpSession("cs_1", "u-1", 2500)
				s.Mode = stripe.CheckoutSessionModeSubscription
				return s
			},
			wantCode: errors.ErrCodeInvalidSession,
		},
		{
			name: "missing owner",
			session: func() *stripe.CheckoutSession {
				s := paidTopUpSession("cs_1", "", 2500)
				return s
			},
			wantCode: errors.ErrCodeInvalidSession,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := createTestService(t, false)

			_, err := svc.CreditTopUp(context.Background(), tt.session())

			require.Error(t, err)
			assert.Equal(t, string(tt.wantCode), errors.CodeOf(err))
			assert.NoError(t, deps.db.ExpectationsWereMet())
		})
	}
}

func TestVerifyTopUp_OtherUsersSession(t *testing.T) {
	svc, deps := createTestService(t, false)
	deps.gateway.On("GetCheckoutSession", mock.Anything, "cs_1").
		Return(paidTopUpSession("cs_1", "u-2", 2500), nil)

	_, err := svc.VerifyTopUp(context.Background(), "cs_1", "u-1")

	require.Error(t, err)
	assert.Equal(t, string(errors.ErrCodeInvalidSession), errors.CodeOf(err))
}

func TestVerifyTopUp_UnpaidSession(t *testing.T) {
	svc, deps := createTestService(t, false)
	sess := paidTopUpSession("cs_1", "u-1", 2500)
	sess.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
	deps.gateway.On("GetCheckoutSession", mock.Anything, "cs_1").Return(sess, nil)

	res, err := svc.VerifyTopUp(context.Background(), "cs_1", "u-1")

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, string(errors.ErrCodeTopUpNotPaid), errors.CodeOf(err))
	deps.gateway.AssertExpectations(t)
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestCreateTopUpCheckout(t *testing.T) {
	t.Run("amount out of range", func(t *testing.T) {
		svc, _ := createTestService(t, false)
		_, err := svc.CreateTopUpCheckout(context.Background(), "u-1", 100)
		assert.Equal(t, string(errors.ErrCodeInvalidAmount), errors.CodeOf(err))
	})

	t.Run("creates customer and pending row", func(t *testing.T) {
		svc, deps := createTestService(t, false)
		user := storetest.NewUser("u-1")

		deps.db.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("u-1").
			WillReturnRows(storetest.UserRows(user))
		deps.gateway.On("CreateCustomer", mock.Anything, "u-1@example.com", "Test User", "u-1").
			Return("cus_1", nil)
		deps.db.ExpectExec("UPDATE users SET stripe_customer_id").
			WithArgs("u-1", "cus_1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		deps.gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p payments.CheckoutParams) bool {
			return p.Mode == payments.ModePayment && p.CustomerID == "cus_1" &&
				p.AmountCents == 2500 && p.Metadata["type"] == "topup"
		})).Return(&stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.test/cs_1"}, nil)
		deps.db.ExpectExec("INSERT INTO top_ups").
			WithArgs(sqlmock.AnyArg(), "u-1", "cs_1", int64(2500), "usd", "pending", testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		res, err := svc.CreateTopUpCheckout(context.Background(), "u-1", 2500)

		require.NoError(t, err)
		assert.Equal(t, "cs_1", res.SessionID)
		assert.Equal(t, "https://checkout.test/cs_1", res.URL)
		assert.NoError(t, deps.db.ExpectationsWereMet())
		deps.gateway.AssertExpectations(t)
	})
}

func TestCreateSubscriptionCheckout_Rejections(t *testing.T) {
	svc, _ := createTestService(t, false)

	_, err := svc.CreateSubscriptionCheckout(context.Background(), "u-1", "platinum")
	assert.Equal(t, string(errors.ErrCodeInvalidTier), errors.CodeOf(err))

	_, err = svc.CreateSubscriptionCheckout(context.Background(), "u-1", "free")
	assert.Equal(t, string(errors.ErrCodeTierNotPurchasable), errors.CodeOf(err))
}

func TestCreatePortalSession_RequiresCustomer(t *testing.T) {
	svc, deps := createTestService(t, false)
	deps.db.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("u-1").
		WillReturnRows(storetest.UserRows(storetest.NewUser("u-1")))

	_, err := svc.CreatePortalSession(context.Background(), "u-1")

	assert.Equal(t, string(errors.ErrCodeNoPaymentCustomer), errors.CodeOf(err))
}
