package reconcile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"robohire-billing/internal/billing/store/storetest"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func testEvent(id, eventType, raw string) *stripe.Event {
	return &stripe.Event{
		ID:   id,
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func expectSeen(m sqlmock.Sqlmock, eventID string, seen bool) {
	m.ExpectQuery("SELECT EXISTS").WithArgs(eventID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(seen))
}

// expectUnseen covers the check before the lock and the one repeated under it.
func expectUnseen(m sqlmock.Sqlmock, eventID string) {
	expectSeen(m, eventID, false)
	expectSeen(m, eventID, false)
}

// competingLocker runs another delivery of the same event before taking the lock.
type competingLocker struct {
	EventLocker
	first func()
}

func (l *competingLocker) Acquire(ctx context.Context, eventID string) (bool, error) {
	if l.first != nil {
		run := l.first
		l.first = nil
		run()
	}
	return l.EventLocker.Acquire(ctx, eventID)
}

func expectMarked(m sqlmock.Sqlmock, eventID, eventType string) {
	m.ExpectExec("INSERT INTO stripe_events").WithArgs(eventID, eventType).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestProcessEvent_Duplicate(t *testing.T) {
	svc, deps := createTestService(t, false)
	expectSeen(deps.db, "evt_1", true)

	outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "invoice.paid", `{}`))

	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestProcessEvent_InFlight(t *testing.T) {
	svc, deps := createTestService(t, false)
	expectSeen(deps.db, "evt_1", false)
	require.NoError(t, deps.redis.Set(EventLockKey("evt_1"), "1"))

	_, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "invoice.paid", `{}`))

	require.Error(t, err)
	assert.Equal(t, string(errors.ErrCodeEventInFlight), errors.CodeOf(err))
	assert.True(t, deps.redis.Exists(EventLockKey("evt_1")))
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestProcessEvent_DeliveryCompletedWhileWaitingForLock(t *testing.T) {
	svc, deps := createTestService(t, false)
	user := storetest.NewUser("u-1")
	user.Tier = "starter"
	user.StripeCustomerID = "cus_1"
	raw := `{"id":"in_1","customer":"cus_1","billing_reason":"subscription_cycle"}`

	// Late delivery sees nothing processed yet.
	expectSeen(deps.db, "evt_1", false)
	// The earlier delivery renews the period and marks the event.
	expectUnseen(deps.db, "evt_1")
	deps.db.ExpectQuery("FROM users WHERE stripe_customer_id = \\$1").WithArgs("cus_1").
		WillReturnRows(storetest.UserRows(user))
	deps.db.ExpectBegin()
	deps.db.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").WithArgs("u-1").
		WillReturnRows(storetest.UserRows(user))
	deps.db.ExpectExec("SET interviews_used = 0").WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.db.ExpectExec("UPDATE users SET subscription_status").WithArgs("u-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.db.ExpectCommit()
	expectMarked(deps.db, "evt_1", "invoice.paid")
	// Late delivery re-checks once it holds the lock.
	expectSeen(deps.db, "evt_1", true)

	earlier := *svc
	var earlierOutcome Outcome
	var earlierErr error
	svc.locker = &competingLocker{
		EventLocker: svc.locker,
		first: func() {
			earlierOutcome, earlierErr = earlier.ProcessEvent(context.Background(), testEvent("evt_1", "invoice.paid", raw))
		},
	}

	outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "invoice.paid", raw))

	require.NoError(t, earlierErr)
	assert.Equal(t, OutcomeProcessed, earlierOutcome)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.False(t, deps.redis.Exists(EventLockKey("evt_1")))
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestProcessEvent_UnhandledTypeIsRecorded(t *testing.T) {
	svc, deps := createTestService(t, false)
	expectUnseen(deps.db, "evt_1")
	expectMarked(deps.db, "evt_1", "customer.created")

	outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "customer.created", `{"id":"cus_1"}`))

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.False(t, deps.redis.Exists(EventLockKey("evt_1")))
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestProcessEvent_TopUpCheckoutCompleted(t *testing.T) {
	svc, deps := createTestService(t, false)
	user := storetest.NewUser("u-1")

	expectUnseen(deps.db, "evt_1")
	expectTopUpLookup(deps, models.TopUpPending, user)
	deps.db.ExpectQuery("UPDATE users SET topup_balance_cents").
		WithArgs("u-1", int64(2500)).
		WillReturnRows(sqlmock.NewRows([]string{"topup_balance_cents"}).AddRow(int64(2500)))
	deps.db.ExpectExec("UPDATE top_ups SET status = 'completed'").
		WithArgs("t-1", int64(2500)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.db.ExpectCommit()
	expectMarked(deps.db, "evt_1", "checkout.session.completed")
	deps.notifier.On("SendTopUpReceipt", mock.Anything, "u-1@example.com", int64(2500), "usd", int64(2500)).Return(nil)

	raw := `{"id":"cs_1","object":"checkout.session","mode":"payment","payment_status":"paid",
		"amount_total":2500,"currency":"usd","metadata":{"type":"topup","userId":"u-1"}}`
	outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "checkout.session.completed", raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestProcessEvent_UnpaidCheckoutWaitsForAsyncPayment(t *testing.T) {
	svc, deps := createTestService(t, false)
	expectUnseen(deps.db, "evt_1")
	expectMarked(deps.db, "evt_1", "checkout.session.completed")

	raw := `{"id":"cs_1","mode":"payment","payment_status":"unpaid","amount_total":2500,
		"metadata":{"type":"topup","userId":"u-1"}}`
	outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "checkout.session.completed", raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestProcessEvent_CheckoutExpired(t *testing.T) {
	svc, deps := createTestService(t, false)
	expectUnseen(deps.db, "evt_1")
	deps.db.ExpectExec("UPDATE top_ups SET status = 'expired'").WithArgs("cs_1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectMarked(deps.db, "evt_1", "checkout.session.expired")

	raw := `{"id":"cs_1","mode":"payment","metadata":{"type":"topup","userId":"u-1"}}`
	outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "checkout.session.expired", raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestProcessEvent_InvoicePaidRenewsPeriod(t *testing.T) {
	svc, deps := createTestService(t, false)
	user := storetest.NewUser("u-1")
	user.Tier = "starter"
	user.StripeCustomerID = "cus_1"

	expectUnseen(deps.db, "evt_1")
	deps.db.ExpectQuery("FROM users WHERE stripe_customer_id = \\$1").WithArgs("cus_1").
		WillReturnRows(storetest.UserRows(user))
	deps.db.ExpectBegin()
	deps.db.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").WithArgs("u-1").
		WillReturnRows(storetest.UserRows(user))
	deps.db.ExpectExec("SET interviews_used = 0").WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.db.ExpectExec("UPDATE users SET subscription_status").WithArgs("u-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.db.ExpectCommit()
	expectMarked(deps.db, "evt_1", "invoice.paid")

	raw := `{"id":"in_1","customer":"cus_1","billing_reason":"subscription_cycle"}`
	outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "invoice.paid", raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestProcessEvent_InvoicePaidLeavesUserUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		expect func(m sqlmock.Sqlmock)
	}{
		{
			name:   "first invoice of a subscription",
			raw:    `{"id":"in_1","customer":"cus_1","billing_reason":"subscription_create"}`,
			expect: func(m sqlmock.Sqlmock) {},
		},
		{
			name: "custom tier",
			raw:  `{"id":"in_1","customer":"cus_1","billing_reason":"subscription_cycle"}`,
			expect: func(m sqlmock.Sqlmock) {
				u := storetest.NewUser("u-1")
				u.Tier = "custom"
				u.StripeCustomerID = "cus_1"
				u.InterviewsUsed = 7
				m.ExpectQuery("FROM users WHERE stripe_customer_id = \\$1").WithArgs("cus_1").
					WillReturnRows(storetest.UserRows(u))
			},
		},
		{
			name: "canceled before the lock was taken",
			raw:  `{"id":"in_1","customer":"cus_1","billing_reason":"subscription_cycle"}`,
			expect: func(m sqlmock.Sqlmock) {
				u := storetest.NewUser("u-1")
				u.Tier = "starter"
				u.StripeCustomerID = "cus_1"
				m.ExpectQuery("FROM users WHERE stripe_customer_id = \\$1").WithArgs("cus_1").
					WillReturnRows(storetest.UserRows(u))

				canceled := *u
				canceled.Tier = "free"
				canceled.Status = models.StatusCanceled
				m.ExpectBegin()
				m.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").WithArgs("u-1").
					WillReturnRows(storetest.UserRows(&canceled))
				m.ExpectCommit()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, deps := createTestService(t, false)
			expectUnseen(deps.db, "evt_1")
			tt.expect(deps.db)
			expectMarked(deps.db, "evt_1", "invoice.paid")

			outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "invoice.paid", tt.raw))

			require.NoError(t, err)
			assert.Equal(t, OutcomeIgnored, outcome)
			assert.NoError(t, deps.db.ExpectationsWereMet())
		})
	}
}

func TestProcessEvent_SubscriptionCheckoutCompleted(t *testing.T) {
	svc, deps := createTestService(t, true)

	expectUnseen(deps.db, "evt_1")
	deps.gateway.On("GetSubscription", mock.Anything, "sub_1").
		Return(subscription("sub_1", stripe.SubscriptionStatusActive, "price_growth"), nil)
	deps.db.ExpectBegin()
	deps.db.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").WithArgs("u-1").
		WillReturnRows(storetest.UserRows(storetest.NewUser("u-1")))
	deps.db.ExpectExec("UPDATE users SET subscription_tier").
		WithArgs("u-1", "growth", "active", "sub_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.db.ExpectExec("SET interviews_used = 0").WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	deps.db.ExpectCommit()
	expectMarked(deps.db, "evt_1", "checkout.session.completed")
	deps.workflows.On("StartProcess", mock.Anything, ProcessCustomerOnboarding, mock.MatchedBy(func(v map[string]interface{}) bool {
		return v["userId"] == "u-1" && v["tier"] == "growth" &&
			v["subscriptionId"] == "sub_1" && v["email"] == "new@example.com"
	})).Return(int64(2251799813685250), nil)

	raw := `{"id":"cs_2","object":"checkout.session","mode":"subscription","payment_status":"paid",
		"subscription":"sub_1","client_reference_id":"u-1","customer_details":{"email":"new@example.com"}}`
	outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "checkout.session.completed", raw))

	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	deps.gateway.AssertExpectations(t)
	deps.workflows.AssertExpectations(t)
	assert.NoError(t, deps.db.ExpectationsWereMet())
}

func TestProcessEvent_PaymentFailed(t *testing.T) {
	raw := `{"id":"in_1","customer":"cus_1","amount_due":2900,"currency":"usd",
		"hosted_invoice_url":"https://pay.test/in_1"}`

	setup := func(t *testing.T, withWorkflows bool) (*Service, *testDeps) {
		svc, deps := createTestService(t, withWorkflows)
		user := storetest.NewUser("u-1")
		user.Tier = "starter"
		user.StripeCustomerID = "cus_1"

		expectUnseen(deps.db, "evt_1")
		deps.db.ExpectQuery("FROM users WHERE stripe_customer_id = \\$1").WithArgs("cus_1").
			WillReturnRows(storetest.UserRows(user))
		deps.db.ExpectBegin()
		deps.db.ExpectQuery("FROM users WHERE id = \\$1 FOR UPDATE").WithArgs("u-1").
			WillReturnRows(storetest.UserRows(user))
		deps.db.ExpectExec("UPDATE users SET subscription_status").WithArgs("u-1", "past_due").
			WillReturnResult(sqlmock.NewResult(0, 1))
		deps.db.ExpectCommit()
		expectMarked(deps.db, "evt_1", "invoice.payment_failed")
		return svc, deps
	}

	t.Run("starts dunning workflow", func(t *testing.T) {
		svc, deps := setup(t, true)
		deps.workflows.On("StartProcess", mock.Anything, ProcessPaymentFailed, mock.MatchedBy(func(v map[string]interface{}) bool {
			return v["userId"] == "u-1" && v["amountDueCents"] == int64(2900)
		})).Return(int64(2251799813685249), nil)

		outcome, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "invoice.payment_failed", raw))

		require.NoError(t, err)
		assert.Equal(t, OutcomeProcessed, outcome)
		deps.workflows.AssertExpectations(t)
		deps.notifier.AssertNotCalled(t, "SendPaymentFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, deps.db.ExpectationsWereMet())
	})

	t.Run("notifies directly without workflow engine", func(t *testing.T) {
		svc, deps := setup(t, false)
		deps.notifier.On("SendPaymentFailed", mock.Anything, "u-1@example.com", "Test User", int64(2900), "usd", "https://pay.test/in_1").
			Return(nil)

		_, err := svc.ProcessEvent(context.Background(), testEvent("evt_1", "invoice.payment_failed", raw))

		require.NoError(t, err)
		deps.notifier.AssertExpectations(t)
		assert.NoError(t, deps.db.ExpectationsWereMet())
	})
}

func TestCatchUp_CountsOutcomes(t *testing.T) {
	svc, deps := createTestService(t, false)
	since := testNow.Add(-24 * time.Hour)

	expectSeen(deps.db, "evt_1", true)
	expectUnseen(deps.db, "evt_2")
	expectMarked(deps.db, "evt_2", "customer.created")
	expectUnseen(deps.db, "evt_3")
	deps.db.ExpectQuery("FROM users WHERE stripe_customer_id = \\$1").WithArgs("cus_404").
		WillReturnRows(storetest.UserRows())

	deps.gateway.On("ListEvents", mock.Anything, since, mock.Anything).
		Run(func(args mock.Arguments) {
			fn := args.Get(2).(func(*stripe.Event) error)
			_ = fn(testEvent("evt_1", "invoice.paid", `{}`))
			_ = fn(testEvent("evt_2", "customer.created", `{"id":"cus_1"}`))
			_ = fn(testEvent("evt_3", "invoice.payment_failed", `{"id":"in_3","customer":"cus_404"}`))
		}).
		Return(nil)

	report, err := svc.CatchUp(context.Background(), since)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Seen)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.Ignored)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, report.Errors, 1)
	assert.NoError(t, deps.db.ExpectationsWereMet())
}
