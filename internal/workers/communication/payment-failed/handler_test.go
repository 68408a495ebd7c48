package paymentfailed

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUserID = "45c48cce-2e2d-4fbd-8a1b-c3d4e5f60718"

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendPaymentFailed(ctx context.Context, to, name string, amountDueCents int64, currency, invoiceURL string) error {
	return m.Called(ctx, to, name, amountDueCents, currency, invoiceURL).Error(0)
}

func (m *MockNotifier) Alert(ctx context.Context, subject, message string) error {
	return m.Called(ctx, subject, message).Error(0)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "billing-payment-failed",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func createValidInput() *Input {
	return &Input{
		UserID:         testUserID,
		Email:          "ops@acme.io",
		Name:           "Acme Ops",
		AmountDueCents: 4900,
		Currency:       "usd",
		InvoiceID:      "in_1",
		InvoiceURL:     "https://invoice.stripe.com/i/in_1",
	}
}

func createTestHandler(t *testing.T, n Notifier) *Handler {
	h, err := NewHandler(HandlerOptions{Notifier: n, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)
	return h
}

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, &MockNotifier{})

	in, err := h.parseInput(createMockJob(1, map[string]interface{}{
		"userId": testUserID, "email": "ops@acme.io", "name": "Acme Ops", "amountDueCents": 4900,
		"currency": "usd", "invoiceId": "in_1", "invoiceUrl": "https://invoice.stripe.com/i/in_1",
	}))
	require.NoError(t, err)
	assert.Equal(t, createValidInput(), in)

	_, err = h.parseInput(createMockJob(2, map[string]interface{}{
		"userId": testUserID, "email": "not-an-email", "amountDueCents": 4900, "currency": "usd",
	}))
	assert.Equal(t, string(errors.ErrCodeValidationFailed), errors.CodeOf(err))

	_, err = h.parseInput(createMockJob(3, map[string]interface{}{
		"userId": testUserID, "email": "ops@acme.io", "amountDueCents": 4900, "currency": "dollars",
	}))
	assert.Equal(t, string(errors.ErrCodeValidationFailed), errors.CodeOf(err))
}

func TestHandler_Execute(t *testing.T) {
	ctx := context.Background()
	in := createValidInput()

	t.Run("email and alert", func(t *testing.T) {
		n := &MockNotifier{}
		n.On("SendPaymentFailed", mock.Anything, "ops@acme.io", "Acme Ops", int64(4900), "usd", in.InvoiceURL).Return(nil)
		n.On("Alert", mock.Anything, "Payment failed for ops@acme.io", mock.MatchedBy(func(msg string) bool {
			return assert.Contains(t, msg, "49.00 USD") && assert.Contains(t, msg, testUserID)
		})).Return(nil)

		out, err := createTestHandler(t, n).Execute(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, &Output{EmailSent: true, AlertSent: true}, out)
	})

	t.Run("alert failure does not fail the job", func(t *testing.T) {
		n := &MockNotifier{}
		n.On("SendPaymentFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
		n.On("Alert", mock.Anything, mock.Anything, mock.Anything).Return(errors.NewNotificationSendFailedError("sns", stderrors.New("throttled")))

		out, err := createTestHandler(t, n).Execute(ctx, in)
		require.NoError(t, err)
		assert.True(t, out.EmailSent)
		assert.False(t, out.AlertSent)
	})

	t.Run("email failure is retryable", func(t *testing.T) {
		n := &MockNotifier{}
		n.On("SendPaymentFailed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.NewNotificationSendFailedError("ses", stderrors.New("throttled")))

		_, err := createTestHandler(t, n).Execute(ctx, in)
		require.Error(t, err)
		assert.True(t, errors.Normalize(err).Retryable)
		n.AssertNotCalled(t, "Alert", mock.Anything, mock.Anything, mock.Anything)
	})
}
