package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

func createTestClient(t *testing.T, handler http.HandlerFunc) *StripeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewStripeClientWithURL(config.StripeConfig{
		SecretKey:  "sk_test_123",
		Currency:   "usd",
		SuccessURL: "https://app.robohire.io/billing/success",
		CancelURL:  "https://app.robohire.io/billing",
	}, srv.URL)
}

func TestGetCheckoutSession(t *testing.T) {
	c := createTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions/cs_test_1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "cs_test_1",
			"object": "checkout.session",
			"mode": "payment",
			"payment_status": "paid",
			"amount_total": 2500,
			"currency": "usd",
			"client_reference_id": "u-1",
			"metadata": {"type": "topup", "userId": "u-1"}
		}`))
	})

	sess, err := c.GetCheckoutSession(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, stripe.CheckoutSessionPaymentStatusPaid, sess.PaymentStatus)
	assert.Equal(t, int64(2500), sess.AmountTotal)
	assert.Equal(t, "topup", sess.Metadata["type"])
}

func TestGetCheckoutSession_Missing(t *testing.T) {
	c := createTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "code": "resource_missing", "message": "No such checkout.session"}}`))
	})

	_, err := c.GetCheckoutSession(context.Background(), "cs_missing")
	require.Error(t, err)
	assert.Equal(t, "INVALID_CHECKOUT_SESSION", errors.CodeOf(err))
}

func TestCreateCheckoutSession_TopUp(t *testing.T) {
	c := createTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "5000", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "topup", r.PostForm.Get("metadata[type]"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "cs_new", "object": "checkout.session", "url": "https://checkout.stripe.com/c/pay/cs_new"}`))
	})

	sess, err := c.CreateCheckoutSession(context.Background(), CheckoutParams{
		Mode:        ModePayment,
		CustomerID:  "cus_1",
		UserID:      "u-1",
		AmountCents: 5000,
		ProductName: "RoboHire balance top-up",
		Metadata:    map[string]string{"type": "topup", "userId": "u-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_new", sess.ID)
	assert.Contains(t, sess.URL, "cs_new")
}

func TestProviderError_ClientErrorsArePermanent(t *testing.T) {
	c := createTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "bad customer"}}`))
	})

	_, err := c.CreatePortalSession(context.Background(), "cus_bad")
	require.Error(t, err)
	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodePaymentProviderError, stdErr.Code)
	assert.False(t, stdErr.Retryable)
}

func TestWebhookVerifier(t *testing.T) {
	payload := []byte(`{"id": "evt_1", "object": "event", "type": "invoice.paid", "api_version": "2023-10-16", "data": {"object": {"id": "in_1", "object": "invoice"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
	})

	v := NewWebhookVerifier("whsec_test")
	event, err := v.Verify(signed.Payload, signed.Header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, stripe.EventType("invoice.paid"), event.Type)

	_, err = NewWebhookVerifier("whsec_other").Verify(signed.Payload, signed.Header)
	assert.ErrorIs(t, err, errors.ErrInvalidSignature)
}
