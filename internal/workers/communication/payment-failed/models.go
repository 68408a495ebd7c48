package paymentfailed

import "context"

type Input struct {
	UserID         string `json:"userId"`
	Email          string `json:"email"`
	Name           string `json:"name,omitempty"`
	AmountDueCents int64  `json:"amountDueCents"`
	Currency       string `json:"currency"`
	InvoiceID      string `json:"invoiceId,omitempty"`
	InvoiceURL     string `json:"invoiceUrl,omitempty"`
}

type Output struct {
	EmailSent bool `json:"emailSent"`
	AlertSent bool `json:"alertSent"`
}

type Notifier interface {
	SendPaymentFailed(ctx context.Context, to, name string, amountDueCents int64, currency, invoiceURL string) error
	Alert(ctx context.Context, subject, message string) error
}
