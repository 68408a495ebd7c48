// Package notify sends customer billing email through SES and ops alerts through SNS.
package notify

import (
	"context"
	"fmt"
	"strings"

	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

const maxSubjectLength = 100

type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Options struct {
	Email     EmailSender
	Publisher Publisher
	FromEmail string
	TopicARN  string
	Logger    logger.Logger
}

// Notifier skips a channel whose client is nil.
type Notifier struct {
	email     EmailSender
	publisher Publisher
	from      string
	topicARN  string
	logger    logger.Logger
}

func New(opts Options) *Notifier {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Notifier{
		email:     opts.Email,
		publisher: opts.Publisher,
		from:      opts.FromEmail,
		topicARN:  opts.TopicARN,
		logger:    log,
	}
}

// FormatAmount renders cents as "25.00 USD".
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}

func (n *Notifier) SendTopUpReceipt(ctx context.Context, to string, amountCents int64, currency string, balanceCents int64) error {
	subject := "Your RoboHire balance top-up"
	body := fmt.Sprintf(
		"Thanks for your purchase.\n\nWe added %s to your RoboHire balance. Your balance is now %s.\n",
		FormatAmount(amountCents, currency), FormatAmount(balanceCents, currency))
	return n.sendEmail(ctx, to, subject, body)
}

func (n *Notifier) SendPaymentFailed(ctx context.Context, to, name string, amountDueCents int64, currency, invoiceURL string) error {
	greeting := "Hello"
	if name != "" {
		greeting = "Hello " + name
	}
	subject := "Action needed: your RoboHire payment failed"
	body := fmt.Sprintf(
		"%s,\n\nWe could not collect your subscription payment of %s. "+
			"Please update your payment method to keep your plan active.\n",
		greeting, FormatAmount(amountDueCents, currency))
	if invoiceURL != "" {
		body += "\nInvoice: " + invoiceURL + "\n"
	}
	return n.sendEmail(ctx, to, subject, body)
}

// Alert publishes an ops alert to the configured topic.
func (n *Notifier) Alert(ctx context.Context, subject, message string) error {
	if n.publisher == nil || n.topicARN == "" {
		n.logger.Debug("alert channel disabled", map[string]interface{}{"subject": subject})
		return nil
	}
	if len(subject) > maxSubjectLength {
		subject = subject[:maxSubjectLength]
	}

	_, err := n.publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("sns", err)
	}
	n.logger.Info("alert published", map[string]interface{}{"subject": subject})
	return nil
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	if n.email == nil || n.from == "" {
		n.logger.Debug("email channel disabled", map[string]interface{}{"subject": subject})
		return nil
	}
	if to == "" {
		return errors.NewValidationError("recipient email is required")
	}

	_, err := n.email.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(n.from),
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return errors.NewNotificationSendFailedError("email", err)
	}
	n.logger.Info("email sent", map[string]interface{}{"to": to, "subject": subject})
	return nil
}
