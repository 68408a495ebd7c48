package paymentfailed

import (
	"context"
	"encoding/json"
	"fmt"

	"robohire-billing/internal/common/camunda"
	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/validation"
	"robohire-billing/internal/notify"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType   = "notification.payment-failed"
	WorkerName = "payment-failed"
)

// Handler emails the customer about a failed renewal and raises an ops alert.
// The email decides the job outcome; the alert is best effort.
type Handler struct {
	config   *Config
	notifier Notifier
	logger   logger.Logger
	errors   *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Notifier     Notifier
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("%s: notifier is required", WorkerName)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:   cfg,
		notifier: opts.Notifier,
		logger:   log,
		errors:   errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	out, err := h.Execute(ctx, input)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	return camunda.CompleteJob(ctx, client, job, map[string]interface{}{
		"paymentFailedEmailSent": out.EmailSent,
		"paymentFailedAlertSent": out.AlertSent,
	})
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingError(err)
	}
	result := validation.ValidateInput(variables, GetInputSchema())
	if !result.Valid {
		return nil, errors.NewValidationError(fmt.Sprintf("Validation errors: %v", result.GetErrorMessages()))
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInputParsingError(err)
	}
	return &input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.notifier.SendPaymentFailed(ctx, input.Email, input.Name, input.AmountDueCents, input.Currency, input.InvoiceURL); err != nil {
		return nil, err
	}
	out := &Output{EmailSent: true}

	subject := fmt.Sprintf("Payment failed for %s", input.Email)
	message := fmt.Sprintf("Renewal payment of %s failed.\nuser: %s\ninvoice: %s\n%s",
		notify.FormatAmount(input.AmountDueCents, input.Currency), input.UserID, input.InvoiceID, input.InvoiceURL)
	if err := h.notifier.Alert(ctx, subject, message); err != nil {
		h.logger.Warn("payment failure alert not published", map[string]interface{}{
			"userId": input.UserID,
			"error":  err,
		})
		return out, nil
	}
	out.AlertSent = true
	return out, nil
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}
