package topupcredit

import (
	"context"
	"fmt"

	"robohire-billing/internal/common/camunda"
	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType   = "billing.topup.credit"
	WorkerName = "topup-credit"
)

// Handler verifies a top-up checkout session with the payments provider and
// credits it. Re-running the job for the same session never credits twice.
type Handler struct {
	config  *Config
	service TopUpVerifier
	logger  logger.Logger
	errors  *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Service      TopUpVerifier
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("%s: reconcile service is required", WorkerName)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:  cfg,
		service: opts.Service,
		logger:  log,
		errors:  errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	return camunda.CompleteJob(ctx, client, job, map[string]interface{}{
		"topUpCredited":   !output.AlreadyCredited,
		"alreadyCredited": output.AlreadyCredited,
		"amountCents":     output.AmountCents,
		"balanceCents":    output.BalanceCents,
		"userId":          output.UserID,
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

	input := &Input{SessionID: variables["sessionId"].(string)}
	if userID, ok := variables["userId"].(string); ok {
		input.UserID = userID
	}
	return input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.service.VerifyTopUp(ctx, input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	h.logger.Info("Top-up verified", map[string]interface{}{
		"sessionId":       res.SessionID,
		"userId":          res.UserID,
		"amountCents":     res.AmountCents,
		"alreadyCredited": res.AlreadyCredited,
	})
	return res, nil
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}
