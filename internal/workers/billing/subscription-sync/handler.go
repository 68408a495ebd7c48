package subscriptionsync

import (
	"context"
	"fmt"

	"robohire-billing/internal/billing/reconcile"
	"robohire-billing/internal/common/camunda"
	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType   = "billing.subscription.sync"
	WorkerName = "subscription-sync"
)

type Handler struct {
	config  *Config
	service Syncer
	logger  logger.Logger
	errors  *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Service      Syncer
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

	res, err := h.Execute(ctx, input)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	return camunda.CompleteJob(ctx, client, job, map[string]interface{}{
		"tier":               res.Tier,
		"subscriptionStatus": string(res.Status),
		"subscriptionId":     res.SubscriptionID,
		"usageReset":         res.UsageReset,
		"syncSkipped":        res.Skipped,
		"syncSkipReason":     res.Reason,
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
	return &Input{UserID: variables["userId"].(string)}, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*reconcile.SyncResult, error) {
	res, err := h.service.SyncUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	h.logger.Info("Subscription synced", map[string]interface{}{
		"userId":  res.UserID,
		"tier":    res.Tier,
		"status":  string(res.Status),
		"skipped": res.Skipped,
	})
	return res, nil
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}
