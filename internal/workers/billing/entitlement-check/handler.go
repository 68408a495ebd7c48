package entitlementcheck

import (
	"context"
	"fmt"

	"robohire-billing/internal/common/camunda"
	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/validation"
	"robohire-billing/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType   = "billing.entitlement.check"
	WorkerName = "entitlement-check"
)

type Handler struct {
	config  *Config
	service EntitlementReader
	logger  logger.Logger
	errors  *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Service      EntitlementReader
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("%s: usage service is required", WorkerName)
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

	h.logger.Debug("Checking entitlement", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	vars := map[string]interface{}{"entitlement": output.Entitlement}
	if output.Allowed != nil {
		vars["allowed"] = *output.Allowed
	}
	return camunda.CompleteJob(ctx, client, job, vars)
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

	input := &Input{UserID: variables["userId"].(string)}
	if action, ok := variables["action"].(string); ok {
		input.Action = models.Action(action)
	}
	return input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	snap, err := h.service.Snapshot(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	out := &Output{Entitlement: snap}
	if input.Action != "" {
		allowed := snap.Entitled && snap.Allows(input.Action, h.service.Pricing())
		out.Allowed = &allowed
	}
	return out, nil
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}
