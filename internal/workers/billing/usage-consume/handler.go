package usageconsume

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

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
	TaskType   = "billing.usage.consume"
	WorkerName = "usage-consume"
)

type Handler struct {
	config   *Config
	usage    Consumer
	recorder Recorder
	logger   logger.Logger
	errors   *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Usage        Consumer
	// Recorder is optional; without it no usage log row is written.
	Recorder Recorder
	Logger   logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if opts.Usage == nil {
		return nil, fmt.Errorf("%s: usage service is required", WorkerName)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:   cfg,
		usage:    opts.Usage,
		recorder: opts.Recorder,
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

	output, err := h.Execute(ctx, input)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	return camunda.CompleteJob(ctx, client, job, map[string]interface{}{
		"usage":      output.Usage,
		"usageLogId": output.UsageLogID,
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
	input.RequestKey = strconv.FormatInt(job.Key, 10)
	return &input, nil
}

// Execute meters the action and logs the call. The counter change is already
// committed when logging runs, so a logging failure does not fail the job. A
// replayed request was logged by its first attempt.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.usage.Consume(ctx, input.UserID, input.Action, input.RequestKey)
	if err != nil {
		return nil, err
	}

	out := &Output{Usage: res}
	if h.recorder == nil || res.Replayed {
		return out, nil
	}

	entry := &models.UsageLog{
		UserID:           input.UserID,
		Action:           string(input.Action),
		Module:           input.Module,
		Provider:         input.Provider,
		Model:            input.Model,
		PromptTokens:     input.PromptTokens,
		CompletionTokens: input.CompletionTokens,
		CostUSD:          input.CostUSD,
		DurationMs:       input.DurationMs,
		Status:           models.UsageStatusSuccess,
	}
	if err := h.recorder.RecordUsage(ctx, entry); err != nil {
		h.logger.Warn("usage log not recorded", map[string]interface{}{
			"userId": input.UserID,
			"action": string(input.Action),
			"error":  err,
		})
		return out, nil
	}
	out.UsageLogID = entry.ID
	return out, nil
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}
