package accountadjust

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"robohire-billing/internal/billing/adjust"
	"robohire-billing/internal/common/camunda"
	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType   = "admin.account.adjust"
	WorkerName = "account-adjust"
)

type Handler struct {
	config *Config
	adjust Adjuster
	actors ActorResolver
	logger logger.Logger
	errors *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Service      Adjuster
	// Actors resolves adminToken inputs. Without it only adminId is accepted.
	Actors ActorResolver
	Logger logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("%s: adjust service is required", WorkerName)
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config: cfg,
		adjust: opts.Service,
		actors: opts.Actors,
		logger: log,
		errors: errors.NewErrorHandler(log),
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
		"adjusted":    res.Changed,
		"replayed":    res.Replayed,
		"adjustments": res.Adjustments,
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
	if input.AdminID == "" && input.AdminToken == "" {
		return nil, errors.NewValidationError("one of adminId or adminToken is required")
	}
	input.RequestKey = strconv.FormatInt(job.Key, 10)
	return &input, nil
}

// Execute resolves the acting admin and applies the requested change.
func (h *Handler) Execute(ctx context.Context, input *Input) (*adjust.Result, error) {
	adminID, err := h.actor(ctx, input)
	if err != nil {
		return nil, err
	}
	req := adjust.Request{UserID: input.UserID, AdminID: adminID, Reason: input.Reason, Key: input.RequestKey}

	var res *adjust.Result
	switch input.Operation {
	case OpBalance:
		res, err = h.adjust.AdjustBalance(ctx, req, input.Mode, input.AmountCents)
	case OpUsage:
		res, err = h.adjust.AdjustUsage(ctx, req, input.Counter, input.Mode, input.Value)
	case OpResetUsage:
		res, err = h.adjust.ResetUsage(ctx, req)
	case OpTier:
		res, err = h.adjust.SetTier(ctx, req, input.Tier)
	case OpStatus:
		res, err = h.adjust.SetStatus(ctx, req, input.Status)
	case OpRole:
		res, err = h.adjust.SetRole(ctx, req, input.Role)
	case OpCustomLimits:
		res, err = h.adjust.SetCustomLimits(ctx, req, input.CustomMaxInterviews, input.CustomMaxResumeMatches)
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported operation %q", input.Operation))
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("Account adjusted", map[string]interface{}{
		"operation": string(input.Operation),
		"userId":    input.UserID,
		"adminId":   adminID,
		"changed":   res.Changed,
		"fields":    len(res.Adjustments),
	})
	return res, nil
}

func (h *Handler) actor(ctx context.Context, input *Input) (string, error) {
	if input.AdminToken == "" {
		return input.AdminID, nil
	}
	if h.actors == nil {
		return "", errors.NewAuthenticationError("admin tokens are not accepted: no identity provider configured")
	}
	adminID, err := h.actors.ResolveActor(ctx, input.AdminToken)
	if err != nil {
		return "", err
	}
	if input.AdminID != "" && input.AdminID != adminID {
		return "", errors.NewAuthenticationError("adminId does not match the token subject")
	}
	return adminID, nil
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}
