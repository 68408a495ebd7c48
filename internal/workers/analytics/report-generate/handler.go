package reportgenerate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"robohire-billing/internal/analytics"
	"robohire-billing/internal/common/camunda"
	"robohire-billing/internal/common/config"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType   = "analytics.report.generate"
	WorkerName = "report-generate"
)

type Handler struct {
	config  *Config
	service Reporter
	logger  logger.Logger
	errors  *errors.ErrorHandler
	now     func() time.Time
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Service      Reporter
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", WorkerName, err)
	}
	if opts.Service == nil {
		return nil, fmt.Errorf("%s: analytics service is required", WorkerName)
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
		now:     time.Now,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	report, err := h.Execute(ctx, input)
	if err != nil {
		return h.errors.HandleJobError(ctx, client, job, err)
	}

	return camunda.CompleteJob(ctx, client, job, map[string]interface{}{"report": report})
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

// params turns the input into a report range. LastDays ends at the start of
// tomorrow (UTC) so today is included.
func (h *Handler) params(input *Input) (analytics.Params, error) {
	p := analytics.Params{
		From:    input.From,
		To:      input.To,
		UserID:  input.UserID,
		GroupBy: input.GroupBy,
		Limit:   input.Limit,
	}
	if input.LastDays > 0 {
		if !input.From.IsZero() || !input.To.IsZero() {
			return p, errors.NewValidationError("lastDays cannot be combined with from/to")
		}
		today := h.now().UTC().Truncate(24 * time.Hour)
		p.To = today.AddDate(0, 0, 1)
		p.From = p.To.AddDate(0, 0, -input.LastDays)
	}
	return p, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*analytics.ReportResult, error) {
	p, err := h.params(input)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	report, err := h.service.Report(ctx, input.ReportType, p)
	if err != nil {
		return nil, err
	}

	h.logger.Info("Report generated", map[string]interface{}{
		"reportType": string(input.ReportType),
		"from":       p.From.Format(time.RFC3339),
		"to":         p.To.Format(time.RFC3339),
		"cached":     report.Cached,
		"durationMs": time.Since(start).Milliseconds(),
	})
	return report, nil
}

func (h *Handler) IsEnabled() bool {
	return h.config.Enabled
}
