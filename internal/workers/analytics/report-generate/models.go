package reportgenerate

import (
	"context"
	"time"

	"robohire-billing/internal/analytics"
)

// Input selects a report. LastDays is an alternative to an explicit From/To.
type Input struct {
	ReportType analytics.ReportType `json:"reportType"`
	From       time.Time            `json:"from,omitempty"`
	To         time.Time            `json:"to,omitempty"`
	LastDays   int                  `json:"lastDays,omitempty"`
	UserID     string               `json:"userId,omitempty"`
	GroupBy    string               `json:"groupBy,omitempty"`
	Limit      int                  `json:"limit,omitempty"`
}

type Reporter interface {
	Report(ctx context.Context, reportType analytics.ReportType, p analytics.Params) (*analytics.ReportResult, error)
}
