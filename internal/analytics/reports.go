package analytics

import (
	"context"
	"fmt"
	"time"

	"robohire-billing/internal/common/database"
	"robohire-billing/internal/common/errors"
)

type ReportType string

const (
	ReportSummary   ReportType = "summary"
	ReportDaily     ReportType = "daily"
	ReportBreakdown ReportType = "breakdown"
	ReportRevenue   ReportType = "revenue"
)

const (
	DefaultBreakdownLimit = 20
	MaxBreakdownLimit     = 200
	// MaxDailyRangeDays bounds the zero-filled day series.
	MaxDailyRangeDays = 366
)

// Params scope a report to the half-open range [From, To).
type Params struct {
	From    time.Time `json:"from"`
	To      time.Time `json:"to"`
	UserID  string    `json:"userId,omitempty"`
	GroupBy string    `json:"groupBy,omitempty"`
	Limit   int       `json:"limit,omitempty"`
}

func (p Params) validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return errors.NewValidationError("from and to are required")
	}
	if !p.To.After(p.From) {
		return errors.NewValidationError("to must be after from")
	}
	return nil
}

func (p Params) validateDaily() error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.To.Sub(p.From) > MaxDailyRangeDays*24*time.Hour {
		return errors.NewValidationError(fmt.Sprintf("daily range exceeds %d days", MaxDailyRangeDays))
	}
	return nil
}

type Summary struct {
	Requests      int64   `json:"requests"`
	Successes     int64   `json:"successes"`
	Errors        int64   `json:"errors"`
	ErrorRate     float64 `json:"errorRate"`
	TotalTokens   int64   `json:"totalTokens"`
	CostUSD       float64 `json:"costUsd"`
	AvgDurationMs float64 `json:"avgDurationMs"`
	UniqueUsers   int64   `json:"uniqueUsers"`
}

type DailyPoint struct {
	Date     string  `json:"date"`
	Requests int64   `json:"requests"`
	Errors   int64   `json:"errors"`
	Tokens   int64   `json:"tokens"`
	CostUSD  float64 `json:"costUsd"`
}

type BreakdownRow struct {
	Key      string  `json:"key"`
	Requests int64   `json:"requests"`
	Errors   int64   `json:"errors"`
	Tokens   int64   `json:"tokens"`
	CostUSD  float64 `json:"costUsd"`
}

type RevenuePoint struct {
	Date        string `json:"date"`
	TopUps      int64  `json:"topUps"`
	AmountCents int64  `json:"amountCents"`
}

type Revenue struct {
	TopUps      int64          `json:"topUps"`
	AmountCents int64          `json:"amountCents"`
	Daily       []RevenuePoint `json:"daily"`
}

// ReportFunc runs one report type against the database.
type ReportFunc func(ctx context.Context, db database.DBTX, p Params) (interface{}, error)

var Registry = map[ReportType]ReportFunc{
	ReportSummary:   func(ctx context.Context, db database.DBTX, p Params) (interface{}, error) { return SummaryReport(ctx, db, p) },
	ReportDaily:     func(ctx context.Context, db database.DBTX, p Params) (interface{}, error) { return DailyReport(ctx, db, p) },
	ReportBreakdown: func(ctx context.Context, db database.DBTX, p Params) (interface{}, error) { return BreakdownReport(ctx, db, p) },
	ReportRevenue:   func(ctx context.Context, db database.DBTX, p Params) (interface{}, error) { return RevenueReport(ctx, db, p) },
}

func Run(ctx context.Context, db database.DBTX, reportType ReportType, p Params) (interface{}, error) {
	fn, ok := Registry[reportType]
	if !ok {
		return nil, errors.NewInvalidReportTypeError(string(reportType))
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return fn(ctx, db, p)
}

const usageFilter = `created_at >= $1 AND created_at < $2 AND ($3 = '' OR user_id::text = $3)`

func SummaryReport(ctx context.Context, db database.DBTX, p Params) (*Summary, error) {
	var s Summary
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'success'),
		       COUNT(*) FILTER (WHERE status = 'error'),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_usd), 0),
		       COALESCE(AVG(duration_ms), 0),
		       COUNT(DISTINCT user_id)
		FROM usage_logs
		WHERE `+usageFilter,
		p.From, p.To, p.UserID,
	).Scan(&s.Requests, &s.Successes, &s.Errors, &s.TotalTokens, &s.CostUSD, &s.AvgDurationMs, &s.UniqueUsers)
	if err != nil {
		return nil, errors.WrapDatabase("summary report", err)
	}
	if s.Requests > 0 {
		s.ErrorRate = float64(s.Errors) / float64(s.Requests)
	}
	return &s, nil
}

// DailyReport returns one point per UTC day in the range, zero-filled.
func DailyReport(ctx context.Context, db database.DBTX, p Params) ([]DailyPoint, error) {
	if err := p.validateDaily(); err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT to_char(date_trunc('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'error'),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_usd), 0)
		FROM usage_logs
		WHERE `+usageFilter+`
		GROUP BY day
		ORDER BY day`,
		p.From, p.To, p.UserID)
	if err != nil {
		return nil, errors.WrapDatabase("daily report", err)
	}
	defer rows.Close()

	byDay := make(map[string]DailyPoint)
	for rows.Next() {
		var d DailyPoint
		if err := rows.Scan(&d.Date, &d.Requests, &d.Errors, &d.Tokens, &d.CostUSD); err != nil {
			return nil, errors.WrapDatabase("daily report", err)
		}
		byDay[d.Date] = d
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapDatabase("daily report", err)
	}

	points := make([]DailyPoint, 0, len(byDay))
	for _, day := range days(p.From, p.To) {
		d, ok := byDay[day]
		if !ok {
			d = DailyPoint{Date: day}
		}
		points = append(points, d)
	}
	return points, nil
}

// groupColumns maps accepted group-by keys to SQL expressions.
var groupColumns = map[string]string{
	"action":   "action",
	"module":   "COALESCE(NULLIF(module, ''), 'unknown')",
	"provider": "COALESCE(NULLIF(provider, ''), 'unknown')",
	"model":    "COALESCE(NULLIF(model, ''), 'unknown')",
	"user":     "COALESCE(user_id::text, 'unknown')",
}

func GroupByKeys() []string {
	return []string{"action", "module", "provider", "model", "user"}
}

// BreakdownReport groups usage by one column, most expensive first.
func BreakdownReport(ctx context.Context, db database.DBTX, p Params) ([]BreakdownRow, error) {
	groupBy := p.GroupBy
	if groupBy == "" {
		groupBy = "action"
	}
	column, ok := groupColumns[groupBy]
	if !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("cannot group by %q", p.GroupBy))
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultBreakdownLimit
	}
	if limit > MaxBreakdownLimit {
		limit = MaxBreakdownLimit
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+column+` AS key,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'error'),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_usd), 0) AS cost
		FROM usage_logs
		WHERE `+usageFilter+`
		GROUP BY 1
		ORDER BY cost DESC, key
		LIMIT $4`,
		p.From, p.To, p.UserID, limit)
	if err != nil {
		return nil, errors.WrapDatabase("breakdown report", err)
	}
	defer rows.Close()

	out := []BreakdownRow{}
	for rows.Next() {
		var r BreakdownRow
		if err := rows.Scan(&r.Key, &r.Requests, &r.Errors, &r.Tokens, &r.CostUSD); err != nil {
			return nil, errors.WrapDatabase("breakdown report", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapDatabase("breakdown report", err)
	}
	return out, nil
}

// RevenueReport totals completed top-ups by the day they were credited.
func RevenueReport(ctx context.Context, db database.DBTX, p Params) (*Revenue, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT to_char(date_trunc('day', credited_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
		       COUNT(*),
		       COALESCE(SUM(amount_cents), 0)
		FROM top_ups
		WHERE status = 'completed'
		  AND credited_at >= $1 AND credited_at < $2
		  AND ($3 = '' OR user_id::text = $3)
		GROUP BY day
		ORDER BY day`,
		p.From, p.To, p.UserID)
	if err != nil {
		return nil, errors.WrapDatabase("revenue report", err)
	}
	defer rows.Close()

	rev := &Revenue{Daily: []RevenuePoint{}}
	for rows.Next() {
		var pt RevenuePoint
		if err := rows.Scan(&pt.Date, &pt.TopUps, &pt.AmountCents); err != nil {
			return nil, errors.WrapDatabase("revenue report", err)
		}
		rev.TopUps += pt.TopUps
		rev.AmountCents += pt.AmountCents
		rev.Daily = append(rev.Daily, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapDatabase("revenue report", err)
	}
	return rev, nil
}

// days lists the UTC dates touched by [from, to).
func days(from, to time.Time) []string {
	start := from.UTC().Truncate(24 * time.Hour)
	end := to.UTC()
	var out []string
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format("2006-01-02"))
	}
	return out
}
