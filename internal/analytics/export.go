package analytics

import (
	"bytes"
	"context"

	"robohire-billing/internal/common/errors"

	"github.com/xuri/excelize/v2"
)

const topUsersLimit = 20

type sheet struct {
	name   string
	header []interface{}
	rows   [][]interface{}
}

// Export renders every report for the range into an XLSX workbook.
func (s *Service) Export(ctx context.Context, p Params) (*bytes.Buffer, error) {
	if err := p.validateDaily(); err != nil {
		return nil, err
	}
	db := s.store.DB()

	summary, err := SummaryReport(ctx, db, p)
	if err != nil {
		return nil, err
	}
	daily, err := DailyReport(ctx, db, p)
	if err != nil {
		return nil, err
	}
	breakdowns := make(map[string][]BreakdownRow, 3)
	for _, groupBy := range []string{"action", "model", "user"} {
		bp := p
		bp.GroupBy = groupBy
		bp.Limit = topUsersLimit
		if groupBy != "user" {
			bp.Limit = MaxBreakdownLimit
		}
		rows, err := BreakdownReport(ctx, db, bp)
		if err != nil {
			return nil, err
		}
		breakdowns[groupBy] = rows
	}
	revenue, err := RevenueReport(ctx, db, p)
	if err != nil {
		return nil, err
	}

	sheets := []sheet{
		{
			name:   "Summary",
			header: []interface{}{"Metric", "Value"},
			rows: [][]interface{}{
				{"From", p.From.UTC().Format("2006-01-02 15:04")},
				{"To", p.To.UTC().Format("2006-01-02 15:04")},
				{"Requests", summary.Requests},
				{"Successes", summary.Successes},
				{"Errors", summary.Errors},
				{"Error rate", summary.ErrorRate},
				{"Total tokens", summary.TotalTokens},
				{"Cost (USD)", summary.CostUSD},
				{"Avg duration (ms)", summary.AvgDurationMs},
				{"Unique users", summary.UniqueUsers},
			},
		},
		{name: "Daily", header: []interface{}{"Date", "Requests", "Errors", "Tokens", "Cost (USD)"}},
		breakdownSheet("By Action", "Action", breakdowns["action"]),
		breakdownSheet("By Model", "Model", breakdowns["model"]),
		breakdownSheet("Top Users", "User", breakdowns["user"]),
		{name: "Revenue", header: []interface{}{"Date", "Top-ups", "Amount (cents)"}},
	}
	for _, d := range daily {
		sheets[1].rows = append(sheets[1].rows, []interface{}{d.Date, d.Requests, d.Errors, d.Tokens, d.CostUSD})
	}
	for _, r := range revenue.Daily {
		sheets[5].rows = append(sheets[5].rows, []interface{}{r.Date, r.TopUps, r.AmountCents})
	}
	sheets[5].rows = append(sheets[5].rows, []interface{}{"Total", revenue.TopUps, revenue.AmountCents})

	return writeWorkbook(sheets)
}

func breakdownSheet(name, keyHeader string, rows []BreakdownRow) sheet {
	sh := sheet{name: name, header: []interface{}{keyHeader, "Requests", "Errors", "Tokens", "Cost (USD)"}}
	for _, r := range rows {
		sh.rows = append(sh.rows, []interface{}{r.Key, r.Requests, r.Errors, r.Tokens, r.CostUSD})
	}
	return sh
}

func writeWorkbook(sheets []sheet) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.name); err != nil {
				return nil, exportError(err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return nil, exportError(err)
		}

		if err := f.SetSheetRow(sh.name, "A1", &sh.header); err != nil {
			return nil, exportError(err)
		}
		for r, row := range sh.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, exportError(err)
			}
			values := row
			if err := f.SetSheetRow(sh.name, cell, &values); err != nil {
				return nil, exportError(err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, exportError(err)
	}
	return buf, nil
}

func exportError(err error) error {
	return errors.NewExternalServiceError("xlsx", err)
}
