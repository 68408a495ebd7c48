package analytics

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type MockSearch struct {
	mock.Mock
}

func (m *MockSearch) Index(ctx context.Context, log *models.UsageLog) error {
	return m.Called(ctx, log).Error(0)
}

func (m *MockSearch) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SearchResult), args.Error(1)
}

var (
	testNow  = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	testFrom = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	testTo   = time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
)

func createTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *miniredis.Miniredis, *MockSearch) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	search := &MockSearch{}
	svc := NewService(Options{
		Store:  store.New(db),
		Search: search,
		Cache:  rdb,
		Logger: logger.NewTestLogger(t),
	})
	svc.now = func() time.Time { return testNow }
	return svc, dbMock, mr, search
}

func summaryRows(requests, successes, errs, tokens int64, cost, avg float64, users int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count", "successes", "errors", "tokens", "cost", "avg", "users"}).
		AddRow(requests, successes, errs, tokens, cost, avg, users)
}

func breakdownRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"key", "count", "errors", "tokens", "cost"})
}

func TestRecordUsage(t *testing.T) {
	t.Run("fills defaults and indexes", func(t *testing.T) {
		svc, dbMock, _, search := createTestService(t)
		dbMock.ExpectExec("INSERT INTO usage_logs").
			WithArgs(sqlmock.AnyArg(), "u-1", "interview", "screening", "openai", "gpt-4o",
				int64(100), int64(50), int64(150), 0.0125, int64(900), "success", nil, testNow).
			WillReturnResult(sqlmock.NewResult(0, 1))
		search.On("Index", mock.Anything, mock.AnythingOfType("*models.UsageLog")).Return(nil)

		l := &models.UsageLog{
			UserID: "u-1", Action: "interview", Module: "screening", Provider: "openai", Model: "gpt-4o",
			PromptTokens: 100, CompletionTokens: 50, CostUSD: 0.0125, DurationMs: 900,
		}
		require.NoError(t, svc.RecordUsage(context.Background(), l))

		assert.NotEmpty(t, l.ID)
		assert.Equal(t, 150, l.TotalTokens)
		assert.Equal(t, models.UsageStatusSuccess, l.Status)
		assert.NoError(t, dbMock.ExpectationsWereMet())
		search.AssertExpectations(t)
	})

	t.Run("index failure does not fail the call", func(t *testing.T) {
		svc, dbMock, _, search := createTestService(t)
		dbMock.ExpectExec("INSERT INTO usage_logs").WillReturnResult(sqlmock.NewResult(0, 1))
		search.On("Index", mock.Anything, mock.Anything).Return(stderrors.New("cluster red"))

		err := svc.RecordUsage(context.Background(), &models.UsageLog{Action: "resume_match"})

		assert.NoError(t, err)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		svc, _, _, _ := createTestService(t)
		err := svc.RecordUsage(context.Background(), &models.UsageLog{Action: "interview", Status: "partial"})
		assert.Equal(t, string(errors.ErrCodeValidationFailed), errors.CodeOf(err))
	})
}

func TestRun_Validation(t *testing.T) {
	tests := []struct {
		name       string
		reportType ReportType
		params     Params
		wantCode   errors.ErrorCode
	}{
		{"unknown type", "funnel", Params{From: testFrom, To: testTo}, errors.ErrCodeInvalidReportType},
		{"missing range", ReportSummary, Params{}, errors.ErrCodeValidationFailed},
		{"inverted range", ReportSummary, Params{From: testTo, To: testFrom}, errors.ErrCodeValidationFailed},
		{"bad group", ReportBreakdown, Params{From: testFrom, To: testTo, GroupBy: "email"}, errors.ErrCodeValidationFailed},
		{"daily range over a year", ReportDaily, Params{From: testFrom, To: testFrom.AddDate(0, 0, MaxDailyRangeDays+1)}, errors.ErrCodeValidationFailed},
		{"daily range of a century", ReportDaily, Params{From: testFrom, To: testFrom.AddDate(100, 0, 0)}, errors.ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			_, err = Run(context.Background(), db, tt.reportType, tt.params)
			assert.Equal(t, string(tt.wantCode), errors.CodeOf(err))
		})
	}
}

func TestSummaryReport_ErrorRate(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dbMock.ExpectQuery("FROM usage_logs WHERE created_at >= \\$1").
		WithArgs(testFrom, testTo, "").
		WillReturnRows(summaryRows(8, 6, 2, 4000, 1.5, 850, 3))

	s, err := SummaryReport(context.Background(), db, Params{From: testFrom, To: testTo})

	require.NoError(t, err)
	assert.Equal(t, int64(8), s.Requests)
	assert.InDelta(t, 0.25, s.ErrorRate, 1e-9)
	assert.Equal(t, int64(3), s.UniqueUsers)
}

func TestDailyReport_FillsGaps(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dbMock.ExpectQuery("GROUP BY day").
		WillReturnRows(sqlmock.NewRows([]string{"day", "count", "errors", "tokens", "cost"}).
			AddRow("2026-03-02", int64(4), int64(1), int64(1200), 0.4))

	points, err := DailyReport(context.Background(), db, Params{From: testFrom, To: testTo})

	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, DailyPoint{Date: "2026-03-01"}, points[0])
	assert.Equal(t, int64(4), points[1].Requests)
	assert.Equal(t, "2026-03-03", points[2].Date)
}

func TestDailyReport_FullYear(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dbMock.ExpectQuery("GROUP BY day").
		WillReturnRows(sqlmock.NewRows([]string{"day", "count", "errors", "tokens", "cost"}))

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points, err := DailyReport(context.Background(), db, Params{From: from, To: from.AddDate(0, 0, MaxDailyRangeDays)})

	require.NoError(t, err)
	assert.Len(t, points, MaxDailyRangeDays)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestBreakdownReport_GroupsByUser(t *testing.T) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	dbMock.ExpectQuery("SELECT COALESCE\\(user_id::text, 'unknown'\\) AS key").
		WithArgs(testFrom, testTo, "", int64(MaxBreakdownLimit)).
		WillReturnRows(breakdownRows().
			AddRow("u-1", int64(10), int64(0), int64(5000), 2.5).
			AddRow("unknown", int64(2), int64(2), int64(0), 0.0))

	rows, err := BreakdownReport(context.Background(), db, Params{From: testFrom, To: testTo, GroupBy: "user", Limit: 1000})

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "u-1", rows[0].Key)
	assert.Equal(t, "unknown", rows[1].Key)
}

func TestReport_CachesResult(t *testing.T) {
	svc, dbMock, mr, _ := createTestService(t)
	p := Params{From: testFrom, To: testTo}

	dbMock.ExpectQuery("FROM usage_logs").WillReturnRows(summaryRows(5, 5, 0, 100, 0.2, 300, 1))

	first, err := svc.Report(context.Background(), ReportSummary, p)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	key := ReportCacheKey(ReportSummary, p)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, DefaultCacheTTL, mr.TTL(key))

	second, err := svc.Report(context.Background(), ReportSummary, p)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	data, ok := second.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), data["requests"])
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestReportCacheKey(t *testing.T) {
	key := ReportCacheKey(ReportBreakdown, Params{From: testFrom, To: testTo, UserID: "u-1", GroupBy: "model", Limit: 5})
	assert.Equal(t, "analytics:breakdown:2026-03-01T00:00:00Z:2026-03-04T00:00:00Z:u-1:model:5", key)
}

func TestExport_WritesAllSheets(t *testing.T) {
	svc, dbMock, _, _ := createTestService(t)
	p := Params{From: testFrom, To: testTo}

	dbMock.ExpectQuery("FROM usage_logs").WillReturnRows(summaryRows(3, 2, 1, 900, 0.3, 420, 2))
	dbMock.ExpectQuery("GROUP BY day").WillReturnRows(sqlmock.NewRows([]string{"day", "count", "errors", "tokens", "cost"}))
	dbMock.ExpectQuery("SELECT action AS key").WillReturnRows(breakdownRows().AddRow("interview", int64(3), int64(1), int64(900), 0.3))
	dbMock.ExpectQuery("SELECT COALESCE\\(NULLIF\\(model").WillReturnRows(breakdownRows())
	dbMock.ExpectQuery("SELECT COALESCE\\(user_id::text").WillReturnRows(breakdownRows())
	dbMock.ExpectQuery("FROM top_ups").
		WillReturnRows(sqlmock.NewRows([]string{"day", "count", "amount"}).AddRow("2026-03-02", int64(2), int64(5000)))

	buf, err := svc.Export(context.Background(), p)
	require.NoError(t, err)
	assert.NoError(t, dbMock.ExpectationsWereMet())

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Daily", "By Action", "By Model", "Top Users", "Revenue"}, f.GetSheetList())

	requests, err := f.GetCellValue("Summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "3", requests)

	days, err := f.GetRows("Daily")
	require.NoError(t, err)
	assert.Len(t, days, 4)

	total, err := f.GetCellValue("Revenue", "C3")
	require.NoError(t, err)
	assert.Equal(t, "5000", total)
}
