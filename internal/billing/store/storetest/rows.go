// Package storetest builds sqlmock rows shaped like store queries.
package storetest

import (
	"database/sql/driver"
	"time"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
)

// NewUser returns an active free-tier user with the given id.
func NewUser(id string) *models.User {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.User{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "Test User",
		Role:      models.RoleUser,
		Tier:      "free",
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// UserRows renders users as the result of a SELECT store.UserColumns query.
func UserRows(users ...*models.User) *sqlmock.Rows {
	rows := sqlmock.NewRows(store.UserColumnNames())
	for _, u := range users {
		rows.AddRow(userValues(u)...)
	}
	return rows
}

func userValues(u *models.User) []driver.Value {
	return []driver.Value{
		u.ID, u.Email, u.Name, u.Company, string(u.Role),
		u.Tier, string(u.Status),
		nullable(u.StripeCustomerID), nullable(u.StripeSubscriptionID), nullableTime(u.CurrentPeriodEnd),
		int64(u.InterviewsUsed), int64(u.ResumeMatchesUsed),
		nullableInt(u.CustomMaxInterviews), nullableInt(u.CustomMaxResumeMatches),
		u.TopUpBalanceCents, nullableTime(u.UsageResetAt), u.CreatedAt, u.UpdatedAt,
	}
}

// TopUpRows renders top-ups as the result of GetTopUpBySessionForUpdate.
func TopUpRows(topUps ...*models.TopUp) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "stripe_session_id", "amount_cents", "currency", "status", "created_at", "credited_at",
	})
	for _, t := range topUps {
		rows.AddRow(t.ID, t.UserID, t.StripeSessionID, t.AmountCents, t.Currency,
			string(t.Status), t.CreatedAt, nullableTime(t.CreditedAt))
	}
	return rows
}

// CounterRows renders the RETURNING clause of IncrementUsage.
func CounterRows(interviews, resumeMatches int, balance int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"interviews_used", "resume_matches_used", "topup_balance_cents"}).
		AddRow(int64(interviews), int64(resumeMatches), balance)
}

func nullable(s string) driver.Value {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return *t
}

func nullableInt(v *int) driver.Value {
	if v == nil {
		return nil
	}
	return int64(*v)
}
