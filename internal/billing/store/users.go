package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"robohire-billing/internal/models"
)

var userColumnNames = []string{
	"id", "email", "name", "company", "role",
	"subscription_tier", "subscription_status",
	"stripe_customer_id", "stripe_subscription_id", "current_period_end",
	"interviews_used", "resume_matches_used",
	"custom_max_interviews", "custom_max_resume_matches",
	"topup_balance_cents", "usage_reset_at", "created_at", "updated_at",
}

// UserColumns is the select list scanned by scanUser.
var UserColumns = strings.Join(userColumnNames, ", ")

// UserColumnNames returns the columns of a users row in scan order.
func UserColumnNames() []string {
	out := make([]string, len(userColumnNames))
	copy(out, userColumnNames)
	return out
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		u                      models.User
		customerID, subID      sql.NullString
		periodEnd, resetAt     sql.NullTime
		customInt, customMatch sql.NullInt64
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Company, &u.Role,
		&u.Tier, &u.Status,
		&customerID, &subID, &periodEnd,
		&u.InterviewsUsed, &u.ResumeMatchesUsed,
		&customInt, &customMatch,
		&u.TopUpBalanceCents, &resetAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.StripeCustomerID = customerID.String
	u.StripeSubscriptionID = subID.String
	if periodEnd.Valid {
		t := periodEnd.Time
		u.CurrentPeriodEnd = &t
	}
	if resetAt.Valid {
		t := resetAt.Time
		u.UsageResetAt = &t
	}
	if customInt.Valid {
		v := int(customInt.Int64)
		u.CustomMaxInterviews = &v
	}
	if customMatch.Valid {
		v := int(customMatch.Int64)
		u.CustomMaxResumeMatches = &v
	}
	return &u, nil
}

func (q *Queries) GetUser(ctx context.Context, id string) (*models.User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+UserColumns+` FROM users WHERE id = $1`, id))
}

// GetUserForUpdate locks the user row until the surrounding transaction ends.
func (q *Queries) GetUserForUpdate(ctx context.Context, id string) (*models.User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+UserColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

func (q *Queries) GetUserByCustomer(ctx context.Context, customerID string) (*models.User, error) {
	return scanUser(q.db.QueryRowContext(ctx,
		`SELECT `+UserColumns+` FROM users WHERE stripe_customer_id = $1`, customerID))
}

// Counters are the metering columns after an update.
type Counters struct {
	InterviewsUsed    int
	ResumeMatchesUsed int
	BalanceCents      int64
}

// IncrementUsage adds one to the action's counter and debits debitCents from
// the balance. It returns ErrGuardFailed when the balance does not cover the debit.
func (q *Queries) IncrementUsage(ctx context.Context, userID string, action models.Action, debitCents int64) (Counters, error) {
	col := action.Column()
	var c Counters
	err := q.db.QueryRowContext(ctx, fmt.Sprintf(`
		UPDATE users
		SET %[1]s = %[1]s + 1,
		    topup_balance_cents = topup_balance_cents - $2,
		    updated_at = NOW()
		WHERE id = $1 AND topup_balance_cents >= $2
		RETURNING interviews_used, resume_matches_used, topup_balance_cents`, col),
		userID, debitCents,
	).Scan(&c.InterviewsUsed, &c.ResumeMatchesUsed, &c.BalanceCents)
	if errors.Is(err, sql.ErrNoRows) {
		return Counters{}, ErrGuardFailed
	}
	return c, err
}

func (q *Queries) SetUsage(ctx context.Context, userID string, action models.Action, value int) error {
	res, err := q.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE users SET %s = $2, updated_at = NOW() WHERE id = $1`, action.Column()),
		userID, value)
	if err != nil {
		return err
	}
	return guard(res)
}

// ResetUsage zeroes both counters and stamps usage_reset_at.
func (q *Queries) ResetUsage(ctx context.Context, userID string) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET interviews_used = 0, resume_matches_used = 0, usage_reset_at = NOW(), updated_at = NOW()
		WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	return guard(res)
}

func (q *Queries) SetBalance(ctx context.Context, userID string, cents int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE users SET topup_balance_cents = $2, updated_at = NOW() WHERE id = $1`,
		userID, cents)
	if err != nil {
		return err
	}
	return guard(res)
}

// AddBalance applies delta and returns the new balance. A delta that would
// leave the balance negative returns ErrGuardFailed.
func (q *Queries) AddBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	var balance int64
	err := q.db.QueryRowContext(ctx, `
		UPDATE users
		SET topup_balance_cents = topup_balance_cents + $2, updated_at = NOW()
		WHERE id = $1 AND topup_balance_cents + $2 >= 0
		RETURNING topup_balance_cents`, userID, delta).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrGuardFailed
	}
	return balance, err
}

func (q *Queries) SetTier(ctx context.Context, userID, tier string) error {
	return q.setColumn(ctx, userID, "subscription_tier", tier)
}

func (q *Queries) SetStatus(ctx context.Context, userID string, status models.SubscriptionStatus) error {
	return q.setColumn(ctx, userID, "subscription_status", string(status))
}

func (q *Queries) SetRole(ctx context.Context, userID string, role models.Role) error {
	return q.setColumn(ctx, userID, "role", string(role))
}

func (q *Queries) SetStripeCustomer(ctx context.Context, userID, customerID string) error {
	return q.setColumn(ctx, userID, "stripe_customer_id", customerID)
}

func (q *Queries) setColumn(ctx context.Context, userID, column, value string) error {
	res, err := q.db.ExecContext(ctx, fmt.Sprintf(
		`UPDATE users SET %s = $2, updated_at = NOW() WHERE id = $1`, column),
		userID, value)
	if err != nil {
		return err
	}
	return guard(res)
}

// SetCustomLimits stores the custom tier overrides; nil clears an override.
func (q *Queries) SetCustomLimits(ctx context.Context, userID string, interviews, resumeMatches *int) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET custom_max_interviews = $2, custom_max_resume_matches = $3, updated_at = NOW()
		WHERE id = $1`, userID, nullInt(interviews), nullInt(resumeMatches))
	if err != nil {
		return err
	}
	return guard(res)
}

// SubscriptionUpdate is the subscription state copied from the payment provider.
type SubscriptionUpdate struct {
	Tier           string
	Status         models.SubscriptionStatus
	SubscriptionID string
	PeriodEnd      *time.Time
}

func (q *Queries) ApplySubscription(ctx context.Context, userID string, u SubscriptionUpdate) error {
	var periodEnd sql.NullTime
	if u.PeriodEnd != nil {
		periodEnd = sql.NullTime{Time: *u.PeriodEnd, Valid: true}
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE users
		SET subscription_tier = $2,
		    subscription_status = $3,
		    stripe_subscription_id = $4,
		    current_period_end = $5,
		    updated_at = NOW()
		WHERE id = $1`,
		userID, u.Tier, string(u.Status), nullString(u.SubscriptionID), periodEnd)
	if err != nil {
		return err
	}
	return guard(res)
}
