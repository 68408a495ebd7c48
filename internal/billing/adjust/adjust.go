// Package adjust applies audited admin changes to user billing state. Every
// changed field is recorded in admin_adjustments with its before and after value.
package adjust

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/metrics"
	"robohire-billing/internal/models"

	"github.com/google/uuid"
)

const (
	MaxReasonLength     = 500
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

type Mode string

const (
	ModeAdd Mode = "add"
	ModeSet Mode = "set"
)

func (m Mode) Valid() bool {
	return m == ModeAdd || m == ModeSet
}

// Request identifies the target, the acting admin and the audit reason. A
// request with a Key is applied once: repeating the key returns the
// adjustments the first attempt recorded.
type Request struct {
	UserID  string
	AdminID string
	Reason  string
	Key     string
}

type Result struct {
	UserID      string              `json:"userId"`
	Changed     bool                `json:"changed"`
	Replayed    bool                `json:"replayed,omitempty"`
	Adjustments []models.Adjustment `json:"adjustments"`
}

type Invalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

type Alerter interface {
	Alert(ctx context.Context, subject, message string) error
}

type Service struct {
	store          *store.Store
	cache          Invalidator
	alerter        Alerter
	alertThreshold int64
	logger         logger.Logger
	now            func() time.Time
}

type Options struct {
	Store *store.Store
	Cache Invalidator
	// Alerter is notified of balance increases at or above AlertThresholdCents.
	Alerter             Alerter
	AlertThresholdCents int64
	Logger              logger.Logger
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		store:          opts.Store,
		cache:          opts.Cache,
		alerter:        opts.Alerter,
		alertThreshold: opts.AlertThresholdCents,
		logger:         log,
		now:            time.Now,
	}
}

type change struct {
	field    string
	oldValue string
	newValue string
}

type mutation func(ctx context.Context, q *store.Queries, u *models.User) ([]change, error)

func (s *Service) apply(ctx context.Context, req Request, kind models.AdjustmentKind, mutate mutation) (*Result, error) {
	reason, err := normalizeReason(req.Reason)
	if err != nil {
		return nil, err
	}
	if req.UserID == "" || req.AdminID == "" {
		return nil, errors.NewValidationError("userId and adminId are required")
	}

	result := &Result{UserID: req.UserID, Adjustments: []models.Adjustment{}}
	err = s.store.WithTx(ctx, func(q *store.Queries) error {
		admin, err := q.GetUser(ctx, req.AdminID)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewNotAdminError(req.AdminID)
		}
		if err != nil {
			return errors.WrapDatabase("get admin", err)
		}
		if !admin.IsAdmin() {
			return errors.NewNotAdminError(req.AdminID)
		}

		target, err := q.GetUserForUpdate(ctx, req.UserID)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewUserNotFoundError(req.UserID)
		}
		if err != nil {
			return errors.WrapDatabase("lock user", err)
		}

		if req.Key != "" {
			prior, err := q.AdjustmentsByRequest(ctx, req.Key)
			if err != nil {
				return errors.WrapDatabase("find request", err)
			}
			if len(prior) > 0 {
				result.Adjustments, result.Replayed = prior, true
				return nil
			}
		}

		changes, err := mutate(ctx, q, target)
		if err != nil {
			return errors.WrapDatabase("apply adjustment", err)
		}

		now := s.now().UTC()
		for _, c := range changes {
			adj := models.Adjustment{
				ID:         uuid.NewString(),
				UserID:     req.UserID,
				AdminID:    req.AdminID,
				Kind:       kind,
				Field:      c.field,
				OldValue:   c.oldValue,
				NewValue:   c.newValue,
				Reason:     reason,
				RequestKey: req.Key,
				CreatedAt:  now,
			}
			if err := q.InsertAdjustment(ctx, &adj); err != nil {
				return errors.WrapDatabase("insert adjustment", err)
			}
			result.Adjustments = append(result.Adjustments, adj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Changed = len(result.Adjustments) > 0
	if result.Replayed {
		s.logger.Info("admin adjustment already applied", map[string]interface{}{
			"userId":     req.UserID,
			"requestKey": req.Key,
		})
		return result, nil
	}
	if !result.Changed {
		return result, nil
	}

	metrics.AdminAdjustments.WithLabelValues(string(kind)).Inc()
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, req.UserID); err != nil {
			s.logger.Warn("entitlement cache invalidation failed", map[string]interface{}{
				"userId": req.UserID,
				"error":  err,
			})
		}
	}
	s.logger.Info("admin adjustment applied", map[string]interface{}{
		"userId":  req.UserID,
		"adminId": req.AdminID,
		"kind":    string(kind),
		"changes": len(result.Adjustments),
	})
	return result, nil
}

func normalizeReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", errors.NewReasonRequiredError("reason is empty")
	}
	if utf8.RuneCountInString(reason) > MaxReasonLength {
		return "", errors.NewReasonRequiredError(fmt.Sprintf("reason exceeds %d characters", MaxReasonLength))
	}
	return reason, nil
}

// AdjustBalance adds to or sets the top-up balance.
func (s *Service) AdjustBalance(ctx context.Context, req Request, mode Mode, amountCents int64) (*Result, error) {
	if !mode.Valid() {
		return nil, errors.NewValidationError("mode must be add or set")
	}

	var delta int64
	res, err := s.apply(ctx, req, models.KindBalance, func(ctx context.Context, q *store.Queries, u *models.User) ([]change, error) {
		next := amountCents
		if mode == ModeAdd {
			next = u.TopUpBalanceCents + amountCents
		}
		delta = next - u.TopUpBalanceCents
		if next < 0 {
			return nil, errors.NewNegativeBalanceError(u.TopUpBalanceCents, delta)
		}
		if delta == 0 {
			return nil, nil
		}
		if err := q.SetBalance(ctx, u.ID, next); err != nil {
			return nil, err
		}
		return []change{{
			field:    "topup_balance_cents",
			oldValue: strconv.FormatInt(u.TopUpBalanceCents, 10),
			newValue: strconv.FormatInt(next, 10),
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	if res.Changed && !res.Replayed && s.alerter != nil && s.alertThreshold > 0 && delta >= s.alertThreshold {
		msg := fmt.Sprintf("Admin %s added %d cents to user %s. Reason: %s",
			req.AdminID, delta, req.UserID, res.Adjustments[0].Reason)
		if err := s.alerter.Alert(ctx, "Large balance adjustment", msg); err != nil {
			s.logger.Warn("large adjustment alert failed", map[string]interface{}{
				"userId": req.UserID,
				"error":  err,
			})
		}
	}
	return res, nil
}

// AdjustUsage adds to or sets one usage counter.
func (s *Service) AdjustUsage(ctx context.Context, req Request, counter models.Action, mode Mode, value int) (*Result, error) {
	if !counter.Valid() {
		return nil, errors.NewValidationError("unknown usage counter: " + string(counter))
	}
	if !mode.Valid() {
		return nil, errors.NewValidationError("mode must be add or set")
	}

	return s.apply(ctx, req, models.KindUsage, func(ctx context.Context, q *store.Queries, u *models.User) ([]change, error) {
		old := u.Used(counter)
		next := value
		if mode == ModeAdd {
			next = old + value
		}
		if next < 0 {
			return nil, errors.NewNegativeUsageError(counter.Column(), next)
		}
		if next == old {
			return nil, nil
		}
		if err := q.SetUsage(ctx, u.ID, counter, next); err != nil {
			return nil, err
		}
		return []change{{field: counter.Column(), oldValue: strconv.Itoa(old), newValue: strconv.Itoa(next)}}, nil
	})
}

// ResetUsage zeroes both counters.
func (s *Service) ResetUsage(ctx context.Context, req Request) (*Result, error) {
	return s.apply(ctx, req, models.KindUsageReset, func(ctx context.Context, q *store.Queries, u *models.User) ([]change, error) {
		var changes []change
		for _, a := range []models.Action{models.ActionInterview, models.ActionResumeMatch} {
			if used := u.Used(a); used != 0 {
				changes = append(changes, change{field: a.Column(), oldValue: strconv.Itoa(used), newValue: "0"})
			}
		}
		if len(changes) == 0 {
			return nil, nil
		}
		return changes, q.ResetUsage(ctx, u.ID)
	})
}

func (s *Service) SetTier(ctx context.Context, req Request, tier string) (*Result, error) {
	if !tiers.Valid(tier) {
		return nil, errors.NewInvalidTierError(tier)
	}
	return s.apply(ctx, req, models.KindTier, func(ctx context.Context, q *store.Queries, u *models.User) ([]change, error) {
		if u.Tier == tier {
			return nil, nil
		}
		if err := q.SetTier(ctx, u.ID, tier); err != nil {
			return nil, err
		}
		return []change{{field: "subscription_tier", oldValue: u.Tier, newValue: tier}}, nil
	})
}

func (s *Service) SetStatus(ctx context.Context, req Request, status models.SubscriptionStatus) (*Result, error) {
	if !status.Valid() {
		return nil, errors.NewInvalidStatusError(string(status))
	}
	return s.apply(ctx, req, models.KindStatus, func(ctx context.Context, q *store.Queries, u *models.User) ([]change, error) {
		if u.Status == status {
			return nil, nil
		}
		if err := q.SetStatus(ctx, u.ID, status); err != nil {
			return nil, err
		}
		return []change{{field: "subscription_status", oldValue: string(u.Status), newValue: string(status)}}, nil
	})
}

// SetRole changes a user's role. Admins cannot demote themselves.
func (s *Service) SetRole(ctx context.Context, req Request, role models.Role) (*Result, error) {
	if !role.Valid() {
		return nil, errors.NewInvalidRoleError(string(role))
	}
	if req.AdminID == req.UserID && role != models.RoleAdmin {
		return nil, errors.NewSelfDemotionError(req.AdminID)
	}
	return s.apply(ctx, req, models.KindRole, func(ctx context.Context, q *store.Queries, u *models.User) ([]change, error) {
		if u.Role == role {
			return nil, nil
		}
		if err := q.SetRole(ctx, u.ID, role); err != nil {
			return nil, err
		}
		return []change{{field: "role", oldValue: string(u.Role), newValue: string(role)}}, nil
	})
}

// SetCustomLimits sets the custom tier overrides. nil clears an override and
// -1 means unlimited.
func (s *Service) SetCustomLimits(ctx context.Context, req Request, interviews, resumeMatches *int) (*Result, error) {
	for name, v := range map[string]*int{"interviews": interviews, "resumeMatches": resumeMatches} {
		if v != nil && *v < tiers.Unlimited {
			return nil, errors.NewValidationError(fmt.Sprintf("%s limit must be >= -1", name))
		}
	}

	return s.apply(ctx, req, models.KindCustomLimits, func(ctx context.Context, q *store.Queries, u *models.User) ([]change, error) {
		var changes []change
		if !equalLimit(u.CustomMaxInterviews, interviews) {
			changes = append(changes, change{
				field:    "custom_max_interviews",
				oldValue: formatLimit(u.CustomMaxInterviews),
				newValue: formatLimit(interviews),
			})
		}
		if !equalLimit(u.CustomMaxResumeMatches, resumeMatches) {
			changes = append(changes, change{
				field:    "custom_max_resume_matches",
				oldValue: formatLimit(u.CustomMaxResumeMatches),
				newValue: formatLimit(resumeMatches),
			})
		}
		if len(changes) == 0 {
			return nil, nil
		}
		return changes, q.SetCustomLimits(ctx, u.ID, interviews, resumeMatches)
	})
}

func equalLimit(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func formatLimit(v *int) string {
	if v == nil {
		return "null"
	}
	return strconv.Itoa(*v)
}

// History returns a user's adjustments, newest first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]models.Adjustment, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	out, err := s.store.ListAdjustments(ctx, userID, limit)
	if err != nil {
		return nil, errors.WrapDatabase("list adjustments", err)
	}
	if out == nil {
		out = []models.Adjustment{}
	}
	return out, nil
}
