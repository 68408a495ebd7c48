// Package usage meters interviews and resume matches against tier limits and
// the top-up balance.
package usage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"robohire-billing/internal/billing/store"
	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/common/errors"
	"robohire-billing/internal/common/logger"
	"robohire-billing/internal/common/metrics"
	"robohire-billing/internal/models"
)

type Source string

const (
	SourcePlan    Source = "plan"
	SourceBalance Source = "balance"
)

type ConsumeResult struct {
	UserID       string        `json:"userId"`
	Action       models.Action `json:"action"`
	Source       Source        `json:"source"`
	Used         int           `json:"used"`
	Limit        int           `json:"limit"`
	Remaining    int           `json:"remaining"`
	ChargedCents int64         `json:"chargedCents"`
	BalanceCents int64         `json:"balanceCents"`
	Replayed     bool          `json:"replayed,omitempty"`
}

type Service struct {
	store   *store.Store
	cache   Cache
	pricing Pricing
	grace   time.Duration
	logger  logger.Logger
	now     func() time.Time
}

type Options struct {
	Store   *store.Store
	Cache   Cache
	Pricing Pricing
	Grace   time.Duration
	Logger  logger.Logger
}

func NewService(opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Service{
		store:   opts.Store,
		cache:   opts.Cache,
		pricing: opts.Pricing,
		grace:   opts.Grace,
		logger:  log,
		now:     time.Now,
	}
}

func (s *Service) Pricing() Pricing {
	return s.pricing
}

// Consume records one metered action. The plan allowance is used first, then
// the top-up balance at the overage price. A non-empty requestKey makes the
// call idempotent: the result is stored with the counter change and a repeated
// key returns it without consuming again.
func (s *Service) Consume(ctx context.Context, userID string, action models.Action, requestKey string) (*ConsumeResult, error) {
	if !action.Valid() {
		return nil, errors.NewValidationError("unknown action: " + string(action))
	}

	var result *ConsumeResult
	err := s.store.WithTx(ctx, func(q *store.Queries) error {
		u, err := q.GetUserForUpdate(ctx, userID)
		if stderrors.Is(err, store.ErrNotFound) {
			return errors.NewUserNotFoundError(userID)
		}
		if err != nil {
			return errors.WrapDatabase("lock user", err)
		}

		if requestKey != "" {
			prior, err := s.replay(ctx, q, requestKey)
			if err != nil {
				return err
			}
			if prior != nil {
				result = prior
				return nil
			}
		}

		tier := EffectiveTier(u, s.now(), s.grace)
		limit := tiers.Limit(tier, action, tiers.OverridesFor(u))
		used := u.Used(action)

		source, charge := SourcePlan, int64(0)
		if tiers.Remaining(limit, used) == 0 {
			charge = s.pricing.For(action)
			if charge <= 0 || u.TopUpBalanceCents < charge {
				return limitExceeded(action, used, limit, u.TopUpBalanceCents, charge)
			}
			source = SourceBalance
		}

		c, err := q.IncrementUsage(ctx, userID, action, charge)
		if stderrors.Is(err, store.ErrGuardFailed) {
			return limitExceeded(action, used, limit, u.TopUpBalanceCents, charge)
		}
		if err != nil {
			return errors.WrapDatabase("increment usage", err)
		}

		newUsed := c.InterviewsUsed
		if action == models.ActionResumeMatch {
			newUsed = c.ResumeMatchesUsed
		}
		result = &ConsumeResult{
			UserID:       userID,
			Action:       action,
			Source:       source,
			Used:         newUsed,
			Limit:        limit,
			Remaining:    tiers.Remaining(limit, newUsed),
			ChargedCents: charge,
			BalanceCents: c.BalanceCents,
		}
		if requestKey == "" {
			return nil
		}
		raw, err := json.Marshal(result)
		if err != nil {
			return err
		}
		if err := q.InsertUsageRequest(ctx, requestKey, userID, action, raw); err != nil {
			return errors.WrapDatabase("record request", err)
		}
		return nil
	})
	if err != nil {
		if errors.CodeOf(err) == string(errors.ErrCodeUsageLimitExceeded) {
			metrics.UsageDenied.WithLabelValues(string(action)).Inc()
		}
		return nil, err
	}
	if result.Replayed {
		s.logger.Info("usage request already applied", map[string]interface{}{
			"userId":     userID,
			"requestKey": requestKey,
		})
		return result, nil
	}

	metrics.UsageConsumed.WithLabelValues(string(action), string(result.Source)).Inc()
	s.invalidate(ctx, userID)

	s.logger.Debug("usage consumed", map[string]interface{}{
		"userId":  userID,
		"action":  string(action),
		"source":  string(result.Source),
		"charged": result.ChargedCents,
	})
	return result, nil
}

func (s *Service) replay(ctx context.Context, q *store.Queries, requestKey string) (*ConsumeResult, error) {
	raw, err := q.UsageRequest(ctx, requestKey)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapDatabase("find request", err)
	}
	var prior ConsumeResult
	if err := json.Unmarshal(raw, &prior); err != nil {
		return nil, errors.NewInputParsingError(err)
	}
	prior.Replayed = true
	return &prior, nil
}

func limitExceeded(action models.Action, used, limit int, balance, price int64) error {
	err := errors.NewUsageLimitExceededError(string(action), used, limit)
	err.Metadata["balanceCents"] = balance
	err.Metadata["overageCents"] = price
	return err
}

// Snapshot returns the user's metering state, served from cache when present.
func (s *Service) Snapshot(ctx context.Context, userID string) (*Snapshot, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, userID)
		if err != nil {
			s.logger.Warn("entitlement cache read failed", map[string]interface{}{
				"userId": userID,
				"error":  err,
			})
		} else if cached != nil {
			return cached, nil
		}
	}

	u, err := s.store.GetUser(ctx, userID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.NewUserNotFoundError(userID)
	}
	if err != nil {
		return nil, errors.WrapDatabase("get user", err)
	}

	snap := snapshotOf(u, s.now(), s.grace)
	if s.cache != nil {
		if err := s.cache.Set(ctx, snap); err != nil {
			s.logger.Warn("entitlement cache write failed", map[string]interface{}{
				"userId": userID,
				"error":  err,
			})
		}
	}
	return snap, nil
}

// Reset zeroes both usage counters.
func (s *Service) Reset(ctx context.Context, userID string) error {
	err := s.store.ResetUsage(ctx, userID)
	if stderrors.Is(err, store.ErrGuardFailed) {
		return errors.NewUserNotFoundError(userID)
	}
	if err != nil {
		return errors.WrapDatabase("reset usage", err)
	}
	s.invalidate(ctx, userID)
	s.logger.Info("usage counters reset", map[string]interface{}{"userId": userID})
	return nil
}

// Invalidate drops the cached snapshot. Failures are logged.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	s.invalidate(ctx, userID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("entitlement cache invalidation failed", map[string]interface{}{
			"userId": userID,
			"error":  err,
		})
	}
}
