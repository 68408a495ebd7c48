package usage

import (
	"time"

	"robohire-billing/internal/billing/tiers"
	"robohire-billing/internal/models"
)

// Entitled reports whether the user's paid tier currently applies. A past_due
// subscription keeps its tier until the period end plus grace.
func Entitled(u *models.User, now time.Time, grace time.Duration) bool {
	switch u.Status {
	case models.StatusActive, models.StatusTrialing:
		return true
	case models.StatusPastDue:
		if u.CurrentPeriodEnd == nil {
			return false
		}
		return now.Before(u.CurrentPeriodEnd.Add(grace))
	default:
		return false
	}
}

// EffectiveTier is the tier whose limits apply right now.
func EffectiveTier(u *models.User, now time.Time, grace time.Duration) string {
	if Entitled(u, now, grace) && tiers.Valid(u.Tier) {
		return u.Tier
	}
	return tiers.Free
}

// Pricing is the per-action overage price charged against the top-up balance.
type Pricing struct {
	InterviewCents   int64
	ResumeMatchCents int64
}

func (p Pricing) For(action models.Action) int64 {
	if action == models.ActionResumeMatch {
		return p.ResumeMatchCents
	}
	return p.InterviewCents
}

// Snapshot is a user's metering state.
type Snapshot struct {
	UserID             string                    `json:"userId"`
	Tier               string                    `json:"tier"`
	EffectiveTier      string                    `json:"effectiveTier"`
	Status             models.SubscriptionStatus `json:"status"`
	Entitled           bool                      `json:"entitled"`
	InterviewsUsed     int                       `json:"interviewsUsed"`
	InterviewsLimit    int                       `json:"interviewsLimit"`
	ResumeMatchesUsed  int                       `json:"resumeMatchesUsed"`
	ResumeMatchesLimit int                       `json:"resumeMatchesLimit"`
	BalanceCents       int64                     `json:"balanceCents"`
	CurrentPeriodEnd   *time.Time                `json:"currentPeriodEnd,omitempty"`
}

// Allows reports whether one more action fits the plan allowance or the balance.
func (s *Snapshot) Allows(action models.Action, p Pricing) bool {
	used, limit := s.InterviewsUsed, s.InterviewsLimit
	if action == models.ActionResumeMatch {
		used, limit = s.ResumeMatchesUsed, s.ResumeMatchesLimit
	}
	if tiers.Remaining(limit, used) != 0 {
		return true
	}
	price := p.For(action)
	return price > 0 && s.BalanceCents >= price
}

func snapshotOf(u *models.User, now time.Time, grace time.Duration) *Snapshot {
	tier := EffectiveTier(u, now, grace)
	o := tiers.OverridesFor(u)
	return &Snapshot{
		UserID:             u.ID,
		Tier:               u.Tier,
		EffectiveTier:      tier,
		Status:             u.Status,
		Entitled:           Entitled(u, now, grace),
		InterviewsUsed:     u.InterviewsUsed,
		InterviewsLimit:    tiers.Limit(tier, models.ActionInterview, o),
		ResumeMatchesUsed:  u.ResumeMatchesUsed,
		ResumeMatchesLimit: tiers.Limit(tier, models.ActionResumeMatch, o),
		BalanceCents:       u.TopUpBalanceCents,
		CurrentPeriodEnd:   u.CurrentPeriodEnd,
	}
}
