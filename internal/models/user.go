package models

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusTrialing SubscriptionStatus = "trialing"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// Action is a metered operation counted against a tier's monthly limits.
type Action string

const (
	ActionInterview   Action = "interview"
	ActionResumeMatch Action = "resume_match"
)

func (a Action) Valid() bool {
	return a == ActionInterview || a == ActionResumeMatch
}

// Column returns the users column that counts a.
func (a Action) Column() string {
	if a == ActionResumeMatch {
		return "resume_matches_used"
	}
	return "interviews_used"
}

type User struct {
	ID                     string             `json:"id"`
	Email                  string             `json:"email"`
	Name                   string             `json:"name"`
	Company                string             `json:"company,omitempty"`
	Role                   Role               `json:"role"`
	Tier                   string             `json:"subscriptionTier"`
	Status                 SubscriptionStatus `json:"subscriptionStatus"`
	StripeCustomerID       string             `json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID   string             `json:"stripeSubscriptionId,omitempty"`
	CurrentPeriodEnd       *time.Time         `json:"currentPeriodEnd,omitempty"`
	InterviewsUsed         int                `json:"interviewsUsed"`
	ResumeMatchesUsed      int                `json:"resumeMatchesUsed"`
	CustomMaxInterviews    *int               `json:"customMaxInterviews,omitempty"`
	CustomMaxResumeMatches *int               `json:"customMaxResumeMatches,omitempty"`
	TopUpBalanceCents      int64              `json:"topUpBalanceCents"`
	UsageResetAt           *time.Time         `json:"usageResetAt,omitempty"`
	CreatedAt              time.Time          `json:"createdAt"`
	UpdatedAt              time.Time          `json:"updatedAt"`
}

// Used returns the counter value for a.
func (u *User) Used(a Action) int {
	if a == ActionResumeMatch {
		return u.ResumeMatchesUsed
	}
	return u.InterviewsUsed
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
