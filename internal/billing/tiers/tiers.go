// Package tiers holds the subscription plan catalogue.
package tiers

import (
	"sort"

	"robohire-billing/internal/models"
)

// Unlimited marks a limit that is never reached.
const Unlimited = -1

const (
	Free     = "free"
	Starter  = "starter"
	Growth   = "growth"
	Business = "business"
	Custom   = "custom"
)

type Tier struct {
	Name              string `json:"name"`
	DisplayName       string `json:"displayName"`
	MonthlyPriceCents int64  `json:"monthlyPriceCents"`
	MaxInterviews     int    `json:"maxInterviews"`
	MaxResumeMatches  int    `json:"maxResumeMatches"`
	Purchasable       bool   `json:"purchasable"`
}

// Overrides are per-user limits applied to the custom tier.
type Overrides struct {
	MaxInterviews    *int
	MaxResumeMatches *int
}

// OverridesFor extracts the custom limit overrides stored on a user.
func OverridesFor(u *models.User) Overrides {
	return Overrides{
		MaxInterviews:    u.CustomMaxInterviews,
		MaxResumeMatches: u.CustomMaxResumeMatches,
	}
}

var catalogue = map[string]Tier{
	Free: {
		Name:             Free,
		DisplayName:      "Free",
		MaxInterviews:    2,
		MaxResumeMatches: 10,
	},
	Starter: {
		Name:              Starter,
		DisplayName:       "Starter",
		MonthlyPriceCents: 2900,
		MaxInterviews:     15,
		MaxResumeMatches:  100,
		Purchasable:       true,
	},
	Growth: {
		Name:              Growth,
		DisplayName:       "Growth",
		MonthlyPriceCents: 9900,
		MaxInterviews:     60,
		MaxResumeMatches:  500,
		Purchasable:       true,
	},
	Business: {
		Name:              Business,
		DisplayName:       "Business",
		MonthlyPriceCents: 29900,
		MaxInterviews:     200,
		MaxResumeMatches:  2000,
		Purchasable:       true,
	},
	Custom: {
		Name:        Custom,
		DisplayName: "Custom",
	},
}

func Get(name string) (Tier, bool) {
	t, ok := catalogue[name]
	return t, ok
}

func Valid(name string) bool {
	_, ok := catalogue[name]
	return ok
}

// Names returns the catalogue tier names in price order.
func Names() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := catalogue[names[i]], catalogue[names[j]]
		if a.MonthlyPriceCents != b.MonthlyPriceCents {
			return a.MonthlyPriceCents < b.MonthlyPriceCents
		}
		return a.Name < b.Name
	})
	return names
}

// Limit returns the monthly allowance of action on tier. Unknown tiers get the
// free allowance; the custom tier reads the overrides and a missing override is 0.
func Limit(tier string, action models.Action, o Overrides) int {
	if tier == Custom {
		var v *int
		if action == models.ActionResumeMatch {
			v = o.MaxResumeMatches
		} else {
			v = o.MaxInterviews
		}
		if v == nil {
			return 0
		}
		return *v
	}

	t, ok := catalogue[tier]
	if !ok {
		t = catalogue[Free]
	}
	if action == models.ActionResumeMatch {
		return t.MaxResumeMatches
	}
	return t.MaxInterviews
}

// Remaining returns how many more actions fit in the allowance, or Unlimited.
func Remaining(limit, used int) int {
	if limit == Unlimited {
		return Unlimited
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// PriceBook maps purchasable tiers to payment provider price ids.
type PriceBook map[string]string

// PriceFor returns the configured price id for a purchasable tier.
func (p PriceBook) PriceFor(tier string) (string, bool) {
	t, ok := catalogue[tier]
	if !ok || !t.Purchasable {
		return "", false
	}
	id, ok := p[tier]
	return id, ok && id != ""
}

// TierForPrice resolves a price id back to its tier.
func (p PriceBook) TierForPrice(priceID string) (string, bool) {
	for tier, id := range p {
		if id == priceID && id != "" {
			return tier, true
		}
	}
	return "", false
}
