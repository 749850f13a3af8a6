// Package subscribers manages the subscriber roster: who receives
// briefs for which manager, and at what tier.
package subscribers

import "fmt"

// Tier is a subscription level.
type Tier string

const (
	TierNano    Tier = "nano"
	TierMini    Tier = "mini"
	TierPremium Tier = "premium"
)

// ValidateTier checks that a tier value is one of the known levels.
func ValidateTier(t string) (Tier, error) {
	switch Tier(t) {
	case TierNano, TierMini, TierPremium:
		return Tier(t), nil
	default:
		return "", fmt.Errorf("tier must be one of: nano, mini, premium (got %q)", t)
	}
}

// Subscriber is one (email, manager) subscription.
type Subscriber struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	CIK       string `json:"cik"`
	Tier      Tier   `json:"tier"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
	Notes     string `json:"notes,omitempty"`
	IsComped  bool   `json:"is_comped"`
}

// Active reports whether the subscriber should receive deliveries.
func (s Subscriber) Active() bool {
	return s.Status == "active"
}
