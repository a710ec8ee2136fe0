package entitlement

import (
	"github.com/picha-hub/picha_portal/internal/identity"
	"github.com/picha-hub/picha_portal/internal/upstream"
)

// Limits is the entitlement payload attached to a subscription.
type Limits = upstream.Limits

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// FallbackLimits is what the portal displays when the API cannot tell it the
// real limits. It is a display default only: the API enforces the real
// quotas and may disagree with this table.
var FallbackLimits = map[identity.Tier]Limits{
	identity.TierFree: {
		ProposalsPerMonth: 3,
		ActiveRequests:    3,
		CanSeeBudget:      false,
		Priority:          PriorityLow,
		VerificationBadge: false,
	},
	identity.TierBasic: {
		ProposalsPerMonth: 40,
		ActiveRequests:    10,
		CanSeeBudget:      true,
		Priority:          PriorityMedium,
		VerificationBadge: true,
	},
	identity.TierPro: {
		ProposalsPerMonth: 200,
		ActiveRequests:    30,
		CanSeeBudget:      true,
		Priority:          PriorityHigh,
		VerificationBadge: true,
	},
}

// Fallback returns the display default for tier; unknown tiers get free.
func Fallback(tier identity.Tier) Limits {
	return FallbackLimits[tier.Normalize()]
}
