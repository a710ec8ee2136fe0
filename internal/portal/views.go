package portal

import (
	"github.com/picha-hub/picha_portal/internal/entitlement"
	"github.com/picha-hub/picha_portal/internal/identity"
	"github.com/picha-hub/picha_portal/internal/notification"
	"github.com/picha-hub/picha_portal/internal/upstream"
)

// EntitlementView is the entitlement as rendered to the browser, with the
// derived helpers precomputed.
type EntitlementView struct {
	Tier               identity.Tier          `json:"tier,omitempty"`
	Limits             *entitlement.Limits    `json:"limits,omitempty"`
	Subscription       *upstream.Subscription `json:"subscription,omitempty"`
	Source             entitlement.Source     `json:"source,omitempty"`
	Loading            bool                   `json:"loading"`
	RemainingProposals int                    `json:"remainingProposals"`
	CanSubmitProposal  bool                   `json:"canSubmitProposal"`
	CanSeeBudget       bool                   `json:"canSeeBudget"`
}

func newEntitlementView(s entitlement.Snapshot) EntitlementView {
	return EntitlementView{
		Tier:               s.Tier,
		Limits:             s.Limits,
		Subscription:       s.Subscription,
		Source:             s.Source,
		Loading:            s.Loading,
		RemainingProposals: s.RemainingProposals(),
		CanSubmitProposal:  s.CanSubmitProposal(),
		CanSeeBudget:       s.CanSeeBudget(),
	}
}

// View is the envelope of every rendered page.
type View struct {
	Name        string                 `json:"view"`
	User        *identity.Identity     `json:"user,omitempty"`
	Entitlement *EntitlementView       `json:"entitlement,omitempty"`
	Next        string                 `json:"next,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Data        any                    `json:"data,omitempty"`
	Toasts      []notification.Message `json:"toasts,omitempty"`
}

type credentialsForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Next     string `json:"next" form:"next"`
}

type registrationForm struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Name     string `json:"name" form:"name"`
	Phone    string `json:"phone" form:"phone"`
	Role     string `json:"role" form:"role"`
}

type subscriptionForm struct {
	Plan   string `json:"plan" form:"plan"`
	Period string `json:"period" form:"period"`
}

type proposalForm struct {
	Message string `json:"message" form:"message"`
	Price   int64  `json:"price" form:"price"`
}
