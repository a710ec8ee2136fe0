// Package marketplace holds the portal-side gating applied to marketplace
// listings and proposals. The API stays authoritative; these checks only
// decide what the portal shows and forwards.
package marketplace

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/picha-hub/picha_portal/internal/upstream"
)

const maxProposalMessage = 2000

var (
	ErrProposalQuota   = errors.New("no proposals left on your plan this period")
	ErrProposalMessage = errors.New("proposal message is required")
	ErrProposalTooLong = fmt.Errorf("proposal message must be at most %d characters", maxProposalMessage)
	ErrProposalPrice   = errors.New("proposal price must be positive")
)

// VisibleRequests returns a copy of reqs with budgets removed unless the
// viewer's plan allows seeing them.
func VisibleRequests(reqs []upstream.Request, canSeeBudget bool) []upstream.Request {
	out := make([]upstream.Request, len(reqs))
	copy(out, reqs)
	if canSeeBudget {
		return out
	}
	for i := range out {
		out[i].Budget = nil
	}
	return out
}

// PrepareProposal validates a proposal and checks the viewer's quota.
func PrepareProposal(in upstream.ProposalInput, canSubmit bool) (upstream.ProposalInput, error) {
	if !canSubmit {
		return upstream.ProposalInput{}, ErrProposalQuota
	}
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" {
		return upstream.ProposalInput{}, ErrProposalMessage
	}
	if utf8.RuneCountInString(in.Message) > maxProposalMessage {
		return upstream.ProposalInput{}, ErrProposalTooLong
	}
	if in.Price <= 0 {
		return upstream.ProposalInput{}, ErrProposalPrice
	}
	return in, nil
}
