package entitlement

import (
	"time"

	"github.com/picha-hub/picha_portal/internal/upstream"
)

// SelectActive picks the subscription that currently grants entitlement: its
// status is active and it has no end date or ends after now. When several
// qualify the one with the latest start date wins; a missing start date
// sorts oldest, and equal start dates keep the API's order.
func SelectActive(subs []upstream.Subscription, now time.Time) *upstream.Subscription {
	var best *upstream.Subscription
	for i := range subs {
		s := &subs[i]
		if s.Status != upstream.StatusActive {
			continue
		}
		if s.EndDate != nil && !s.EndDate.After(now) {
			continue
		}
		if best == nil || startsAfter(s, best) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	picked := *best
	return &picked
}

func startsAfter(a, b *upstream.Subscription) bool {
	switch {
	case a.StartDate == nil:
		return false
	case b.StartDate == nil:
		return true
	default:
		return a.StartDate.After(*b.StartDate)
	}
}
