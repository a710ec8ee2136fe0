// Package entitlement keeps subscription-derived limits in step with the
// visitor's identity.
package entitlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/picha-hub/picha_portal/internal/identity"
	"github.com/picha-hub/picha_portal/internal/metrics"
	"github.com/picha-hub/picha_portal/internal/upstream"
)

const defaultFetchTimeout = 10 * time.Second

// Source records where the cached limits came from.
type Source string

const (
	SourceNone         Source = ""
	SourceSubscription Source = "subscription"
	SourceFallback     Source = "fallback"
)

// SubscriptionAPI is the subset of the marketplace API the cache calls.
type SubscriptionAPI interface {
	ListSubscriptions(ctx context.Context, userID string) ([]upstream.Subscription, error)
	SubscriptionLimits(ctx context.Context, subscriptionID string) (upstream.Limits, error)
	CreateSubscription(ctx context.Context, input upstream.CreateSubscriptionInput) (upstream.CreateSubscriptionResult, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (upstream.Subscription, error)
}

// Snapshot is a copy of the cache state. OwnerID is empty when nobody is
// logged in.
type Snapshot struct {
	OwnerID      string                 `json:"ownerId,omitempty"`
	Tier         identity.Tier          `json:"tier,omitempty"`
	Limits       *Limits                `json:"limits,omitempty"`
	Subscription *upstream.Subscription `json:"subscription,omitempty"`
	Source       Source                 `json:"source,omitempty"`
	Loading      bool                   `json:"loading"`
}

// RemainingProposals returns the tracked remaining count when usage is
// present, otherwise the whole period quota, otherwise 0.
func (s Snapshot) RemainingProposals() int {
	if s.Limits == nil {
		return 0
	}
	if s.Limits.Usage != nil {
		return s.Limits.Usage.RemainingProposals
	}
	return s.Limits.ProposalsPerMonth
}

// CanSubmitProposal is true only when usage is tracked and has proposals
// left. Untracked usage counts as "not allowed", unlike RemainingProposals.
func (s Snapshot) CanSubmitProposal() bool {
	return s.Limits != nil && s.Limits.Usage != nil && s.Limits.Usage.RemainingProposals > 0
}

// CanSeeBudget reports the budget visibility flag, false without limits.
func (s Snapshot) CanSeeBudget() bool {
	return s.Limits != nil && s.Limits.CanSeeBudget
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source used to judge subscription expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithFetchTimeout bounds each background fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) { c.fetchTimeout = d }
}

// Cache holds one visitor's entitlement. It is driven by identity
// transitions from a session.Store (see OnIdentityChange).
type Cache struct {
	api          SubscriptionAPI
	logger       *slog.Logger
	now          func() time.Time
	fetchTimeout time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu      sync.Mutex
	state   Snapshot
	gen     uint64
	settled chan struct{}
}

// NewCache builds an empty cache.
func NewCache(api SubscriptionAPI, logger *slog.Logger, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		api:          api,
		logger:       logger.With(slog.String("component", "entitlement")),
		now:          time.Now,
		fetchTimeout: defaultFetchTimeout,
		baseCtx:      ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnIdentityChange applies the invalidation rules. It clears stale state
// before returning, so it must be registered as a synchronous observer.
func (c *Cache) OnIdentityChange(_, next *identity.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if next == nil {
		c.gen++
		c.state = Snapshot{}
		c.settleLocked()
		return
	}
	if next.ID == c.state.OwnerID {
		// a local profile patch; keep limits, track the label for fallback
		c.state.Tier = next.Tier
		return
	}

	c.gen++
	c.state = Snapshot{OwnerID: next.ID, Tier: next.Tier, Loading: true}
	c.startLocked(c.gen, next.ID, next.Tier)
}

// Refresh refetches limits for the current owner in the background. Cached
// limits stay visible until the new result lands.
func (c *Cache) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.OwnerID == "" {
		return
	}
	c.gen++
	c.state.Loading = true
	c.startLocked(c.gen, c.state.OwnerID, c.state.Tier)
}

// Wait blocks until no fetch is in flight or ctx is done.
func (c *Cache) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		loading, ch := c.state.Loading, c.settled
		c.mu.Unlock()
		if !loading || ch == nil {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Snapshot returns a copy of the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copySnapshot(c.state)
}

// SnapshotFor returns the state only if it belongs to id; otherwise an empty
// snapshot. Readers holding an identity use this so they never pair it with
// another user's entitlement.
func (c *Cache) SnapshotFor(id *identity.Identity) Snapshot {
	snap := c.Snapshot()
	if id == nil || snap.OwnerID != id.ID {
		return Snapshot{}
	}
	return snap
}

// RemainingProposals is Snapshot().RemainingProposals().
func (c *Cache) RemainingProposals() int { return c.Snapshot().RemainingProposals() }

// CanSubmitProposal is Snapshot().CanSubmitProposal().
func (c *Cache) CanSubmitProposal() bool { return c.Snapshot().CanSubmitProposal() }

// CanSeeBudget is Snapshot().CanSeeBudget().
func (c *Cache) CanSeeBudget() bool { return c.Snapshot().CanSeeBudget() }

// Close cancels in-flight fetches and waits for them to exit.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// startLocked launches a fetch tagged with gen. c.mu must be held.
func (c *Cache) startLocked(gen uint64, ownerID string, tier identity.Tier) {
	if c.settled != nil {
		close(c.settled)
	}
	c.settled = make(chan struct{})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.fetch(gen, ownerID, tier)
	}()
}

// settleLocked wakes waiters. c.mu must be held.
func (c *Cache) settleLocked() {
	if c.settled != nil {
		close(c.settled)
		c.settled = nil
	}
}

func (c *Cache) fetch(gen uint64, ownerID string, tier identity.Tier) {
	ctx, cancel := context.WithTimeout(c.baseCtx, c.fetchTimeout)
	defer cancel()

	limits, sub, source, reason := c.resolve(ctx, ownerID, tier)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || ownerID != c.state.OwnerID {
		metrics.EntitlementStaleDiscardsTotal.Inc()
		c.logger.Debug("discarding stale entitlement", slog.String("user_id", ownerID))
		return
	}

	metrics.EntitlementResolutionsTotal.WithLabelValues(string(source), reason).Inc()
	c.state.Limits = &limits
	c.state.Subscription = sub
	c.state.Source = source
	c.state.Loading = false
	c.settleLocked()
}

func (c *Cache) resolve(ctx context.Context, ownerID string, tier identity.Tier) (Limits, *upstream.Subscription, Source, string) {
	subs, err := c.api.ListSubscriptions(ctx, ownerID)
	if err != nil {
		c.logger.Warn("list subscriptions failed, using fallback limits",
			slog.String("user_id", ownerID), slog.Any("error", err))
		return Fallback(tier), nil, SourceFallback, "list_failed"
	}

	active := SelectActive(subs, c.now())
	if active == nil {
		return Fallback(tier), nil, SourceFallback, "no_active_subscription"
	}

	limits, err := c.api.SubscriptionLimits(ctx, active.ID)
	if err != nil {
		c.logger.Warn("fetch limits failed, using fallback limits",
			slog.String("user_id", ownerID),
			slog.String("subscription_id", active.ID),
			slog.Any("error", err))
		return Fallback(tier), active, SourceFallback, "limits_failed"
	}
	return limits, active, SourceSubscription, "ok"
}

func copySnapshot(s Snapshot) Snapshot {
	if s.Limits != nil {
		l := *s.Limits
		if l.Usage != nil {
			u := *l.Usage
			l.Usage = &u
		}
		s.Limits = &l
	}
	if s.Subscription != nil {
		sub := *s.Subscription
		s.Subscription = &sub
	}
	return s
}
