package entitlement

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/picha-hub/picha_portal/internal/identity"
	"github.com/picha-hub/picha_portal/internal/logging"
	"github.com/picha-hub/picha_portal/internal/upstream"
)

type fakeSubscriptions struct {
	listCalls   atomic.Int32
	cancelCalls atomic.Int32
	gate        chan struct{}

	mu      sync.Mutex
	subs    map[string][]upstream.Subscription
	limits  map[string]upstream.Limits
	listErr error
	limErr  error
	create  upstream.CreateSubscriptionResult
	created []upstream.CreateSubscriptionInput
}

func (f *fakeSubscriptions) ListSubscriptions(ctx context.Context, userID string) ([]upstream.Subscription, error) {
	f.listCalls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.subs[userID], nil
}

func (f *fakeSubscriptions) SubscriptionLimits(_ context.Context, id string) (upstream.Limits, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.limErr != nil {
		return upstream.Limits{}, f.limErr
	}
	l, ok := f.limits[id]
	if !ok {
		return upstream.Limits{}, &upstream.APIError{Status: http.StatusNotFound, Message: "not found"}
	}
	return l, nil
}

func (f *fakeSubscriptions) CreateSubscription(_ context.Context, in upstream.CreateSubscriptionInput) (upstream.CreateSubscriptionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return f.create, nil
}

func (f *fakeSubscriptions) CancelSubscription(_ context.Context, id string) (upstream.Subscription, error) {
	f.cancelCalls.Add(1)
	return upstream.Subscription{ID: id, Status: upstream.StatusCancelled}, nil
}

func newTestCache(t *testing.T, api SubscriptionAPI) *Cache {
	t.Helper()
	c := NewCache(api, logging.Discard(), WithFetchTimeout(time.Second))
	t.Cleanup(c.Close)
	return c
}

func waitSettled(t *testing.T, c *Cache) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func user(id string, tier identity.Tier) *identity.Identity {
	return &identity.Identity{ID: id, Role: identity.RoleCreative, Tier: tier}
}

func TestFallbackForProTierOnFailure(t *testing.T) {
	api := &fakeSubscriptions{listErr: errors.New("connection refused")}
	c := newTestCache(t, api)

	c.OnIdentityChange(nil, user("u1", identity.TierPro))
	waitSettled(t, c)

	snap := c.Snapshot()
	want := Limits{ProposalsPerMonth: 200, ActiveRequests: 30, CanSeeBudget: true, Priority: "high", VerificationBadge: true}
	if snap.Limits == nil || !reflect.DeepEqual(*snap.Limits, want) {
		t.Fatalf("expected pro fallback %+v, got %+v", want, snap.Limits)
	}
	if snap.Source != SourceFallback || snap.Loading {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestFallbackWhenNoActiveSubscription(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	api := &fakeSubscriptions{subs: map[string][]upstream.Subscription{
		"u1": {
			{ID: "s1", Status: upstream.StatusCancelled},
			{ID: "s2", Status: upstream.StatusActive, EndDate: &past},
		},
	}}
	c := newTestCache(t, api)

	c.OnIdentityChange(nil, user("u1", identity.TierBasic))
	waitSettled(t, c)

	snap := c.Snapshot()
	if snap.Limits == nil || snap.Limits.ProposalsPerMonth != 40 || snap.Subscription != nil {
		t.Fatalf("expected basic fallback without subscription, got %+v", snap)
	}
}

func TestFallbackWhenLimitsFail(t *testing.T) {
	api := &fakeSubscriptions{
		subs:   map[string][]upstream.Subscription{"u1": {{ID: "s1", Status: upstream.StatusActive}}},
		limErr: errors.New("boom"),
	}
	c := newTestCache(t, api)

	c.OnIdentityChange(nil, user("u1", ""))
	waitSettled(t, c)

	snap := c.Snapshot()
	if snap.Limits == nil || snap.Limits.ProposalsPerMonth != 3 || snap.Limits.CanSeeBudget {
		t.Fatalf("expected free fallback, got %+v", snap.Limits)
	}
	if snap.Subscription == nil || snap.Subscription.ID != "s1" {
		t.Fatalf("expected active subscription kept, got %+v", snap.Subscription)
	}
}

func TestSubscriptionLimitsApplied(t *testing.T) {
	api := &fakeSubscriptions{
		subs:   map[string][]upstream.Subscription{"u1": {{ID: "s1", Status: upstream.StatusActive}}},
		limits: map[string]upstream.Limits{"s1": {ProposalsPerMonth: 40, CanSeeBudget: true, Usage: &upstream.Usage{RemainingProposals: 7}}},
	}
	c := newTestCache(t, api)

	c.OnIdentityChange(nil, user("u1", identity.TierBasic))
	waitSettled(t, c)

	if c.Snapshot().Source != SourceSubscription {
		t.Fatalf("expected subscription source")
	}
	if got := c.RemainingProposals(); got != 7 {
		t.Fatalf("expected 7 remaining, got %d", got)
	}
	if !c.CanSubmitProposal() || !c.CanSeeBudget() {
		t.Fatalf("expected submit and budget allowed")
	}
}

func TestIdentitySwitchClearsBeforeFetch(t *testing.T) {
	api := &fakeSubscriptions{
		subs:   map[string][]upstream.Subscription{"a": {{ID: "sa", Status: upstream.StatusActive}}},
		limits: map[string]upstream.Limits{"sa": {ProposalsPerMonth: 200, CanSeeBudget: true}},
	}
	c := newTestCache(t, api)
	c.OnIdentityChange(nil, user("a", identity.TierPro))
	waitSettled(t, c)

	api.gate = make(chan struct{})
	c.OnIdentityChange(user("a", identity.TierPro), user("b", identity.TierFree))

	snap := c.Snapshot()
	if snap.OwnerID != "b" || snap.Limits != nil || !snap.Loading {
		t.Fatalf("expected cleared loading state for b, got %+v", snap)
	}
	if c.CanSeeBudget() {
		t.Fatalf("previous owner's budget flag leaked")
	}

	close(api.gate)
	waitSettled(t, c)
	if got := c.Snapshot(); got.OwnerID != "b" || got.Limits == nil || got.Limits.CanSeeBudget {
		t.Fatalf("expected free fallback for b, got %+v", got)
	}
}

func TestLogoutClearsImmediately(t *testing.T) {
	api := &fakeSubscriptions{}
	c := newTestCache(t, api)
	c.OnIdentityChange(nil, user("a", identity.TierPro))
	waitSettled(t, c)

	c.OnIdentityChange(user("a", identity.TierPro), nil)

	snap := c.Snapshot()
	if snap != (Snapshot{}) {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
	if c.RemainingProposals() != 0 || c.CanSubmitProposal() || c.CanSeeBudget() {
		t.Fatalf("expected all derived values false/zero")
	}
}

func TestStaleFetchDiscardedAfterLogout(t *testing.T) {
	api := &fakeSubscriptions{gate: make(chan struct{})}
	c := NewCache(api, logging.Discard())

	c.OnIdentityChange(nil, user("a", identity.TierPro))
	c.OnIdentityChange(user("a", identity.TierPro), nil)
	close(api.gate)
	c.Close()

	if snap := c.Snapshot(); snap.Limits != nil || snap.OwnerID != "" {
		t.Fatalf("stale fetch applied: %+v", snap)
	}
}

func TestStaleFetchDiscardedAfterSwitch(t *testing.T) {
	api := &fakeSubscriptions{gate: make(chan struct{})}
	c := newTestCache(t, api)

	c.OnIdentityChange(nil, user("a", identity.TierPro))
	c.OnIdentityChange(user("a", identity.TierPro), user("b", identity.TierFree))
	close(api.gate)
	waitSettled(t, c)

	snap := c.Snapshot()
	if snap.OwnerID != "b" || snap.Limits == nil || snap.Limits.ProposalsPerMonth != 3 {
		t.Fatalf("expected b's free fallback, got %+v", snap)
	}
}

func TestSameIdentityDoesNotRefetch(t *testing.T) {
	api := &fakeSubscriptions{}
	c := newTestCache(t, api)

	c.OnIdentityChange(nil, user("a", identity.TierFree))
	waitSettled(t, c)
	c.OnIdentityChange(user("a", identity.TierFree), user("a", identity.TierBasic))
	waitSettled(t, c)

	if got := api.listCalls.Load(); got != 1 {
		t.Fatalf("expected 1 fetch, got %d", got)
	}
	if c.Snapshot().Tier != identity.TierBasic {
		t.Fatalf("expected tier label to follow the identity")
	}
}

func TestSnapshotForOtherIdentityIsEmpty(t *testing.T) {
	c := newTestCache(t, &fakeSubscriptions{})
	c.OnIdentityChange(nil, user("a", identity.TierPro))
	waitSettled(t, c)

	if snap := c.SnapshotFor(user("b", identity.TierPro)); snap.Limits != nil {
		t.Fatalf("expected empty snapshot for another identity")
	}
	if snap := c.SnapshotFor(user("a", identity.TierPro)); snap.Limits == nil {
		t.Fatalf("expected limits for owner")
	}
}

func TestRemainingAndCanSubmitDisagreeWithoutUsage(t *testing.T) {
	cases := []struct {
		name      string
		limits    *Limits
		remaining int
		canSubmit bool
	}{
		{name: "no limits", limits: nil, remaining: 0, canSubmit: false},
		{name: "untracked usage", limits: &Limits{ProposalsPerMonth: 40}, remaining: 40, canSubmit: false},
		{name: "tracked usage", limits: &Limits{ProposalsPerMonth: 40, Usage: &upstream.Usage{RemainingProposals: 5}}, remaining: 5, canSubmit: true},
		{name: "exhausted", limits: &Limits{ProposalsPerMonth: 40, Usage: &upstream.Usage{RemainingProposals: 0}}, remaining: 0, canSubmit: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := Snapshot{Limits: tc.limits}
			if got := snap.RemainingProposals(); got != tc.remaining {
				t.Fatalf("remaining: expected %d, got %d", tc.remaining, got)
			}
			if got := snap.CanSubmitProposal(); got != tc.canSubmit {
				t.Fatalf("canSubmit: expected %v, got %v", tc.canSubmit, got)
			}
		})
	}
}

func TestCancelSubscriptionPatchesAndRefreshes(t *testing.T) {
	api := &fakeSubscriptions{
		subs:   map[string][]upstream.Subscription{"a": {{ID: "s1", Status: upstream.StatusActive}}},
		limits: map[string]upstream.Limits{"s1": {ProposalsPerMonth: 40}},
	}
	c := newTestCache(t, api)
	c.OnIdentityChange(nil, user("a", identity.TierBasic))
	waitSettled(t, c)

	api.gate = make(chan struct{})
	if _, err := c.CancelSubscription(context.Background(), "s1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	snap := c.Snapshot()
	if snap.Subscription == nil || snap.Subscription.Status != upstream.StatusCancelled || !snap.Loading {
		t.Fatalf("expected cancelled status while refreshing, got %+v", snap)
	}

	api.mu.Lock()
	api.subs["a"][0].Status = upstream.StatusCancelled
	api.mu.Unlock()
	close(api.gate)
	waitSettled(t, c)

	if got := api.listCalls.Load(); got != 2 {
		t.Fatalf("expected refresh fetch, got %d list calls", got)
	}
	if snap := c.Snapshot(); snap.Source != SourceFallback || snap.Limits.ProposalsPerMonth != 40 {
		t.Fatalf("expected basic fallback after cancel, got %+v", snap)
	}
}

func TestCreateSubscription(t *testing.T) {
	api := &fakeSubscriptions{create: upstream.CreateSubscriptionResult{Success: true, PaymentURL: "https://checkout.paystack.com/abc"}}
	c := newTestCache(t, api)

	if res := c.CreateSubscription(context.Background(), "gold", "monthly"); res.OK || res.Message == "" {
		t.Fatalf("expected invalid plan rejected, got %+v", res)
	}
	if res := c.CreateSubscription(context.Background(), "pro", "weekly"); res.OK {
		t.Fatalf("expected invalid period rejected")
	}
	if len(api.created) != 0 {
		t.Fatalf("invalid input reached the api")
	}

	res := c.CreateSubscription(context.Background(), " Pro ", "YEARLY")
	if !res.OK || res.PaymentURL == "" {
		t.Fatalf("expected ok with payment url, got %+v", res)
	}
	if api.created[0] != (upstream.CreateSubscriptionInput{Plan: "pro", Period: "yearly"}) {
		t.Fatalf("unexpected input %+v", api.created[0])
	}
	if api.listCalls.Load() != 0 {
		t.Fatalf("create must not touch the cache")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	api := &fakeSubscriptions{gate: make(chan struct{})}
	c := newTestCache(t, api)
	c.OnIdentityChange(nil, user("a", identity.TierFree))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	close(api.gate)
}
