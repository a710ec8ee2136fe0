// Package visitor keeps the per-browser state of the portal: one upstream
// client, session store, entitlement cache and toast inbox per visitor.
package visitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/picha-hub/picha_portal/internal/entitlement"
	"github.com/picha-hub/picha_portal/internal/metrics"
	"github.com/picha-hub/picha_portal/internal/notification"
	"github.com/picha-hub/picha_portal/internal/session"
	"github.com/picha-hub/picha_portal/internal/upstream"
)

const (
	defaultMaxVisitors = 10000
	defaultTTL         = 30 * time.Minute
)

// API is everything a visitor needs from the marketplace API.
type API interface {
	session.AuthAPI
	entitlement.SubscriptionAPI
	ListRequests(ctx context.Context) ([]upstream.Request, error)
	SubmitProposal(ctx context.Context, requestID string, input upstream.ProposalInput) (upstream.Proposal, error)
}

// Visitor bundles the stores owned by one portal session.
type Visitor struct {
	ID    string
	API   API
	Store *session.Store
	Cache *entitlement.Cache
	Inbox *notification.Inbox

	evicted atomic.Bool
}

// Options tunes the registry.
type Options struct {
	MaxVisitors  int
	TTL          time.Duration
	FetchTimeout time.Duration
}

// Registry maps portal session ids to visitors. Entries expire after TTL
// without a request; touching an entry restarts its TTL.
type Registry struct {
	newAPI       func() API
	fetchTimeout time.Duration
	logger       *slog.Logger
	lru          *expirable.LRU[string, *Visitor]
}

// NewRegistry builds a registry. newAPI is called once per new visitor.
func NewRegistry(newAPI func() API, opts Options, logger *slog.Logger) *Registry {
	if opts.MaxVisitors <= 0 {
		opts.MaxVisitors = defaultMaxVisitors
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	r := &Registry{
		newAPI:       newAPI,
		fetchTimeout: opts.FetchTimeout,
		logger:       logger.With(slog.String("component", "visitor")),
	}
	r.lru = expirable.NewLRU[string, *Visitor](opts.MaxVisitors, r.onEvict, opts.TTL)
	return r
}

// Get returns the visitor for id and restarts its TTL.
func (r *Registry) Get(id string) (*Visitor, bool) {
	if id == "" {
		return nil, false
	}
	v, ok := r.lru.Get(id)
	if !ok {
		return nil, false
	}
	r.lru.Add(id, v)
	if v.evicted.Load() {
		// expired between Get and Add; drop the re-added entry
		r.lru.Remove(id)
		return nil, false
	}
	return v, true
}

// Create registers a fresh visitor with an uninitialized session.
func (r *Registry) Create() *Visitor {
	api := r.newAPI()
	inbox := notification.NewInbox(notification.NewLoggerNotifier(r.logger))

	var opts []entitlement.Option
	if r.fetchTimeout > 0 {
		opts = append(opts, entitlement.WithFetchTimeout(r.fetchTimeout))
	}
	cache := entitlement.NewCache(api, r.logger, opts...)
	store := session.NewStore(api, inbox, r.logger)
	store.Observe(cache.OnIdentityChange)

	v := &Visitor{
		ID:    uuid.NewString(),
		API:   api,
		Store: store,
		Cache: cache,
		Inbox: inbox,
	}
	r.lru.Add(v.ID, v)
	metrics.VisitorsActive.Inc()
	return v
}

// Remove drops a visitor and releases its resources.
func (r *Registry) Remove(id string) {
	r.lru.Remove(id)
}

// Len is the number of live visitors.
func (r *Registry) Len() int {
	return r.lru.Len()
}

// Purge drops every visitor.
func (r *Registry) Purge() {
	r.lru.Purge()
}

// onEvict runs under the LRU's lock, so the cache is closed elsewhere.
// A visitor is released at most once.
func (r *Registry) onEvict(id string, v *Visitor) {
	if !v.evicted.CompareAndSwap(false, true) {
		return
	}
	metrics.VisitorEvictionsTotal.Inc()
	metrics.VisitorsActive.Dec()
	r.logger.Debug("visitor evicted", slog.String("visitor_id", id))
	go v.Cache.Close()
}
