// Package session holds the per-visitor record of who is logged in.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/picha-hub/picha_portal/internal/identity"
	"github.com/picha-hub/picha_portal/internal/notification"
	"github.com/picha-hub/picha_portal/internal/upstream"
)

const (
	genericLoginFailure    = "Login failed. Please check your details and try again."
	genericRegisterFailure = "Registration failed. Please try again."

	checkTimeout = 15 * time.Second
)

// Event names the transition a store operation produced.
type Event string

const (
	EventNone       Event = ""
	EventLoggedIn   Event = "logged_in"
	EventRegistered Event = "registered"
	EventLoggedOut  Event = "logged_out"
)

// AuthAPI is the subset of the marketplace API the store calls.
type AuthAPI interface {
	Me(ctx context.Context) (identity.Identity, error)
	Login(ctx context.Context, creds identity.Credentials) (identity.Identity, error)
	Register(ctx context.Context, reg identity.Registration) (identity.Identity, error)
	Logout(ctx context.Context) error
}

// Observer is told about every identity transition. prev and next are
// copies; either may be nil. Observers run while the store holds its write
// lock and must not call back into the Store.
type Observer func(prev, next *identity.Identity)

// Result is the outcome of Login, Register and Logout. Failures carry a
// message that is safe to show to the visitor.
type Result struct {
	OK       bool
	Identity *identity.Identity
	Message  string
	Event    Event
}

// Store is the single source of truth for one visitor's identity.
type Store struct {
	api      AuthAPI
	notifier notification.Notifier
	logger   *slog.Logger

	flight singleflight.Group

	mu        sync.RWMutex
	current   *identity.Identity
	ready     bool
	resolved  bool
	observers []Observer
}

// NewStore builds a store in the uninitialized state.
func NewStore(api AuthAPI, notifier notification.Notifier, logger *slog.Logger) *Store {
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(logger)
	}
	return &Store{
		api:      api,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "session")),
	}
}

// Observe registers an identity observer.
func (s *Store) Observe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Snapshot returns a copy of the current identity (nil when absent) and
// whether the initial check has been resolved.
func (s *Store) Snapshot() (*identity.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.current), s.ready
}

// Bootstrap performs the who-am-i check once. Concurrent and later callers
// share the first call, which runs detached from any caller's ctx and is
// bounded by its own timeout. A 401 resolves silently to "not logged in";
// other failures are logged and resolve the same way. ctx bounds only this
// caller's wait: when it ends first, ctx.Err() is returned and the store
// stays unresolved until the shared check completes.
func (s *Store) Bootstrap(ctx context.Context) error {
	s.mu.RLock()
	resolved := s.resolved
	s.mu.RUnlock()
	if resolved {
		return nil
	}

	done := s.flight.DoChan("bootstrap", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), checkTimeout)
		defer cancel()
		s.resolve(checkCtx)
		return nil, nil
	})
	select {
	case res := <-done:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) resolve(ctx context.Context) {
	s.mu.RLock()
	resolved := s.resolved
	s.mu.RUnlock()
	if resolved {
		return
	}

	me, err := s.api.Me(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.resolved {
		// a login or logout won the race; its state is newer
		return
	}
	s.resolved = true
	s.ready = true

	if err != nil {
		if !upstream.IsUnauthorized(err) {
			s.logger.Warn("session check failed", slog.Any("error", err))
		}
		s.setLocked(nil)
		return
	}
	s.setLocked(&me)
}

// Login authenticates against the API. It never returns an error; failures
// are reported through Result.Message.
func (s *Store) Login(ctx context.Context, creds identity.Credentials) Result {
	creds = creds.Normalize()
	if err := creds.Validate(); err != nil {
		return s.fail(ctx, "Login failed", capitalize(err.Error()))
	}

	user, err := s.api.Login(ctx, creds)
	if err != nil {
		s.logger.Info("login rejected", slog.String("email", creds.Email), slog.Any("error", err))
		return s.fail(ctx, "Login failed", upstream.Message(err, genericLoginFailure))
	}

	s.commit(&user)
	s.notify(ctx, notification.Message{Kind: notification.KindSuccess, Title: "Welcome back" + greeting(user)})
	return Result{OK: true, Identity: clone(&user), Event: EventLoggedIn}
}

// Register creates an account. Same contract as Login.
func (s *Store) Register(ctx context.Context, reg identity.Registration) Result {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		return s.fail(ctx, "Registration failed", capitalize(err.Error()))
	}

	user, err := s.api.Register(ctx, reg)
	if err != nil {
		s.logger.Info("registration rejected", slog.String("email", reg.Email), slog.Any("error", err))
		return s.fail(ctx, "Registration failed", upstream.Message(err, genericRegisterFailure))
	}

	s.commit(&user)
	s.notify(ctx, notification.Message{Kind: notification.KindSuccess, Title: "Account created" + greeting(user)})
	return Result{OK: true, Identity: clone(&user), Event: EventRegistered}
}

// Logout ends the upstream session, ignoring its outcome, and then always
// clears the local identity. The caller owns any navigation that follows.
func (s *Store) Logout(ctx context.Context) Result {
	if err := s.api.Logout(ctx); err != nil {
		s.logger.Warn("upstream logout failed", slog.Any("error", err))
	}

	s.commit(nil)
	s.notify(ctx, notification.Message{Kind: notification.KindSuccess, Title: "You have been logged out"})
	return Result{OK: true, Event: EventLoggedOut}
}

// UpdateUser shallow-merges patch into the current identity without calling
// the API. It reports false when nobody is logged in.
func (s *Store) UpdateUser(patch identity.Patch) (*identity.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, false
	}
	merged := s.current.Merge(patch)
	s.setLocked(&merged)
	return clone(&merged), true
}

// commit replaces the identity and marks the store resolved and ready.
func (s *Store) commit(next *identity.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = true
	s.ready = true
	s.setLocked(next)
}

func (s *Store) setLocked(next *identity.Identity) {
	prev := s.current
	s.current = clone(next)
	for _, o := range s.observers {
		o(clone(prev), clone(next))
	}
}

func (s *Store) fail(ctx context.Context, title, message string) Result {
	s.notify(ctx, notification.Message{Kind: notification.KindError, Title: title, Body: message})
	return Result{OK: false, Message: message}
}

func (s *Store) notify(ctx context.Context, m notification.Message) {
	if err := s.notifier.Send(ctx, m); err != nil {
		s.logger.Debug("notification dropped", slog.Any("error", err))
	}
}

func clone(id *identity.Identity) *identity.Identity {
	if id == nil {
		return nil
	}
	c := *id
	return &c
}

func greeting(user identity.Identity) string {
	if user.Name == "" {
		return ""
	}
	return fmt.Sprintf(", %s", user.Name)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
