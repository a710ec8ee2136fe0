// Package portal renders the portal's views and actions on top of the
// per-visitor session and entitlement stores.
package portal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/picha-hub/picha_portal/internal/entitlement"
	"github.com/picha-hub/picha_portal/internal/guard"
	"github.com/picha-hub/picha_portal/internal/identity"
	"github.com/picha-hub/picha_portal/internal/marketplace"
	"github.com/picha-hub/picha_portal/internal/metrics"
	"github.com/picha-hub/picha_portal/internal/middleware"
	"github.com/picha-hub/picha_portal/internal/notification"
	"github.com/picha-hub/picha_portal/internal/session"
	"github.com/picha-hub/picha_portal/internal/upstream"
	"github.com/picha-hub/picha_portal/internal/visitor"
)

const defaultEntitlementWait = 3 * time.Second

// Handler serves the portal's pages and form actions.
type Handler struct {
	visitors        *visitor.Registry
	logger          *slog.Logger
	entitlementWait time.Duration
}

// NewHandler builds a Handler. entitlementWait bounds how long a page waits
// for an in-flight entitlement fetch before rendering the loading state.
func NewHandler(visitors *visitor.Registry, logger *slog.Logger, entitlementWait time.Duration) *Handler {
	if entitlementWait <= 0 {
		entitlementWait = defaultEntitlementWait
	}
	return &Handler{
		visitors:        visitors,
		logger:          logger.With(slog.String("component", "portal")),
		entitlementWait: entitlementWait,
	}
}

// LoginPage renders the login view, or sends an already logged-in visitor on.
// GET /login
func (h *Handler) LoginPage(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	next := guard.SanitizeNext(c.Query("next"))
	if id, ready := v.Store.Snapshot(); ready && id != nil {
		return c.Redirect(afterLogin(next, id), fiber.StatusSeeOther)
	}
	return c.JSON(View{Name: "login", Next: next, Toasts: v.Inbox.Drain()})
}

// Login authenticates and redirects to next or the role's home.
// POST /login
func (h *Handler) Login(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	var form credentialsForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid login form")
	}
	next := guard.SanitizeNext(form.Next)
	if next == "" {
		next = guard.SanitizeNext(c.Query("next"))
	}

	res := v.Store.Login(c.UserContext(), identity.Credentials{Email: form.Email, Password: form.Password})
	if !res.OK {
		return c.Status(fiber.StatusUnauthorized).JSON(View{Name: "login", Next: next, Error: res.Message, Toasts: withoutError(v.Inbox.Drain(), res.Message)})
	}
	return c.Redirect(afterLogin(next, res.Identity), fiber.StatusSeeOther)
}

// Register creates an account and lands on the role's home.
// POST /register
func (h *Handler) Register(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	var form registrationForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid registration form")
	}

	res := v.Store.Register(c.UserContext(), identity.Registration{
		Email:    form.Email,
		Password: form.Password,
		Name:     form.Name,
		Phone:    form.Phone,
		Role:     identity.Role(form.Role),
	})
	if !res.OK {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(View{Name: "register", Error: res.Message, Toasts: withoutError(v.Inbox.Drain(), res.Message)})
	}
	return c.Redirect(guard.HomeFor(res.Identity), fiber.StatusSeeOther)
}

// Logout clears the session and navigates to the login view.
// POST /logout
func (h *Handler) Logout(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	res := v.Store.Logout(c.UserContext())
	if res.Event == session.EventLoggedOut {
		return c.Redirect(guard.LoginPath, fiber.StatusSeeOther)
	}
	return c.Redirect(guard.RootPath, fiber.StatusSeeOther)
}

// Home sends a logged-in visitor to their role's home.
// GET /
func (h *Handler) Home(c *fiber.Ctx) error {
	return c.Redirect(guard.HomeFor(middleware.IdentityFrom(c)), fiber.StatusSeeOther)
}

// Me renders the identity with its entitlement.
// GET /me
func (h *Handler) Me(c *fiber.Ctx) error {
	return h.page(c, "me")
}

// UpdateMe patches the local profile.
// PATCH /me
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	var patch identity.Patch
	if err := c.BodyParser(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid profile update")
	}
	if err := normalizePatch(&patch); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	user, ok := v.Store.UpdateUser(patch)
	if !ok {
		return c.Redirect(guard.LoginLocation(""), fiber.StatusSeeOther)
	}
	return c.JSON(View{Name: "me", User: user})
}

// Dashboard renders a role home.
// GET /dashboard/creative, GET /dashboard/client
func (h *Handler) Dashboard(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return h.page(c, name)
	}
}

// Admin renders the admin landing view.
// GET /admin
func (h *Handler) Admin(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	return c.JSON(View{Name: "admin", User: middleware.IdentityFrom(c), Data: fiber.Map{"visitors": h.visitors.Len()}, Toasts: v.Inbox.Drain()})
}

// Limits renders the entitlement.
// GET /subscriptions/limits
func (h *Handler) Limits(c *fiber.Ctx) error {
	return h.page(c, "limits")
}

// CreateSubscription starts a subscription; a checkout URL is followed.
// POST /subscriptions
func (h *Handler) CreateSubscription(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	var form subscriptionForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid subscription form")
	}

	res := v.Cache.CreateSubscription(c.UserContext(), form.Plan, form.Period)
	if !res.OK {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(View{Name: "subscribe", Error: res.Message})
	}
	if res.PaymentURL != "" {
		return c.Redirect(res.PaymentURL, fiber.StatusSeeOther)
	}
	v.Cache.Refresh()
	return c.Status(fiber.StatusCreated).JSON(View{Name: "subscribe", Data: res.Subscription})
}

// CancelSubscription cancels a subscription.
// POST /subscriptions/:id/cancel
func (h *Handler) CancelSubscription(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	sub, err := v.Cache.CancelSubscription(c.UserContext(), c.Params("id"))
	if err != nil {
		return fiber.NewError(failureStatus(err), entitlement.CancelMessage(err))
	}
	return c.JSON(View{Name: "subscription_cancelled", Data: sub})
}

// ListRequests renders open requests, hiding budgets the plan cannot see.
// GET /requests
func (h *Handler) ListRequests(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	snap := h.entitlement(c, v)

	reqs, err := v.API.ListRequests(c.UserContext())
	if err != nil {
		return h.upstreamFailure(err, "list_requests", "Could not load requests. Please try again.")
	}
	return c.JSON(View{
		Name:        "requests",
		User:        middleware.IdentityFrom(c),
		Entitlement: viewOf(snap),
		Data:        marketplace.VisibleRequests(reqs, snap.CanSeeBudget()),
		Toasts:      v.Inbox.Drain(),
	})
}

// SubmitProposal forwards a proposal when the plan still allows one.
// POST /requests/:id/proposals
func (h *Handler) SubmitProposal(c *fiber.Ctx) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	var form proposalForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid proposal form")
	}
	snap := h.entitlement(c, v)

	input, err := marketplace.PrepareProposal(upstream.ProposalInput{Message: form.Message, Price: form.Price}, snap.CanSubmitProposal())
	switch {
	case errors.Is(err, marketplace.ErrProposalQuota):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case err != nil:
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	proposal, err := v.API.SubmitProposal(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return h.upstreamFailure(err, "submit_proposal", "Could not submit the proposal. Please try again.")
	}
	v.Cache.Refresh()
	return c.Status(fiber.StatusCreated).JSON(View{Name: "proposal", Data: proposal})
}

// Contact returns a WhatsApp deep link for the phone number.
// GET /contact/:phone
func (h *Handler) Contact(c *fiber.Ctx) error {
	id := middleware.IdentityFrom(c)
	link, err := marketplace.WhatsAppLink(c.Params("phone"), marketplace.GreetingFor(id, c.Query("about")))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(View{Name: "contact", Data: fiber.Map{"link": link}})
}

// page renders a view carrying the identity and its entitlement.
func (h *Handler) page(c *fiber.Ctx, name string) error {
	v, err := mustVisitor(c)
	if err != nil {
		return err
	}
	snap := h.entitlement(c, v)
	return c.JSON(View{
		Name:        name,
		User:        middleware.IdentityFrom(c),
		Entitlement: viewOf(snap),
		Toasts:      v.Inbox.Drain(),
	})
}

// entitlement waits briefly for an in-flight fetch and returns the snapshot
// for the admitted identity only.
func (h *Handler) entitlement(c *fiber.Ctx, v *visitor.Visitor) entitlement.Snapshot {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.entitlementWait)
	defer cancel()
	if err := v.Cache.Wait(ctx); err != nil {
		h.logger.Debug("rendering before entitlement settled", slog.String("visitor_id", v.ID))
	}
	return v.Cache.SnapshotFor(middleware.IdentityFrom(c))
}

func (h *Handler) upstreamFailure(err error, op, fallback string) error {
	metrics.UpstreamErrorsTotal.WithLabelValues(op).Inc()
	h.logger.Warn("upstream call failed", slog.String("operation", op), slog.Any("error", err))
	return fiber.NewError(failureStatus(err), upstream.Message(err, fallback))
}

func mustVisitor(c *fiber.Ctx) (*visitor.Visitor, error) {
	v := middleware.VisitorFrom(c)
	if v == nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "visitor middleware not installed")
	}
	return v, nil
}

func viewOf(s entitlement.Snapshot) *EntitlementView {
	if s.OwnerID == "" {
		return nil
	}
	ev := newEntitlementView(s)
	return &ev
}

// withoutError drops the error toast repeating message, which the view
// already shows inline.
func withoutError(toasts []notification.Message, message string) []notification.Message {
	var out []notification.Message
	for _, t := range toasts {
		if t.Kind == notification.KindError && t.Body == message {
			continue
		}
		out = append(out, t)
	}
	return out
}

func afterLogin(next string, id *identity.Identity) string {
	if next != "" {
		return next
	}
	return guard.HomeFor(id)
}

// failureStatus passes client errors from the API through and reports
// everything else as a bad gateway.
func failureStatus(err error) int {
	var apiErr *upstream.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return apiErr.Status
	}
	return http.StatusBadGateway
}

func normalizePatch(p *identity.Patch) error {
	if p.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*p.Email))
		if err := (identity.Credentials{Email: email, Password: "-"}).Validate(); err != nil {
			return err
		}
		p.Email = &email
	}
	if p.Phone != nil && *p.Phone != "" {
		phone, err := identity.NormalizePhone(*p.Phone)
		if err != nil {
			return err
		}
		p.Phone = &phone
	}
	if p.Tier != nil {
		tier := p.Tier.Normalize()
		p.Tier = &tier
	}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
	return nil
}
