package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/picha-hub/picha_portal/internal/identity"
	"github.com/picha-hub/picha_portal/internal/visitor"
)

const (
	VisitorCookie = "picha_sid"

	visitorKey  = "visitor"
	identityKey = "identity"

	defaultBootstrapTimeout = 5 * time.Second
)

// VisitorConfig controls the portal session cookie.
type VisitorConfig struct {
	TTL              time.Duration
	Secure           bool
	BootstrapTimeout time.Duration
}

// Visitors attaches the visitor for the picha_sid cookie, creating one (and
// the cookie) when missing or expired, and runs the one-time session check.
// A check that times out leaves the session unresolved; guards then answer
// with a loading response instead of redirecting.
func Visitors(reg *visitor.Registry, cfg VisitorConfig, logger *slog.Logger) fiber.Handler {
	if cfg.BootstrapTimeout <= 0 {
		cfg.BootstrapTimeout = defaultBootstrapTimeout
	}
	return func(c *fiber.Ctx) error {
		v, ok := reg.Get(c.Cookies(VisitorCookie))
		if !ok {
			v = reg.Create()
		}
		c.Cookie(&fiber.Cookie{
			Name:     VisitorCookie,
			Value:    v.ID,
			Path:     "/",
			MaxAge:   int(cfg.TTL.Seconds()),
			HTTPOnly: true,
			Secure:   cfg.Secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		c.Locals(visitorKey, v)

		ctx, cancel := context.WithTimeout(c.UserContext(), cfg.BootstrapTimeout)
		defer cancel()
		if err := v.Store.Bootstrap(ctx); err != nil {
			logger.Warn("session check did not complete", slog.String("visitor_id", v.ID), slog.Any("error", err))
		}
		return c.Next()
	}
}

// VisitorFrom returns the visitor attached by Visitors, or nil.
func VisitorFrom(c *fiber.Ctx) *visitor.Visitor {
	v, _ := c.Locals(visitorKey).(*visitor.Visitor)
	return v
}

// IdentityFrom returns the identity admitted by RequireSession, or nil.
func IdentityFrom(c *fiber.Ctx) *identity.Identity {
	id, _ := c.Locals(identityKey).(*identity.Identity)
	return id
}
