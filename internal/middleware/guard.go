package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/picha-hub/picha_portal/internal/guard"
	"github.com/picha-hub/picha_portal/internal/identity"
	"github.com/picha-hub/picha_portal/internal/metrics"
)

// RequireSession admits visitors with a resolved, present identity. It must
// run after Visitors.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := VisitorFrom(c)
		if v == nil {
			return fiber.NewError(fiber.StatusInternalServerError, "visitor middleware not installed")
		}
		id, ready := v.Store.Snapshot()

		requested := ""
		if c.Method() == fiber.MethodGet {
			requested = c.OriginalURL()
		}
		d := guard.Auth(ready, id, requested)
		if d.Kind == guard.Render {
			c.Locals(identityKey, id)
		}
		return apply(c, "session", d)
	}
}

// RequireRole admits identities holding one of roles. It must run after
// RequireSession.
func RequireRole(roles ...identity.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return apply(c, "role", guard.Role(IdentityFrom(c), roles...))
	}
}

func apply(c *fiber.Ctx, name string, d guard.Decision) error {
	metrics.GuardDecisionsTotal.WithLabelValues(name, d.Kind.String()).Inc()

	switch d.Kind {
	case guard.Render:
		return c.Next()
	case guard.Loading:
		c.Set(fiber.HeaderRetryAfter, "1")
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "loading"})
	default:
		return c.Redirect(d.Location, fiber.StatusSeeOther)
	}
}
