package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/picha-hub/picha_portal/internal/config"
	"github.com/picha-hub/picha_portal/internal/identity"
	"github.com/picha-hub/picha_portal/internal/middleware"
	"github.com/picha-hub/picha_portal/internal/portal"
	"github.com/picha-hub/picha_portal/internal/visitor"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	Cache    *redis.Client
	Visitors *visitor.Registry
	Upstream Pinger
	Logger   *slog.Logger
}

// Setup configures middlewares and all portal routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Visitors == nil {
		return fmt.Errorf("visitor registry is required")
	}
	if !d.Cfg.IsDev() && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	// Probes carry no visitor state.
	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app)

	site := app.Group("", middleware.Visitors(d.Visitors, middleware.VisitorConfig{
		TTL:    d.Cfg.VisitorTTL,
		Secure: d.Cfg.SecureCookies,
	}, d.Logger), middleware.Audit(d.Logger))

	h := portal.NewHandler(d.Visitors, d.Logger, 0)

	RegisterAuthRoutes(site, h, middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute, d.Logger))

	protected := site.Group("", middleware.RequireSession())
	RegisterAccountRoutes(protected, h)
	RegisterSubscriptionRoutes(protected, h, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	RegisterRequestRoutes(protected, h)

	return nil
}

// RegisterAccountRoutes wires profile and role home routes.
func RegisterAccountRoutes(r fiber.Router, h *portal.Handler) {
	r.Get("/", h.Home)
	r.Get("/me", h.Me)
	r.Patch("/me", h.UpdateMe)
	r.Get("/dashboard/creative", middleware.RequireRole(identity.RoleCreative), h.Dashboard("dashboard_creative"))
	r.Get("/dashboard/client", middleware.RequireRole(identity.RoleClient), h.Dashboard("dashboard_client"))
	r.Get("/admin", middleware.RequireRole(identity.RoleAdmin), h.Admin)
}

// RegisterSubscriptionRoutes wires entitlement and billing routes.
func RegisterSubscriptionRoutes(r fiber.Router, h *portal.Handler, idempotency fiber.Handler) {
	r.Get("/subscriptions/limits", h.Limits)
	creative := middleware.RequireRole(identity.RoleCreative)
	r.Post("/subscriptions", creative, idempotency, h.CreateSubscription)
	r.Post("/subscriptions/:id/cancel", creative, h.CancelSubscription)
}

// RegisterRequestRoutes wires marketplace listing routes.
func RegisterRequestRoutes(r fiber.Router, h *portal.Handler) {
	r.Get("/requests", h.ListRequests)
	r.Post("/requests/:id/proposals", middleware.RequireRole(identity.RoleCreative), h.SubmitProposal)
	r.Get("/contact/:phone", h.Contact)
}
