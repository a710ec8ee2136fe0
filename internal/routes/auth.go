package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/picha-hub/picha_portal/internal/portal"
)

// RegisterAuthRoutes wires the public login, registration and logout routes.
func RegisterAuthRoutes(r fiber.Router, h *portal.Handler, rateLimiter fiber.Handler) {
	r.Get("/login", h.LoginPage)
	if rateLimiter != nil {
		r.Post("/login", rateLimiter, h.Login)
	} else {
		r.Post("/login", h.Login)
	}
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)
}
