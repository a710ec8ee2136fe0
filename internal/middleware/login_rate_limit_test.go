package middleware

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/picha-hub/picha_portal/internal/logging"
)

func loginAttempt(t *testing.T, app *fiber.App, email string) int {
	t.Helper()
	form := url.Values{"email": {email}, "password": {"wrong-password"}}
	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginRateLimitTripsPerEmail(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 3, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusUnauthorized)
	})

	for i := 0; i < 3; i++ {
		if got := loginAttempt(t, app, "Wanjiru@Example.com"); got != fiber.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, got)
		}
	}
	if got := loginAttempt(t, app, "wanjiru@example.com"); got != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429 after limit, got %d", got)
	}
	if got := loginAttempt(t, app, "otieno@example.com"); got != fiber.StatusUnauthorized {
		t.Fatalf("other email should not be limited, got %d", got)
	}

	mr.FastForward(61 * time.Second)
	if got := loginAttempt(t, app, "wanjiru@example.com"); got != fiber.StatusUnauthorized {
		t.Fatalf("expected window reset, got %d", got)
	}
}

func TestLoginRateLimitWithoutRedis(t *testing.T) {
	app := fiber.New()
	app.Post("/login", LoginRateLimit(nil, 1, logging.Discard()), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 3; i++ {
		if got := loginAttempt(t, app, "a@b.co"); got != fiber.StatusOK {
			t.Fatalf("expected pass-through, got %d", got)
		}
	}
}
