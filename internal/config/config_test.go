package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("API_BASE_URL", "https://api.picha.co.ke/")
	t.Setenv("REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://api.picha.co.ke" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.VisitorTTL != defaultVisitorTTL || cfg.LoginPerMinute != defaultLoginAttempts {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SecureCookies {
		t.Fatalf("dev should default to insecure cookies")
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadDurations(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("API_BASE_URL", "http://localhost:5000")
	t.Setenv("UPSTREAM_TIMEOUT_SECONDS", "")
	t.Setenv("UPSTREAM_TIMEOUT", "750ms")
	t.Setenv("VISITOR_TTL_SECONDS", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.UpstreamTimeout != 750*time.Millisecond {
		t.Fatalf("expected 750ms, got %s", cfg.UpstreamTimeout)
	}
	if cfg.VisitorTTL != time.Minute {
		t.Fatalf("expected 1m, got %s", cfg.VisitorTTL)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing api", env: map[string]string{"APP_ENV": "development", "API_BASE_URL": ""}},
		{name: "relative api", env: map[string]string{"APP_ENV": "development", "API_BASE_URL": "api.picha"}},
		{name: "missing redis in production", env: map[string]string{"APP_ENV": "production", "API_BASE_URL": "https://api.picha.co.ke", "REDIS_URL": ""}},
		{name: "bad duration", env: map[string]string{"APP_ENV": "development", "API_BASE_URL": "https://api.picha.co.ke", "VISITOR_TTL": "soon"}},
		{name: "bad secure flag", env: map[string]string{"APP_ENV": "development", "API_BASE_URL": "https://api.picha.co.ke", "SECURE_COOKIES": "maybe"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
