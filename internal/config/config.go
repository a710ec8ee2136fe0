package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName          = "Picha Portal"
	defaultAppEnv           = "development"
	defaultPort             = "8080"
	defaultLogLevel         = "info"
	defaultLogFormat        = "json"
	defaultShutdownDelay    = 10 * time.Second
	defaultUpstreamTimeout  = 15 * time.Second
	defaultVisitorTTL       = 2 * time.Hour
	defaultMaxVisitors      = 10_000
	defaultIdempotencyTTL   = 24 * time.Hour
	defaultLoginAttempts    = 5
	shutdownSecondsEnvVar   = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar  = "SHUTDOWN_TIMEOUT"
	upstreamSecondsEnvVar   = "UPSTREAM_TIMEOUT_SECONDS"
	upstreamDurationEnvVar  = "UPSTREAM_TIMEOUT"
	visitorSecondsEnvVar    = "VISITOR_TTL_SECONDS"
	visitorDurationEnvVar   = "VISITOR_TTL"
	idemTTLSecondsEnvVar    = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurationEnvVar   = "IDEMPOTENCY_TTL"
	maxVisitorsEnvVar       = "MAX_VISITORS"
	loginAttemptsEnvVar     = "LOGIN_ATTEMPTS_PER_MINUTE"
	secureCookiesEnvVar     = "SECURE_COOKIES"
)

// Config captures portal runtime configuration loaded from environment variables.
type Config struct {
	AppName         string
	AppEnv          string
	Port            string
	LogLevel        string
	LogFormat       string
	APIBaseURL      string
	RedisURL        string
	ShutdownPeriod  time.Duration
	UpstreamTimeout time.Duration
	VisitorTTL      time.Duration
	MaxVisitors     int
	IdempotencyTTL  time.Duration
	LoginPerMinute  int
	SecureCookies   bool
}

// Load reads an optional .env file, then the environment, and returns a validated Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", defaultLogFormat)),
		APIBaseURL:      strings.TrimRight(os.Getenv("API_BASE_URL"), "/"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
		UpstreamTimeout: defaultUpstreamTimeout,
		VisitorTTL:      defaultVisitorTTL,
		MaxVisitors:     defaultMaxVisitors,
		IdempotencyTTL:  defaultIdempotencyTTL,
		LoginPerMinute:  defaultLoginAttempts,
	}

	var err error
	if cfg.ShutdownPeriod, err = durationEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, cfg.ShutdownPeriod); err != nil {
		return Config{}, err
	}
	if cfg.UpstreamTimeout, err = durationEnv(upstreamSecondsEnvVar, upstreamDurationEnvVar, cfg.UpstreamTimeout); err != nil {
		return Config{}, err
	}
	if cfg.VisitorTTL, err = durationEnv(visitorSecondsEnvVar, visitorDurationEnvVar, cfg.VisitorTTL); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationEnv(idemTTLSecondsEnvVar, idemTTLDurationEnvVar, cfg.IdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.MaxVisitors, err = intEnv(maxVisitorsEnvVar, cfg.MaxVisitors); err != nil {
		return Config{}, err
	}
	if cfg.LoginPerMinute, err = intEnv(loginAttemptsEnvVar, cfg.LoginPerMinute); err != nil {
		return Config{}, err
	}

	if v := os.Getenv(secureCookiesEnvVar); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", secureCookiesEnvVar, err)
		}
		cfg.SecureCookies = secure
	} else {
		cfg.SecureCookies = !cfg.IsDev()
	}

	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("API_BASE_URL must be set")
	}
	if u, err := url.Parse(cfg.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", cfg.APIBaseURL)
	}

	if cfg.RedisURL == "" && !cfg.IsDev() {
		return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the portal runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// durationEnv accepts either a whole number of seconds or a Go duration string.
func durationEnv(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}
