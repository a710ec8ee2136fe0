package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/picha-hub/picha_portal/internal/config"
	"github.com/picha-hub/picha_portal/internal/infra"
	"github.com/picha-hub/picha_portal/internal/logging"
	"github.com/picha-hub/picha_portal/internal/server"
	"github.com/picha-hub/picha_portal/internal/upstream"
	"github.com/picha-hub/picha_portal/internal/visitor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("redis disabled; login rate limiting and idempotency are off")
	}

	factory, err := upstream.NewFactory(cfg.APIBaseURL, cfg.UpstreamTimeout, nil, logger)
	if err != nil {
		logger.Error("configure marketplace api", "error", err)
		os.Exit(1)
	}

	visitors := visitor.NewRegistry(func() visitor.API { return factory.NewClient() }, visitor.Options{
		MaxVisitors:  cfg.MaxVisitors,
		TTL:          cfg.VisitorTTL,
		FetchTimeout: cfg.UpstreamTimeout,
	}, logger)

	srv, err := server.New(cfg, cache, visitors, factory.NewClient(), logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("portal listening", "address", cfg.Address(), "api", cfg.APIBaseURL, "env", cfg.AppEnv)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("portal exited cleanly")
}
