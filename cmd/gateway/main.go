package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/planora/gatekeeper/pkg/cache"
	"github.com/planora/gatekeeper/pkg/config"
	infraLogger "github.com/planora/gatekeeper/pkg/infra/logger"
	infraProm "github.com/planora/gatekeeper/pkg/infra/prometheus"
	"github.com/planora/gatekeeper/pkg/middleware"
	"github.com/planora/gatekeeper/pkg/origin"
	"github.com/planora/gatekeeper/pkg/ratelimit"
	"github.com/planora/gatekeeper/pkg/routing"
	"github.com/planora/gatekeeper/pkg/server"
)

func main() {
	ctx := context.Background()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger("gateway")

	if err := config.Load("./config"); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	failurePolicy, err := ratelimit.ParseFailurePolicy(cfg.Gate.FailurePolicy)
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	quotas, err := ratelimit.QuotasFromSettings(cfg.Gate.Limits)
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	originPolicy, err := origin.NewPolicy(cfg.Gate.AllowedOrigins)
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	if cfg.Metrics.Enabled {
		infraProm.Initialize()
	}

	redisClient := cache.NewRedisClient(cfg.Redis)
	if err := cache.Ping(ctx, redisClient); err != nil {
		logger.WithError(err).Warn("rate limit store unreachable at startup, failure policy applies")
	}

	store := ratelimit.NewBreakerStore(
		ratelimit.NewRedisStore(redisClient, nil),
		logger,
	)
	limiter := ratelimit.NewLimiter(store, quotas, failurePolicy, logger, nil)

	router := routing.NewRouter(routing.Config{
		ExemptPrefixes:    cfg.Gate.Paths.Exempt,
		AuthPagePrefixes:  cfg.Gate.Paths.AuthPages,
		ProtectedPrefixes: cfg.Gate.Paths.Protected,
		AdminOnlyPrefixes: cfg.Gate.Paths.AdminOnly,
		LoginPath:         cfg.Gate.Paths.Login,
	})

	gateServer := server.NewGateServer(server.GateServerDI{
		Config: cfg,
		Logger: logger,
		MiddlewareTransport: middleware.Transport{
			RequestIDMiddleware:  middleware.NewRequestIDMiddleware(nil),
			ClientIPMiddleware:   middleware.NewClientIPMiddleware(cfg.Gate.TrustedProxyHeaders),
			AuthSignalMiddleware: middleware.NewAuthSignalMiddleware(),
			MetricsMiddleware:    middleware.NewMetricsMiddleware(logger),
			GateMiddleware:       middleware.NewGateMiddleware(limiter, originPolicy, router, logger, nil),
		},
	})

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, runCtx := errgroup.WithContext(runCtx)
	group.Go(gateServer.Run)
	group.Go(func() error {
		limiter.RunSweeper(runCtx, time.Minute)
		return nil
	})
	group.Go(func() error {
		<-runCtx.Done()
		logger.Info("shutting down gate server")
		return gateServer.Shutdown()
	})

	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("gate server stopped")
	}
}
