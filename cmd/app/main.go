package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"saas-billing-backend/internal/config"
	"saas-billing-backend/internal/domain/ports/adapter"
	mongodb "saas-billing-backend/internal/infra/db/mongo"
	"saas-billing-backend/internal/infra/identity"
	"saas-billing-backend/internal/infra/logging"
	"saas-billing-backend/internal/infra/metrics"
	"saas-billing-backend/internal/infra/providers"
	"saas-billing-backend/internal/infra/ratelimit"
	"saas-billing-backend/internal/infra/sched"
	"saas-billing-backend/internal/infra/webhook"
	"saas-billing-backend/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed checks)")
	flag.Parse()

	// .env is a local-dev convenience; absent in real deployments.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Setup validation ----
	validator := config.NewValidator(config.Catalog(), os.Getenv)
	report := validator.Validate()
	for _, r := range report.Results {
		if !r.Satisfied {
			logger.Warn().Str("name", r.Name).Str("category", r.Category).Str("hint", r.Hint).Msg("configuration entry unsatisfied")
		}
	}
	if err := validator.Err(report); err != nil {
		if cfg.Runtime.Dev {
			logger.Warn().Err(err).Msg("configuration incomplete; continuing in dev mode")
		} else {
			logger.Fatal().Err(err).Msg("configuration incomplete")
		}
	}

	metrics.MustRegister()

	// ---- MongoDB ----
	mgr := mongodb.NewManager(cfg.Database.URI, cfg.Database.Name, logger)
	if err := mgr.Connect(ctx); err != nil {
		logger.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer func() {
		shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shCancel()
		_ = mgr.Close(shCtx)
	}()

	db := mgr.Database()
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		logger.Fatal().Err(err).Msg("ensure indexes failed")
	}

	// ---- Repositories ----
	userRepo := mongodb.NewUserRepo(db)
	paymentRepo := mongodb.NewPaymentRepo(db)
	txManager := mongodb.NewTxManager(mgr, logger)

	// ---- Identity sync ----
	var identitySync adapter.IdentitySyncer
	if cfg.Identity.SecretKey != "" {
		client, err := identity.NewClerkClient(cfg.Identity.SecretKey, cfg.Identity.APIBase)
		if err != nil {
			logger.Fatal().Err(err).Msg("identity client init failed")
		}
		identitySync = client
		logger.Info().Msg("identity plan sync enabled")
	} else {
		logger.Warn().Msg("identity secret not set; plan metadata sync disabled")
	}

	// ---- Providers, rate limiting ----
	registry := providers.NewRegistry(&cfg.Payments, logger)
	limiter := ratelimit.New(map[string]ratelimit.Rule{
		"webhook":  {Limit: cfg.RateLimit.Webhook.Limit, Window: cfg.RateLimit.Webhook.Window},
		"identity": {Limit: cfg.RateLimit.Identity.Limit, Window: cfg.RateLimit.Identity.Window},
		"api":      {Limit: cfg.RateLimit.API.Limit, Window: cfg.RateLimit.API.Window},
	})
	logger.Info().Msg("rate limiter is process-local; budgets apply per instance")

	// ---- Use cases ----
	userUC := usecase.NewUserUseCase(userRepo, txManager, logger)
	billingUC := usecase.NewBillingUseCase(paymentRepo, userRepo, txManager, identitySync, logger)

	// ---- HTTP server ----
	srv := webhook.NewServer(
		billingUC, userUC, limiter, registry,
		cfg.Identity.WebhookSecret,
		mgr.Health,
		validator.Validate,
		logger,
	)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Reconcile sweeper ----
	sweeper := sched.NewReconcileSweeper(paymentRepo, cfg.Sweeper.Interval, cfg.Sweeper.StaleAfter, logger)
	go sweeper.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shCancel()
	if err := server.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
