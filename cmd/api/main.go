package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"merchant-settlement/config"
	httpHandler "merchant-settlement/internal/adapter/http/handler"
	pgStorage "merchant-settlement/internal/adapter/storage/postgres"
	redisStorage "merchant-settlement/internal/adapter/storage/redis"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/internal/service"
	"merchant-settlement/pkg/logger"
	"merchant-settlement/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("MSE_JWT_SECRET must be set")
	}

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Merchant Settlement Engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply schema")
		}
		log.Info().Msg("Schema applied")
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	settlementMetrics := metrics.NewSettlementMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	// Initialize repositories
	storeRepo := pgStorage.NewStoreRepo(pool)
	catalogRepo := pgStorage.NewCatalogRepo(pool)
	orderRepo := pgStorage.NewOrderRepo(pool)
	invoiceRepo := pgStorage.NewInvoiceRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	entryRepo := pgStorage.NewWalletTransactionRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	settlementCache := redisStorage.NewSettlementCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)
	jobLock := redisStorage.NewJobLock(rdb)

	// Initialize business services
	policy := service.InvoicePolicy{
		ShippingShare: decimal.NewFromFloat(cfg.Settlement.ShippingShare),
		TaxRate:       decimal.NewFromFloat(cfg.Settlement.TaxRate),
		MaxAttempts:   cfg.Settlement.InvoiceMaxAttempts,
		RetryMinDelay: cfg.Settlement.RetryMinDelay,
		RetryMaxDelay: cfg.Settlement.RetryMaxDelay,
	}
	builder := service.NewInvoiceBuilder(
		invoiceRepo,
		orderRepo,
		service.NewCostResolver(catalogRepo),
		service.NewInvoiceNumberAllocator(invoiceRepo),
		policy,
		settlementMetrics,
		logger.Component(log, "invoice_builder"),
	)
	ledger := service.NewWalletLedger(walletRepo, entryRepo, transactor, cfg.Settlement.Currency, logger.Component(log, "ledger"))
	settlementSvc := service.NewSettlementService(
		orderRepo,
		storeRepo,
		invoiceRepo,
		builder,
		ledger,
		settlementCache,
		cfg.Settlement.CacheTTL,
		settlementMetrics,
		logger.Component(log, "settlement"),
	)
	withdrawalSvc := service.NewWithdrawalService(
		withdrawalRepo,
		ledger,
		transactor,
		cfg.Withdrawal.MinAmountPaise,
		cfg.Withdrawal.Currency,
		settlementMetrics,
		logger.Component(log, "withdrawal"),
	)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	// Background reconciliation
	if cfg.Reconciliation.Enabled {
		reconciler := service.NewReconciler(
			orderRepo,
			invoiceRepo,
			settlementSvc,
			jobLock,
			service.ReconcilerConfig{
				Interval:    cfg.Reconciliation.Interval,
				BatchSize:   cfg.Reconciliation.BatchSize,
				GracePeriod: cfg.Reconciliation.GracePeriod,
			},
			settlementMetrics,
			logger.Component(log, "reconciler"),
		)
		go reconciler.Start(ctx)
	}

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SettlementSvc:  settlementSvc,
		WithdrawalSvc:  withdrawalSvc,
		Ledger:         ledger,
		TokenSvc:       tokenSvc,
		Currency:       cfg.Settlement.Currency,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		HTTPMetrics:    httpMetrics,
		Gatherer:       registry,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
