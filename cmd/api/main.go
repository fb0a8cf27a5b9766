package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-wallet/config"
	httpHandler "marketplace-wallet/internal/adapter/http/handler"
	pgStorage "marketplace-wallet/internal/adapter/storage/postgres"
	redisStorage "marketplace-wallet/internal/adapter/storage/redis"
	"marketplace-wallet/internal/core/ports"
	"marketplace-wallet/internal/service"
	"marketplace-wallet/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("marketplace-wallet", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Marketplace Wallet Service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	referralRepo := pgStorage.NewReferralRepo(pool)
	referralSettingsRepo := pgStorage.NewReferralSettingsRepo(pool)
	walletSettingsRepo := pgStorage.NewWalletSettingsRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	eventRepo := pgStorage.NewPaymentEventRepo(pool)
	transferRepo := pgStorage.NewTransferRepo(pool)
	operatorRepo := pgStorage.NewOperatorRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	authSvc := service.NewAuthService(operatorRepo, hashSvc, tokenSvc)
	ledgerSvc := service.NewLedgerService(accountRepo, ledgerRepo, idempotencyCache, transactor, log)
	referralSvc := service.NewReferralService(referralRepo, referralSettingsRepo, accountRepo, ledgerRepo, transactor, log)
	withdrawalSvc := service.NewWithdrawalService(withdrawalRepo, accountRepo, ledgerRepo, walletSettingsRepo, transactor, log)
	settlementSvc := service.NewSettlementService(eventRepo, transferRepo, log)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      ledgerSvc,
		ReferralSvc:    referralSvc,
		WithdrawalSvc:  withdrawalSvc,
		SettlementSvc:  settlementSvc,
		TokenSvc:       tokenSvc,
		AccountRepo:    accountRepo,
		ReferralRepo:   referralRepo,
		ReferralCfg:    referralSettingsRepo,
		WalletCfg:      walletSettingsRepo,
		EventRepo:      eventRepo,
		TransferRepo:   transferRepo,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
