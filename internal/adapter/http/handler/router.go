package handler

import (
	"marketplace-wallet/internal/adapter/http/middleware"
	redisStore "marketplace-wallet/internal/adapter/storage/redis"
	"marketplace-wallet/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	ReferralSvc    ports.ReferralService
	WithdrawalSvc  ports.WithdrawalService
	SettlementSvc  ports.SettlementService
	TokenSvc       ports.TokenService
	AccountRepo    ports.AccountRepository
	ReferralRepo   ports.ReferralRepository
	ReferralCfg    ports.ReferralSettingsRepository
	WalletCfg      ports.WalletSettingsRepository
	EventRepo      ports.PaymentEventRepository
	TransferRepo   ports.TransferRepository
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes (admin/CRM surface) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	adminOnly := middleware.RequireRole("admin")

	walletHandler := NewWalletHandler(deps.LedgerSvc, deps.AccountRepo)
	accounts := v1.Group("/accounts", jwtAuth)
	{
		accounts.POST("", rl("transactions"), walletHandler.CreateAccount)
		accounts.GET("/:id/balance", rl("reports"), walletHandler.GetBalance)
		accounts.GET("/:id/verify", rl("reports"), walletHandler.VerifyBalance)
		accounts.GET("/:id/transactions", rl("reports"), walletHandler.ListEntries)
	}

	transactions := v1.Group("/transactions", jwtAuth)
	{
		transactions.POST("", rl("transactions"), walletHandler.RecordTransaction)
	}

	referralHandler := NewReferralHandler(deps.ReferralSvc, deps.ReferralRepo, deps.ReferralCfg)
	referrals := v1.Group("/referrals", jwtAuth)
	{
		referrals.POST("", rl("transactions"), referralHandler.CreateReferral)
		referrals.GET("/settings", rl("reports"), referralHandler.ListSettings)
		referrals.PUT("/settings", adminOnly, referralHandler.UpsertSettings)
		referrals.GET("/:id", rl("reports"), referralHandler.GetReferral)
		referrals.POST("/credit", rl("transactions"), referralHandler.CreditBonus)
		referrals.POST("/events", rl("transactions"), referralHandler.TriggerEvent)
	}

	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc, deps.WalletCfg)
	withdrawals := v1.Group("/withdrawals", jwtAuth)
	{
		withdrawals.POST("", rl("withdrawals"), withdrawalHandler.Submit)
		withdrawals.POST("/evaluate", rl("withdrawals"), withdrawalHandler.Evaluate)
		withdrawals.GET("", rl("reports"), withdrawalHandler.List)
		withdrawals.POST("/:id/complete", rl("withdrawals"), withdrawalHandler.Complete)
		withdrawals.POST("/:id/fail", rl("withdrawals"), withdrawalHandler.Fail)
	}

	walletSettings := v1.Group("/wallet-settings", jwtAuth)
	{
		walletSettings.GET("", rl("reports"), withdrawalHandler.GetWalletSettings)
		walletSettings.PUT("", adminOnly, withdrawalHandler.SaveWalletSettings)
	}

	settlementHandler := NewSettlementHandler(deps.SettlementSvc, deps.EventRepo, deps.TransferRepo)
	settlements := v1.Group("/settlements", jwtAuth)
	{
		settlements.GET("/report", rl("reports"), settlementHandler.Reconcile)
		settlements.POST("/events", rl("transactions"), settlementHandler.IngestEvent)
		settlements.POST("/transfers", rl("transactions"), settlementHandler.RecordTransfer)
	}

	return r
}
