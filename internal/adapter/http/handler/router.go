package handler

import (
	"merchant-settlement/internal/adapter/http/middleware"
	"merchant-settlement/internal/core/ports"
	"merchant-settlement/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	SettlementSvc  ports.SettlementService
	WithdrawalSvc  ports.WithdrawalService
	Ledger         ports.WalletLedger
	TokenSvc       ports.TokenService
	Currency       string
	RateLimitStore middleware.Limiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService   // nil = audit logging disabled
	HTTPMetrics    *metrics.HTTPMetrics // nil = no request metrics
	Gatherer       prometheus.Gatherer  // nil = /metrics not served
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger, deps.HTTPMetrics))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(deps.Gatherer)))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

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

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	merchantOnly := middleware.RequireRole(ports.RoleMerchant)
	adminOnly := middleware.RequireRole(ports.RoleAdmin)

	settlementHandler := NewSettlementHandler(deps.SettlementSvc)
	walletHandler := NewWalletHandler(deps.Ledger, deps.WithdrawalSvc, deps.Currency)
	withdrawalHandler := NewWithdrawalHandler(deps.WithdrawalSvc)

	v1 := r.Group("/api/v1", jwtAuth)

	// --- Checkout collaborator ---
	v1.POST("/settlements", middleware.RequireRole(ports.RoleSystem, ports.RoleAdmin), rl("settlements"), settlementHandler.Settle)
	v1.GET("/invoices/:orderId", middleware.RequireRole(ports.RoleMerchant, ports.RoleAdmin), rl("dashboard"), settlementHandler.GetInvoice)

	// --- Merchant dashboard ---
	wallet := v1.Group("/wallet", merchantOnly, rl("dashboard"))
	{
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.GET("/transactions", walletHandler.ListTransactions)
	}

	withdrawals := v1.Group("/withdrawals", merchantOnly)
	{
		withdrawals.POST("", rl("withdrawals"), withdrawalHandler.Create)
		withdrawals.GET("", rl("dashboard"), withdrawalHandler.ListMine)
	}

	// --- Admin review queue ---
	admin := v1.Group("/admin/withdrawals", adminOnly, rl("admin"))
	{
		admin.GET("", withdrawalHandler.List)
		admin.GET("/:id", withdrawalHandler.Get)
		admin.POST("/:id/approve", withdrawalHandler.Approve)
		admin.POST("/:id/reject", withdrawalHandler.Reject)
		admin.POST("/:id/paid", withdrawalHandler.MarkPaid)
		admin.POST("/:id/failed", withdrawalHandler.MarkFailed)
	}

	return r
}
