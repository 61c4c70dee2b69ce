// Package router registers the HTTP routes and their middleware.
package router

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ursol-insurance/internal/config"
	"github.com/iliyamo/ursol-insurance/internal/handler"
	"github.com/iliyamo/ursol-insurance/internal/middleware"
)

// Handlers bundles every handler the API exposes.
type Handlers struct {
	User      *handler.UserHandler
	Portfolio *handler.PortfolioHandler
	Payment   *handler.PaymentHandler
	Verify    *handler.VerifyHandler
	Dashboard *handler.DashboardHandler
}

// RegisterOps registers the unauthenticated operational endpoints.
func RegisterOps(e *echo.Echo, health echo.HandlerFunc) {
	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAPI registers the /api routes. Every route resolves the caller
// through the identity middleware; mutating routes also pass through the
// token bucket and GET /api/tiers through the response cache.
func RegisterAPI(e *echo.Echo, h Handlers, cfg config.Config, rdb *redis.Client, log *slog.Logger) {
	api := e.Group("/api", middleware.Identity(cfg.JWTSecret, cfg.DefaultUserID))
	limit := middleware.NewTokenBucket(cfg.RateLimit, rdb, log)
	cache := middleware.NewRedisCache(cfg.Cache, rdb, log)

	// Demo sign-in: it trusts the address it is given, so it only exists
	// in development.
	if cfg.JWTSecret != "" && cfg.IsDevelopment() {
		api.POST("/auth/token", h.User.IssueToken, limit)
	}

	api.GET("/user", h.User.GetUser)
	api.PATCH("/user/balance", h.User.UpdateBalance, limit)

	api.GET("/tiers", h.Portfolio.Tiers, cache)
	api.GET("/policies", h.Portfolio.ListPolicies)
	api.POST("/policies", h.Portfolio.MintPolicy, limit)
	api.GET("/staking", h.Portfolio.ListStaking)
	api.POST("/staking", h.Portfolio.Stake, limit)
	api.POST("/staking/:id/claim", h.Portfolio.ClaimRewards, limit)
	api.GET("/loans", h.Portfolio.ListLoans)
	api.POST("/loans", h.Portfolio.Borrow, limit)
	api.GET("/beneficiaries", h.Portfolio.ListBeneficiaries)
	api.POST("/beneficiaries", h.Portfolio.SaveBeneficiary, limit)
	api.GET("/claims", h.Portfolio.ListClaims)
	api.POST("/claims", h.Portfolio.FileClaim, limit)
	api.GET("/activities", h.Portfolio.ListActivities)

	api.GET("/payments", h.Payment.ListPayments)
	api.POST("/initiate-payment", h.Payment.Initiate, limit)
	api.POST("/payments/initiate", h.Payment.InitiateLegacy, limit)
	api.POST("/confirm-payment", h.Payment.Confirm, limit)

	api.POST("/verify", h.Verify.Verify, limit)
	api.GET("/dashboard", h.Dashboard.Summary)
}
