package main

import (
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/pos-loyalty/internal/auth"
	"github.com/josh-kwaku/pos-loyalty/internal/config"
	"github.com/josh-kwaku/pos-loyalty/internal/handler"
	"github.com/josh-kwaku/pos-loyalty/internal/middleware"
	"github.com/josh-kwaku/pos-loyalty/internal/repository"
)

type routeDeps struct {
	cfg         *config.Config
	auth        *handler.AuthHandler
	health      *handler.HealthHandler
	loyalty     *handler.LoyaltyHandler
	settings    *handler.SettingsHandler
	idempotency *repository.IdempotencyRepository
	logger      *slog.Logger
}

func routes(d routeDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", d.health.Liveness)
	mux.HandleFunc("GET /health/ready", d.health.Readiness)
	mux.HandleFunc("POST /api/v1/auth/login", d.auth.Login)

	authed := middleware.Auth(d.cfg.JWTSecret)
	idem := middleware.Idempotency(d.idempotency)

	read := func(perm auth.Permission, h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, authed, middleware.RequirePermission(perm))
	}
	write := func(perm auth.Permission, h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, authed, middleware.RequirePermission(perm), idem)
	}

	mux.Handle("GET /api/v1/loyalty/settings", read(auth.PermLoyaltySettingsView, d.settings.Get))
	mux.Handle("PUT /api/v1/loyalty/settings", write(auth.PermLoyaltySettingsEdit, d.settings.Update))

	// Preview writes nothing, so it skips the idempotency cache.
	mux.Handle("POST /api/v1/loyalty/calculate", read(auth.PermLoyaltyView, d.loyalty.Calculate))

	mux.Handle("GET /api/v1/customers/{id}/points", read(auth.PermLoyaltyView, d.loyalty.GetBalance))
	mux.Handle("POST /api/v1/customers/{id}/points", write(auth.PermLoyaltyAdjust, d.loyalty.AddPoints))
	mux.Handle("POST /api/v1/customers/{id}/points/redeem", write(auth.PermLoyaltyRedeem, d.loyalty.RedeemPoints))
	mux.Handle("POST /api/v1/customers/{id}/points/welcome", write(auth.PermLoyaltyAdjust, d.loyalty.AwardWelcomeBonus))
	mux.Handle("POST /api/v1/customers/{id}/points/purchases", write(auth.PermLoyaltyAccrue, d.loyalty.AccruePurchase))

	mux.Handle("GET /api/v1/loyalty/transactions", read(auth.PermLoyaltyView, d.loyalty.ListTransactions))
	mux.Handle("POST /api/v1/loyalty/transactions/{id}/approve", write(auth.PermLoyaltyApprove, d.loyalty.Approve))
	mux.Handle("POST /api/v1/loyalty/transactions/{id}/reject", write(auth.PermLoyaltyApprove, d.loyalty.Reject))

	return middleware.Chain(mux,
		middleware.Tracing,
		middleware.Logging(d.logger),
		middleware.Recovery,
	)
}
