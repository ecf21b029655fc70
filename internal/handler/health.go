package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheck reports whether an optional dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	db     *sql.DB
	checks map[string]HealthCheck
}

func NewHealthHandler(db *sql.DB, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{db: db, checks: checks}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness fails only on the database. Cache and broker outages degrade but do not stop the service.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	httpStatus := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		checks["database"] = "down"
		httpStatus = http.StatusServiceUnavailable
	}

	for name, check := range h.checks {
		checks[name] = "ok"
		if err := check(r.Context()); err != nil {
			slog.Warn("readiness check degraded", "check", name, "error", err)
			checks[name] = "degraded"
		}
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
