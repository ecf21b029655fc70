package service

import (
	"context"
	"log/slog"
	"time"
)

type idempotencyPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// IdempotencyJanitor periodically drops expired idempotency responses.
type IdempotencyJanitor struct {
	store    idempotencyPurger
	logger   *slog.Logger
	interval time.Duration
}

func NewIdempotencyJanitor(store idempotencyPurger, logger *slog.Logger, interval time.Duration) *IdempotencyJanitor {
	return &IdempotencyJanitor{store: store, logger: logger, interval: interval}
}

func (j *IdempotencyJanitor) Start(ctx context.Context) {
	j.logger.Info("idempotency janitor started", "interval", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("idempotency janitor stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *IdempotencyJanitor) sweep(ctx context.Context) {
	n, err := j.store.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		j.logger.Error("failed to purge idempotency cache", "error", err)
		return
	}
	if n > 0 {
		j.logger.Info("purged idempotency cache", "rows", n)
	}
}
