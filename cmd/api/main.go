package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/josh-kwaku/pos-loyalty/internal/cache"
	"github.com/josh-kwaku/pos-loyalty/internal/config"
	"github.com/josh-kwaku/pos-loyalty/internal/events"
	"github.com/josh-kwaku/pos-loyalty/internal/handler"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
	"github.com/josh-kwaku/pos-loyalty/internal/repository"
	"github.com/josh-kwaku/pos-loyalty/internal/service"
	"github.com/josh-kwaku/pos-loyalty/internal/service/loyalty"
	"github.com/josh-kwaku/pos-loyalty/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("loyalty-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	checks := map[string]handler.HealthCheck{}

	var settingsCache cache.SettingsCache = cache.NoopSettingsCache{}
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisSettingsCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, settings will be read from postgres until it recovers", "error", err)
		}
		settingsCache = rc
		checks["redis"] = rc.Ping
	}

	nc, err := events.Connect(cfg.NatsURL, "loyalty-api")
	if err != nil {
		slog.Error("failed to connect to nats", "error", err)
		os.Exit(1)
	}
	var publisher events.Publisher = events.NoopPublisher{}
	if nc != nil {
		defer nc.Close()
		publisher = events.NewNatsPublisher(nc)
		checks["nats"] = natsCheck(nc)
	}

	customers := repository.NewCustomerRepository(db)
	ledger := repository.NewLedgerRepository(db)
	users := repository.NewUserRepository(db)
	idempotency := repository.NewIdempotencyRepository(db)

	settingsSvc := service.NewSettingsService(repository.NewSettingsRepository(db), settingsCache, cfg.SettingsCacheTTL)
	loyaltySvc := loyalty.NewService(customers, ledger, settingsSvc, publisher, db)

	mux := routes(routeDeps{
		cfg:         cfg,
		auth:        handler.NewAuthHandler(users, cfg.JWTSecret, cfg.JWTExpiry),
		health:      handler.NewHealthHandler(db, checks),
		loyalty:     handler.NewLoyaltyHandler(loyaltySvc),
		settings:    handler.NewSettingsHandler(settingsSvc),
		idempotency: idempotency,
		logger:      logger,
	})

	var wg sync.WaitGroup

	janitor := service.NewIdempotencyJanitor(idempotency, logger, cfg.IdempotencyCleanInterval)
	wg.Add(1)
	go func() {
		defer wg.Done()
		janitor.Start(ctx)
	}()

	if nc != nil {
		consumer := worker.NewSalesConsumer(loyaltySvc, nc, cfg.SalesSubject, cfg.SalesQueue, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil {
				slog.Error("sales consumer stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	wg.Wait()
	slog.Info("server stopped")
}

func natsCheck(nc *nats.Conn) handler.HealthCheck {
	return func(_ context.Context) error {
		if !nc.IsConnected() {
			return errors.New(nc.Status().String())
		}
		return nil
	}
}
