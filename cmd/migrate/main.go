// Command migrate applies the embedded schema migrations.
//
//	migrate [up|down|status|redo|version|up-to VERSION|down-to VERSION]
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/josh-kwaku/pos-loyalty/internal/logging"
	"github.com/josh-kwaku/pos-loyalty/internal/repository"
)

type migrateConfig struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
}

func main() {
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}
	var args []string
	if flag.NArg() > 1 {
		args = flag.Args()[1:]
	}

	_ = godotenv.Load()
	cfg, err := env.ParseAs[migrateConfig]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init("loyalty-migrate", cfg.LogLevel, cfg.AppEnv)

	ctx := context.Background()
	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := repository.Migrate(ctx, db, command, args...); err != nil {
		slog.Error("migration failed", "command", command, "error", err)
		db.Close()
		os.Exit(1)
	}
	db.Close()
	slog.Info("migration finished", "command", command)
}
