package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string        `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string        `env:"JWT_SECRET,required,notEmpty"`
	JWTExpiry   time.Duration `env:"JWT_EXPIRY" envDefault:"8h"`
	Port        int           `env:"PORT" envDefault:"8080"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string        `env:"APP_ENV" envDefault:"production"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`

	// Redis is optional; settings are read straight from Postgres without it.
	RedisAddr        string        `env:"REDIS_ADDR"`
	RedisPassword    string        `env:"REDIS_PASSWORD"`
	RedisDB          int           `env:"REDIS_DB" envDefault:"0"`
	SettingsCacheTTL time.Duration `env:"SETTINGS_CACHE_TTL" envDefault:"30s"`

	// NATS is optional; ledger events are dropped and the sales feed is not consumed without it.
	NatsURL      string `env:"NATS_URL"`
	SalesSubject string `env:"SALES_SUBJECT" envDefault:"pos.sales.completed"`
	SalesQueue   string `env:"SALES_QUEUE" envDefault:"loyalty"`

	IdempotencyCleanInterval time.Duration `env:"IDEMPOTENCY_CLEAN_INTERVAL" envDefault:"1h"`
}

func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("config.Load: JWT_SECRET must be at least 32 characters")
	}
	return &cfg, nil
}

func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}
