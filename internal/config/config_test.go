package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/loyalty")
	t.Setenv("JWT_SECRET", strongSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 8*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 30*time.Second, cfg.SettingsCacheTTL)
	assert.Equal(t, "pos.sales.completed", cfg.SalesSubject)
	assert.Equal(t, time.Hour, cfg.IdempotencyCleanInterval)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.NatsURL)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", strongSecret)

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/loyalty")
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/loyalty")
	t.Setenv("JWT_SECRET", strongSecret)
	t.Setenv("PORT", "9090")
	t.Setenv("SETTINGS_CACHE_TTL", "2m")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, 2*time.Minute, cfg.SettingsCacheTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}
