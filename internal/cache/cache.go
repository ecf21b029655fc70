package cache

import (
	"context"
	"time"
)

// SettingsCache holds the raw loyalty_settings map between reads.
type SettingsCache interface {
	Get(ctx context.Context) (map[string]string, bool, error)
	Set(ctx context.Context, values map[string]string, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopSettingsCache struct{}

func (NoopSettingsCache) Get(_ context.Context) (map[string]string, bool, error) {
	return nil, false, nil
}

func (NoopSettingsCache) Set(_ context.Context, _ map[string]string, _ time.Duration) error {
	return nil
}

func (NoopSettingsCache) Invalidate(_ context.Context) error {
	return nil
}
