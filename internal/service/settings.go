package service

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/pos-loyalty/internal/cache"
	"github.com/josh-kwaku/pos-loyalty/internal/domain"
	"github.com/josh-kwaku/pos-loyalty/internal/logging"
)

type settingsStore interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, values map[string]string, updatedBy uuid.UUID) error
}

// SettingsService reads loyalty settings through a cache and hands out typed copies.
type SettingsService struct {
	store settingsStore
	cache cache.SettingsCache
	ttl   time.Duration
}

func NewSettingsService(store settingsStore, c cache.SettingsCache, ttl time.Duration) *SettingsService {
	if c == nil {
		c = cache.NoopSettingsCache{}
	}
	return &SettingsService{store: store, cache: c, ttl: ttl}
}

func (s *SettingsService) Load(ctx context.Context) (domain.LoyaltySettings, error) {
	raw, err := s.raw(ctx)
	if err != nil {
		return domain.LoyaltySettings{}, fmt.Errorf("Load: %w", err)
	}

	settings, err := domain.ParseLoyaltySettings(raw)
	if err != nil {
		return domain.LoyaltySettings{}, fmt.Errorf("Load: %w", err)
	}
	return settings, nil
}

// Update merges values over the stored settings. The merged result must parse before anything is written.
func (s *SettingsService) Update(ctx context.Context, values map[string]string, updatedBy uuid.UUID) (domain.LoyaltySettings, error) {
	log := logging.FromContext(ctx)

	if len(values) == 0 {
		return domain.LoyaltySettings{}, fmt.Errorf("Update: no values: %w", domain.ErrInvalidRequest)
	}

	clean := make(map[string]string, len(values))
	for k, v := range values {
		k = strings.TrimSpace(k)
		if !domain.IsKnownSetting(k) {
			return domain.LoyaltySettings{}, fmt.Errorf("Update: unknown key %q: %w", k, domain.ErrInvalidSettings)
		}
		clean[k] = strings.TrimSpace(v)
	}

	current, err := s.store.GetAll(ctx)
	if err != nil {
		return domain.LoyaltySettings{}, fmt.Errorf("Update: %w", err)
	}
	merged := maps.Clone(current)
	if merged == nil {
		merged = make(map[string]string, len(clean))
	}
	maps.Copy(merged, clean)

	settings, err := domain.ParseLoyaltySettings(merged)
	if err != nil {
		return domain.LoyaltySettings{}, fmt.Errorf("Update: %w", err)
	}

	if err := s.store.Upsert(ctx, clean, updatedBy); err != nil {
		return domain.LoyaltySettings{}, fmt.Errorf("Update: %w", err)
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		log.Warn("failed to invalidate settings cache", "error", err)
	}

	log.Info("loyalty settings updated", "keys", len(clean), "updated_by", updatedBy)
	return settings, nil
}

func (s *SettingsService) raw(ctx context.Context) (map[string]string, error) {
	log := logging.FromContext(ctx)

	cached, ok, err := s.cache.Get(ctx)
	if err != nil {
		log.Warn("settings cache read failed", "error", err)
	}
	if ok {
		return cached, nil
	}

	values, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("raw: %w", err)
	}

	if err := s.cache.Set(ctx, values, s.ttl); err != nil {
		log.Warn("settings cache write failed", "error", err)
	}
	return values, nil
}
