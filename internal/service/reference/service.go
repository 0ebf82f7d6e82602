// Package reference keeps each business' income sources, receipt types,
// custom parameters and products available offline.
package reference

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/daybook-sync/internal/domain/models"
)

// Provider fetches the reference configuration from the remote store.
type Provider interface {
	FetchReferenceConfig(ctx context.Context, businessID string) (models.ReferenceConfig, error)
}

// Cache persists the last fetched configuration on the device.
type Cache interface {
	SaveReferenceConfig(ctx context.Context, cfg models.ReferenceConfig) error
	LoadReferenceConfig(ctx context.Context, businessID string) (models.ReferenceConfig, error)
}

// Service reads reference configuration remote-first with a cached fallback.
type Service struct {
	provider Provider
	cache    Cache
	logger   *zap.Logger
}

// NewService builds the reference service. cache may be nil when the device
// store is unavailable.
func NewService(provider Provider, cache Cache, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{provider: provider, cache: cache, logger: logger}
}

// Refresh fetches the configuration and caches it. When the fetch fails the
// cached copy is returned alongside stale=true.
func (s *Service) Refresh(ctx context.Context, businessID string) (models.ReferenceConfig, bool, error) {
	cfg, err := s.provider.FetchReferenceConfig(ctx, businessID)
	if err != nil {
		s.logger.Warn("reference fetch failed, using cache", zap.String("business_id", businessID), zap.Error(err))
		cached, cacheErr := s.Load(ctx, businessID)
		if cacheErr != nil {
			return models.ReferenceConfig{}, false, fmt.Errorf("fetch reference config for %s: %w", businessID, errors.Join(err, cacheErr))
		}
		return cached, true, nil
	}

	if s.cache != nil {
		if err := s.cache.SaveReferenceConfig(ctx, cfg); err != nil {
			s.logger.Error("failed to cache reference config", zap.String("business_id", businessID), zap.Error(err))
		}
	}

	s.logger.Info("reference config refreshed",
		zap.String("business_id", businessID),
		zap.Int("income_sources", len(cfg.IncomeSources)),
		zap.Int("products", len(cfg.Products)))

	return cfg, false, nil
}

// Load returns the cached configuration.
func (s *Service) Load(ctx context.Context, businessID string) (models.ReferenceConfig, error) {
	if s.cache == nil {
		return models.ReferenceConfig{}, models.ErrReferenceConfigNotFound
	}
	return s.cache.LoadReferenceConfig(ctx, businessID)
}

// RefreshAll refreshes every listed business, logging failures.
func (s *Service) RefreshAll(ctx context.Context, businessIDs []string) {
	for _, id := range businessIDs {
		if _, _, err := s.Refresh(ctx, id); err != nil {
			s.logger.Error("reference refresh failed", zap.String("business_id", id), zap.Error(err))
		}
	}
}
