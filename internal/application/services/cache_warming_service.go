package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// CacheWarmingService preloads caches the dashboard reads on first paint
type CacheWarmingService struct {
	regions *RegionService
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(regions *RegionService) *CacheWarmingService {
	return &CacheWarmingService{regions: regions}
}

// WarmCache builds the region index so the first selector request is served from cache
func (s *CacheWarmingService) WarmCache(ctx context.Context) error {
	index, err := s.regions.RegionIndex(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to warm region index")
		return err
	}
	log.Info().Int("provinces", len(index)).Msg("Cache warming completed")
	return nil
}

// StartPeriodicWarming warms once, then again every interval until ctx is done.
// It blocks; run it in its own goroutine.
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	_ = s.WarmCache(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Info().Dur("interval", interval).Msg("Started periodic cache warming")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Stopping cache warming service")
			return
		case <-ticker.C:
			_ = s.WarmCache(ctx)
		}
	}
}
