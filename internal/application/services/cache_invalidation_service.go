package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/providers"
)

// CacheInvalidationService drops derived caches when another process
// (typically erctl) finishes an ingestion step.
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for status events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelStatus)
	if err != nil {
		return fmt.Errorf("failed to subscribe to status events: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Msg("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	log.Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.StatusEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.StatusEvent) {
	if event.Type != entities.StatusEventRefreshed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.cache.Delete(ctx, RegionIndexCacheKey); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Msg("failed to invalidate region index")
		return
	}
	log.Debug().Str("event_id", event.ID).Msg("invalidated region index")
}
