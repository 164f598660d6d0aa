package database

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/providers"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/observability"
)

// CachedFacilityAdapter wraps a FacilityRepository with read-through caching.
// Facilities are maintained by an external import, so entries only expire.
type CachedFacilityAdapter struct {
	repositories.FacilityRepository
	cache   providers.CacheProvider
	metrics *observability.Metrics
}

// NewCachedFacilityAdapter creates a new cached facility adapter. metrics may be nil.
func NewCachedFacilityAdapter(adapter repositories.FacilityRepository, cache providers.CacheProvider, metrics *observability.Metrics) repositories.FacilityRepository {
	return &CachedFacilityAdapter{
		FacilityRepository: adapter,
		cache:              cache,
		metrics:            metrics,
	}
}

const (
	facilityByIDTTL = 5 * time.Minute
	sigungusTTL     = 10 * time.Minute
)

func facilityCacheKey(id int64) string {
	return "er:facility:" + strconv.FormatInt(id, 10)
}

func sigungusCacheKey(sidoVariants []string) string {
	return "er:sigungu:" + strings.Join(sidoVariants, "|")
}

// GetByID retrieves a facility by ID with caching
func (a *CachedFacilityAdapter) GetByID(ctx context.Context, id int64) (*entities.Facility, error) {
	key := facilityCacheKey(id)

	var facility entities.Facility
	if a.lookup(ctx, "facility", key, &facility) {
		return &facility, nil
	}

	f, err := a.FacilityRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.store(ctx, key, f, facilityByIDTTL)
	return f, nil
}

// Sigungus returns the districts of a province with caching
func (a *CachedFacilityAdapter) Sigungus(ctx context.Context, sidoVariants []string) ([]string, error) {
	key := sigungusCacheKey(sidoVariants)

	var list []string
	if a.lookup(ctx, "sigungu", key, &list) {
		return list, nil
	}

	list, err := a.FacilityRepository.Sigungus(ctx, sidoVariants)
	if err != nil {
		return nil, err
	}
	a.store(ctx, key, list, sigungusTTL)
	return list, nil
}

// lookup decodes a cached value into dest. Any failure counts as a miss.
func (a *CachedFacilityAdapter) lookup(ctx context.Context, family, key string, dest interface{}) bool {
	cached, err := a.cache.Get(ctx, key)
	if err == nil {
		if err = json.Unmarshal(cached, dest); err == nil {
			observability.RecordCacheLookup(ctx, a.metrics, family, true)
			return true
		}
		log.Warn().Err(err).Str("key", key).Msg("Failed to decode cached value")
	}
	observability.RecordCacheLookup(ctx, a.metrics, family, false)
	return false
}

func (a *CachedFacilityAdapter) store(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, data, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache value")
	}
}
