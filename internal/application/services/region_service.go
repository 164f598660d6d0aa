package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/erboard/backend/internal/domain/providers"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/observability"
	"github.com/erboard/backend/pkg/utils"
)

// RegionIndexCacheKey is where the province to district index is cached.
const RegionIndexCacheKey = "region_dict_json:v1"

// RegionService builds the region selectors
type RegionService struct {
	facilities repositories.FacilityRepository
	cache      providers.CacheProvider
	ttl        time.Duration
	metrics    *observability.Metrics
}

// NewRegionService creates a new region service. cache and metrics may be nil.
func NewRegionService(facilities repositories.FacilityRepository, cache providers.CacheProvider, ttl time.Duration, metrics *observability.Metrics) *RegionService {
	return &RegionService{
		facilities: facilities,
		cache:      cache,
		ttl:        ttl,
		metrics:    metrics,
	}
}

// RegionIndex maps each normalized province to its sorted districts.
func (s *RegionService) RegionIndex(ctx context.Context) (map[string][]string, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, RegionIndexCacheKey)
		if err == nil {
			var index map[string][]string
			if json.Unmarshal(raw, &index) == nil {
				observability.RecordCacheLookup(ctx, s.metrics, "region_index", true)
				return index, nil
			}
		} else if !errors.Is(err, providers.ErrCacheMiss) {
			observability.ComponentLogger(ctx, "regions").Debug().Err(err).Msg("region index cache read failed")
		}
		observability.RecordCacheLookup(ctx, s.metrics, "region_index", false)
	}

	pairs, err := s.facilities.RegionPairs(ctx)
	if err != nil {
		return nil, err
	}

	buckets := make(map[string]map[string]struct{})
	for _, p := range pairs {
		if p.Sido == "" || p.Sigungu == "" {
			continue
		}
		sido := utils.NormalizeSido(p.Sido)
		if buckets[sido] == nil {
			buckets[sido] = make(map[string]struct{})
		}
		buckets[sido][p.Sigungu] = struct{}{}
	}

	index := make(map[string][]string, len(buckets))
	for sido, set := range buckets {
		list := make([]string, 0, len(set))
		for sg := range set {
			list = append(list, sg)
		}
		sort.Strings(list)
		index[sido] = list
	}

	if s.cache != nil {
		if raw, err := json.Marshal(index); err == nil {
			if err := s.cache.Set(ctx, RegionIndexCacheKey, raw, s.ttl); err != nil {
				observability.ComponentLogger(ctx, "regions").Debug().Err(err).Msg("region index cache write failed")
			}
		}
	}
	return index, nil
}

// SidoList returns the sorted normalized provinces of an index.
func SidoList(index map[string][]string) []string {
	out := make([]string, 0, len(index))
	for sido := range index {
		out = append(out, sido)
	}
	sort.Strings(out)
	return out
}

// Sigungu returns the districts of sido under any of its spellings. An empty sido yields none.
func (s *RegionService) Sigungu(ctx context.Context, sido string) ([]string, error) {
	if !utils.IsRegionSelected(sido) {
		return []string{}, nil
	}
	return s.facilities.Sigungus(ctx, utils.SidoVariants(sido))
}

// Invalidate drops the cached index.
func (s *RegionService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Delete(ctx, RegionIndexCacheKey)
}
