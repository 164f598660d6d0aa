package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/providers"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/observability"
)

const basicInfoCachePrefix = "er:basic:"

// FetcherConfig bounds the upstream fan-out.
type FetcherConfig struct {
	Workers        int
	RequestTimeout time.Duration
	BasicInfoTTL   time.Duration
}

// StatusFetcher pulls real-time readings from the upstream API. It never
// writes to the database.
type StatusFetcher struct {
	provider   providers.ERDataProvider
	facilities repositories.FacilityRepository
	cache      providers.CacheProvider
	cfg        FetcherConfig
	metrics    *observability.Metrics
}

// NewStatusFetcher creates a new fetcher. cache and metrics may be nil.
func NewStatusFetcher(
	provider providers.ERDataProvider,
	facilities repositories.FacilityRepository,
	cache providers.CacheProvider,
	cfg FetcherConfig,
	metrics *observability.Metrics,
) *StatusFetcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &StatusFetcher{
		provider:   provider,
		facilities: facilities,
		cache:      cache,
		cfg:        cfg,
		metrics:    metrics,
	}
}

// RegionPairs returns the distinct (sido, sigungu) pairs of known facilities, sorted.
func (f *StatusFetcher) RegionPairs(ctx context.Context) ([]entities.RegionPair, error) {
	pairs, err := f.facilities.RegionPairs(ctx)
	if err != nil {
		return nil, err
	}
	return dedupePairs(pairs), nil
}

func dedupePairs(pairs []entities.RegionPair) []entities.RegionPair {
	seen := make(map[entities.RegionPair]struct{}, len(pairs))
	out := make([]entities.RegionPair, 0, len(pairs))
	for _, p := range pairs {
		if p.Sido == "" || p.Sigungu == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sido != out[j].Sido {
			return out[i].Sido < out[j].Sido
		}
		return out[i].Sigungu < out[j].Sigungu
	})
	return out
}

// FetchRegions issues one upstream request per pair on a bounded pool and
// concatenates the successful results in pair order. A failed or slow region
// is logged and contributes nothing.
func (f *StatusFetcher) FetchRegions(ctx context.Context, pairs []entities.RegionPair) ([]*entities.StagingReading, error) {
	logger := observability.ComponentLogger(ctx, "fetcher")
	pairs = dedupePairs(pairs)
	results := make([][]*entities.StagingReading, len(pairs))

	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			rctx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
			defer cancel()

			rows, err := f.provider.FetchRegion(rctx, pair)
			if err != nil {
				logger.Warn().Err(err).Str("sido", pair.Sido).Str("sigungu", pair.Sigungu).Msg("region fetch failed, skipping")
				return nil
			}
			if len(rows) == 0 {
				logger.Debug().Str("sido", pair.Sido).Str("sigungu", pair.Sigungu).Msg("region returned no rows")
			}
			results[i] = rows
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	out := make([]*entities.StagingReading, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}

	logger.Info().Int("regions", len(pairs)).Int("rows", len(out)).Msg("region fetch complete")
	return out, nil
}

// FetchBasicInfo looks up the facility-level hints of hpids. Cached entries
// are served from the cache; failures are logged and left out of the result.
func (f *StatusFetcher) FetchBasicInfo(ctx context.Context, hpids []string) map[string]*entities.BasicInfo {
	logger := observability.ComponentLogger(ctx, "fetcher")

	unique := make([]string, 0, len(hpids))
	seen := make(map[string]struct{}, len(hpids))
	for _, h := range hpids {
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		unique = append(unique, h)
	}

	var mu sync.Mutex
	out := make(map[string]*entities.BasicInfo, len(unique))

	var g errgroup.Group
	g.SetLimit(f.cfg.Workers)
	for _, hpid := range unique {
		hpid := hpid
		g.Go(func() error {
			if info := f.cachedBasicInfo(ctx, hpid); info != nil {
				mu.Lock()
				out[hpid] = info
				mu.Unlock()
				return nil
			}

			rctx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
			defer cancel()

			info, err := f.provider.FetchBasicInfo(rctx, hpid)
			if err != nil {
				logger.Warn().Err(err).Str("hpid", hpid).Msg("basic info fetch failed, skipping")
				return nil
			}
			f.storeBasicInfo(ctx, hpid, info)

			mu.Lock()
			out[hpid] = info
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logger.Info().Int("requested", len(unique)).Int("resolved", len(out)).Msg("basic info lookup complete")
	return out
}

func (f *StatusFetcher) cachedBasicInfo(ctx context.Context, hpid string) *entities.BasicInfo {
	if f.cache == nil {
		return nil
	}
	raw, err := f.cache.Get(ctx, basicInfoCachePrefix+hpid)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.ComponentLogger(ctx, "fetcher").Debug().Err(err).Str("hpid", hpid).Msg("basic info cache read failed")
		}
		observability.RecordCacheLookup(ctx, f.metrics, "basic_info", false)
		return nil
	}

	var info entities.BasicInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		observability.RecordCacheLookup(ctx, f.metrics, "basic_info", false)
		return nil
	}
	observability.RecordCacheLookup(ctx, f.metrics, "basic_info", true)
	return &info
}

func (f *StatusFetcher) storeBasicInfo(ctx context.Context, hpid string, info *entities.BasicInfo) {
	if f.cache == nil || info == nil || f.cfg.BasicInfoTTL <= 0 {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	if err := f.cache.Set(ctx, basicInfoCachePrefix+hpid, raw, f.cfg.BasicInfoTTL); err != nil {
		observability.ComponentLogger(ctx, "fetcher").Debug().Err(err).Str("hpid", hpid).Msg("basic info cache write failed")
	}
}
