// Package bootstrap wires clients, adapters and services for the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/erboard/backend/internal/adapters/cache"
	"github.com/erboard/backend/internal/adapters/database"
	"github.com/erboard/backend/internal/adapters/events"
	"github.com/erboard/backend/internal/adapters/search"
	"github.com/erboard/backend/internal/application/services"
	"github.com/erboard/backend/internal/domain/providers"
	"github.com/erboard/backend/internal/domain/repositories"
	"github.com/erboard/backend/internal/infrastructure/clients/erapi"
	"github.com/erboard/backend/internal/infrastructure/clients/postgres"
	"github.com/erboard/backend/internal/infrastructure/clients/redis"
	"github.com/erboard/backend/internal/infrastructure/clients/typesense"
	"github.com/erboard/backend/internal/infrastructure/observability"
	"github.com/erboard/backend/pkg/config"
)

// Options selects the optional parts of the container.
type Options struct {
	// Search connects to Typesense. A failed connection disables search
	// instead of failing the build.
	Search bool
	// Upstream builds the ER API client. It requires a service key.
	Upstream bool
}

// Container holds everything a binary needs to serve or sync.
type Container struct {
	Config  *config.Config
	Metrics *observability.Metrics

	Postgres  *postgres.Client
	Redis     *redis.Client
	Typesense *typesense.Client

	Cache    providers.CacheProvider
	EventBus providers.EventBus

	Facilities repositories.FacilityRepository
	Staging    repositories.StagingRepository
	Current    repositories.CurrentStatusRepository
	Messages   repositories.MessageRepository
	Search     repositories.FacilitySearchRepository

	Regions     *services.RegionService
	Preferences *services.PreferenceService
	Dashboard   *services.DashboardService
	Index       *services.IndexService
	// Sync is nil unless Options.Upstream is set.
	Sync *services.SyncService
}

// New connects to the backing stores and builds the service graph.
// Close releases everything New opened, also after a partial failure.
func New(ctx context.Context, cfg *config.Config, metrics *observability.Metrics, opts Options) (_ *Container, err error) {
	c := &Container{Config: cfg, Metrics: metrics}
	defer func() {
		if err != nil {
			_ = c.Close()
		}
	}()

	c.Postgres, err = postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err = c.Postgres.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}

	c.Redis, err = redis.NewClient(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	c.Cache = cache.NewRedisAdapter(c.Redis, "")
	c.EventBus = events.NewRedisEventBus(c.Redis)

	c.Facilities = database.NewCachedFacilityAdapter(database.NewFacilityAdapter(c.Postgres), c.Cache, metrics)
	c.Staging = database.NewStagingAdapter(c.Postgres)
	c.Current = database.NewCurrentStatusAdapter(c.Postgres, cfg.Sync.AdvisoryLockKey)
	c.Messages = database.NewMessageAdapter(c.Postgres)

	if opts.Search {
		c.connectSearch(ctx)
	}

	ranking := services.NewRankingService()
	c.Regions = services.NewRegionService(c.Facilities, c.Cache, cfg.Sync.RegionIndexTTL, metrics)
	c.Preferences = services.NewPreferenceService(c.Cache)
	c.Dashboard = services.NewDashboardService(c.Facilities, c.Current, c.Messages, ranking)
	if c.Search != nil {
		c.Index = services.NewIndexService(c.Facilities, c.Current, c.Search)
	}

	if opts.Upstream {
		if err = cfg.ERAPI.Validate(); err != nil {
			return nil, err
		}
		client := erapi.NewClient(&cfg.ERAPI, metrics)
		fetcher := services.NewStatusFetcher(client, c.Facilities, c.Cache, services.FetcherConfig{
			Workers:        cfg.ERAPI.Workers,
			RequestTimeout: cfg.ERAPI.Timeout,
			BasicInfoTTL:   cfg.Sync.BasicInfoTTL,
		}, metrics)
		c.Sync = services.NewSyncService(
			fetcher,
			services.NewStagingService(c.Staging, c.Facilities),
			services.NewMergeService(c.Staging, c.Current, c.Facilities),
			services.NewMessageService(client, c.Facilities, c.Messages, cfg.ERAPI.Workers, cfg.ERAPI.Timeout),
			c.Regions,
			c.EventBus,
			metrics,
		)
	}

	return c, nil
}

func (c *Container) connectSearch(ctx context.Context) {
	client, err := typesense.NewClient(&c.Config.Typesense)
	if err != nil {
		log.Warn().Err(err).Msg("Typesense unavailable, search disabled")
		return
	}
	adapter := search.NewTypesenseAdapter(client)
	if err := adapter.InitSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to init Typesense schema, search disabled")
		return
	}
	c.Typesense = client
	c.Search = adapter
}

// Close shuts down the event bus and the store connections.
func (c *Container) Close() error {
	var errs []error
	if c.EventBus != nil {
		errs = append(errs, c.EventBus.Close())
	}
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.Postgres != nil {
		errs = append(errs, c.Postgres.Close())
	}
	return errors.Join(errs...)
}
