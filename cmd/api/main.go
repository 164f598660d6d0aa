package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/erboard/backend/internal/api/handlers"
	"github.com/erboard/backend/internal/api/middleware"
	"github.com/erboard/backend/internal/api/routes"
	"github.com/erboard/backend/internal/application/services"
	"github.com/erboard/backend/internal/bootstrap"
	"github.com/erboard/backend/internal/infrastructure/observability"
	"github.com/erboard/backend/pkg/config"
	apperrors "github.com/erboard/backend/pkg/errors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var hooks []zerolog.Hook
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		telemetry, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			hooks = append(hooks, telemetry.LogHook)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
		}
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Environment, hooks...)

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	upstream := cfg.ERAPI.Validate() == nil
	if !upstream {
		log.Warn().Msg("ER_API_SERVICE_KEY is not set; admin sync endpoints will fail")
	}

	container, err := bootstrap.New(ctx, cfg, metrics, bootstrap.Options{Search: true, Upstream: upstream})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize dependencies")
	}
	defer container.Close()

	invalidation := services.NewCacheInvalidationService(container.Cache, container.EventBus)
	if err := invalidation.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to start cache invalidation service")
	}
	defer invalidation.Stop()

	warming := services.NewCacheWarmingService(container.Regions)
	go warming.StartPeriodicWarming(ctx, cfg.Sync.RegionIndexTTL/2)

	// nil interfaces rather than typed nils when optional parts are missing
	var searcher handlers.FacilitySearcher
	var reindexer handlers.Reindexer
	if container.Index != nil {
		searcher = container.Index
		reindexer = container.Index
	}
	var syncRunner handlers.SyncRunner = unavailableSync{}
	if container.Sync != nil {
		syncRunner = container.Sync
	}

	erHandler := handlers.NewERHandler(container.Dashboard, container.Preferences, container.Regions, searcher)
	syncHandler := handlers.NewSyncHandler(syncRunner, reindexer, container.Redis.Client(), 10*time.Minute)
	sseHandler := handlers.NewSSEHandler(container.EventBus)
	cacheMiddleware := middleware.NewCacheMiddleware(container.Cache, metrics)

	router := routes.NewRouter(erHandler, syncHandler, sseHandler, cacheMiddleware, metrics)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// the event stream and a full sync outlive a short write timeout
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}

// unavailableSync answers admin triggers when no upstream key is configured.
type unavailableSync struct{}

func (unavailableSync) RunCycle(context.Context) (*services.CycleSummary, error) {
	return nil, apperrors.NewValidationError("ER_API_SERVICE_KEY is not configured")
}

func (unavailableSync) SyncMessages(context.Context) (services.MessageSummary, error) {
	return services.MessageSummary{}, apperrors.NewValidationError("ER_API_SERVICE_KEY is not configured")
}
