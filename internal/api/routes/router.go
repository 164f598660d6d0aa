package routes

import (
	"net/http"

	"github.com/erboard/backend/internal/api/handlers"
	"github.com/erboard/backend/internal/api/middleware"
	"github.com/erboard/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	erHandler   *handlers.ERHandler
	syncHandler *handlers.SyncHandler
	sseHandler  *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router. sseHandler and cacheMiddleware may be nil.
func NewRouter(
	erHandler *handlers.ERHandler,
	syncHandler *handlers.SyncHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		erHandler:       erHandler,
		syncHandler:     syncHandler,
		sseHandler:      sseHandler,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Dashboard endpoints
	r.mux.HandleFunc("GET /api/er", r.erHandler.Dashboard)
	r.mux.HandleFunc("GET /api/er/regions", r.erHandler.Regions)
	r.mux.HandleFunc("GET /api/er/sigungu", r.erHandler.Sigungu)
	r.mux.HandleFunc("GET /api/er/search", r.erHandler.Search)
	r.mux.HandleFunc("GET /api/er/preferences", r.erHandler.GetPreferences)
	r.mux.HandleFunc("POST /api/er/preferences", r.erHandler.ApplyPreference)
	r.mux.HandleFunc("GET /api/er/{id}", r.erHandler.Detail)

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET "+middleware.StreamPath, r.sseHandler.StreamStatus)
	}

	// Admin triggers
	r.mux.HandleFunc("POST /api/admin/sync", r.syncHandler.TriggerSync)
	r.mux.HandleFunc("POST /api/admin/messages/sync", r.syncHandler.TriggerMessageSync)
	r.mux.HandleFunc("POST /api/admin/reindex", r.syncHandler.TriggerReindex)

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS must be outermost so cached responses also get CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
