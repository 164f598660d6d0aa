package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/erboard/backend/internal/domain/providers"
	"github.com/erboard/backend/internal/infrastructure/observability"
)

// CacheConfig holds cache configuration for specific routes
type CacheConfig struct {
	TTL     time.Duration
	Enabled bool
}

// CacheMiddleware caches GET responses of session-independent routes.
type CacheMiddleware struct {
	cache        providers.CacheProvider
	metrics      *observability.Metrics
	routeConfigs map[string]CacheConfig
}

// DefaultCacheRoutes lists the cacheable read endpoints. The dashboard and
// preference routes depend on the session and are never cached.
func DefaultCacheRoutes() map[string]CacheConfig {
	return map[string]CacheConfig{
		"/api/er/regions": {TTL: time.Minute, Enabled: true},
		"/api/er/sigungu": {TTL: time.Minute, Enabled: true},
		"/api/er/search":  {TTL: 2 * time.Minute, Enabled: true},
	}
}

// NewCacheMiddleware creates a new cache middleware
func NewCacheMiddleware(cache providers.CacheProvider, metrics *observability.Metrics) *CacheMiddleware {
	return NewCacheMiddlewareWithConfig(cache, metrics, DefaultCacheRoutes())
}

// NewCacheMiddlewareWithConfig creates a cache middleware with custom routes
func NewCacheMiddlewareWithConfig(cache providers.CacheProvider, metrics *observability.Metrics, configs map[string]CacheConfig) *CacheMiddleware {
	return &CacheMiddleware{
		cache:        cache,
		metrics:      metrics,
		routeConfigs: configs,
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		config, ok := m.routeConfigs[r.URL.Path]
		if !ok || !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		logger := observability.LoggerFromContext(ctx)
		cacheKey := CacheKey(r)

		if cached, err := m.cache.Get(ctx, cacheKey); err == nil {
			observability.RecordCacheLookup(ctx, m.metrics, "http", true)
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(cached)
			return
		}

		observability.RecordCacheLookup(ctx, m.metrics, "http", false)
		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(ctx, cacheKey, recorder.body.Bytes(), config.TTL); err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to cache response")
			}
		}
	})
}

// CacheKey derives the response cache key from the method, path and query.
func CacheKey(r *http.Request) string {
	key := r.Method + ":" + r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	hash := sha256.Sum256([]byte(key))
	return "http:cache:" + hex.EncodeToString(hash[:])
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}
