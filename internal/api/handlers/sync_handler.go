package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/erboard/backend/internal/application/services"
	"github.com/erboard/backend/internal/infrastructure/observability"
)

const idempotencyKeyPrefix = "er_sync_idem:"

// SyncRunner runs ingestion steps on demand
type SyncRunner interface {
	RunCycle(ctx context.Context) (*services.CycleSummary, error)
	SyncMessages(ctx context.Context) (services.MessageSummary, error)
}

// Reindexer rebuilds the search index
type Reindexer interface {
	Reindex(ctx context.Context) (services.IndexSummary, error)
}

// SyncHandler exposes the admin triggers for ingestion and indexing.
type SyncHandler struct {
	sync           SyncRunner
	index          Reindexer
	redisClient    *redislib.Client
	idempotencyTTL time.Duration
}

// NewSyncHandler creates a new sync handler. index and redisClient may be nil.
func NewSyncHandler(sync SyncRunner, index Reindexer, redisClient *redislib.Client, idempotencyTTL time.Duration) *SyncHandler {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 10 * time.Minute
	}
	return &SyncHandler{
		sync:           sync,
		index:          index,
		redisClient:    redisClient,
		idempotencyTTL: idempotencyTTL,
	}
}

// TriggerSync handles POST /api/admin/sync
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	h.runOnce(w, r, "sync", func(ctx context.Context) (interface{}, error) {
		return h.sync.RunCycle(ctx)
	})
}

// TriggerMessageSync handles POST /api/admin/messages/sync
func (h *SyncHandler) TriggerMessageSync(w http.ResponseWriter, r *http.Request) {
	h.runOnce(w, r, "messages", func(ctx context.Context) (interface{}, error) {
		return h.sync.SyncMessages(ctx)
	})
}

// TriggerReindex handles POST /api/admin/reindex
func (h *SyncHandler) TriggerReindex(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		respondWithError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}
	h.runOnce(w, r, "reindex", func(ctx context.Context) (interface{}, error) {
		return h.index.Reindex(ctx)
	})
}

// runOnce runs op unless its idempotency key was already claimed. A failed
// run gives the key back so the caller can retry with it.
func (h *SyncHandler) runOnce(w http.ResponseWriter, r *http.Request, op string, run func(ctx context.Context) (interface{}, error)) {
	ctx := r.Context()
	claimed, key := h.claim(ctx, r, op)
	if key != "" && !claimed {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":          "duplicate",
			"idempotency_key": key,
		})
		return
	}

	summary, err := run(ctx)
	if err != nil {
		if claimed {
			h.release(ctx, op, key)
		}
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	}
	return key
}

// claim takes the request's idempotency key for op. It reports claimed=false
// with a non-empty key only when another request already holds the key; a
// missing key, a missing Redis client or a Redis error lets the request run.
func (h *SyncHandler) claim(ctx context.Context, r *http.Request, op string) (claimed bool, key string) {
	key = idempotencyKey(r)
	if key == "" || h.redisClient == nil {
		return false, ""
	}

	ok, err := h.redisClient.SetNX(ctx, idempotencyKeyPrefix+op+":"+key, time.Now().UTC().Format(time.RFC3339Nano), h.idempotencyTTL).Result()
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("idempotency check failed")
		return false, ""
	}
	return ok, key
}

func (h *SyncHandler) release(ctx context.Context, op, key string) {
	// the request context may already be cancelled when the run failed
	if err := h.redisClient.Del(context.WithoutCancel(ctx), idempotencyKeyPrefix+op+":"+key).Err(); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("operation", op).Msg("failed to release idempotency key")
	}
}
