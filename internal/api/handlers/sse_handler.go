package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/erboard/backend/internal/domain/entities"
	"github.com/erboard/backend/internal/domain/providers"
)

const defaultHeartbeat = 30 * time.Second

// SSEHandler streams ingestion events to connected dashboards
type SSEHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	clients   map[chan *entities.StatusEvent]struct{}
	mu        sync.RWMutex
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		heartbeat: defaultHeartbeat,
		clients:   make(map[chan *entities.StatusEvent]struct{}),
	}
}

// StreamStatus handles GET /api/er/stream
func (h *SSEHandler) StreamStatus(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	eventChan, err := h.eventBus.Subscribe(ctx, providers.EventChannelStatus)
	if err != nil {
		log.Error().Err(err).Str("channel", providers.EventChannelStatus).Msg("failed to subscribe")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan *entities.StatusEvent, 10)
	h.registerClient(clientChan)
	defer h.unregisterClient(clientChan)

	h.sendEvent(w, "connected", map[string]interface{}{
		"timestamp": time.Now().UTC(),
	})
	flusher.Flush()

	go h.forwardEvents(ctx, eventChan, clientChan)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("client disconnected from status stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now().UTC(),
			})
			flusher.Flush()
		case event := <-clientChan:
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

// forwardEvents copies bus events to the client, dropping them when the client lags
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.StatusEvent, clientChan chan<- *entities.StatusEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			select {
			case clientChan <- event:
			default:
			}
		}
	}
}

func (h *SSEHandler) registerClient(clientChan chan *entities.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[clientChan] = struct{}{}
	log.Debug().Int("clients", len(h.clients)).Msg("status stream client registered")
}

func (h *SSEHandler) unregisterClient(clientChan chan *entities.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, clientChan)
	log.Debug().Int("clients", len(h.clients)).Msg("status stream client unregistered")
}

func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
