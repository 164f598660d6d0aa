package entities

import (
	"time"

	"github.com/google/uuid"
)

// StatusEventType represents the type of a status event
type StatusEventType string

const (
	StatusEventRefreshed       StatusEventType = "status.refreshed"
	StatusEventMessagesUpdated StatusEventType = "messages.updated"
)

// StatusEvent is published after an ingestion step changes what the dashboard shows.
type StatusEvent struct {
	ID        string          `json:"id"`
	Type      StatusEventType `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Created   int             `json:"created"`
	Skipped   int             `json:"skipped"`
	Updated   int             `json:"updated"`
}

// NewStatusEvent creates a new status event
func NewStatusEvent(eventType StatusEventType) *StatusEvent {
	return &StatusEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}
