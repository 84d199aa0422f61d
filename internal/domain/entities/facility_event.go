package entities

import (
	"time"

	"github.com/google/uuid"
)

// ImportEventType represents the type of pipeline event
type ImportEventType string

const (
	ImportEventTypeImportCompleted ImportEventType = "import.completed"
	ImportEventTypeImportFailed    ImportEventType = "import.failed"
	ImportEventTypeDedupCompleted  ImportEventType = "dedup.completed"
	ImportEventTypeStoreCleared    ImportEventType = "store.cleared"
)

// ImportEvent is published after each pipeline run so other services can refresh their views
type ImportEvent struct {
	ID        string          `json:"id"`
	EventType ImportEventType `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Scope     string          `json:"scope"`
	Result    *ImportResult   `json:"result,omitempty"`
	Dedup     *DedupResult    `json:"dedup,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// NewImportEvent creates a new event stamped with the current time
func NewImportEvent(eventType ImportEventType, scope string) *ImportEvent {
	return &ImportEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now(),
		Scope:     scope,
	}
}
