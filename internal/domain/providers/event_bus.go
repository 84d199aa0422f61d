package providers

import (
	"context"

	"github.com/zatekoja/facility-import/backend/internal/domain/entities"
)

// EventPublisher publishes pipeline events
type EventPublisher interface {
	// Publish publishes an event on a channel
	Publish(ctx context.Context, channel string, event *entities.ImportEvent) error
}

// EventChannelImports is the channel carrying every pipeline run event
const EventChannelImports = "facility-import:runs"
