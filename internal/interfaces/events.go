package interfaces

import (
	"context"

	"github.com/rmarinho/garimpo/internal/models"
)

// EventHandler consumes a job event.
type EventHandler func(ctx context.Context, event models.JobEvent)

// EventService fans job completion events out over the key/value store's
// pub/sub channel and to in-process subscribers. Publishing degrades
// silently when the channel is unavailable.
type EventService interface {
	Publish(ctx context.Context, event models.JobEvent) error
	Subscribe(handler EventHandler)
	Start(ctx context.Context) error
	Close() error
}
