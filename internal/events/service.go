// -----------------------------------------------------------------------
// Event Service - job completion fan-out over the KV pub/sub channel
// -----------------------------------------------------------------------

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/rmarinho/garimpo/internal/interfaces"
	"github.com/rmarinho/garimpo/internal/models"
)

// Channel is the pub/sub channel job completion events travel on.
const Channel = "scraper:events"

// Service routes job events through the key/value store's pub/sub channel.
// Every event, locally published or not, reaches in-process handlers through
// the channel subscription, so handlers see the same stream other processes
// do. Delivery is fire-and-forget.
type Service struct {
	kv     interfaces.KeyValueStore
	logger arbor.ILogger

	mu       sync.RWMutex
	handlers []interfaces.EventHandler

	cancel context.CancelFunc
}

var _ interfaces.EventService = (*Service)(nil)

// NewService creates the event service over the given key/value backend.
func NewService(kv interfaces.KeyValueStore, logger arbor.ILogger) *Service {
	return &Service{kv: kv, logger: logger}
}

// Publish sends an event on the channel. An unavailable channel degrades
// silently: the failure is logged and swallowed.
func (s *Service) Publish(ctx context.Context, event models.JobEvent) error {
	payload, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := s.kv.Publish(ctx, Channel, payload); err != nil {
		s.logger.Debug().
			Err(err).
			Str("job_id", event.JobID).
			Msg("Event channel unavailable, event dropped")
	}
	return nil
}

// Subscribe registers an in-process handler. Handlers run sequentially per
// event; a panicking handler is recovered and logged.
func (s *Service) Subscribe(handler interfaces.EventHandler) {
	if handler == nil {
		return
	}
	s.mu.Lock()
	s.handlers = append(s.handlers, handler)
	s.mu.Unlock()
}

// Start begins consuming the channel and dispatching to handlers. It returns
// once the subscription is running.
func (s *Service) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		err := s.kv.Subscribe(ctx, Channel, func(message []byte) {
			var event models.JobEvent
			if err := json.Unmarshal(message, &event); err != nil {
				s.logger.Warn().Err(err).Msg("Discarding malformed event message")
				return
			}
			s.dispatch(ctx, event)
		})
		if err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("Event subscription ended")
		}
	}()

	s.logger.Info().Str("channel", Channel).Msg("Event service started")
	return nil
}

// Close stops the subscription loop.
func (s *Service) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event models.JobEvent) {
	s.mu.RLock()
	handlers := make([]interfaces.EventHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.RUnlock()

	for _, handler := range handlers {
		s.safeHandle(ctx, handler, event)
	}
}

func (s *Service) safeHandle(ctx context.Context, handler interfaces.EventHandler, event models.JobEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Str("job_id", event.JobID).
				Msg("Recovered panic in event handler")
		}
	}()
	handler(ctx, event)
}
