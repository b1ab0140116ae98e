package bus

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/glyph-labs/glyphflow/runtime"
)

// StoreSubscriber writes events to an EventStore.
// Its Handle method satisfies runtime.EventHandler for attaching directly
// to an engine, or it can drain a bus Subscription.
type StoreSubscriber struct {
	store  EventStore
	logger zerolog.Logger
}

// NewStoreSubscriber creates a new StoreSubscriber.
func NewStoreSubscriber(store EventStore, logger zerolog.Logger) *StoreSubscriber {
	return &StoreSubscriber{
		store:  store,
		logger: logger,
	}
}

// Handle persists a single event to the store.
func (s *StoreSubscriber) Handle(event runtime.Event) {
	if err := s.store.Append(context.Background(), event); err != nil {
		s.logger.Error().
			Err(err).
			Str("kind", event.Kind.String()).
			Uint64("instance", uint64(event.Instance)).
			Str("exec_id", event.ExecID).
			Msg("failed to persist event")
	}
}
