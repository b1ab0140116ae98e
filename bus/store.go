package bus

import (
	"context"

	"github.com/glyph-labs/glyphflow/runtime"
)

// StoredEvent is an engine event with the store-assigned sequence number.
// Sequence numbers are monotonically increasing across the whole store and
// give subscribers a resume point after a reconnect.
type StoredEvent struct {
	Seq uint64
	runtime.Event
}

// EventStore persists events for replay.
type EventStore interface {
	// Append stores an event and assigns it the next sequence number.
	Append(ctx context.Context, event runtime.Event) error

	// List returns stored events, optionally filtered.
	// instance: return events for this instance only (0 means all)
	// afterSeq: return events with Seq > afterSeq (0 means all)
	// limit: max events to return (0 means no limit)
	List(ctx context.Context, instance runtime.InstanceID, afterSeq uint64, limit int) ([]StoredEvent, error)

	// LatestSeq returns the highest assigned Seq (0 if no events).
	LatestSeq(ctx context.Context) (uint64, error)
}
