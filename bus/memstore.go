package bus

import (
	"context"
	"sync"

	"github.com/glyph-labs/glyphflow/runtime"
)

// MemEventStore is a thread-safe in-memory event store.
type MemEventStore struct {
	mu     sync.RWMutex
	events []StoredEvent
	seq    uint64
}

// NewMemEventStore creates a new in-memory event store.
func NewMemEventStore() *MemEventStore {
	return &MemEventStore{}
}

func (s *MemEventStore) Append(_ context.Context, event runtime.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.events = append(s.events, StoredEvent{Seq: s.seq, Event: event})
	return nil
}

func (s *MemEventStore) List(_ context.Context, instance runtime.InstanceID, afterSeq uint64, limit int) ([]StoredEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []StoredEvent
	for _, e := range s.events {
		if instance != 0 && e.Instance != instance {
			continue
		}
		if e.Seq <= afterSeq {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *MemEventStore) LatestSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq, nil
}

// Compile-time interface check.
var _ EventStore = (*MemEventStore)(nil)
