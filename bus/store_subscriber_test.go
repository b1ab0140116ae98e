package bus

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/glyph-labs/glyphflow/runtime"
)

func TestStoreSubscriber_PersistsEvents(t *testing.T) {
	store := newTestStore(t)
	sub := NewStoreSubscriber(store, zerolog.Nop())

	for i := 0; i < 3; i++ {
		sub.Handle(runtime.NewEvent(runtime.EventNodeStarted, 1, "Add"))
	}

	events, err := store.List(context.Background(), 0, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3", len(events))
	}
}

type failingStore struct {
	MemEventStore
}

func (f *failingStore) Append(context.Context, runtime.Event) error {
	return errors.New("disk full")
}

func TestStoreSubscriber_LogsAppendError(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)
	sub := NewStoreSubscriber(&failingStore{}, logger)

	// Handle should not panic; the error goes to the log.
	sub.Handle(runtime.NewEvent(runtime.EventNodeStarted, 1, "Add"))

	if !strings.Contains(buf.String(), "disk full") {
		t.Errorf("log output %q does not mention append error", buf.String())
	}
}

func TestStoreSubscriber_DrainsBusSubscription(t *testing.T) {
	store := NewMemEventStore()
	sub := NewStoreSubscriber(store, zerolog.Nop())

	b := NewMemBus(MemBusConfig{})
	defer b.Close()
	byKind := b.Subscribe(runtime.EventNodeFailed)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range byKind.Events() {
			sub.Handle(e)
		}
	}()

	b.Publish(runtime.NewEvent(runtime.EventNodeFailed, 1, "Divide"))
	b.Publish(runtime.NewEvent(runtime.EventNodeStarted, 1, "Divide")) // filtered out
	byKind.Close()
	<-done

	events, _ := store.List(context.Background(), 0, 0, 0)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != runtime.EventNodeFailed {
		t.Errorf("got kind %v, want %v", events[0].Kind, runtime.EventNodeFailed)
	}
}
