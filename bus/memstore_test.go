package bus

import (
	"context"
	"testing"

	"github.com/glyph-labs/glyphflow/runtime"
)

func TestMemEventStore_Append_List(t *testing.T) {
	store := NewMemEventStore()

	for i := 0; i < 5; i++ {
		e := runtime.NewEvent(runtime.EventNodeStarted, 1, "Add")
		if err := store.Append(context.Background(), e); err != nil {
			t.Fatalf("Append(%d): %v", i, err)
		}
	}

	events, err := store.List(context.Background(), 0, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 5 {
		t.Errorf("got %d events, want 5", len(events))
	}
	for i, e := range events {
		if e.Seq != uint64(i+1) {
			t.Errorf("event %d: Seq = %d, want %d", i, e.Seq, i+1)
		}
	}
}

func TestMemEventStore_List_AfterSeq(t *testing.T) {
	store := NewMemEventStore()

	for i := 0; i < 10; i++ {
		store.Append(context.Background(), runtime.NewEvent(runtime.EventNodeStarted, 1, "Add"))
	}

	events, err := store.List(context.Background(), 0, 7, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3 (seq 8,9,10)", len(events))
	}
	if events[0].Seq != 8 {
		t.Errorf("first event Seq = %d, want 8", events[0].Seq)
	}
}

func TestMemEventStore_List_WithLimit(t *testing.T) {
	store := NewMemEventStore()

	for i := 0; i < 10; i++ {
		store.Append(context.Background(), runtime.NewEvent(runtime.EventNodeStarted, 1, "Add"))
	}

	events, err := store.List(context.Background(), 0, 0, 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("got %d events, want 3", len(events))
	}
}

func TestMemEventStore_LatestSeq(t *testing.T) {
	store := NewMemEventStore()

	seq, err := store.LatestSeq(context.Background())
	if err != nil {
		t.Fatalf("LatestSeq: %v", err)
	}
	if seq != 0 {
		t.Errorf("empty store LatestSeq = %d, want 0", seq)
	}

	for i := 0; i < 5; i++ {
		store.Append(context.Background(), runtime.NewEvent(runtime.EventNodeStarted, 1, "Add"))
	}

	seq, err = store.LatestSeq(context.Background())
	if err != nil {
		t.Fatalf("LatestSeq: %v", err)
	}
	if seq != 5 {
		t.Errorf("LatestSeq = %d, want 5", seq)
	}
}

func TestMemEventStore_InstanceFilter(t *testing.T) {
	store := NewMemEventStore()

	store.Append(context.Background(), runtime.NewEvent(runtime.EventNodeStarted, 1, "Add"))
	store.Append(context.Background(), runtime.NewEvent(runtime.EventNodeStarted, 2, "Delay"))
	store.Append(context.Background(), runtime.NewEvent(runtime.EventNodeFinished, 1, "Add"))

	events, _ := store.List(context.Background(), 1, 0, 0)
	if len(events) != 2 {
		t.Fatalf("instance 1 events = %d, want 2", len(events))
	}
	for _, e := range events {
		if e.Instance != 1 {
			t.Errorf("got instance %d, want 1", e.Instance)
		}
	}
}
