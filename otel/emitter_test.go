package otel_test

import (
	"testing"
	"time"

	glyphotel "github.com/glyph-labs/glyphflow/otel"
	"github.com/glyph-labs/glyphflow/runtime"
)

func TestEnrichHandler_StepSpanPopulatesTraceFields(t *testing.T) {
	_, tp := newTestTracer()
	tracer := tp.Tracer("test")
	h := glyphotel.NewTracingHandler(tracer)

	now := time.Now()

	// Create an instance and start a step to open active spans.
	h.Handle(runtime.Event{
		Kind:     runtime.EventInstanceCreated,
		Instance: 1,
		Type:     "Add",
		Time:     now,
	})
	h.Handle(runtime.Event{
		Kind:     runtime.EventNodeStarted,
		ExecID:   "exec-1",
		Instance: 1,
		Type:     "Add",
		Time:     now.Add(time.Millisecond),
	})

	expectedSC := h.ActiveSpanContext("exec-1")
	if !expectedSC.IsValid() {
		t.Fatal("expected valid step span context")
	}

	var received runtime.Event
	inner := runtime.EventHandler(func(e runtime.Event) {
		received = e
	})

	enriched := glyphotel.EnrichHandler(inner, h)

	// Pass a step-level event through the enriched handler.
	enriched(runtime.Event{
		Kind:     runtime.EventAsyncPending,
		ExecID:   "exec-1",
		Instance: 1,
		Type:     "Add",
		Time:     now.Add(2 * time.Millisecond),
	})

	if received.Payload["trace_id"] != expectedSC.TraceID().String() {
		t.Errorf("trace_id: got %v, want %q", received.Payload["trace_id"], expectedSC.TraceID().String())
	}
	if received.Payload["span_id"] != expectedSC.SpanID().String() {
		t.Errorf("span_id: got %v, want %q", received.Payload["span_id"], expectedSC.SpanID().String())
	}
}

func TestEnrichHandler_FallsBackToInstanceSpan(t *testing.T) {
	_, tp := newTestTracer()
	tracer := tp.Tracer("test")
	h := glyphotel.NewTracingHandler(tracer)

	now := time.Now()

	h.Handle(runtime.Event{
		Kind:     runtime.EventInstanceCreated,
		Instance: 2,
		Type:     "Timer Event",
		Time:     now,
	})

	instSC := h.ActiveInstanceSpanContext(2)
	if !instSC.IsValid() {
		t.Fatal("expected valid instance span context")
	}

	var received runtime.Event
	enriched := glyphotel.EnrichHandler(func(e runtime.Event) { received = e }, h)

	// An event with no matching step span picks up the instance span.
	enriched(runtime.Event{
		Kind:     runtime.EventTriggerEnqueued,
		Instance: 2,
		Type:     "Timer Event",
		Time:     now.Add(time.Millisecond),
	})

	if received.Payload["trace_id"] != instSC.TraceID().String() {
		t.Errorf("trace_id: got %v, want %q", received.Payload["trace_id"], instSC.TraceID().String())
	}
}

func TestEnrichHandler_NoActiveSpanPassesThrough(t *testing.T) {
	_, tp := newTestTracer()
	tracer := tp.Tracer("test")
	h := glyphotel.NewTracingHandler(tracer)

	var received runtime.Event
	enriched := glyphotel.EnrichHandler(func(e runtime.Event) { received = e }, h)

	enriched(runtime.Event{
		Kind:     runtime.EventNodeStarted,
		ExecID:   "exec-unknown",
		Instance: 99,
		Type:     "Add",
		Time:     time.Now(),
	})

	if _, ok := received.Payload["trace_id"]; ok {
		t.Error("expected no trace_id when no span is active")
	}
	if received.Kind != runtime.EventNodeStarted {
		t.Errorf("event kind changed: got %v", received.Kind)
	}
}
