// Package otel provides OpenTelemetry integration for glyphflow engine
// events and plugin lifecycle signals.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/glyph-labs/glyphflow/runtime"
)

// TracingHandler translates glyphflow engine events into OpenTelemetry
// spans. Each node instance gets a long-lived span covering its time in the
// arena; each execution step gets a child span keyed by ExecID.
type TracingHandler struct {
	tracer trace.Tracer

	mu        sync.RWMutex
	instSpans map[runtime.InstanceID]trace.Span       // instance -> arena span
	instCtxs  map[runtime.InstanceID]context.Context // instance -> context (for child spans)
	stepSpans map[string]trace.Span                  // execID -> step span
}

// NewTracingHandler creates a new TracingHandler that uses the given tracer
// to create spans from engine events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		instSpans: make(map[runtime.InstanceID]trace.Span),
		instCtxs:  make(map[runtime.InstanceID]context.Context),
		stepSpans: make(map[string]trace.Span),
	}
}

// Handle processes an engine event and creates or ends spans accordingly.
// It implements runtime.EventHandler semantics.
func (h *TracingHandler) Handle(e runtime.Event) {
	switch e.Kind {
	case runtime.EventInstanceCreated:
		h.handleInstanceCreated(e)
	case runtime.EventNodeStarted:
		h.handleNodeStarted(e)
	case runtime.EventNodeFinished:
		h.handleNodeFinished(e)
	case runtime.EventNodeFailed:
		h.handleNodeFailed(e)
	case runtime.EventAsyncPending:
		h.handleStepEvent(e)
	case runtime.EventAsyncCompleted:
		h.handleStepEvent(e)
	case runtime.EventFaultContained:
		h.handleStepEvent(e)
	case runtime.EventInstanceDestroyed:
		h.handleInstanceDestroyed(e)
	}
}

// handleInstanceCreated creates a root span covering the instance's lifetime.
func (h *TracingHandler) handleInstanceCreated(e runtime.Event) {
	ctx, span := h.tracer.Start(context.Background(), "instance:"+e.Type,
		trace.WithAttributes(
			attribute.Int64("glyphflow.instance", int64(e.Instance)), // #nosec G115
			attribute.String("glyphflow.node_type", e.Type),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.instSpans[e.Instance] = span
	h.instCtxs[e.Instance] = ctx
	h.mu.Unlock()
}

// handleNodeStarted creates a child span under the instance span.
func (h *TracingHandler) handleNodeStarted(e runtime.Event) {
	h.mu.RLock()
	parentCtx, ok := h.instCtxs[e.Instance]
	h.mu.RUnlock()

	if !ok {
		// No parent instance span; start from background context.
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "node:"+e.Type,
		trace.WithAttributes(
			attribute.Int64("glyphflow.instance", int64(e.Instance)), // #nosec G115
			attribute.String("glyphflow.node_type", e.Type),
			attribute.String("glyphflow.exec_id", e.ExecID),
		),
		trace.WithTimestamp(e.Time),
	)

	h.mu.Lock()
	h.stepSpans[e.ExecID] = span
	h.mu.Unlock()
}

// handleNodeFinished ends the step span with success status.
func (h *TracingHandler) handleNodeFinished(e runtime.Event) {
	h.mu.Lock()
	span, ok := h.stepSpans[e.ExecID]
	if ok {
		delete(h.stepSpans, e.ExecID)
	}
	h.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.String("glyphflow.duration", e.Elapsed.String()),
		)
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleNodeFailed ends the step span with error status.
func (h *TracingHandler) handleNodeFailed(e runtime.Event) {
	h.mu.Lock()
	span, ok := h.stepSpans[e.ExecID]
	if ok {
		delete(h.stepSpans, e.ExecID)
	}
	h.mu.Unlock()

	if ok {
		errMsg := "unknown error"
		if msg, found := e.Payload["error"]; found {
			if s, ok := msg.(string); ok {
				errMsg = s
			}
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(
			spanError(errMsg),
			trace.WithTimestamp(e.Time),
		)
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleStepEvent adds a span event to an in-flight step span for
// async.pending, async.completed, and fault.contained events. Events for a
// step that is no longer in flight (the async completion arrives after the
// pending span closed on a later poll) fall back to the instance span.
func (h *TracingHandler) handleStepEvent(e runtime.Event) {
	h.mu.RLock()
	span, ok := h.stepSpans[e.ExecID]
	if !ok {
		span, ok = h.instSpans[e.Instance]
	}
	h.mu.RUnlock()

	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("glyphflow.event_kind", string(e.Kind)),
		attribute.String("glyphflow.exec_id", e.ExecID),
	}
	if op, found := e.Payload["op"]; found {
		if s, ok := op.(string); ok {
			attrs = append(attrs, attribute.String("glyphflow.op", s))
		}
	}

	span.AddEvent(string(e.Kind), trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
}

// handleInstanceDestroyed ends the instance's arena span. Any step span
// still open for the instance is closed as interrupted.
func (h *TracingHandler) handleInstanceDestroyed(e runtime.Event) {
	h.mu.Lock()
	span, ok := h.instSpans[e.Instance]
	if ok {
		delete(h.instSpans, e.Instance)
		delete(h.instCtxs, e.Instance)
	}
	var orphans []trace.Span
	for execID, s := range h.stepSpans {
		if sc := s.SpanContext(); sc.IsValid() && ok && sc.TraceID() == span.SpanContext().TraceID() {
			orphans = append(orphans, s)
			delete(h.stepSpans, execID)
		}
	}
	h.mu.Unlock()

	for _, s := range orphans {
		s.SetStatus(codes.Error, "instance destroyed mid-step")
		s.End(trace.WithTimestamp(e.Time))
	}

	if ok {
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

// ActiveSpanContext returns the SpanContext for the in-flight step span
// identified by execID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveSpanContext(execID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.stepSpans[execID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// ActiveInstanceSpanContext returns the SpanContext for the instance's
// arena span. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveInstanceSpanContext(inst runtime.InstanceID) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.instSpans[inst]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
