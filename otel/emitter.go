package otel

import (
	"github.com/glyph-labs/glyphflow/runtime"
)

// EnrichHandler wraps an EventHandler with OpenTelemetry trace context.
// When events flow through, it looks up the active span from the
// TracingHandler and stamps "trace_id" and "span_id" into the event payload.
//
// For step-level events (where ExecID is set), the step span is checked
// first. If no step span is found, it falls back to the instance span.
// When no span is active, the event passes through unchanged.
func EnrichHandler(next runtime.EventHandler, tracing *TracingHandler) runtime.EventHandler {
	return func(e runtime.Event) {
		// For step-level events, try the step span first.
		if e.ExecID != "" {
			sc := tracing.ActiveSpanContext(e.ExecID)
			if sc.IsValid() {
				e = e.WithPayload("trace_id", sc.TraceID().String()).
					WithPayload("span_id", sc.SpanID().String())
			}
		}
		// Fallback to the instance span.
		if _, stamped := e.Payload["trace_id"]; !stamped && e.Instance != 0 {
			sc := tracing.ActiveInstanceSpanContext(e.Instance)
			if sc.IsValid() {
				e = e.WithPayload("trace_id", sc.TraceID().String()).
					WithPayload("span_id", sc.SpanID().String())
			}
		}
		next(e)
	}
}
