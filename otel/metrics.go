package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/glyph-labs/glyphflow/runtime"
)

// MetricsHandler translates glyphflow engine events into OpenTelemetry
// metrics. It records counters and histograms for node executions, failures,
// contained faults, and trigger queue activity.
type MetricsHandler struct {
	nodeExecutions  metric.Int64Counter
	nodeFailures    metric.Int64Counter
	nodeDuration    metric.Float64Histogram
	faultsContained metric.Int64Counter
	triggers        metric.Int64Counter
	triggersDropped metric.Int64Counter
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording engine metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	nodeExec, err := meter.Int64Counter("glyphflow.node.executions",
		metric.WithDescription("Number of node execution steps"),
	)
	if err != nil {
		return nil, err
	}

	nodeFail, err := meter.Int64Counter("glyphflow.node.failures",
		metric.WithDescription("Number of failed execution steps"),
	)
	if err != nil {
		return nil, err
	}

	nodeDur, err := meter.Float64Histogram("glyphflow.node.duration",
		metric.WithDescription("Duration of node execution steps in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	faults, err := meter.Int64Counter("glyphflow.faults.contained",
		metric.WithDescription("Number of plugin faults stopped at the boundary"),
	)
	if err != nil {
		return nil, err
	}

	triggers, err := meter.Int64Counter("glyphflow.triggers.enqueued",
		metric.WithDescription("Number of trigger requests enqueued"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter("glyphflow.triggers.dropped",
		metric.WithDescription("Number of trigger requests dropped by a full queue"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		nodeExecutions:  nodeExec,
		nodeFailures:    nodeFail,
		nodeDuration:    nodeDur,
		faultsContained: faults,
		triggers:        triggers,
		triggersDropped: dropped,
	}, nil
}

// Handle processes an engine event and records the appropriate metrics.
// It implements runtime.EventHandler semantics.
func (h *MetricsHandler) Handle(e runtime.Event) {
	switch e.Kind {
	case runtime.EventNodeFinished:
		h.handleNodeFinished(e)
	case runtime.EventNodeFailed:
		h.handleNodeFailed(e)
	case runtime.EventFaultContained:
		h.faultsContained.Add(context.Background(), 1, nodeAttrs(e))
	case runtime.EventTriggerEnqueued:
		h.triggers.Add(context.Background(), 1, nodeAttrs(e))
	case runtime.EventTriggerDropped:
		h.triggersDropped.Add(context.Background(), 1, nodeAttrs(e))
	}
}

// handleNodeFinished increments the execution counter and records duration.
func (h *MetricsHandler) handleNodeFinished(e runtime.Event) {
	ctx := context.Background()
	attrs := nodeAttrs(e)
	h.nodeExecutions.Add(ctx, 1, attrs)
	h.nodeDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}

// handleNodeFailed counts the step in both the execution and failure
// counters; every step is an execution whether it succeeded or not.
func (h *MetricsHandler) handleNodeFailed(e runtime.Event) {
	ctx := context.Background()
	attrs := nodeAttrs(e)
	h.nodeExecutions.Add(ctx, 1, attrs)
	h.nodeFailures.Add(ctx, 1, attrs)
	h.nodeDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}

func nodeAttrs(e runtime.Event) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("node_type", e.Type),
	)
}
