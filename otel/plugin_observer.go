package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/glyph-labs/glyphflow/plugin"
)

// PluginObserver records plugin lifecycle hardening signals into
// OpenTelemetry. Attach it to a manager with Manager.SetObserver.
type PluginObserver struct {
	tracer trace.Tracer

	loads        metric.Int64Counter
	unloads      metric.Int64Counter
	hookFaults   metric.Int64Counter
	loadDuration metric.Float64Histogram
}

// NewPluginObserver creates a plugin observer bound to the provided
// meter/tracer.
func NewPluginObserver(meter metric.Meter, tracer trace.Tracer) (*PluginObserver, error) {
	loads, err := meter.Int64Counter(
		"glyphflow.plugin.loads",
		metric.WithDescription("Number of plugin load attempts"),
	)
	if err != nil {
		return nil, err
	}
	unloads, err := meter.Int64Counter(
		"glyphflow.plugin.unloads",
		metric.WithDescription("Number of plugin unloads"),
	)
	if err != nil {
		return nil, err
	}
	hookFaults, err := meter.Int64Counter(
		"glyphflow.plugin.hook.faults",
		metric.WithDescription("Number of contained lifecycle hook faults"),
	)
	if err != nil {
		return nil, err
	}
	loadDuration, err := meter.Float64Histogram(
		"glyphflow.plugin.load.duration",
		metric.WithDescription("Plugin load duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &PluginObserver{
		tracer:       tracer,
		loads:        loads,
		unloads:      unloads,
		hookFaults:   hookFaults,
		loadDuration: loadDuration,
	}, nil
}

// ObserveLoad records one plugin load attempt.
func (o *PluginObserver) ObserveLoad(observation plugin.LoadObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("plugin_id", observation.PluginID),
		attribute.String("version", observation.Version),
		attribute.Bool("success", observation.Success),
	}
	if observation.Stage != "" {
		attrs = append(attrs, attribute.String("stage", observation.Stage))
	}
	if observation.Success {
		attrs = append(attrs, attribute.Int("node_types", observation.NodeTypes))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.loads.Add(ctx, 1, options)
	o.loadDuration.Record(ctx, observation.Duration.Seconds(), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "plugin.load", trace.WithAttributes(attrs...))
	if !observation.Success {
		span.SetStatus(codes.Error, observation.Stage)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ObserveUnload records one plugin unload.
func (o *PluginObserver) ObserveUnload(observation plugin.UnloadObservation) {
	if o == nil {
		return
	}

	o.unloads.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("plugin_id", observation.PluginID),
		attribute.Int("node_types", observation.NodeTypes),
	))
}

// ObserveHookFault records one contained lifecycle hook fault.
func (o *PluginObserver) ObserveHookFault(observation plugin.HookFaultObservation) {
	if o == nil {
		return
	}

	o.hookFaults.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("plugin_id", observation.PluginID),
		attribute.String("hook", observation.Hook),
	))
}

var _ plugin.Observer = (*PluginObserver)(nil)
