package otel_test

import (
	"testing"
	"time"

	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	glyphotel "github.com/glyph-labs/glyphflow/otel"
	"github.com/glyph-labs/glyphflow/plugin"
)

func TestPluginObserver_ObserveLoadRecordsMetricsAndSpan(t *testing.T) {
	reader, mp := newTestMeter()
	exporter, tp := newTestTracer()

	o, err := glyphotel.NewPluginObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatalf("NewPluginObserver: %v", err)
	}

	o.ObserveLoad(plugin.LoadObservation{
		PluginID:  "com.glyphflow.example.math",
		Version:   "1.0.0",
		NodeTypes: 4,
		Success:   true,
		Duration:  25 * time.Millisecond,
	})

	rm := collectMetrics(t, reader)

	loads := findMetric(rm, "glyphflow.plugin.loads")
	if loads == nil {
		t.Fatal("glyphflow.plugin.loads metric not found")
	}
	if v := loads.Data.(metricdata.Sum[int64]).DataPoints[0].Value; v != 1 {
		t.Errorf("expected load counter 1, got %d", v)
	}

	dur := findMetric(rm, "glyphflow.plugin.load.duration")
	if dur == nil {
		t.Fatal("glyphflow.plugin.load.duration metric not found")
	}
	if c := dur.Data.(metricdata.Histogram[float64]).DataPoints[0].Count; c != 1 {
		t.Errorf("expected duration count 1, got %d", c)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "plugin.load" {
		t.Errorf("span name = %q, want plugin.load", spans[0].Name)
	}
	if spans[0].Status.Code != otelcodes.Ok {
		t.Errorf("span status = %v, want Ok", spans[0].Status.Code)
	}
}

func TestPluginObserver_ObserveLoadFailureSetsErrorStatus(t *testing.T) {
	_, mp := newTestMeter()
	exporter, tp := newTestTracer()

	o, err := glyphotel.NewPluginObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatalf("NewPluginObserver: %v", err)
	}

	o.ObserveLoad(plugin.LoadObservation{
		PluginID: "com.glyphflow.example.timer",
		Version:  "1.0.0",
		Stage:    "on_load",
		Duration: 5 * time.Millisecond,
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != otelcodes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status.Code)
	}
	if spans[0].Status.Description != "on_load" {
		t.Errorf("span status description = %q, want on_load", spans[0].Status.Description)
	}
}

func TestPluginObserver_ObserveUnloadAndHookFault(t *testing.T) {
	reader, mp := newTestMeter()

	o, err := glyphotel.NewPluginObserver(mp.Meter("test"), nil)
	if err != nil {
		t.Fatalf("NewPluginObserver: %v", err)
	}

	o.ObserveUnload(plugin.UnloadObservation{PluginID: "com.glyphflow.example.env", NodeTypes: 3})
	o.ObserveHookFault(plugin.HookFaultObservation{PluginID: "com.glyphflow.example.env", Hook: "tick"})
	o.ObserveHookFault(plugin.HookFaultObservation{PluginID: "com.glyphflow.example.env", Hook: "tick"})

	rm := collectMetrics(t, reader)

	unloads := findMetric(rm, "glyphflow.plugin.unloads")
	if unloads == nil {
		t.Fatal("glyphflow.plugin.unloads metric not found")
	}
	if v := unloads.Data.(metricdata.Sum[int64]).DataPoints[0].Value; v != 1 {
		t.Errorf("expected unload counter 1, got %d", v)
	}

	faults := findMetric(rm, "glyphflow.plugin.hook.faults")
	if faults == nil {
		t.Fatal("glyphflow.plugin.hook.faults metric not found")
	}
	if v := faults.Data.(metricdata.Sum[int64]).DataPoints[0].Value; v != 2 {
		t.Errorf("expected fault counter 2, got %d", v)
	}
}
