package otel_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	glyphotel "github.com/glyph-labs/glyphflow/otel"
	"github.com/glyph-labs/glyphflow/runtime"
)

// newTestMeter returns a meter backed by a manual reader for collecting metrics in tests.
func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

// collectMetrics reads all metrics from the reader.
func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

// findMetric searches for a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func TestMetricsHandler_NodeFinishedIncrementsCounterAndRecordsHistogram(t *testing.T) {
	reader, mp := newTestMeter()
	meter := mp.Meter("test")

	h, err := glyphotel.NewMetricsHandler(meter)
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	now := time.Now()

	h.Handle(runtime.Event{
		Kind:     runtime.EventNodeFinished,
		ExecID:   "exec-1",
		Instance: 1,
		Type:     "Add",
		Time:     now,
		Elapsed:  150 * time.Millisecond,
	})

	// A second step on a different node type.
	h.Handle(runtime.Event{
		Kind:     runtime.EventNodeFinished,
		ExecID:   "exec-2",
		Instance: 2,
		Type:     "Multiply",
		Time:     now.Add(100 * time.Millisecond),
		Elapsed:  50 * time.Millisecond,
	})

	rm := collectMetrics(t, reader)

	execMetric := findMetric(rm, "glyphflow.node.executions")
	if execMetric == nil {
		t.Fatal("glyphflow.node.executions metric not found")
	}
	sumData, ok := execMetric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64] data, got %T", execMetric.Data)
	}
	// One data point per node type.
	if len(sumData.DataPoints) != 2 {
		t.Fatalf("expected 2 data points, got %d", len(sumData.DataPoints))
	}
	for _, dp := range sumData.DataPoints {
		if dp.Value != 1 {
			t.Errorf("expected counter value 1, got %d", dp.Value)
		}
	}

	durMetric := findMetric(rm, "glyphflow.node.duration")
	if durMetric == nil {
		t.Fatal("glyphflow.node.duration metric not found")
	}
	histData, ok := durMetric.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64] data, got %T", durMetric.Data)
	}
	if len(histData.DataPoints) != 2 {
		t.Fatalf("expected 2 histogram data points, got %d", len(histData.DataPoints))
	}
	for _, dp := range histData.DataPoints {
		if dp.Count != 1 {
			t.Errorf("expected histogram count 1, got %d", dp.Count)
		}
	}
}

func TestMetricsHandler_NodeFailedCountsExecutionAndFailure(t *testing.T) {
	reader, mp := newTestMeter()
	meter := mp.Meter("test")

	h, err := glyphotel.NewMetricsHandler(meter)
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	now := time.Now()

	h.Handle(runtime.Event{
		Kind:     runtime.EventNodeFailed,
		ExecID:   "exec-1",
		Instance: 1,
		Type:     "Divide",
		Time:     now,
		Elapsed:  10 * time.Millisecond,
		Payload:  map[string]any{"error": "Division by zero"},
	})

	// A second failure for the same node type.
	h.Handle(runtime.Event{
		Kind:     runtime.EventNodeFailed,
		ExecID:   "exec-2",
		Instance: 1,
		Type:     "Divide",
		Time:     now.Add(100 * time.Millisecond),
		Elapsed:  20 * time.Millisecond,
		Payload:  map[string]any{"error": "Division by zero"},
	})

	rm := collectMetrics(t, reader)

	failMetric := findMetric(rm, "glyphflow.node.failures")
	if failMetric == nil {
		t.Fatal("glyphflow.node.failures metric not found")
	}
	sumData, ok := failMetric.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64] data, got %T", failMetric.Data)
	}
	if len(sumData.DataPoints) != 1 {
		t.Fatalf("expected 1 data point (same attributes), got %d", len(sumData.DataPoints))
	}
	if sumData.DataPoints[0].Value != 2 {
		t.Errorf("expected failure counter value 2, got %d", sumData.DataPoints[0].Value)
	}

	// Failed steps still count as executions.
	execMetric := findMetric(rm, "glyphflow.node.executions")
	if execMetric == nil {
		t.Fatal("glyphflow.node.executions metric not found")
	}
	execData := execMetric.Data.(metricdata.Sum[int64])
	if execData.DataPoints[0].Value != 2 {
		t.Errorf("expected execution counter value 2, got %d", execData.DataPoints[0].Value)
	}

	// Verify node_type attribute.
	typeFound := false
	for _, attr := range sumData.DataPoints[0].Attributes.ToSlice() {
		if string(attr.Key) == "node_type" && attr.Value.AsString() == "Divide" {
			typeFound = true
		}
	}
	if !typeFound {
		t.Error("expected node_type attribute on failure counter")
	}
}

func TestMetricsHandler_FaultContained(t *testing.T) {
	reader, mp := newTestMeter()
	meter := mp.Meter("test")

	h, err := glyphotel.NewMetricsHandler(meter)
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(runtime.Event{
		Kind:     runtime.EventFaultContained,
		Instance: 1,
		Type:     "Delay",
		Time:     time.Now(),
	})

	rm := collectMetrics(t, reader)

	m := findMetric(rm, "glyphflow.faults.contained")
	if m == nil {
		t.Fatal("glyphflow.faults.contained metric not found")
	}
	sumData := m.Data.(metricdata.Sum[int64])
	if sumData.DataPoints[0].Value != 1 {
		t.Errorf("expected fault counter value 1, got %d", sumData.DataPoints[0].Value)
	}
}

func TestMetricsHandler_TriggerCounters(t *testing.T) {
	reader, mp := newTestMeter()
	meter := mp.Meter("test")

	h, err := glyphotel.NewMetricsHandler(meter)
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	now := time.Now()
	for i := 0; i < 3; i++ {
		h.Handle(runtime.Event{
			Kind:     runtime.EventTriggerEnqueued,
			Instance: 1,
			Type:     "Timer Event",
			Time:     now,
		})
	}
	h.Handle(runtime.Event{
		Kind:     runtime.EventTriggerDropped,
		Instance: 1,
		Type:     "Timer Event",
		Time:     now,
	})

	rm := collectMetrics(t, reader)

	enq := findMetric(rm, "glyphflow.triggers.enqueued")
	if enq == nil {
		t.Fatal("glyphflow.triggers.enqueued metric not found")
	}
	if v := enq.Data.(metricdata.Sum[int64]).DataPoints[0].Value; v != 3 {
		t.Errorf("expected 3 enqueued triggers, got %d", v)
	}

	drop := findMetric(rm, "glyphflow.triggers.dropped")
	if drop == nil {
		t.Fatal("glyphflow.triggers.dropped metric not found")
	}
	if v := drop.Data.(metricdata.Sum[int64]).DataPoints[0].Value; v != 1 {
		t.Errorf("expected 1 dropped trigger, got %d", v)
	}
}

func TestMetricsHandler_IgnoresUnrelatedKinds(t *testing.T) {
	reader, mp := newTestMeter()
	meter := mp.Meter("test")

	h, err := glyphotel.NewMetricsHandler(meter)
	if err != nil {
		t.Fatalf("NewMetricsHandler: %v", err)
	}

	h.Handle(runtime.Event{Kind: runtime.EventInstanceCreated, Instance: 1, Type: "Add", Time: time.Now()})
	h.Handle(runtime.Event{Kind: runtime.EventListenStarted, Instance: 1, Type: "Add", Time: time.Now()})

	rm := collectMetrics(t, reader)

	m := findMetric(rm, "glyphflow.node.executions")
	if m != nil {
		if data, ok := m.Data.(metricdata.Sum[int64]); ok && len(data.DataPoints) > 0 {
			t.Error("lifecycle events should not record execution metrics")
		}
	}
}
