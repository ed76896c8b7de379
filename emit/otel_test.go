package emit

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*OTelEmitter, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelEmitter(tp.Tracer("test")), exporter
}

func TestOTelEmitterRunAndNodeSpans(t *testing.T) {
	o, exporter := newTestTracer(t)

	o.Emit(Event{RunID: "r1", Step: 1, Msg: "run started", Type: EventTransition})
	o.Emit(Event{RunID: "r1", Step: 2, NodeID: "scan", Msg: "node running", Type: EventTransition})
	o.Emit(Event{RunID: "r1", Step: 3, NodeID: "scan", Msg: "node succeeded", Type: EventTransition})
	o.Emit(Event{RunID: "r1", Step: 4, Msg: "run completed", Type: EventTransition})

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2 (node + run)", len(spans))
	}
	if spans[0].Name != "node" {
		t.Errorf("first-ended span = %q, want node", spans[0].Name)
	}
	if spans[1].Name != "run" {
		t.Errorf("second-ended span = %q, want run", spans[1].Name)
	}
	foundNodeID := false
	for _, attr := range spans[0].Attributes {
		if string(attr.Key) == "node.id" && attr.Value.AsString() == "scan" {
			foundNodeID = true
		}
	}
	if !foundNodeID {
		t.Error("node span missing node.id attribute")
	}
}

func TestOTelEmitterAnnotatesNonLifecycleEvents(t *testing.T) {
	o, exporter := newTestTracer(t)

	o.Emit(Event{RunID: "r1", Msg: "run started"})
	o.Emit(Event{RunID: "r1", NodeID: "scan", Msg: "node running"})
	o.Emit(Event{RunID: "r1", NodeID: "scan", Msg: "node retry scheduled", Meta: map[string]interface{}{"attempt": 1}})
	o.Emit(Event{RunID: "r1", NodeID: "scan", Msg: "node succeeded"})
	o.Emit(Event{RunID: "r1", Msg: "run completed"})

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("recorded %d spans, want 2", len(spans))
	}
	nodeSpan := spans[0]
	if len(nodeSpan.Events) != 1 || nodeSpan.Events[0].Name != "node retry scheduled" {
		t.Errorf("node span events = %v, want the retry annotation", nodeSpan.Events)
	}
}

func TestOTelEmitterFlushClosesOrphans(t *testing.T) {
	o, exporter := newTestTracer(t)
	o.Emit(Event{RunID: "r1", Msg: "run started"})
	o.Emit(Event{RunID: "r1", NodeID: "scan", Msg: "node running"})

	if err := o.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := len(exporter.GetSpans()); got != 2 {
		t.Errorf("Flush ended %d spans, want 2", got)
	}
}

func TestOTelEmitterIgnoresUnknownRun(t *testing.T) {
	o, exporter := newTestTracer(t)
	o.Emit(Event{RunID: "ghost", NodeID: "n", Msg: "node running"})
	o.Emit(Event{RunID: "ghost", NodeID: "n", Msg: "node succeeded"})
	if got := len(exporter.GetSpans()); got != 0 {
		t.Errorf("events without a run span recorded %d spans", got)
	}
}
