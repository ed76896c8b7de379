package emit

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter projects run events onto OpenTelemetry traces: one root span
// per run, one child span per node execution, with every other event
// attached as a span event. Transition messages are matched by the same
// strings the engine emits; unmatched events still land on the run span, so
// a new transition kind degrades gracefully rather than disappearing.
type OTelEmitter struct {
	tracer trace.Tracer

	mu        sync.Mutex
	runSpans  map[string]trace.Span            // runID -> root span
	nodeSpans map[string]map[string]trace.Span // runID -> nodeID -> open span
}

// NewOTelEmitter returns an emitter that records onto tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{
		tracer:    tracer,
		runSpans:  make(map[string]trace.Span),
		nodeSpans: make(map[string]map[string]trace.Span),
	}
}

func (o *OTelEmitter) Emit(event Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Msg {
	case "run started", "run resumed":
		if _, open := o.runSpans[event.RunID]; !open {
			_, span := o.tracer.Start(context.Background(), "run",
				trace.WithAttributes(attribute.String("run.id", event.RunID)))
			o.runSpans[event.RunID] = span
			o.nodeSpans[event.RunID] = make(map[string]trace.Span)
		}
	case "node running":
		runSpan, open := o.runSpans[event.RunID]
		if !open {
			return
		}
		runCtx := trace.ContextWithSpan(context.Background(), runSpan)
		_, span := o.tracer.Start(runCtx, "node",
			trace.WithAttributes(
				attribute.String("run.id", event.RunID),
				attribute.String("node.id", event.NodeID),
				attribute.Int("step", event.Step),
			))
		o.nodeSpans[event.RunID][event.NodeID] = span
	case "node succeeded":
		o.endNodeSpan(event, codes.Ok, "")
	case "node failed":
		msg, _ := event.Meta["error"].(string)
		o.endNodeSpan(event, codes.Error, msg)
	case "node skipped":
		o.endNodeSpan(event, codes.Unset, "")
	case "run completed":
		o.endRunSpan(event.RunID, codes.Ok, "")
	case "run failed":
		msg, _ := event.Meta["error"].(string)
		o.endRunSpan(event.RunID, codes.Error, msg)
	case "run cancelled":
		o.endRunSpan(event.RunID, codes.Unset, "cancelled")
	default:
		o.annotate(event)
	}
}

// annotate attaches a non-lifecycle event (retry, suspension, progress) to
// the most specific open span available.
func (o *OTelEmitter) annotate(event Event) {
	span := o.lookupSpan(event.RunID, event.NodeID)
	if span == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("type", string(event.Type))}
	if event.NodeID != "" {
		attrs = append(attrs, attribute.String("node.id", event.NodeID))
	}
	for k, v := range event.Meta {
		attrs = append(attrs, metaAttribute(k, v))
	}
	span.AddEvent(event.Msg, trace.WithAttributes(attrs...))
}

func (o *OTelEmitter) lookupSpan(runID, nodeID string) trace.Span {
	if nodeID != "" {
		if nodes, ok := o.nodeSpans[runID]; ok {
			if span, ok := nodes[nodeID]; ok {
				return span
			}
		}
	}
	return o.runSpans[runID]
}

func (o *OTelEmitter) endNodeSpan(event Event, code codes.Code, desc string) {
	nodes, ok := o.nodeSpans[event.RunID]
	if !ok {
		return
	}
	span, ok := nodes[event.NodeID]
	if !ok {
		return
	}
	span.SetStatus(code, desc)
	span.End()
	delete(nodes, event.NodeID)
}

func (o *OTelEmitter) endRunSpan(runID string, code codes.Code, desc string) {
	// Close any node spans orphaned by cancellation before the run span.
	for _, span := range o.nodeSpans[runID] {
		span.End()
	}
	delete(o.nodeSpans, runID)
	if span, ok := o.runSpans[runID]; ok {
		span.SetStatus(code, desc)
		span.End()
		delete(o.runSpans, runID)
	}
}

func metaAttribute(key string, v interface{}) attribute.KeyValue {
	switch vv := v.(type) {
	case string:
		return attribute.String(key, vv)
	case int:
		return attribute.Int(key, vv)
	case int64:
		return attribute.Int64(key, vv)
	case float64:
		return attribute.Float64(key, vv)
	case bool:
		return attribute.Bool(key, vv)
	default:
		return attribute.String(key, "")
	}
}

func (o *OTelEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		o.Emit(e)
	}
	return nil
}

// Flush ends any spans still open, e.g. after a crash-path shutdown; the
// exporter's own ForceFlush is the caller's responsibility (it lives on the
// SDK TracerProvider, not the tracer).
func (o *OTelEmitter) Flush(context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for runID := range o.runSpans {
		o.endRunSpan(runID, codes.Unset, "flushed")
	}
	return nil
}
