package emit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitterText(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, false)
	e.Emit(Event{RunID: "run-1", Step: 3, NodeID: "scan", Type: EventTransition, Msg: "node running"})

	out := buf.String()
	for _, want := range []string{"[transition]", "run=run-1", "step=3", "node=scan", `msg="node running"`} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q: %s", want, out)
		}
	}
}

func TestLogEmitterJSON(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)
	e.Emit(Event{RunID: "run-1", Step: 1, Type: EventProgress, Msg: "50%", Meta: map[string]interface{}{"pct": 50}})

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["runID"] != "run-1" || decoded["type"] != "progress" {
		t.Errorf("unexpected decoded event: %v", decoded)
	}
}

func TestLogEmitterBatchPreservesOrder(t *testing.T) {
	var buf bytes.Buffer
	e := NewLogEmitter(&buf, true)
	events := []Event{
		{RunID: "r", Step: 1, Msg: "first"},
		{RunID: "r", Step: 2, Msg: "second"},
	}
	if err := e.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("EmitBatch: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "first") || !strings.Contains(lines[1], "second") {
		t.Errorf("batch order not preserved: %v", lines)
	}
}

func TestBufferedEmitterHistory(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{RunID: "a", Step: 1, NodeID: "n1", Msg: "node running"})
	b.Emit(Event{RunID: "a", Step: 2, NodeID: "n1", Msg: "node succeeded"})
	b.Emit(Event{RunID: "b", Step: 1, NodeID: "n9", Msg: "node running"})

	if got := len(b.History("a")); got != 2 {
		t.Errorf("History(a) = %d events, want 2", got)
	}
	if got := len(b.History("missing")); got != 0 {
		t.Errorf("History(missing) = %d events, want 0", got)
	}
}

func TestBufferedEmitterFilter(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{RunID: "a", Step: 1, NodeID: "n1", Type: EventTransition, Msg: "node running"})
	b.Emit(Event{RunID: "a", Step: 2, NodeID: "n2", Type: EventTransition, Msg: "node running"})
	b.Emit(Event{RunID: "a", Step: 3, NodeID: "n2", Type: EventProgress, Msg: "halfway"})

	tests := []struct {
		name   string
		filter HistoryFilter
		want   int
	}{
		{"by node", HistoryFilter{NodeID: "n2"}, 2},
		{"by type", HistoryFilter{Type: EventProgress}, 1},
		{"by msg", HistoryFilter{Msg: "node running"}, 2},
		{"by step range", HistoryFilter{MinStep: 2, MaxStep: 2}, 1},
		{"no match", HistoryFilter{NodeID: "n3"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(b.HistoryWithFilter("a", tt.filter)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestBufferedEmitterClear(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{RunID: "a", Msg: "x"})
	b.Emit(Event{RunID: "b", Msg: "y"})
	b.Clear("a")
	if len(b.History("a")) != 0 {
		t.Error("Clear(a) left events behind")
	}
	if len(b.History("b")) != 1 {
		t.Error("Clear(a) removed run b's events")
	}
	b.Reset()
	if len(b.History("b")) != 0 {
		t.Error("Reset left events behind")
	}
}

func TestMemoryLogRetentionCap(t *testing.T) {
	m := NewMemoryLog(2)
	m.Emit(Event{RunID: "r", Step: 1, Msg: "one"})
	m.Emit(Event{RunID: "r", Step: 2, Msg: "two"})
	m.Emit(Event{RunID: "r", Step: 3, Msg: "three"})

	body, err := m.EventsForRun(context.Background(), "r")
	if err != nil {
		t.Fatalf("EventsForRun: %v", err)
	}
	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("retained %d events, want 2", len(events))
	}
	if events[0].Msg != "two" || events[1].Msg != "three" {
		t.Errorf("wrong events retained: %v", events)
	}
}

func TestNullEmitter(t *testing.T) {
	n := NewNullEmitter()
	n.Emit(Event{RunID: "r"})
	if err := n.EmitBatch(context.Background(), []Event{{RunID: "r"}}); err != nil {
		t.Errorf("EmitBatch: %v", err)
	}
	if err := n.Flush(context.Background()); err != nil {
		t.Errorf("Flush: %v", err)
	}
}

func TestMultiEmitterFanOut(t *testing.T) {
	a := NewBufferedEmitter()
	b := NewBufferedEmitter()
	m := NewMultiEmitter(a, nil, b)
	m.Emit(Event{RunID: "r", Msg: "hello"})

	if len(a.History("r")) != 1 || len(b.History("r")) != 1 {
		t.Error("event did not reach every wrapped emitter")
	}
}
