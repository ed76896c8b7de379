package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// LogEmitter writes events to a writer, either as human-readable text or as
// JSONL (one JSON object per line) for machine consumption.
//
// Text: [transition] run=run-001 step=3 node=scan msg="node running"
// JSON: {"runID":"run-001","step":3,"nodeID":"scan","type":"transition","msg":"node running"}
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter returns a LogEmitter targeting writer (os.Stdout when nil).
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(event)
}

func (l *LogEmitter) write(event Event) {
	if l.jsonMode {
		data, err := json.Marshal(struct {
			RunID  string                 `json:"runID"`
			Step   int                    `json:"step"`
			NodeID string                 `json:"nodeID,omitempty"`
			Type   EventType              `json:"type"`
			Msg    string                 `json:"msg"`
			Meta   map[string]interface{} `json:"meta,omitempty"`
		}{event.RunID, event.Step, event.NodeID, event.Type, event.Msg, event.Meta})
		if err != nil {
			_, _ = fmt.Fprintf(l.writer, "{\"error\":\"marshaling event: %v\"}\n", err)
			return
		}
		_, _ = fmt.Fprintf(l.writer, "%s\n", data)
		return
	}

	_, _ = fmt.Fprintf(l.writer, "[%s] run=%s step=%d", event.Type, event.RunID, event.Step)
	if event.NodeID != "" {
		_, _ = fmt.Fprintf(l.writer, " node=%s", event.NodeID)
	}
	_, _ = fmt.Fprintf(l.writer, " msg=%q", event.Msg)
	if len(event.Meta) > 0 {
		if metaJSON, err := json.Marshal(event.Meta); err == nil {
			_, _ = fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		}
	}
	_, _ = fmt.Fprint(l.writer, "\n")
}

// EmitBatch writes all events under one lock acquisition, preserving order.
func (l *LogEmitter) EmitBatch(_ context.Context, events []Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range events {
		l.write(e)
	}
	return nil
}

// Flush is a no-op: writes go straight to the underlying writer, which owns
// any buffering of its own.
func (l *LogEmitter) Flush(context.Context) error { return nil }
