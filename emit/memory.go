package emit

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryLog is an Emitter that retains events per run for later retrieval
// by the /executions/{runId}/logs endpoint. Intended for single-process
// deployments and tests; a multi-process deployment would back log
// streaming with the store's transactional outbox (store.PendingEvents)
// instead.
type MemoryLog struct {
	mu     sync.Mutex
	byRun  map[string][]Event
	maxRun int // per-run retention cap, 0 means unbounded
}

// NewMemoryLog constructs a MemoryLog retaining up to maxPerRun events per
// run id (0 for unbounded).
func NewMemoryLog(maxPerRun int) *MemoryLog {
	return &MemoryLog{byRun: make(map[string][]Event), maxRun: maxPerRun}
}

// Emit implements Emitter.
func (m *MemoryLog) Emit(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := append(m.byRun[event.RunID], event)
	if m.maxRun > 0 && len(events) > m.maxRun {
		events = events[len(events)-m.maxRun:]
	}
	m.byRun[event.RunID] = events
}

// EmitBatch implements Emitter.
func (m *MemoryLog) EmitBatch(ctx context.Context, events []Event) error {
	for _, e := range events {
		m.Emit(e)
	}
	return nil
}

// Flush implements Emitter; MemoryLog holds events by design, so there is
// nothing to deliver.
func (m *MemoryLog) Flush(context.Context) error { return nil }

// EventsForRun implements api.LogReader, returning the retained events for
// runID as a JSON array.
func (m *MemoryLog) EventsForRun(ctx context.Context, runID string) ([]byte, error) {
	m.mu.Lock()
	events := append([]Event(nil), m.byRun[runID]...)
	m.mu.Unlock()
	return json.Marshal(events)
}
