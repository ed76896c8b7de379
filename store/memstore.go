package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/shipsec/workflow-engine/emit"
)

// MemStore is an in-memory Store: thread-safe maps keyed by run,
// checkpoint, and suspension id, with no persistence across process
// restarts. Intended for tests and single-process development, not
// production use.
type MemStore struct {
	mu sync.RWMutex

	runs               map[string][]byte
	latestCheckpoint   map[string]Checkpoint
	suspensions        map[string][]byte
	suspensionResolved map[string]bool
	idempotencyKeys    map[string]bool
	pendingEvents      []emit.Event
	emittedEventIDs    map[string]bool
}

// NewMemStore returns an empty in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		runs:               make(map[string][]byte),
		latestCheckpoint:   make(map[string]Checkpoint),
		suspensions:        make(map[string][]byte),
		suspensionResolved: make(map[string]bool),
		idempotencyKeys:    make(map[string]bool),
		emittedEventIDs:    make(map[string]bool),
	}
}

func (m *MemStore) SaveRun(_ context.Context, runSnapshot []byte, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(runSnapshot))
	copy(cp, runSnapshot)
	m.runs[runID] = cp
	return nil
}

func (m *MemStore) LoadRun(_ context.Context, runID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(snap))
	copy(out, snap)
	return out, nil
}

func (m *MemStore) SaveCheckpoint(_ context.Context, checkpoint Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if checkpoint.IdempotencyKey != "" && m.idempotencyKeys[checkpoint.IdempotencyKey] {
		return ErrIdempotencyViolation
	}
	if checkpoint.IdempotencyKey != "" {
		m.idempotencyKeys[checkpoint.IdempotencyKey] = true
	}
	m.latestCheckpoint[checkpoint.RunID] = checkpoint
	return nil
}

func (m *MemStore) LoadLatestCheckpoint(_ context.Context, runID string) (Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.latestCheckpoint[runID]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	return cp, nil
}

func (m *MemStore) SaveSuspension(_ context.Context, runID string, suspensionID string, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(record))
	copy(cp, record)
	m.suspensions[suspensionID] = cp
	return nil
}

func (m *MemStore) LoadSuspension(_ context.Context, suspensionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.suspensions[suspensionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(rec))
	copy(out, rec)
	return out, nil
}

func (m *MemStore) ResolveSuspension(_ context.Context, suspensionID string, resolvedRecord []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.suspensions[suspensionID]; !ok {
		return fmt.Errorf("%w: suspension %s", ErrNotFound, suspensionID)
	}
	if m.suspensionResolved[suspensionID] {
		return ErrAlreadyResolved
	}
	m.suspensionResolved[suspensionID] = true
	cp := make([]byte, len(resolvedRecord))
	copy(cp, resolvedRecord)
	m.suspensions[suspensionID] = cp
	return nil
}

// PendingEvents returns up to limit staged events in staging order. Events
// carry no id, so ids recorded by MarkEventsEmitted do not filter them out.
func (m *MemStore) PendingEvents(_ context.Context, limit int) ([]emit.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []emit.Event
	for _, e := range m.pendingEvents {
		if len(out) >= limit {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *MemStore) MarkEventsEmitted(_ context.Context, eventIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range eventIDs {
		m.emittedEventIDs[id] = true
	}
	return nil
}
