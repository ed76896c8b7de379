// Package schedule implements the "schedule" trigger kind: a cron-like
// entry that fires a new run at its due time, built on
// github.com/robfig/cron/v3.
package schedule

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
)

// Entry is one registered schedule: a workflow to run, the cron expression
// that fires it, and the runtime inputs to seed entry nodes with.
type Entry struct {
	ID         string
	Expression string
	WorkflowID string
	VersionID  string // empty means "current version at fire time"
	Inputs     map[string]string
}

// Trigger is invoked once per due firing; the caller (typically the REST
// layer's workflow-run handler) is responsible for compiling/loading the
// plan and starting the engine run.
type Trigger func(ctx context.Context, e Entry) error

// Scheduler owns a cron.Cron instance and the mapping from cron entry IDs
// back to Entry metadata, so entries can be added and removed at runtime as
// workflows are created, updated, or deleted.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	trigger Trigger
	ids     map[string]cron.EntryID // Entry.ID -> cron.EntryID
}

// New constructs a Scheduler that calls trigger for every due Entry.
// cron/v3's default parser (minute-precision, 5-field expressions) is used
// unmodified.
func New(trigger Trigger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		trigger: trigger,
		ids:     make(map[string]cron.EntryID),
	}
}

// Start begins firing registered entries in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts firing without blocking; the returned context is done once
// any in-flight trigger calls have returned.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// Add registers or replaces entry e, keyed by e.ID.
func (s *Scheduler) Add(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.ids[e.ID]; ok {
		s.cron.Remove(existing)
		delete(s.ids, e.ID)
	}
	id, err := s.cron.AddFunc(e.Expression, func() {
		if err := s.trigger(context.Background(), e); err != nil {
			// Scheduling failures are reported to the caller via the
			// Trigger closure's own error handling (e.g. a logrus call
			// wired in by cmd/shipsecd); schedule.Scheduler itself has no
			// logging dependency of its own.
			_ = err
		}
	})
	if err != nil {
		return fmt.Errorf("schedule: invalid cron expression %q: %w", e.Expression, err)
	}
	s.ids[e.ID] = id
	return nil
}

// Remove unregisters a previously added entry; a no-op if unknown.
func (s *Scheduler) Remove(entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[entryID]; ok {
		s.cron.Remove(id)
		delete(s.ids, entryID)
	}
}
