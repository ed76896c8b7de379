// Package store defines the durable persistence interface for runs,
// suspensions, and the transactional outbox, plus the in-memory, SQLite,
// and MySQL implementations of it.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shipsec/workflow-engine/emit"
)

// ErrNotFound is returned when a requested run, checkpoint, or suspension
// id does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrIdempotencyViolation is returned when a checkpoint commit reuses an
// already-recorded idempotency key. A caller observing this error should
// treat the transition as already durable and proceed rather than retry
// the write.
var ErrIdempotencyViolation = errors.New("store: idempotency key already committed")

// ErrAlreadyResolved is returned by ResolveSuspension when the suspension
// has already been consumed by a prior resolution.
var ErrAlreadyResolved = errors.New("store: suspension already resolved")

// Checkpoint is a durable snapshot written after every state transition:
// node-ready, node-running, node-terminal, suspension-created,
// suspension-resolved.
type Checkpoint struct {
	RunID          string
	StepID         int
	Label          string // transition kind, e.g. "node-running", "suspension-resolved"
	RunSnapshot    []byte // JSON-encoded engine.Run at this transition
	IdempotencyKey string
	Timestamp      time.Time
}

// Store is the durable persistence boundary for the execution engine:
// run snapshots, idempotent checkpoints, suspension records, and a
// transactional event outbox.
type Store interface {
	// SaveRun persists a run's full current state (used on creation and on
	// every terminal/await transition, in addition to checkpointing).
	SaveRun(ctx context.Context, runSnapshot []byte, runID string) error

	// LoadRun retrieves the most recently persisted snapshot for runID.
	LoadRun(ctx context.Context, runID string) ([]byte, error)

	// SaveCheckpoint persists a checkpoint idempotently: if
	// checkpoint.IdempotencyKey has already been committed, SaveCheckpoint
	// returns ErrIdempotencyViolation and performs no write, per spec
	// §4.4.7's "checkpoints are idempotent" invariant.
	SaveCheckpoint(ctx context.Context, checkpoint Checkpoint) error

	// LoadLatestCheckpoint retrieves the most recent checkpoint for runID,
	// used to reconstruct in-memory state on restart.
	LoadLatestCheckpoint(ctx context.Context, runID string) (Checkpoint, error)

	// SaveSuspension persists a newly created suspension record.
	SaveSuspension(ctx context.Context, runID string, suspensionID string, record []byte) error

	// LoadSuspension retrieves a suspension record by id.
	LoadSuspension(ctx context.Context, suspensionID string) ([]byte, error)

	// ResolveSuspension atomically marks a pending suspension resolved,
	// storing the resolution payload. It returns ErrAlreadyResolved if the
	// suspension's current record is not pending, ensuring at most one
	// resolution succeeds.
	ResolveSuspension(ctx context.Context, suspensionID string, resolvedRecord []byte) error

	// PendingEvents retrieves up to limit not-yet-emitted events from the
	// transactional outbox, ordered by creation time.
	PendingEvents(ctx context.Context, limit int) ([]emit.Event, error)

	// MarkEventsEmitted marks events as delivered so PendingEvents will not
	// return them again.
	MarkEventsEmitted(ctx context.Context, eventIDs []string) error
}
