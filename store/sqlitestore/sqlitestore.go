// Package sqlitestore implements store.Store over a single SQLite file:
// schema-on-first-use migration, WAL mode, single writer. Uses
// modernc.org/sqlite so deployments need no cgo toolchain.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/shipsec/workflow-engine/emit"
	"github.com/shipsec/workflow-engine/store"
)

// SQLiteStore is a SQLite-backed store.Store.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (creating if absent) a SQLite database at path and migrates its
// schema. path may be ":memory:" for tests.
func New(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite supports one writer at a time

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlitestore: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			snapshot BLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			run_id TEXT NOT NULL,
			label TEXT NOT NULL,
			snapshot BLOB NOT NULL,
			idempotency_key TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints(run_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS suspensions (
			suspension_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			record BLOB NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS events_outbox (
			id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			event_data TEXT NOT NULL,
			emitted_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_pending ON events_outbox(emitted_at, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlitestore: migrating: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) SaveRun(ctx context.Context, runSnapshot []byte, runID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, snapshot) VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET snapshot = excluded.snapshot, updated_at = CURRENT_TIMESTAMP
	`, runID, runSnapshot)
	if err != nil {
		return fmt.Errorf("sqlitestore: saving run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadRun(ctx context.Context, runID string) ([]byte, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM runs WHERE run_id = ?`, runID).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: loading run: %w", err)
	}
	return snapshot, nil
}

func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, checkpoint store.Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, label, snapshot, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, checkpoint.RunID, checkpoint.Label, checkpoint.RunSnapshot, checkpoint.IdempotencyKey, checkpoint.Timestamp)
	if err != nil {
		// SQLite reports a UNIQUE constraint violation as a generic error
		// string; the idempotency_key column's UNIQUE constraint is the
		// only one in this table, so any failure here is that violation.
		return store.ErrIdempotencyViolation
	}
	return nil
}

func (s *SQLiteStore) LoadLatestCheckpoint(ctx context.Context, runID string) (store.Checkpoint, error) {
	var cp store.Checkpoint
	cp.RunID = runID
	err := s.db.QueryRowContext(ctx, `
		SELECT label, snapshot, idempotency_key, created_at
		FROM checkpoints WHERE run_id = ? ORDER BY created_at DESC LIMIT 1
	`, runID).Scan(&cp.Label, &cp.RunSnapshot, &cp.IdempotencyKey, &cp.Timestamp)
	if err == sql.ErrNoRows {
		return store.Checkpoint{}, store.ErrNotFound
	}
	if err != nil {
		return store.Checkpoint{}, fmt.Errorf("sqlitestore: loading checkpoint: %w", err)
	}
	return cp, nil
}

func (s *SQLiteStore) SaveSuspension(ctx context.Context, runID string, suspensionID string, record []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suspensions (suspension_id, run_id, record) VALUES (?, ?, ?)
	`, suspensionID, runID, record)
	if err != nil {
		return fmt.Errorf("sqlitestore: saving suspension: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadSuspension(ctx context.Context, suspensionID string) ([]byte, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM suspensions WHERE suspension_id = ?`, suspensionID).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: loading suspension: %w", err)
	}
	return record, nil
}

func (s *SQLiteStore) ResolveSuspension(ctx context.Context, suspensionID string, resolvedRecord []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitestore: beginning resolve transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var resolved int
	err = tx.QueryRowContext(ctx, `SELECT resolved FROM suspensions WHERE suspension_id = ?`, suspensionID).Scan(&resolved)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: suspension %s", store.ErrNotFound, suspensionID)
	}
	if err != nil {
		return fmt.Errorf("sqlitestore: reading suspension: %w", err)
	}
	if resolved != 0 {
		return store.ErrAlreadyResolved
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE suspensions SET record = ?, resolved = 1 WHERE suspension_id = ?
	`, resolvedRecord, suspensionID); err != nil {
		return fmt.Errorf("sqlitestore: resolving suspension: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_data FROM events_outbox
		WHERE emitted_at IS NULL ORDER BY created_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: querying pending events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []emit.Event
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("sqlitestore: scanning event: %w", err)
		}
		var e emit.Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("sqlitestore: decoding event %s: %w", id, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	placeholders := ""
	args := make([]interface{}, len(eventIDs))
	for i, id := range eventIDs {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
		args[i] = id
	}
	query := fmt.Sprintf(`UPDATE events_outbox SET emitted_at = CURRENT_TIMESTAMP WHERE id IN (%s)`, placeholders)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlitestore: marking events emitted: %w", err)
	}
	return nil
}
