// Package mysqlstore implements store.Store over MySQL/MariaDB:
// connection pooling, schema-on-first-use migration, and the same
// run-snapshot/suspension/outbox model as the SQLite store.
package mysqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/shipsec/workflow-engine/emit"
	"github.com/shipsec/workflow-engine/store"
)

// MySQLStore is a MySQL-backed store.Store, intended for production,
// multi-process deployments where SQLite's single-writer model doesn't fit.
type MySQLStore struct {
	db *sql.DB
}

// New opens a connection pool against dsn and migrates the schema.
func New(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: opening: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysqlstore: pinging: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id VARCHAR(64) PRIMARY KEY,
			snapshot LONGBLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			label VARCHAR(64) NOT NULL,
			snapshot LONGBLOB NOT NULL,
			idempotency_key VARCHAR(128) NOT NULL UNIQUE,
			created_at TIMESTAMP(6) NOT NULL,
			INDEX idx_checkpoints_run (run_id, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS suspensions (
			suspension_id VARCHAR(64) PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			record LONGBLOB NOT NULL,
			resolved TINYINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS events_outbox (
			id VARCHAR(64) PRIMARY KEY,
			run_id VARCHAR(64) NOT NULL,
			event_data LONGTEXT NOT NULL,
			emitted_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_events_pending (emitted_at, created_at)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysqlstore: migrating: %w", err)
		}
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *MySQLStore) Close() error { return s.db.Close() }

func (s *MySQLStore) SaveRun(ctx context.Context, runSnapshot []byte, runID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, snapshot) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE snapshot = VALUES(snapshot)
	`, runID, runSnapshot)
	if err != nil {
		return fmt.Errorf("mysqlstore: saving run: %w", err)
	}
	return nil
}

func (s *MySQLStore) LoadRun(ctx context.Context, runID string) ([]byte, error) {
	var snapshot []byte
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM runs WHERE run_id = ?`, runID).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: loading run: %w", err)
	}
	return snapshot, nil
}

func (s *MySQLStore) SaveCheckpoint(ctx context.Context, checkpoint store.Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, label, snapshot, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, checkpoint.RunID, checkpoint.Label, checkpoint.RunSnapshot, checkpoint.IdempotencyKey, checkpoint.Timestamp)
	if err != nil {
		return store.ErrIdempotencyViolation
	}
	return nil
}

func (s *MySQLStore) LoadLatestCheckpoint(ctx context.Context, runID string) (store.Checkpoint, error) {
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
		return store.Checkpoint{}, fmt.Errorf("mysqlstore: loading checkpoint: %w", err)
	}
	return cp, nil
}

func (s *MySQLStore) SaveSuspension(ctx context.Context, runID string, suspensionID string, record []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suspensions (suspension_id, run_id, record) VALUES (?, ?, ?)
	`, suspensionID, runID, record)
	if err != nil {
		return fmt.Errorf("mysqlstore: saving suspension: %w", err)
	}
	return nil
}

func (s *MySQLStore) LoadSuspension(ctx context.Context, suspensionID string) ([]byte, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM suspensions WHERE suspension_id = ?`, suspensionID).Scan(&record)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: loading suspension: %w", err)
	}
	return record, nil
}

func (s *MySQLStore) ResolveSuspension(ctx context.Context, suspensionID string, resolvedRecord []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysqlstore: beginning resolve transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var resolved int
	err = tx.QueryRowContext(ctx, `SELECT resolved FROM suspensions WHERE suspension_id = ? FOR UPDATE`, suspensionID).Scan(&resolved)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: suspension %s", store.ErrNotFound, suspensionID)
	}
	if err != nil {
		return fmt.Errorf("mysqlstore: reading suspension: %w", err)
	}
	if resolved != 0 {
		return store.ErrAlreadyResolved
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE suspensions SET record = ?, resolved = 1 WHERE suspension_id = ?
	`, resolvedRecord, suspensionID); err != nil {
		return fmt.Errorf("mysqlstore: resolving suspension: %w", err)
	}
	return tx.Commit()
}

func (s *MySQLStore) PendingEvents(ctx context.Context, limit int) ([]emit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_data FROM events_outbox
		WHERE emitted_at IS NULL ORDER BY created_at ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("mysqlstore: querying pending events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []emit.Event
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("mysqlstore: scanning event: %w", err)
		}
		var e emit.Event
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("mysqlstore: decoding event %s: %w", id, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *MySQLStore) MarkEventsEmitted(ctx context.Context, eventIDs []string) error {
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
		return fmt.Errorf("mysqlstore: marking events emitted: %w", err)
	}
	return nil
}
