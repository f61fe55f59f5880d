// Package store is the single SQLite-backed cache that holds all sync state:
// accounts, messages, derived conversations, trust entities, folder cursors,
// onboarding task cursors, the action queue, and skills. See spec.md §3 for
// the full data model and §4.1 for the store's contract.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hkdb/threadline/internal/logging"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Pool tuning. SQLite in WAL mode allows exactly one writer at a time, so a
// large connection pool just adds lock contention; keep it modest the way
// the teacher's database package does.
const (
	MaxOpenConns = 8
	MaxIdleConns = 4

	// CheckpointInterval is how often the background WAL checkpoint runs.
	CheckpointInterval = 5 * time.Minute
)

// DB wraps the pooled SQLite connection. Callers hold a connection only for
// the duration of one logical operation (spec.md §4.1); the pool itself
// enforces no per-thread affinity.
type DB struct {
	*sqlx.DB
	path string
}

// Open opens or creates the SQLite file at path, applying the PRAGMAs the
// store relies on (WAL, busy_timeout, foreign key enforcement) in the DSN so
// every pooled connection gets them consistently.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path,
	)
	sqlxDB, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlxDB.SetMaxOpenConns(MaxOpenConns)
	sqlxDB.SetMaxIdleConns(MaxIdleConns)

	if err := sqlxDB.Ping(); err != nil {
		sqlxDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		sqlxDB.Close()
		return nil, fmt.Errorf("set database permissions: %w", err)
	}

	return &DB{DB: sqlxDB, path: path}, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// Checkpoint merges the write-ahead log back into the main database file.
func (db *DB) Checkpoint() error {
	if _, err := db.Exec("PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
		return fmt.Errorf("checkpoint WAL: %w", err)
	}
	return nil
}

// StartCheckpointRoutine runs Checkpoint on a timer until ctx is cancelled.
func (db *DB) StartCheckpointRoutine(ctx context.Context) {
	log := logging.WithComponent("store")
	ticker := time.NewTicker(CheckpointInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := db.Checkpoint(); err != nil {
				log.Error().Err(err).Msg("periodic WAL checkpoint failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Migrate applies all pending forward-only migrations.
func (db *DB) Migrate() error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var current int
	if err := db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM migrations"); err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := db.applyMigration(m); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func (db *DB) applyMigration(m Migration) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("migration SQL: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO migrations (version) VALUES (?)", m.Version); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

// nowMillis returns the current time as milliseconds since epoch, the unit
// every timestamp column in this store uses (spec.md §3).
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
