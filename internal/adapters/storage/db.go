package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Open opens the SQLite database at path with WAL, a busy timeout and
// foreign keys enabled on every pooled connection.
// PRE: path is a file path or ":memory:"
// POST: returns a pinged *sql.DB
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// IsUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// constraint failure.
func IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// migration is one forward-only schema step.
type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{1, "directory and scheduling", `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('MEMBER', 'COUNSELOR', 'ADMIN')),
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS availability_window (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		day_of_week TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		CHECK (end_time > start_time)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_availability_active_slot
		ON availability_window (owner_id, day_of_week, start_time)
		WHERE is_active = 1;

	CREATE TABLE IF NOT EXISTS appointment (
		id TEXT PRIMARY KEY,
		member_id TEXT NOT NULL,
		counselor_id TEXT NOT NULL,
		requested_date TEXT NOT NULL,
		requested_time TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'CONFIRMED', 'CANCELLED', 'COMPLETED')),
		subject TEXT NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		counselor_private_notes TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		message_to_member TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_appointment_member ON appointment (member_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_appointment_counselor ON appointment (counselor_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_appointment_slot ON appointment (counselor_id, requested_date, requested_time);
	`},
	{2, "notification outbox", `
	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		action_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 5,
		last_attempted_at TEXT,
		created_at TEXT NOT NULL,
		external_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox (status, created_at);
	`},
	{3, "availability timestamps", `
	ALTER TABLE availability_window ADD COLUMN created_at TEXT NOT NULL DEFAULT '';
	ALTER TABLE availability_window ADD COLUMN updated_at TEXT NOT NULL DEFAULT '';
	`},
}

// LatestSchemaVersion returns the version reached after all migrations.
func LatestSchemaVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the applied schema version, 0 for a fresh database.
func SchemaVersion(db *sql.DB) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("check schema_version: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	var v int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	return v, nil
}

// MigrateDB brings the schema to LatestSchemaVersion. When a file database
// already holds data, a copy is written to path + ".bak-v<version>" first.
// PRE: db is a valid database connection
// POST: SchemaVersion(db) == LatestSchemaVersion(); each step is atomic
func MigrateDB(db *sql.DB, path string) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}
	if current >= LatestSchemaVersion() {
		return nil
	}

	if current > 0 && path != "" && path != ":memory:" {
		backup := fmt.Sprintf("%s.bak-v%d", path, current)
		if _, err := db.Exec(`VACUUM INTO ?`, backup); err != nil {
			return fmt.Errorf("backup before migration: %w", err)
		}
		slog.Info("storage_event", "event", "schema_backup", "path", backup)
	}

	ctx := context.Background()
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_version (version, name, applied_at) VALUES (?, ?, ?)`,
			m.version, m.name, time.Now().UTC().Format(time.RFC3339),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
		slog.Info("storage_event", "event", "schema_migrated", "version", m.version, "name", m.name)
	}
	return nil
}
