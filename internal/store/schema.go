// Package store records simulation runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for run recordings.
const schemaV1 = `
-- One row per recorded run; a database may hold many runs
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    seed TEXT NOT NULL,        -- decimal uint64; exceeds the INTEGER range
    neurons INTEGER NOT NULL,
    synapses INTEGER NOT NULL,
    ticks INTEGER NOT NULL DEFAULT 0,
    config TEXT  -- YAML of the effective configuration
);

CREATE TABLE IF NOT EXISTS neurons (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    id INTEGER NOT NULL,
    model TEXT NOT NULL,       -- 'izhikevich', 'hindmarsh_rose'
    column_index INTEGER,      -- NULL for neurons outside the column topology
    layer TEXT,
    PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS synapses (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    id INTEGER NOT NULL,
    pre INTEGER NOT NULL,
    post INTEGER NOT NULL,
    delay INTEGER NOT NULL,
    initial_strength REAL NOT NULL,
    final_strength REAL,       -- written when the run closes
    PRIMARY KEY (run_id, id)
);
CREATE INDEX IF NOT EXISTS idx_synapses_post ON synapses(run_id, post);

CREATE TABLE IF NOT EXISTS spikes (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    tick INTEGER NOT NULL,
    neuron INTEGER NOT NULL,
    PRIMARY KEY (run_id, tick, neuron)
);
CREATE INDEX IF NOT EXISTS idx_spikes_neuron ON spikes(run_id, neuron);

-- Schema version
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema creates the tables of a fresh database. An existing database is
// integrity-checked and must not be newer than SchemaVersion.
func InitSchema(ctx context.Context, db *sql.DB) error {
	version, ok, err := schemaVersion(ctx, db)
	if err != nil {
		return err
	}
	if !ok {
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if version > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, SchemaVersion)
	}
	if err := ValidateIntegrity(ctx, db); err != nil {
		return fmt.Errorf("database integrity check failed: %w", err)
	}
	return nil
}

// schemaVersion returns the recorded schema version. ok is false for a
// database without a schema_version table.
func schemaVersion(ctx context.Context, db *sql.DB) (version int, ok bool, err error) {
	var n int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`).Scan(&n); err != nil {
		return 0, false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if n == 0 {
		return 0, false, nil
	}

	var v sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&v); err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(v.Int64), true, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return tx.Commit()
}

// ValidateIntegrity returns an error if PRAGMA integrity_check reports
// corruption or PRAGMA foreign_key_check reports dangling references.
func ValidateIntegrity(ctx context.Context, db *sql.DB) error {
	results, err := pragmaRows(ctx, db, "integrity_check")
	if err != nil {
		return err
	}
	if len(results) != 1 || results[0] != "ok" {
		return fmt.Errorf("integrity_check failed: %s", strings.Join(results, "; "))
	}

	violations, err := pragmaRows(ctx, db, "foreign_key_check")
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("foreign_key_check found %d violations: %s", len(violations), strings.Join(violations, "; "))
	}
	return nil
}

// pragmaRows runs a checking pragma and renders each result row as
// space-separated text.
func pragmaRows(ctx context.Context, db *sql.DB, pragma string) ([]string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA "+pragma)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", pragma, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s columns: %w", pragma, err)
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	var out []string
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan %s result: %w", pragma, err)
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			parts[i] = fmt.Sprint(v)
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out, rows.Err()
}
