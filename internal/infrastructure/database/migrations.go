package database

import (
	"context"
	"fmt"
)

// migration is a single schema change applied in version order.
type migration struct {
	version int
	name    string
	sql     string
}

// migrations is the full ordered schema history. SQLite lacks transactional
// DDL for some statements, so each entry runs in its own transaction and is
// recorded in schema_migrations on success.
var migrations = []migration{
	{
		version: 1,
		name:    "provisioned_devices",
		sql: `CREATE TABLE IF NOT EXISTS provisioned_devices (
			mac         TEXT PRIMARY KEY,
			name        TEXT NOT NULL DEFAULT '',
			family      TEXT NOT NULL DEFAULT 'Unknown',
			location_id INTEGER NOT NULL,
			created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	{
		version: 2,
		name:    "provisioning_attempts",
		sql: `CREATE TABLE IF NOT EXISTS provisioning_attempts (
			id          TEXT PRIMARY KEY,
			device_name TEXT NOT NULL DEFAULT '',
			mac         TEXT NOT NULL DEFAULT 'Unknown',
			family      TEXT NOT NULL DEFAULT 'Unknown',
			firmware    TEXT NOT NULL DEFAULT '—',
			location_id INTEGER NOT NULL DEFAULT 0,
			success     INTEGER NOT NULL,
			error       TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	},
	{
		version: 3,
		name:    "provisioning_attempts_created_idx",
		sql:     `CREATE INDEX IF NOT EXISTS idx_attempts_created ON provisioning_attempts(created_at)`,
	},
}

// Migrate applies all pending schema migrations in version order.
//
// Each migration runs in its own transaction: if migration N fails,
// migrations 1..N-1 remain committed and N is rolled back.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: First migration failure, or nil when schema is current
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return fmt.Errorf("scanning migration version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}

	return nil
}

// applyMigration runs a single migration inside a transaction.
func (db *DB) applyMigration(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("executing: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.version, m.name,
	); err != nil {
		return fmt.Errorf("recording: %w", err)
	}

	return tx.Commit()
}
