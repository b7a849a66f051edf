package provision

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/havenlighting/provision-core/internal/identity"
)

const (
	defaultAttemptLimit = 50
	maxAttemptLimit     = 500
)

// AttemptStore persists per-attempt results for later inspection.
type AttemptStore interface {
	RecordAttempt(ctx context.Context, res Result) error
	ListAttempts(ctx context.Context, limit int) ([]Result, error)
}

// SQLiteAttemptStore implements AttemptStore using the
// provisioning_attempts table.
type SQLiteAttemptStore struct {
	db *sql.DB
}

// NewSQLiteAttemptStore creates a new SQLite attempt store.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteAttemptStore: Store instance ready for use
func NewSQLiteAttemptStore(db *sql.DB) *SQLiteAttemptStore {
	return &SQLiteAttemptStore{db: db}
}

// RecordAttempt inserts one attempt result.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - res: Attempt summary to persist
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteAttemptStore) RecordAttempt(ctx context.Context, res Result) error {
	if res.AttemptID == "" {
		return fmt.Errorf("attempt id is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provisioning_attempts
		   (id, device_name, mac, family, firmware, location_id, success, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.AttemptID,
		res.DeviceName,
		res.MAC,
		string(res.Family),
		res.Firmware,
		res.LocationID,
		res.Success,
		res.Error,
		res.Duration.Milliseconds(),
		res.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting provisioning attempt: %w", err)
	}

	return nil
}

// ListAttempts returns recent attempts, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - limit: Maximum entries to return (default 50, max 500)
//
// Returns:
//   - []Result: Attempt summaries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (s *SQLiteAttemptStore) ListAttempts(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultAttemptLimit
	}
	if limit > maxAttemptLimit {
		limit = maxAttemptLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_name, mac, family, firmware, location_id, success, error, duration_ms, created_at
		 FROM provisioning_attempts
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying provisioning attempts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var out []Result
	for rows.Next() {
		var (
			res        Result
			family     string
			durationMS int64
		)
		if err := rows.Scan(
			&res.AttemptID,
			&res.DeviceName,
			&res.MAC,
			&family,
			&res.Firmware,
			&res.LocationID,
			&res.Success,
			&res.Error,
			&durationMS,
			&res.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning provisioning attempt: %w", err)
		}
		res.Family = identity.Family(family)
		res.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provisioning attempts: %w", err)
	}

	return out, nil
}
