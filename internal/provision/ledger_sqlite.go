package provision

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/havenlighting/provision-core/internal/identity"
)

// SQLiteLedgerStore implements LedgerStore using the provisioned_devices
// table. Replace-on-conflict keeps re-provisioning a device idempotent.
type SQLiteLedgerStore struct {
	db *sql.DB
}

// NewSQLiteLedgerStore creates a new SQLite ledger store.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteLedgerStore: Store instance ready for use
func NewSQLiteLedgerStore(db *sql.DB) *SQLiteLedgerStore {
	return &SQLiteLedgerStore{db: db}
}

// Load returns every persisted ledger entry.
func (s *SQLiteLedgerStore) Load(ctx context.Context) ([]LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT mac, name, family, location_id, created_at FROM provisioned_devices",
	)
	if err != nil {
		return nil, fmt.Errorf("querying provisioned devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var entries []LedgerEntry
	for rows.Next() {
		var (
			e      LedgerEntry
			family string
		)
		if err := rows.Scan(&e.MAC, &e.DeviceName, &family, &e.LocationID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning provisioned device: %w", err)
		}
		e.Family = identity.Family(family)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating provisioned devices: %w", err)
	}

	return entries, nil
}

// Add upserts one ledger entry keyed by MAC.
func (s *SQLiteLedgerStore) Add(ctx context.Context, entry LedgerEntry) error {
	if entry.MAC == "" {
		return fmt.Errorf("mac is required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provisioned_devices (mac, name, family, location_id, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(mac) DO UPDATE SET
		   name = excluded.name,
		   family = excluded.family,
		   location_id = excluded.location_id,
		   created_at = excluded.created_at`,
		entry.MAC, entry.DeviceName, string(entry.Family), entry.LocationID, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting provisioned device: %w", err)
	}

	return nil
}

// Clear removes every persisted ledger entry.
func (s *SQLiteLedgerStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM provisioned_devices"); err != nil {
		return fmt.Errorf("clearing provisioned devices: %w", err)
	}
	return nil
}
