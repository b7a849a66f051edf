package provision

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/havenlighting/provision-core/internal/identity"
	"github.com/havenlighting/provision-core/internal/infrastructure/database"
)

// openTestDB opens a migrated SQLite database in a temp directory.
func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}

	return db
}

func TestSQLiteLedgerStore_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteLedgerStore(db.DB)
	ctx := context.Background()

	entry := LedgerEntry{
		MAC:        "AABBCCDDEEF2",
		DeviceName: "Haven-Mini-EEF2",
		Family:     identity.FamilyMini,
		LocationID: 9001,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Add(ctx, entry); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	entries, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Load() returned %d entries, want 1", len(entries))
	}
	got := entries[0]
	if got.MAC != entry.MAC || got.DeviceName != entry.DeviceName ||
		got.Family != entry.Family || got.LocationID != entry.LocationID {
		t.Errorf("Load() = %+v, want %+v", got, entry)
	}
}

func TestSQLiteLedgerStore_UpsertKeepsOneRowPerMAC(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteLedgerStore(db.DB)
	ctx := context.Background()

	first := LedgerEntry{MAC: "AABBCCDDEEF2", DeviceName: "Haven-Mini-EEF2", Family: identity.FamilyMini, LocationID: 9001, CreatedAt: time.Now()}
	second := first
	second.LocationID = 1001

	if err := store.Add(ctx, first); err != nil {
		t.Fatalf("Add() first error: %v", err)
	}
	if err := store.Add(ctx, second); err != nil {
		t.Fatalf("Add() second error: %v", err)
	}

	entries, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Load() returned %d entries after upsert, want 1", len(entries))
	}
	if entries[0].LocationID != 1001 {
		t.Errorf("LocationID = %d after upsert, want 1001", entries[0].LocationID)
	}
}

func TestSQLiteLedgerStore_AddRequiresMAC(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteLedgerStore(db.DB)

	if err := store.Add(context.Background(), LedgerEntry{}); err == nil {
		t.Error("Add() with empty MAC should fail")
	}
}

func TestSQLiteLedgerStore_Clear(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteLedgerStore(db.DB)
	ctx := context.Background()

	entry := LedgerEntry{MAC: "AABBCCDDEEF2", Family: identity.FamilyMini, LocationID: 9001, CreatedAt: time.Now()}
	if err := store.Add(ctx, entry); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	entries, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Load() returned %d entries after Clear, want 0", len(entries))
	}
}

func TestSQLiteAttemptStore_RecordAndList(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteAttemptStore(db.DB)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	results := []Result{
		{AttemptID: "attempt-1", DeviceName: "Haven-Mini-EEF2", MAC: "AABBCCDDEEF2", Family: identity.FamilyMini, Firmware: "2.4.1", LocationID: 9001, Success: true, StartedAt: base, Duration: 8 * time.Second},
		{AttemptID: "attempt-2", DeviceName: "Haven-Series-1234", MAC: "Unknown", Family: identity.FamilySeries, Firmware: identity.UnknownFirmware, Success: false, Error: "connect failed", StartedAt: base.Add(time.Minute), Duration: 3 * time.Second},
	}
	for _, res := range results {
		if err := store.RecordAttempt(ctx, res); err != nil {
			t.Fatalf("RecordAttempt(%s) error: %v", res.AttemptID, err)
		}
	}

	listed, err := store.ListAttempts(ctx, 0)
	if err != nil {
		t.Fatalf("ListAttempts() error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("ListAttempts() returned %d results, want 2", len(listed))
	}

	// Newest first.
	if listed[0].AttemptID != "attempt-2" || listed[1].AttemptID != "attempt-1" {
		t.Errorf("ListAttempts() order = [%s, %s], want [attempt-2, attempt-1]",
			listed[0].AttemptID, listed[1].AttemptID)
	}

	got := listed[1]
	if got.MAC != "AABBCCDDEEF2" || got.Family != identity.FamilyMini ||
		got.Firmware != "2.4.1" || got.LocationID != 9001 ||
		!got.Success || got.Duration != 8*time.Second {
		t.Errorf("ListAttempts() first attempt = %+v", got)
	}
	if listed[0].Success || listed[0].Error != "connect failed" {
		t.Errorf("ListAttempts() failed attempt = %+v", listed[0])
	}
}

func TestSQLiteAttemptStore_RequiresAttemptID(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteAttemptStore(db.DB)

	if err := store.RecordAttempt(context.Background(), Result{}); err == nil {
		t.Error("RecordAttempt() without attempt id should fail")
	}
}

func TestSQLiteAttemptStore_LimitClamped(t *testing.T) {
	db := openTestDB(t)
	store := NewSQLiteAttemptStore(db.DB)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res := Result{
			AttemptID: string(rune('a' + i)),
			MAC:       "Unknown",
			Family:    identity.FamilyUnknown,
			StartedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := store.RecordAttempt(ctx, res); err != nil {
			t.Fatalf("RecordAttempt() error: %v", err)
		}
	}

	listed, err := store.ListAttempts(ctx, 2)
	if err != nil {
		t.Fatalf("ListAttempts() error: %v", err)
	}
	if len(listed) != 2 {
		t.Errorf("ListAttempts(2) returned %d results, want 2", len(listed))
	}
}
