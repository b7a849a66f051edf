package provision

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/havenlighting/provision-core/internal/identity"
)

// LedgerEntry records one device the engine has already provisioned.
type LedgerEntry struct {
	MAC        string          `json:"mac"`
	DeviceName string          `json:"deviceName"`
	Family     identity.Family `json:"family"`
	LocationID int             `json:"locationId"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// LedgerStore persists ledger entries across restarts. Optional: a nil
// store gives a session-scoped ledger.
type LedgerStore interface {
	Load(ctx context.Context) ([]LedgerEntry, error)
	Add(ctx context.Context, entry LedgerEntry) error
	Clear(ctx context.Context) error
}

// Ledger is the set of already-provisioned devices, keyed by normalized
// MAC. During scanning it suppresses re-selection of devices that were
// provisioned this run, so a freshly provisioned controller still
// advertising for a few seconds does not get provisioned twice.
type Ledger struct {
	mu     sync.RWMutex
	byMAC  map[string]LedgerEntry
	store  LedgerStore
	logger Logger
}

// NewLedger creates a ledger. store and logger may be nil.
func NewLedger(store LedgerStore, logger Logger) *Ledger {
	return &Ledger{
		byMAC:  make(map[string]LedgerEntry),
		store:  store,
		logger: logger,
	}
}

// Load hydrates the in-memory set from the backing store, if any.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	entries, err := l.store.Load(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		l.byMAC[identity.NormalizeMAC(e.MAC)] = e
	}
	return nil
}

// Contains reports whether the given MAC has already been provisioned.
// The argument is normalized before lookup.
func (l *Ledger) Contains(mac string) bool {
	key := identity.NormalizeMAC(mac)
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.byMAC[key]
	return ok
}

// Add records a provisioned device. Persistence failures are logged and
// swallowed: a device that cannot be written to disk is still provisioned.
func (l *Ledger) Add(ctx context.Context, entry LedgerEntry) {
	entry.MAC = identity.NormalizeMAC(entry.MAC)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.byMAC[entry.MAC] = entry
	l.mu.Unlock()

	if l.store == nil {
		return
	}
	if err := l.store.Add(ctx, entry); err != nil && l.logger != nil {
		l.logger.Warn("failed to persist ledger entry", "mac", entry.MAC, "error", err)
	}
}

// Entries returns a copy of the ledger, newest first.
func (l *Ledger) Entries() []LedgerEntry {
	l.mu.RLock()
	out := make([]LedgerEntry, 0, len(l.byMAC))
	for _, e := range l.byMAC {
		out = append(out, e)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Reset empties the ledger so every device becomes eligible again.
func (l *Ledger) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.byMAC = make(map[string]LedgerEntry)
	l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	return l.store.Clear(ctx)
}
