package ble

import (
	"context"
	"time"
)

// Provisioning GATT contract shared by all Haven controller families.
// UUID comparison is case-insensitive everywhere.
const (
	// ProvisioningServiceUUID is the primary service advertised while a
	// controller is in provisioning mode.
	ProvisioningServiceUUID = "0000FFF0-0000-1000-8000-00805F9B34FB"

	// CommandCharacteristicUUID is the single bidirectional command channel:
	// write a console command, then read the reply.
	CommandCharacteristicUUID = "0000FFF1-0000-1000-8000-00805F9B34FB"
)

// Candidate is a device observed during a scan tick. It is transient:
// overwritten on rescan and discarded when scanning stops.
type Candidate struct {
	// Name is the advertised local name, possibly empty.
	Name string

	// Addr is the opaque transport identifier used to connect.
	Addr string

	// RSSI is the signal strength in dBm. Valid readings are negative;
	// values >= 0 are sensor noise and must be discarded by callers.
	RSSI int
}

// Central is the abstract BLE central capability consumed by the engine.
//
// The engine never touches the platform stack directly: pairing, MTU
// negotiation, and GATT encoding are the implementation's concern.
type Central interface {
	// Scan streams advertisement sightings to found until ctx is cancelled
	// or StopScan is called. Blocking; run it from its own goroutine.
	Scan(ctx context.Context, found func(Candidate)) error

	// StopScan terminates an active scan. Safe to call when idle.
	StopScan() error

	// Connect establishes a connection to the device at addr, bounded by
	// timeout. Scanning must be stopped before connecting; connecting while
	// scanning is unreliable on every supported platform.
	Connect(ctx context.Context, addr string, timeout time.Duration) (Peripheral, error)
}

// Peripheral is a connected device.
type Peripheral interface {
	// DiscoverCommandChannel enumerates services and characteristics and
	// returns the command channel matching the given UUIDs
	// (case-insensitive). Absence is ErrCharacteristicNotFound.
	DiscoverCommandChannel(ctx context.Context, serviceUUID, characteristicUUID string) (Channel, error)

	// Disconnect drops the link. Best-effort.
	Disconnect() error
}

// Channel is the bidirectional command characteristic.
type Channel interface {
	// Write sends bytes with write-acknowledgement requested.
	Write(p []byte) error

	// Read reads the current characteristic value.
	Read() ([]byte, error)
}
