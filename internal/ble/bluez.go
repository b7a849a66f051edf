package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"
)

// readBufferSize is the largest reply a controller sends on the command
// characteristic. Replies are short JSON blobs; 512 leaves headroom.
const readBufferSize = 512

var (
	_ Central    = (*Adapter)(nil)
	_ Peripheral = (*peripheral)(nil)
	_ Channel    = (*channel)(nil)
)

// Adapter implements Central on top of tinygo.org/x/bluetooth
// (BlueZ via D-Bus on Linux).
type Adapter struct {
	adapter *bluetooth.Adapter

	enableOnce sync.Once
	enableErr  error
}

// NewAdapter returns an Adapter backed by the platform default radio.
// The radio is enabled lazily on first use.
func NewAdapter() *Adapter {
	return &Adapter{adapter: bluetooth.DefaultAdapter}
}

func (a *Adapter) enable() error {
	a.enableOnce.Do(func() {
		a.enableErr = a.adapter.Enable()
	})
	if a.enableErr != nil {
		return fmt.Errorf("%w: enabling adapter: %w", ErrTransport, a.enableErr)
	}
	return nil
}

// Scan streams advertisement sightings until ctx is cancelled or StopScan
// is called. Blocking.
func (a *Adapter) Scan(ctx context.Context, found func(Candidate)) error {
	if err := a.enable(); err != nil {
		return err
	}

	// tinygo's Scan blocks until StopScan; bridge ctx cancellation to it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = a.adapter.StopScan() //nolint:errcheck // Best effort on cancel
		case <-done:
		}
	}()

	err := a.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		found(Candidate{
			Name: result.LocalName(),
			Addr: result.Address.String(),
			RSSI: int(result.RSSI),
		})
	})
	if err != nil {
		return fmt.Errorf("%w: scanning: %w", ErrTransport, err)
	}
	return nil
}

// StopScan terminates an active scan. Safe to call when idle.
func (a *Adapter) StopScan() error {
	if err := a.adapter.StopScan(); err != nil {
		// BlueZ returns an error when no scan is running; callers treat
		// StopScan as idempotent, so swallow it.
		return nil
	}
	return nil
}

// Connect establishes a connection to the device at addr.
func (a *Adapter) Connect(ctx context.Context, addr string, timeout time.Duration) (Peripheral, error) {
	if err := a.enable(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: connect cancelled: %w", ErrTransport, err)
	}

	mac, err := bluetooth.ParseMAC(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: bad address %q: %w", ErrTransport, addr, err)
	}

	device, err := a.adapter.Connect(
		bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}},
		bluetooth.ConnectionParams{ConnectionTimeout: bluetooth.NewDuration(timeout)},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting %s: %w", ErrTransport, addr, err)
	}

	return &peripheral{device: device}, nil
}

// peripheral wraps a connected tinygo device.
type peripheral struct {
	device bluetooth.Device
}

// DiscoverCommandChannel enumerates services and characteristics, matching
// UUIDs case-insensitively.
func (p *peripheral) DiscoverCommandChannel(ctx context.Context, serviceUUID, characteristicUUID string) (Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: discovery cancelled: %w", ErrTransport, err)
	}

	services, err := p.device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: discovering services: %w", ErrTransport, err)
	}

	for _, svc := range services {
		if !strings.EqualFold(svc.UUID().String(), serviceUUID) {
			continue
		}

		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: discovering characteristics: %w", ErrTransport, err)
		}

		for i := range chars {
			if strings.EqualFold(chars[i].UUID().String(), characteristicUUID) {
				return &channel{char: chars[i]}, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: service %s / characteristic %s",
		ErrCharacteristicNotFound, serviceUUID, characteristicUUID)
}

// Disconnect drops the link.
func (p *peripheral) Disconnect() error {
	return p.device.Disconnect()
}

// channel wraps the command characteristic.
type channel struct {
	char bluetooth.DeviceCharacteristic
}

// Write sends bytes to the command characteristic. The BlueZ backend
// issues a GATT WriteValue underneath, which is link-layer acknowledged.
func (c *channel) Write(p []byte) error {
	if _, err := c.char.WriteWithoutResponse(p); err != nil {
		return err
	}
	return nil
}

// Read reads the current characteristic value.
func (c *channel) Read() ([]byte, error) {
	buf := make([]byte, readBufferSize)
	n, err := c.char.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
