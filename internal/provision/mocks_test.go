package provision

import (
	"context"
	"sync"
	"time"

	"github.com/havenlighting/provision-core/internal/ble"
)

// testLogger discards structured output; the ring buffer is asserted
// against instead.
type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// mockChannel scripts the command characteristic: replies are keyed by
// wire string, unknown commands answer "OK".
type mockChannel struct {
	mu       sync.Mutex
	writes   []string
	replies  map[string]string
	writeErr map[string]error
	lastWire string
}

func newMockChannel() *mockChannel {
	return &mockChannel{
		replies:  make(map[string]string),
		writeErr: make(map[string]error),
	}
}

func (c *mockChannel) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	wire := string(p)
	c.writes = append(c.writes, wire)
	c.lastWire = wire
	if err, ok := c.writeErr[wire]; ok {
		return err
	}
	return nil
}

func (c *mockChannel) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reply, ok := c.replies[c.lastWire]; ok {
		return []byte(reply), nil
	}
	return []byte("OK"), nil
}

func (c *mockChannel) sentWires() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.writes))
	copy(out, c.writes)
	return out
}

type mockPeripheral struct {
	channel     *mockChannel
	discoverErr error

	mu          sync.Mutex
	disconnects int
}

func (p *mockPeripheral) DiscoverCommandChannel(_ context.Context, _, _ string) (ble.Channel, error) {
	if p.discoverErr != nil {
		return nil, p.discoverErr
	}
	return p.channel, nil
}

func (p *mockPeripheral) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnects++
	return nil
}

func (p *mockPeripheral) disconnectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

// mockCentral scripts connect results and, optionally, a scan feed.
type mockCentral struct {
	peripheral *mockPeripheral
	connectErr error

	// scanFeed is replayed to the callback on a short interval until the
	// scan context ends.
	scanFeed []ble.Candidate
	scanErr  error
}

func (m *mockCentral) Scan(ctx context.Context, found func(ble.Candidate)) error {
	if m.scanErr != nil {
		return m.scanErr
	}
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, c := range m.scanFeed {
				found(c)
			}
		}
	}
}

func (m *mockCentral) StopScan() error { return nil }

func (m *mockCentral) Connect(_ context.Context, _ string, _ time.Duration) (ble.Peripheral, error) {
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	return m.peripheral, nil
}

// mockCloud records calls and returns scripted results.
type mockCloud struct {
	mu sync.Mutex

	apiKey string
	keyErr error
	addErr error

	keyCalls []keyCall
	addCalls []addCall
}

type keyCall struct {
	mac    string
	typeID int
	bearer string
}

type addCall struct {
	mac        string
	locationID int
}

func (m *mockCloud) GetAPIKey(_ context.Context, mac string, controllerTypeID int, bearer string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyCalls = append(m.keyCalls, keyCall{mac: mac, typeID: controllerTypeID, bearer: bearer})
	if m.keyErr != nil {
		return "", m.keyErr
	}
	return m.apiKey, nil
}

func (m *mockCloud) AddDeviceToLocation(_ context.Context, mac string, locationID int, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls = append(m.addCalls, addCall{mac: mac, locationID: locationID})
	return m.addErr
}

// collectEvents drains everything currently buffered on the stream.
func collectEvents(events <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func statusSequence(events []Event) []Status {
	var out []Status
	for _, ev := range events {
		if ev.Type == EventStatus {
			out = append(out, ev.Status)
		}
	}
	return out
}
