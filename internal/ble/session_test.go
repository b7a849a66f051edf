package ble

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"
)

// testLogger satisfies Logger and discards output.
type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Warn(string, ...any)  {}

// MockCentral implements Central for testing.
type MockCentral struct {
	mu           sync.Mutex
	connectErr   error
	peripheral   *MockPeripheral
	connectCalls int
}

func (m *MockCentral) Scan(ctx context.Context, _ func(Candidate)) error {
	<-ctx.Done()
	return nil
}

func (m *MockCentral) StopScan() error { return nil }

func (m *MockCentral) Connect(_ context.Context, _ string, _ time.Duration) (Peripheral, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	return m.peripheral, nil
}

// MockPeripheral implements Peripheral.
type MockPeripheral struct {
	mu            sync.Mutex
	discoverErr   error
	channel       *MockChannel
	disconnected  bool
	disconnectErr error
}

func (m *MockPeripheral) DiscoverCommandChannel(_ context.Context, _, _ string) (Channel, error) {
	if m.discoverErr != nil {
		return nil, m.discoverErr
	}
	return m.channel, nil
}

func (m *MockPeripheral) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
	return m.disconnectErr
}

func (m *MockPeripheral) Disconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnected
}

// MockChannel implements Channel, replying from a canned map.
type MockChannel struct {
	mu       sync.Mutex
	writes   []string
	replies  map[string]string // wire command -> reply
	writeErr error
	readErr  error
	lastWire string
}

func (m *MockChannel) Write(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.lastWire = string(p)
	m.writes = append(m.writes, m.lastWire)
	return nil
}

func (m *MockChannel) Read() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if reply, ok := m.replies[m.lastWire]; ok {
		return []byte(reply), nil
	}
	return []byte("OK"), nil
}

func (m *MockChannel) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

func newTestSession(central *MockCentral) *Session {
	return NewSession(central, Candidate{Name: "Haven-Mini-TEST", Addr: "AA:BB:CC:DD:EE:FF", RSSI: -40},
		SessionConfig{ConnectTimeout: time.Second, IOTimeout: time.Second}, testLogger{})
}

func TestSessionLifecycle(t *testing.T) {
	chn := &MockChannel{replies: map[string]string{
		"<CONSOLE.WHO_AM_I()>": `{"DeviceID":"AA:BB:CC:DD:EE:FF"}`,
	}}
	per := &MockPeripheral{channel: chn}
	central := &MockCentral{peripheral: per}
	s := newTestSession(central)
	ctx := context.Background()

	if s.State() != StateDisconnected {
		t.Fatalf("initial state = %s, want Disconnected", s.State())
	}

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if s.State() != StateConnected {
		t.Errorf("state after Connect = %s, want Connected", s.State())
	}

	if err := s.Discover(ctx); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if s.State() != StateReady {
		t.Errorf("state after Discover = %s, want Ready", s.State())
	}

	reply, err := s.Send(ctx, WhoAmI())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if reply != `{"DeviceID":"AA:BB:CC:DD:EE:FF"}` {
		t.Errorf("Send() reply = %q", reply)
	}

	s.Close()
	if s.State() != StateDisconnected {
		t.Errorf("state after Close = %s, want Disconnected", s.State())
	}
	if !per.Disconnected() {
		t.Error("Close() did not disconnect the peripheral")
	}
}

func TestSessionConnectFailure(t *testing.T) {
	central := &MockCentral{connectErr: errors.New("device went away")}
	s := newTestSession(central)

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Connect() error = %v, want ErrTransport", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("state after failed Connect = %s, want Disconnected", s.State())
	}
}

func TestSessionDiscoverPropagatesNotFound(t *testing.T) {
	per := &MockPeripheral{discoverErr: ErrCharacteristicNotFound}
	central := &MockCentral{peripheral: per}
	s := newTestSession(central)
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := s.Discover(ctx); !errors.Is(err, ErrCharacteristicNotFound) {
		t.Fatalf("Discover() error = %v, want ErrCharacteristicNotFound", err)
	}
}

func TestSessionSendBeforeReady(t *testing.T) {
	central := &MockCentral{peripheral: &MockPeripheral{channel: &MockChannel{}}}
	s := newTestSession(central)

	if _, err := s.Send(context.Background(), WhoAmI()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Send() before Connect error = %v, want ErrNotReady", err)
	}
}

func TestSessionSendWriteFailure(t *testing.T) {
	chn := &MockChannel{writeErr: errors.New("gatt write failed")}
	central := &MockCentral{peripheral: &MockPeripheral{channel: chn}}
	s := newTestSession(central)
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Discover(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Send(ctx, SetSSID("x")); !errors.Is(err, ErrTransport) {
		t.Fatalf("Send() error = %v, want ErrTransport", err)
	}
}

func TestSessionLossyUTF8Decode(t *testing.T) {
	chn := &MockChannel{replies: map[string]string{
		"<CONSOLE.WHO_AM_I()>": "ok\xff\xfe{\"MAC\":\"AABBCCDDEEFF\"}",
	}}
	central := &MockCentral{peripheral: &MockPeripheral{channel: chn}}
	s := newTestSession(central)
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Discover(ctx); err != nil {
		t.Fatal(err)
	}

	reply, err := s.Send(ctx, WhoAmI())
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	// Invalid bytes replaced, payload preserved
	if !utf8.ValidString(reply) {
		t.Errorf("Send() reply = %q is not valid UTF-8", reply)
	}
	if !strings.Contains(reply, `{"MAC":"AABBCCDDEEFF"}`) {
		t.Errorf("Send() reply = %q, want payload intact after repair", reply)
	}
}

func TestSessionCloseSwallowsDisconnectError(t *testing.T) {
	per := &MockPeripheral{channel: &MockChannel{}, disconnectErr: errors.New("already gone")}
	central := &MockCentral{peripheral: per}
	s := newTestSession(central)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Must not panic or propagate; double Close is safe.
	s.Close()
	s.Close()
	if s.State() != StateDisconnected {
		t.Errorf("state after Close = %s, want Disconnected", s.State())
	}
}
