package ble

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// State is the session lifecycle state.
type State int

// Session states, in connection order.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateServiceDiscovered
	StateReady
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateServiceDiscovered:
		return "ServiceDiscovered"
	case StateReady:
		return "Ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Logger is the minimal logging surface needed by a session.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Session owns one device connection for the duration of one provisioning
// attempt. It is created per attempt and must be Closed on every exit path.
//
// Thread Safety: Send is serialized by an internal mutex; no two
// characteristic operations ever run concurrently on the same device.
type Session struct {
	central Central
	device  Candidate

	connectTimeout time.Duration
	ioTimeout      time.Duration

	peripheral Peripheral
	channel    Channel

	state   State
	stateMu sync.RWMutex

	// sendMu enforces single-flight access to the characteristic.
	sendMu sync.Mutex

	closeOnce sync.Once

	logger Logger
}

// SessionConfig carries the timeouts for a session.
type SessionConfig struct {
	// ConnectTimeout bounds the platform connect call.
	ConnectTimeout time.Duration

	// IOTimeout bounds each write+settle+read exchange.
	IOTimeout time.Duration
}

// NewSession creates a session for the given candidate device.
// The session does nothing until Connect is called.
//
// Parameters:
//   - central: Platform BLE capability
//   - device: Scan candidate to connect to
//   - cfg: Session timeouts (zero values get sensible defaults)
//   - logger: Logger for TX/RX observability (required)
func NewSession(central Central, device Candidate, cfg SessionConfig, logger Logger) *Session {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 10 * time.Second
	}
	return &Session{
		central:        central,
		device:         device,
		connectTimeout: cfg.ConnectTimeout,
		ioTimeout:      cfg.IOTimeout,
		state:          StateDisconnected,
		logger:         logger,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// Connect establishes the device connection, bounded by the configured
// connect timeout. Failure maps to ErrTransport.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: nil on success; ErrTransport-wrapped failure otherwise
func (s *Session) Connect(ctx context.Context) error {
	s.setState(StateConnecting)

	peripheral, err := s.central.Connect(ctx, s.device.Addr, s.connectTimeout)
	if err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("%w: connecting to %s: %w", ErrTransport, s.device.Addr, err)
	}

	s.peripheral = peripheral
	s.setState(StateConnected)
	s.logger.Debug("connected", "device", s.device.Name, "addr", s.device.Addr)
	return nil
}

// Discover locates the provisioning service and its command characteristic.
// Absence of either is ErrCharacteristicNotFound; the caller must still
// Close the session.
func (s *Session) Discover(ctx context.Context) error {
	if s.State() != StateConnected {
		return fmt.Errorf("%w: discover in state %s", ErrNotReady, s.State())
	}

	channel, err := s.peripheral.DiscoverCommandChannel(ctx, ProvisioningServiceUUID, CommandCharacteristicUUID)
	if err != nil {
		return err
	}
	s.setState(StateServiceDiscovered)

	s.channel = channel
	s.setState(StateReady)
	s.logger.Debug("command channel ready", "device", s.device.Name)
	return nil
}

// Send issues one command and returns the decoded reply text.
//
// Sequence: acknowledged write, settle delay (per-command), read. The reply
// is UTF-8 decoded tolerantly: invalid byte sequences are replaced, never
// fatal, because controller replies routinely contain boot noise.
//
// Every exchange is logged at debug level as TX/RX pairs, with sensitive
// argument values masked.
//
// Parameters:
//   - ctx: Context for cancellation; also bounds the settle wait
//   - cmd: Command to send
//
// Returns:
//   - string: Decoded reply text (may be empty)
//   - error: ErrNotReady, ErrTransport, or ctx error
func (s *Session) Send(ctx context.Context, cmd Command) (string, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if s.State() != StateReady {
		return "", fmt.Errorf("%w: send %s in state %s", ErrNotReady, cmd.Name(), s.State())
	}

	ctx, cancel := context.WithTimeout(ctx, s.ioTimeout)
	defer cancel()

	s.logger.Debug("TX", "device", s.device.Name, "command", cmd.Redacted())

	if err := s.channel.Write([]byte(cmd.Wire())); err != nil {
		return "", fmt.Errorf("%w: writing %s: %w", ErrTransport, cmd.Name(), err)
	}

	// Settle before reading; the device needs processing time.
	select {
	case <-time.After(cmd.Settle()):
	case <-ctx.Done():
		return "", fmt.Errorf("%w: settling after %s: %w", ErrTimeout, cmd.Name(), ctx.Err())
	}

	raw, err := s.channel.Read()
	if err != nil {
		return "", fmt.Errorf("%w: reading %s reply: %w", ErrTransport, cmd.Name(), err)
	}

	reply := strings.ToValidUTF8(string(raw), "�")
	s.logger.Debug("RX", "device", s.device.Name, "command", cmd.Name(), "reply", reply)
	return reply, nil
}

// Close tears the session down. Best-effort: disconnect errors are logged
// and swallowed because the device may already have dropped the link.
// Safe to call multiple times and from deferred paths.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.peripheral != nil {
			if err := s.peripheral.Disconnect(); err != nil {
				s.logger.Warn("disconnect failed (device may have dropped link)",
					"device", s.device.Name, "error", err)
			}
		}
		s.setState(StateDisconnected)
	})
}

// Device returns the candidate this session was created for.
func (s *Session) Device() Candidate {
	return s.device
}
