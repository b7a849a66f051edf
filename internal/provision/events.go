package provision

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/havenlighting/provision-core/internal/identity"
)

// Status is the externally visible engine state. Transitions are published
// on the event stream; consumers must tolerate unknown future values.
type Status int

const (
	StatusIdle Status = iota
	StatusScanning
	StatusDeviceFound
	StatusConnecting
	StatusConnected
	StatusDiscoveringServices
	StatusWaitingForResponse
	StatusProvisioning
	StatusSuccess
	StatusError
	StatusDisconnecting
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusScanning:
		return "scanning"
	case StatusDeviceFound:
		return "device_found"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDiscoveringServices:
		return "discovering_services"
	case StatusWaitingForResponse:
		return "waiting_for_response"
	case StatusProvisioning:
		return "provisioning"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the lowercase status name so stream consumers never
// see bare enum ordinals.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the lowercase status name. Unknown names decode
// to StatusIdle rather than erroring, so old clients survive new states.
func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for candidate := StatusIdle; candidate <= StatusDisconnecting; candidate++ {
		if candidate.String() == name {
			*s = candidate
			return nil
		}
	}
	*s = StatusIdle
	return nil
}

// EventType discriminates the payload carried by an Event.
type EventType string

const (
	EventStatus      EventType = "status"
	EventLog         EventType = "log"
	EventIdentity    EventType = "identity"
	EventResult      EventType = "result"
	EventDeviceAdded EventType = "device_added"
)

// IdentityEvent reports what the engine knows about the device under
// provisioning. A preliminary event (family inferred from the advertised
// name) is emitted as soon as a candidate is selected; a final event
// follows once the identification response has been parsed.
type IdentityEvent struct {
	Stage      string          `json:"stage"` // "preliminary" or "final"
	DeviceName string          `json:"deviceName"`
	Family     identity.Family `json:"family"`
	MACSuffix  string          `json:"macSuffix,omitempty"`
	Firmware   string          `json:"firmware,omitempty"`
}

// DeviceAdded is the authoritative success signal, emitted exactly once
// per successfully provisioned device.
type DeviceAdded struct {
	MAC        string          `json:"mac"`
	DeviceName string          `json:"deviceName"`
	Family     identity.Family `json:"family"`
	LocationID int             `json:"locationId"`
}

// Result summarises one provisioning attempt, successful or not.
type Result struct {
	AttemptID  string          `json:"attemptId"`
	DeviceName string          `json:"deviceName"`
	MAC        string          `json:"mac"`
	Family     identity.Family `json:"family"`
	Firmware   string          `json:"firmware"`
	LocationID int             `json:"locationId,omitempty"`
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	Duration   time.Duration   `json:"duration"`
}

// LogEntry is one line of the engine's operator-facing log stream.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// Event is the multiplexed stream element. Exactly one payload field is
// non-nil, selected by Type.
type Event struct {
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	Status   Status         `json:"status"`
	Log      *LogEntry      `json:"log,omitempty"`
	Identity *IdentityEvent `json:"identity,omitempty"`
	Result   *Result        `json:"result,omitempty"`
	Added    *DeviceAdded   `json:"added,omitempty"`
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this loses events rather than stalling the
// engine.
const subscriberBuffer = 64

// Broadcaster fans events out to an arbitrary number of subscribers.
// Publishing never blocks.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Subscribe registers a new consumer. The returned cancel function must be
// called when the consumer is done; it closes the channel.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with room in its buffer.
func (b *Broadcaster) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// DefaultLogCapacity bounds the in-memory log ring.
const DefaultLogCapacity = 200

// LogBuffer retains the most recent operator-facing log lines.
type LogBuffer struct {
	mu      sync.Mutex
	entries []LogEntry
	cap     int
}

func NewLogBuffer(capacity int) *LogBuffer {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogBuffer{cap: capacity}
}

// Append adds a line, discarding the oldest when the ring is full.
func (l *LogBuffer) Append(level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Time: time.Now(), Level: level, Message: message})
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

// Snapshot returns a copy of the retained lines, oldest first.
func (l *LogBuffer) Snapshot() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Clear discards all retained lines.
func (l *LogBuffer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
