package provision

import (
	"context"
	"encoding/json"
	"fmt"
)

// Topics for the MQTT event mirror. Status is retained so a subscriber
// joining late still sees the current engine state.
const (
	TopicStatus      = "haven/provision/status"
	TopicIdentity    = "haven/provision/identity"
	TopicResult      = "haven/provision/result"
	TopicDeviceAdded = "haven/provision/device_added"
)

// Publisher is the broker capability the mirror needs.
// Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Mirror republishes engine events onto MQTT so dashboards and other
// services can follow provisioning without talking to the daemon's API.
// Log events are not mirrored; they are chatty and available over the API.
type Mirror struct {
	pub    Publisher
	qos    byte
	logger Logger
}

// NewMirror creates a mirror publishing at the given QoS.
func NewMirror(pub Publisher, qos byte, logger Logger) (*Mirror, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Mirror{pub: pub, qos: qos, logger: logger}, nil
}

// Run consumes the orchestrator's event stream until ctx is cancelled.
// Blocking; run it from its own goroutine.
func (m *Mirror) Run(ctx context.Context, o *Orchestrator) {
	events, cancel := o.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.publish(ev)
		}
	}
}

func (m *Mirror) publish(ev Event) {
	var (
		topic    string
		retained bool
	)
	switch ev.Type {
	case EventStatus:
		topic, retained = TopicStatus, true
	case EventIdentity:
		topic = TopicIdentity
	case EventResult:
		topic = TopicResult
	case EventDeviceAdded:
		topic = TopicDeviceAdded
	default:
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		m.logger.Warn("failed to encode event for mirror", "type", string(ev.Type), "error", err)
		return
	}
	if err := m.pub.Publish(topic, payload, m.qos, retained); err != nil {
		m.logger.Warn("failed to mirror event", "topic", topic, "error", err)
	}
}
