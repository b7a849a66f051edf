package provision

import (
	"encoding/json"
	"sync"
	"testing"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

type publishedMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (f *fakePublisher) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, publishedMessage{topic: topic, payload: payload, retained: retained})
	return nil
}

func TestMirror_RoutesEventsToTopics(t *testing.T) {
	pub := &fakePublisher{}
	m, err := NewMirror(pub, 1, testLogger{})
	if err != nil {
		t.Fatalf("NewMirror() error = %v", err)
	}

	m.publish(Event{Type: EventStatus, Status: StatusScanning})
	m.publish(Event{Type: EventDeviceAdded, Added: &DeviceAdded{MAC: "AABBCCDDEEF2", LocationID: 1001}})
	m.publish(Event{Type: EventLog, Log: &LogEntry{Message: "noisy"}})

	if len(pub.messages) != 2 {
		t.Fatalf("published %d messages, want 2 (log events are not mirrored)", len(pub.messages))
	}

	status := pub.messages[0]
	if status.topic != TopicStatus {
		t.Errorf("topic = %s, want %s", status.topic, TopicStatus)
	}
	if !status.retained {
		t.Error("status message not retained")
	}
	var decoded Event
	if err := json.Unmarshal(status.payload, &decoded); err != nil {
		t.Fatalf("status payload is not JSON: %v", err)
	}

	added := pub.messages[1]
	if added.topic != TopicDeviceAdded {
		t.Errorf("topic = %s, want %s", added.topic, TopicDeviceAdded)
	}
	if added.retained {
		t.Error("device_added message should not be retained")
	}
}
