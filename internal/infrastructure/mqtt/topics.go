package mqtt

import "fmt"

// Topic prefixes for the Haven provisioning daemon.
//
// Engine events are mirrored under haven/provision/{event}; the daemon's
// own lifecycle lives under haven/provision/daemon.
const (
	// TopicPrefix is the base for all provisioning topics.
	TopicPrefix = "haven/provision"

	// TopicPrefixDaemon is the base for daemon lifecycle topics.
	TopicPrefixDaemon = "haven/provision/daemon"
)

// Topics provides builders for Haven MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// DaemonStatus returns the daemon online/offline status topic. Retained,
// and also used as the LWT topic for crash detection.
//
// Example: haven/provision/daemon/status
func (Topics) DaemonStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixDaemon)
}

// EngineStatus returns the topic carrying engine status transitions.
//
// Example: haven/provision/status
func (Topics) EngineStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefix)
}

// Identity returns the topic carrying device identity events.
//
// Example: haven/provision/identity
func (Topics) Identity() string {
	return fmt.Sprintf("%s/identity", TopicPrefix)
}

// Result returns the topic carrying per-attempt results.
//
// Example: haven/provision/result
func (Topics) Result() string {
	return fmt.Sprintf("%s/result", TopicPrefix)
}

// DeviceAdded returns the topic carrying device-added signals.
//
// Example: haven/provision/device_added
func (Topics) DeviceAdded() string {
	return fmt.Sprintf("%s/device_added", TopicPrefix)
}

// Command returns the topic the daemon listens on for remote start/stop
// requests.
//
// Example: haven/provision/command
func (Topics) Command() string {
	return fmt.Sprintf("%s/command", TopicPrefix)
}

// AllEvents returns a pattern matching every mirrored engine event.
// The daemon subtree and the command topic are excluded by depth only
// when they do not collide; subscribers should filter by topic name.
//
// Pattern: haven/provision/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/+", TopicPrefix)
}
