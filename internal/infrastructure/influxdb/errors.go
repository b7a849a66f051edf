package influxdb

import "errors"

// Sentinel errors for telemetry operations; match with errors.Is.
var (
	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed indicates the startup ping failed.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled indicates telemetry is switched off in config; the
	// daemon treats it as "run without telemetry", not a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
