// Package ble implements the Bluetooth transport for Haven provisioning.
//
// The provisioning engine talks to controllers through a single GATT
// characteristic used as a bidirectional command channel: write a command,
// wait a short settle delay, read the reply. The wire format is the Haven
// console mini-language, bracket-delimited ASCII of the shape
//
//	<NAMESPACE.VERB(JSON_ARGS)>
//
// constructed only through the typed constructors in commands.go.
//
// Platform access goes through the Central interface. The production
// implementation (bluez.go) wraps tinygo.org/x/bluetooth; tests substitute
// an in-memory fake. Session owns exactly one device connection and
// guarantees single-flight access to the characteristic.
//
// Invariant: a Session is torn down (disconnected) on every exit path.
// Close is best-effort and never propagates errors because the device side
// frequently drops the link first, e.g. after joining WiFi.
package ble
