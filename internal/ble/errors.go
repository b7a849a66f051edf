package ble

import "errors"

// Domain errors for the BLE transport.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTransport is returned when a platform BLE operation
	// (connect, write, read) fails.
	ErrTransport = errors.New("ble: transport failure")

	// ErrCharacteristicNotFound is returned when the provisioning service or
	// its command characteristic is absent after discovery.
	ErrCharacteristicNotFound = errors.New("ble: characteristic not found")

	// ErrNotReady is returned when a command is sent before the session
	// reached the Ready state.
	ErrNotReady = errors.New("ble: session not ready")

	// ErrTimeout is returned when a bounded BLE operation times out.
	ErrTimeout = errors.New("ble: operation timed out")
)
