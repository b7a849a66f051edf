// Package filter holds the pure predicate logic for device selection.
//
// During a scan the provisioning loop sees every advertising BLE device in
// range. This package decides which of them are Haven controllers worth
// provisioning: name-based family recognition, RSSI window acceptance, and
// controller-type inference. It also resolves the cloud location target a
// device will be registered under.
//
// Everything here is side-effect free and cheap; the functions run on every
// scan tick.
package filter
