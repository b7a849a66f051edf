// Package provision implements the Haven provisioning orchestrator.
//
// The orchestrator runs the continuous provisioning loop: scan for a
// controller in provisioning mode, gate on proximity, drive a BLE session
// through the fixed command sequence interleaved with cloud calls, publish
// events, pause, rescan. Errors abort only the current attempt; the loop
// stops only on an explicit stop request.
//
// # Driving modes
//
// The autonomous loop (StartLoop/StopLoop) is the primary mode. For callers
// that run their own scanner, ProvisionDevice performs a single attempt for
// a caller-supplied candidate; the caller is responsible for proximity
// gating and for pausing its scan around the call. Both modes share the
// same session gate, so at most one provisioning session ever exists, and
// both guarantee the session is disconnected on every exit path.
//
// # Events
//
// Consumers observe the engine through a broadcast event stream
// (Subscribe): status transitions, log lines, device identities
// (preliminary and final), per-attempt results, and the authoritative
// device-added signal emitted exactly once per successful attempt. Log
// lines are additionally retained in a bounded ring buffer, queryable as a
// snapshot and clearable.
package provision
