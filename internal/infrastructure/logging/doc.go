// Package logging provides structured logging for Haven Provision Core.
//
// It wraps the standard library log/slog with configuration-driven handler
// selection (JSON or text), level filtering, and service-wide default fields.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	log.Info("scan started", "rssi_min", -60)
//
// Components derive scoped loggers with With:
//
//	sessionLog := log.With("component", "ble", "device", name)
package logging
