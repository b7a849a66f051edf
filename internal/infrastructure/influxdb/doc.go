// Package influxdb provides InfluxDB connectivity for the Haven
// provisioning daemon.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series telemetry for:
//   - Provisioning attempt outcomes (success rate, duration per family)
//   - Scan sightings (how many controllers are visible, at what signal)
//
// An installer dashboard pointed at the bucket answers "how is this site
// install going" without touching the daemon.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "haven",
//	    Bucket: "provisioning",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteAttemptMetric("Mini", true, 12.4, 1001)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a
// callback. Connection and health check errors are returned directly.
package influxdb
