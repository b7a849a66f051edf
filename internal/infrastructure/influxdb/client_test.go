package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/havenlighting/provision-core/internal/infrastructure/config"
)

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWrites_NoOpWhenDisconnected(t *testing.T) {
	// A zero client is never connected; writes must be silent no-ops
	// rather than panics, because telemetry is fire-and-forget.
	c := &Client{}

	c.WriteAttemptMetric("Mini", true, 12.4, 1001)
	c.WriteSightingMetric("Series", -52)
	c.Flush()

	if c.IsConnected() {
		t.Error("zero client reports connected")
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestClose_Idempotent(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
}
