package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteAttemptMetric records the outcome of one provisioning attempt.
//
// The write is non-blocking; data is batched and sent asynchronously.
// MAC addresses are deliberately excluded: they are high-cardinality and
// personally identifying, and the attempt history in SQLite already has
// them.
//
// Parameters:
//   - family: Controller family tag ("Mini", "Series", "PoE", "Unknown")
//   - success: Whether the attempt provisioned the device
//   - durationSeconds: Wall-clock duration of the attempt
//   - locationID: Cloud location the device was registered into (0 on failure)
func (c *Client) WriteAttemptMetric(family string, success bool, durationSeconds float64, locationID int) {
	if !c.IsConnected() {
		return
	}

	result := "failure"
	if success {
		result = "success"
	}

	point := write.NewPoint(
		"provisioning_attempts",
		map[string]string{
			"family": family,
			"result": result,
		},
		map[string]interface{}{
			"duration_seconds": durationSeconds,
			"location_id":      locationID,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSightingMetric records one scan sighting of a target controller.
//
// Sightings arrive on every scan tick, so the point carries only the
// family tag and the signal strength.
//
// Parameters:
//   - family: Controller family inferred from the advertised name
//   - rssi: Signal strength in dBm
func (c *Client) WriteSightingMetric(family string, rssi int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"scan_sightings",
		map[string]string{
			"family": family,
		},
		map[string]interface{}{
			"rssi": rssi,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
