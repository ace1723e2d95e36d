package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSensorMetric writes a single RF sensor measurement to InfluxDB.
//
// This is the primary method for recording decoded sensor telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Canonical device identity (e.g., "OREGON-39168")
//   - measurement: The metric name (e.g., "temperature", "hygrometry")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteSensorMetric("OREGON-39168", "temperature", 21.5)
//	client.WriteSensorMetric("OREGON-39168", "hygrometry", 64.0)
func (c *Client) WriteSensorMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"sensor_metrics",
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSignalMetric writes RF signal quality data for a device.
//
// Every received frame carries the receiver's RF level and floor noise
// in dBm. Recording these makes marginal links visible over time.
//
// Parameters:
//   - deviceID: Device identity
//   - rfLevel: Received signal level in dBm
//   - floorNoise: Receiver floor noise in dBm
func (c *Client) WriteSignalMetric(deviceID string, rfLevel float64, floorNoise float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"rf_signal",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"rflevel":     rfLevel,
			"floor_noise": floorNoise,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteEnergyMetric writes an energy consumption measurement.
//
// Used for OWL-style power meters that report instantaneous power
// and cumulative energy.
//
// Parameters:
//   - deviceID: Device identity
//   - powerWatts: Current power draw in watts
//   - energyWh: Cumulative energy consumption in Wh (optional, use 0 if unknown)
func (c *Client) WriteEnergyMetric(deviceID string, powerWatts float64, energyWh float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"power_watts": powerWatts,
	}
	if energyWh > 0 {
		fields["energy_wh"] = energyWh
	}

	point := write.NewPoint(
		"energy",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("gateway_stats",
//	    map[string]string{"bridge": "rfbridge-001"},
//	    map[string]interface{}{"packets_rx": 1024, "packets_dropped": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
