// Package influxdb stores RF telemetry history in InfluxDB v2.
//
// The bridge publishes live state over MQTT; this package keeps the time
// series behind it. Three shapes of point are written as events decode:
//
//   - sensor readings (temperature, humidity, rain, wind, power)
//   - energy counters from power meters
//   - per-device signal quality (rflevel and floor noise in dBm)
//
// Writes are batched and non-blocking through the client library's
// WriteAPI, sized by batch_size and flush_interval in the config. A failed
// batch is reported through SetOnError and logged; the event pipeline is
// never blocked on telemetry.
//
// The whole package is optional: Connect returns ErrDisabled when the
// config section is off, and the bridge runs without history.
package influxdb
