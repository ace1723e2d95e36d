// Package bridge orchestrates the RfPlayer gateway session, the device
// registry, the profile registry and MQTT into one running service.
//
// The bridge owns the reconnect policy: the rfplayer client is a single
// session that dies on transport failure, and the bridge dials a fresh
// one with exponential backoff. Decoded events flow through a fixed
// pipeline: registry observation (redirects, auto-add), profile match,
// per-capability value extraction, then retained state publish plus an
// event envelope on the firehose topic. Numeric sensor readings and RF
// signal levels are forwarded to InfluxDB when a writer is configured.
//
// Inbound MQTT commands are the reverse path: raw gateway commands,
// profile-templated device commands and pairing requests.
package bridge
