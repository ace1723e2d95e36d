// Package config loads and validates the bridge configuration.
//
// Settings resolve in three layers: built-in defaults, then the YAML file,
// then RFBRIDGE_* environment variables, with Validate run on the result.
// Everything is read once at startup; nothing reloads at runtime.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Gateway.Connection) // serial:///dev/ttyUSB0?baud=115200
//
// Broker passwords and InfluxDB tokens belong in the environment
// (RFBRIDGE_MQTT_PASSWORD, RFBRIDGE_INFLUXDB_TOKEN), not in the file.
package config
