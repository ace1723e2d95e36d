package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when the influxdb section of the
	// config is switched off. main treats it as "run without history".
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed initial ping.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: not connected")
)
