// Package logging configures structured logging for the bridge.
//
// It wraps log/slog: JSON for deployments, text for a terminal, level
// filtering from the config, and "service"/"version" stamped on every
// entry. Components derive their own logger once at construction:
//
//	log := logger.With("component", "bridge")
//	log.Info("gateway connected", "url", cfg.Gateway.Connection)
//
// Raw RF frames may embed whatever a neighbouring transmitter sent, so
// frame payloads are logged at debug level only and never interpolated
// into messages.
package logging
