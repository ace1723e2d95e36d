package mqtt

import "fmt"

// Topic prefixes for the RfPlayer bridge MQTT surface.
//
// All topics use the flat scheme: rfbridge/{category}/{id_or_suffix}
const (
	// TopicPrefix is the base for all bridge topics.
	TopicPrefix = "rfbridge"
)

// Topics provides builders for bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("OREGON-39168")
//	// Returns: "rfbridge/state/OREGON-39168"
type Topics struct{}

// DeviceState returns the topic for per-device state updates.
//
// Example: rfbridge/state/OREGON-39168
func (Topics) DeviceState(idString string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, idString)
}

// DeviceEvent returns the topic for the raw event firehose.
// Every decoded gateway frame is published here regardless of profile match.
//
// Example: rfbridge/event
func (Topics) DeviceEvent() string {
	return fmt.Sprintf("%s/event", TopicPrefix)
}

// Health returns the topic for bridge health status.
//
// Example: rfbridge/health
func (Topics) Health() string {
	return fmt.Sprintf("%s/health", TopicPrefix)
}

// CommandRaw returns the topic for raw gateway commands.
// Payloads published here are framed and written to the gateway verbatim.
//
// Example: rfbridge/command/raw
func (Topics) CommandRaw() string {
	return fmt.Sprintf("%s/command/raw", TopicPrefix)
}

// CommandDevice returns the topic for per-device commands.
//
// Example: rfbridge/command/device/X10-A3
func (Topics) CommandDevice(idString string) string {
	return fmt.Sprintf("%s/command/device/%s", TopicPrefix, idString)
}

// CommandPairing returns the topic for pairing requests.
//
// Example: rfbridge/command/pairing
func (Topics) CommandPairing() string {
	return fmt.Sprintf("%s/command/pairing", TopicPrefix)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceStates returns a pattern matching all device state updates.
//
// Pattern: rfbridge/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllDeviceCommands returns a pattern matching all per-device commands.
//
// Pattern: rfbridge/command/device/+
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/device/+", TopicPrefix)
}

// AllTopics returns a pattern matching all bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: rfbridge/#
func (Topics) AllTopics() string {
	return fmt.Sprintf("%s/#", TopicPrefix)
}
