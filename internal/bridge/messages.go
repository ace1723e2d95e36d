package bridge

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// StateMessage is published to rfbridge/state/<id> whenever a frame
// changes a device's capability values.
// QoS: 1, Retained: Yes
type StateMessage struct {
	// DeviceID is the canonical identity string (PROTOCOL-[group:]address).
	DeviceID string `json:"device_id"`

	// Profile is the matched profile name, empty when no profile matched.
	Profile string `json:"profile,omitempty"`

	// Timestamp is when the frame was received (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// State maps capability names to their extracted values,
	// e.g. {"temperature": "21.5", "hygrometry": "45"}.
	State map[string]string `json:"state"`

	// Units maps capability names to units, only for capabilities that
	// carry one, e.g. {"temperature": "°C"}.
	Units map[string]string `json:"units,omitempty"`
}

// NewStateMessage builds a state message stamped with the current time.
func NewStateMessage(deviceID, profile string, state, units map[string]string) StateMessage {
	return StateMessage{
		DeviceID:  deviceID,
		Profile:   profile,
		Timestamp: time.Now().UTC(),
		State:     state,
		Units:     units,
	}
}

// EventMessage is the envelope published to rfbridge/event for every
// decoded frame, registered device or not. Consumers that want the
// unfiltered stream (discovery tools, debuggers) subscribe here.
// QoS: 0, Retained: No
type EventMessage struct {
	// ID uniquely identifies this event.
	ID string `json:"id"`

	// Timestamp is when the frame was received (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the canonical identity string derived from the frame.
	DeviceID string `json:"device_id"`

	// Protocol is the RF protocol the frame arrived on.
	Protocol string `json:"protocol"`

	// Model is the device model reported by the frame.
	Model string `json:"model,omitempty"`

	// Frame is the raw JSON body for structured frames, or null for
	// gateway status lines.
	Frame json.RawMessage `json:"frame,omitempty"`

	// Message is the opaque payload of a gateway status line.
	Message string `json:"message,omitempty"`
}

// NewEventMessage builds an envelope for a decoded event.
func NewEventMessage(event rfplayer.Event) EventMessage {
	msg := EventMessage{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		DeviceID:  event.IDString(),
		Protocol:  event.Device.Protocol,
		Model:     event.Device.Model,
	}
	switch data := event.Data.(type) {
	case rfplayer.SimplePacket:
		msg.Message = string(data)
	case rfplayer.JSONPacket:
		msg.Frame = json.RawMessage(data.Body())
	}
	return msg
}

// DeviceCommand is the payload accepted on rfbridge/command/device/<id>.
type DeviceCommand struct {
	// Command is the command name: "on", "off", "set_level", "open",
	// "close", "stop", "set_mode".
	Command string `json:"command"`

	// Parameters carries command-specific values, e.g.
	// {"brightness": "50"} for set_level or {"preset_mode": "eco"}
	// for set_mode. Preset modes may be given by display name or raw
	// code; names are translated to their wire code before the
	// profile's command template expands.
	Parameters map[string]string `json:"parameters,omitempty"`
}

// PairingRequest is the payload accepted on rfbridge/command/pairing.
// It puts the gateway into association mode for a device.
type PairingRequest struct {
	// Protocol is the RF protocol to pair, e.g. "RTS" or "X2DELEC".
	Protocol string `json:"protocol"`

	// Address is the address to assign, e.g. "42".
	Address string `json:"address"`
}

// HealthStatus represents the bridge's health state.
type HealthStatus string

// Health states published to rfbridge/health.
const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
	HealthOffline  HealthStatus = "offline"
)

// HealthMessage is published periodically to rfbridge/health.
// QoS: 1, Retained: Yes
type HealthMessage struct {
	BridgeID  string       `json:"bridge_id"`
	Timestamp time.Time    `json:"timestamp"`
	Status    HealthStatus `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Version   string       `json:"version"`
	UptimeS   int64        `json:"uptime_s"`

	// Gateway reflects the RfPlayer session.
	Gateway *GatewayHealth `json:"gateway,omitempty"`

	// Devices is the number of registered devices.
	Devices int `json:"devices"`
}

// GatewayHealth is the gateway connection section of a health message.
type GatewayHealth struct {
	Connected          bool      `json:"connected"`
	Connection         string    `json:"connection"`
	CommandsTx         uint64    `json:"commands_tx"`
	PacketsRx          uint64    `json:"packets_rx"`
	PacketsDropped     uint64    `json:"packets_dropped"`
	PacketsInvalid     uint64    `json:"packets_invalid"`
	PacketsUnsupported uint64    `json:"packets_unsupported"`
	Reconnects         uint64    `json:"reconnects"`
	LastActivity       time.Time `json:"last_activity"`
}

// NewHealthMessage builds a health message from current stats.
func NewHealthMessage(bridgeID, version string, status HealthStatus, startTime time.Time, deviceCount int) HealthMessage {
	return HealthMessage{
		BridgeID:  bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    status,
		Version:   version,
		UptimeS:   int64(time.Since(startTime).Seconds()),
		Devices:   deviceCount,
	}
}

// NewLWTMessage builds the Last Will payload the broker publishes when
// the bridge dies without a graceful disconnect.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		BridgeID:  bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "connection lost",
	}
}
