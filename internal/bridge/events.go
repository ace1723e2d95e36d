package bridge

import (
	"context"
	"encoding/json"
	"maps"
	"strconv"
	"time"

	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/rfplayer-bridge/internal/profiles"
	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// eventTimeout bounds registry work for a single frame.
const eventTimeout = 5 * time.Second

// handleEvent is the pipeline for one decoded frame. It runs on the
// rfplayer callback pool.
func (b *Bridge) handleEvent(event rfplayer.Event) {
	envelope := NewEventMessage(event)
	b.publishEnvelope(envelope)
	b.fanOut(envelope)

	// Gateway status lines carry no device state
	if event.Device.Protocol == rfplayer.GatewayProtocol {
		b.logDebug("gateway status", "message", envelope.Message)
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()

	rec, created, err := b.devices.Observe(ctx, event.Device, time.Now().UTC())
	if err != nil {
		b.logError("device observation failed", err)
		return
	}
	if rec == nil {
		b.logDebug("unregistered device ignored", "id", event.IDString())
		return
	}
	if created {
		b.health.SetDeviceCount(b.devices.Len())
	}

	profile := b.profiles.Match(event.Data)
	if profile == nil {
		b.logDebug("no profile matched", "id", rec.IDString, "model", event.Device.Model)
		return
	}

	// Remember the match so the admin API can show it and command
	// handling can find the templates without re-matching.
	if rec.ProfileName != profile.Name {
		rec.ProfileName = profile.Name
		if err := b.devices.Update(ctx, rec); err != nil {
			b.logWarn("profile name update failed", "id", rec.IDString, "error", err)
		}
	}

	state, units := extractState(profile, event.Data)
	if len(state) == 0 {
		return
	}

	// Every frame is a time-series sample, even when the state map is
	// unchanged since the last publish.
	b.writeMetrics(rec.IDString, event.Data, state)

	if b.stateUnchanged(rec.IDString, state) {
		return
	}

	msg := NewStateMessage(rec.IDString, profile.Name, state, units)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}

	topic := mqtt.Topics{}.DeviceState(rec.IDString)
	if err := b.mqtt.Publish(topic, payload, 1, true); err != nil {
		b.logError("failed to publish state", err)
		return
	}

	if err := b.devices.SetState(ctx, rec.IDString, state); err != nil {
		b.logWarn("state persistence failed", "id", rec.IDString, "error", err)
	}
}

// publishEnvelope publishes the event envelope on the firehose topic.
func (b *Bridge) publishEnvelope(msg EventMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal event", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.DeviceEvent(), payload, 0, false); err != nil {
		b.logError("failed to publish event", err)
	}
}

// extractState runs every capability config of the profile against the
// frame and collects the values that resolve. Capabilities the frame
// does not feed are skipped, not errors.
func extractState(profile *profiles.Profile, data rfplayer.EventData) (state, units map[string]string) {
	state = make(map[string]string)
	units = make(map[string]string)

	for _, platform := range profiles.Platforms {
		for _, cfg := range profile.Configs(platform) {
			value, err := cfg.StateValue(data)
			if err != nil {
				continue
			}
			state[cfg.ConfigName()] = value
			if unit := cfg.StateUnit(data); unit != "" {
				units[cfg.ConfigName()] = unit
			}
		}
	}

	if len(units) == 0 {
		units = nil
	}
	return state, units
}

// writeMetrics forwards numeric readings and the frame's RF signal
// levels to time-series storage.
func (b *Bridge) writeMetrics(deviceID string, data rfplayer.EventData, state map[string]string) {
	if b.metrics == nil {
		return
	}

	for name, value := range state {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		b.metrics.WriteSensorMetric(deviceID, name, f)
	}

	packet, ok := data.(rfplayer.JSONPacket)
	if !ok {
		return
	}
	rfLevel := packet.Get("frame.header.rfLevel")
	floorNoise := packet.Get("frame.header.floorNoise")
	if rfLevel.Exists() && floorNoise.Exists() {
		b.metrics.WriteSignalMetric(deviceID, rfLevel.Float(), floorNoise.Float())
	}
}

// stateUnchanged checks the new state map against the cache.
// Returns true if unchanged (publish should be skipped).
func (b *Bridge) stateUnchanged(deviceID string, state map[string]string) bool {
	b.stateCacheMu.Lock()
	defer b.stateCacheMu.Unlock()

	if cached, ok := b.stateCache[deviceID]; ok && maps.Equal(cached, state) {
		return true
	}

	b.stateCache[deviceID] = maps.Clone(state)
	return false
}
