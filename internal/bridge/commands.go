package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/rfplayer-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/rfplayer-bridge/internal/profiles"
)

// subscribeCommands registers the inbound MQTT command handlers.
func (b *Bridge) subscribeCommands() error {
	topics := mqtt.Topics{}

	if err := b.mqtt.Subscribe(topics.CommandRaw(), 1, b.handleRawCommand); err != nil {
		return fmt.Errorf("subscribe to raw commands: %w", err)
	}
	if err := b.mqtt.Subscribe(topics.AllDeviceCommands(), 1, b.handleDeviceCommand); err != nil {
		return fmt.Errorf("subscribe to device commands: %w", err)
	}
	if err := b.mqtt.Subscribe(topics.CommandPairing(), 1, b.handlePairing); err != nil {
		return fmt.Errorf("subscribe to pairing commands: %w", err)
	}

	b.logInfo("subscribed to commands",
		"raw", topics.CommandRaw(),
		"device", topics.AllDeviceCommands(),
		"pairing", topics.CommandPairing())
	return nil
}

// handleRawCommand passes a payload straight to the gateway. The
// payload is the bare command text, e.g. "ON A3 X10".
func (b *Bridge) handleRawCommand(_ string, payload []byte) error {
	command := strings.TrimSpace(string(payload))
	if command == "" {
		return fmt.Errorf("empty raw command")
	}

	b.logInfo("raw command", "command", command)
	return b.Send(command)
}

// handleDeviceCommand translates a named command through the device's
// profile templates and sends the result to the gateway.
func (b *Bridge) handleDeviceCommand(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[3] == "" {
		return fmt.Errorf("invalid device command topic: %s", topic)
	}
	idString := parts[3]

	var cmd DeviceCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parse device command: %w", err)
	}
	if cmd.Command == "" {
		return fmt.Errorf("device command missing command name")
	}

	ctx, cancel := context.WithTimeout(b.ctx, eventTimeout)
	defer cancel()

	rec, err := b.devices.Get(ctx, idString)
	if err != nil {
		return fmt.Errorf("device %s: %w", idString, err)
	}
	if rec.ProfileName == "" {
		return fmt.Errorf("device %s has no profile assigned", idString)
	}

	profile, err := b.profiles.Profile(rec.ProfileName)
	if err != nil {
		return fmt.Errorf("device %s: %w", idString, err)
	}

	args := map[string]string{
		"address":  rec.Address,
		"protocol": rec.Protocol,
	}
	for k, v := range cmd.Parameters {
		args[k] = v
	}

	command, err := buildCommand(profile, cmd.Command, args)
	if err != nil {
		return fmt.Errorf("device %s: %w", idString, err)
	}

	b.logInfo("device command",
		"id", idString,
		"command", cmd.Command,
		"raw", command)
	return b.Send(command)
}

// buildCommand finds the profile template for a named command and
// expands it with args. The first capability that declares the
// template wins.
func buildCommand(profile *profiles.Profile, command string, args map[string]string) (string, error) {
	for _, platform := range profiles.Platforms {
		for _, cfg := range profile.Configs(platform) {
			if raw, ok := templateFor(cfg, command, args); ok {
				return raw, nil
			}
		}
	}
	return "", fmt.Errorf("profile %s does not support command %q", profile.Name, command)
}

// templateFor expands the matching command template of one capability
// config, if it declares one.
func templateFor(cfg profiles.PlatformConfig, command string, args map[string]string) (string, bool) {
	switch c := cfg.(type) {
	case *profiles.LightConfig:
		switch command {
		case "on":
			if c.CmdTurnOn != "" {
				return c.MakeCmdTurnOn(args), true
			}
		case "off":
			if c.CmdTurnOff != "" {
				return c.MakeCmdTurnOff(args), true
			}
		case "set_level":
			if c.CmdSetLevel != "" {
				return c.MakeCmdSetLevel(args), true
			}
		}
	case *profiles.SwitchConfig:
		switch command {
		case "on":
			if c.CmdTurnOn != "" {
				return c.MakeCmdTurnOn(args), true
			}
		case "off":
			if c.CmdTurnOff != "" {
				return c.MakeCmdTurnOff(args), true
			}
		}
	case *profiles.CoverConfig:
		switch command {
		case "open":
			if c.CmdOpen != "" {
				return c.MakeCmdOpen(args), true
			}
		case "close":
			if c.CmdClose != "" {
				return c.MakeCmdClose(args), true
			}
		case "stop":
			if c.CmdStop != "" {
				return c.MakeCmdStop(args), true
			}
		}
	case *profiles.ClimateConfig:
		switch command {
		case "on":
			if c.CmdTurnOn != "" {
				return c.MakeCmdTurnOn(args), true
			}
		case "off":
			if c.CmdTurnOff != "" {
				return c.MakeCmdTurnOff(args), true
			}
		case "set_mode":
			if c.CmdSetMode != "" {
				return c.MakeCmdSetMode(args), true
			}
		}
	}
	return "", false
}

// handlePairing puts the gateway into association mode.
func (b *Bridge) handlePairing(_ string, payload []byte) error {
	var req PairingRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parse pairing request: %w", err)
	}
	if req.Protocol == "" || req.Address == "" {
		return fmt.Errorf("pairing request requires protocol and address")
	}

	b.logInfo("pairing", "protocol", req.Protocol, "address", req.Address)
	return b.Pair(req.Protocol, req.Address)
}
