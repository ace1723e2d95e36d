package profiles

import (
	"errors"

	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// PlatformConfig is the surface shared by every capability config:
// a display name, a state value and an optional unit.
type PlatformConfig interface {
	// ConfigName is the capability's display name, unique within its
	// profile and platform.
	ConfigName() string

	// StateValue extracts the capability's current value from a frame.
	// ErrNoValue means the frame carries nothing for this capability.
	StateValue(data rfplayer.EventData) (string, error)

	// StateUnit returns the unit for a value, preferring the frame's
	// own unit field over the statically configured one.
	StateUnit(data rfplayer.EventData) string
}

// BaseConfig carries the metadata every capability declares.
type BaseConfig struct {
	Name        string `yaml:"name"`
	DeviceClass string `yaml:"device_class,omitempty"`
	Category    string `yaml:"category,omitempty"`
	Unit        string `yaml:"unit,omitempty"`
}

// ConfigName implements PlatformConfig.
func (b *BaseConfig) ConfigName() string { return b.Name }

// SensorConfig feeds the sensor and binary_sensor platforms.
type SensorConfig struct {
	BaseConfig `yaml:",inline"`
	State      ValueConfig `yaml:"state"`
	StateClass string      `yaml:"state_class,omitempty"`
}

// StateValue implements PlatformConfig.
func (c *SensorConfig) StateValue(data rfplayer.EventData) (string, error) {
	return c.State.GetValue(data)
}

// StateUnit returns the frame's unit when a unit path is configured and
// resolves, falling back to the static unit.
func (c *SensorConfig) StateUnit(data rfplayer.EventData) string {
	if unit, err := c.State.GetUnit(data); err == nil {
		return unit
	}
	return c.Unit
}

// SwitchConfig feeds the switch platform.
type SwitchConfig struct {
	BaseConfig `yaml:",inline"`
	Status     ValueConfig `yaml:"status"`
	CmdTurnOn  string      `yaml:"cmd_turn_on"`
	CmdTurnOff string      `yaml:"cmd_turn_off"`
}

// StateValue implements PlatformConfig.
func (c *SwitchConfig) StateValue(data rfplayer.EventData) (string, error) {
	return c.Status.GetValue(data)
}

// StateUnit implements PlatformConfig. Switches are unitless.
func (c *SwitchConfig) StateUnit(rfplayer.EventData) string { return c.Unit }

// MakeCmdTurnOn expands the turn-on command template.
func (c *SwitchConfig) MakeCmdTurnOn(args map[string]string) string {
	return FormatCommand(c.CmdTurnOn, args)
}

// MakeCmdTurnOff expands the turn-off command template.
func (c *SwitchConfig) MakeCmdTurnOff(args map[string]string) string {
	return FormatCommand(c.CmdTurnOff, args)
}

// LightConfig feeds the light platform. It is a switch with an
// optional dim command.
type LightConfig struct {
	SwitchConfig `yaml:",inline"`
	CmdSetLevel  string `yaml:"cmd_set_level,omitempty"`
}

// MakeCmdSetLevel expands the brightness command template.
func (c *LightConfig) MakeCmdSetLevel(args map[string]string) string {
	return FormatCommand(c.CmdSetLevel, args)
}

// CoverStates are the values a cover's state map may produce.
const (
	CoverOpen   = "open"
	CoverClosed = "closed"
)

// CoverConfig feeds the cover platform.
type CoverConfig struct {
	BaseConfig `yaml:",inline"`
	State      *ValueConfig      `yaml:"state,omitempty"`
	States     map[string]string `yaml:"states,omitempty"`
	CmdOpen    string            `yaml:"cmd_open"`
	CmdClose   string            `yaml:"cmd_close"`
	CmdStop    string            `yaml:"cmd_stop,omitempty"`
}

// StateValue implements PlatformConfig. Covers without a state config
// (one-way RTS motors) never report a value.
func (c *CoverConfig) StateValue(data rfplayer.EventData) (string, error) {
	if c.State == nil {
		return "", ErrNoValue
	}
	value, err := c.State.GetValue(data)
	if err != nil {
		return "", err
	}
	if len(c.States) > 0 {
		if mapped, ok := c.States[value]; ok {
			return mapped, nil
		}
		return UndefinedValue, nil
	}
	return value, nil
}

// StateUnit implements PlatformConfig.
func (c *CoverConfig) StateUnit(rfplayer.EventData) string { return c.Unit }

// MakeCmdOpen expands the open command template.
func (c *CoverConfig) MakeCmdOpen(args map[string]string) string {
	return FormatCommand(c.CmdOpen, args)
}

// MakeCmdClose expands the close command template.
func (c *CoverConfig) MakeCmdClose(args map[string]string) string {
	return FormatCommand(c.CmdClose, args)
}

// MakeCmdStop expands the stop command template.
func (c *CoverConfig) MakeCmdStop(args map[string]string) string {
	return FormatCommand(c.CmdStop, args)
}

// ClimateConfig feeds the climate platform (X2D heating controllers).
type ClimateConfig struct {
	BaseConfig  `yaml:",inline"`
	EventCode   ValueConfig       `yaml:"event_code"`
	EventTypes  map[string]string `yaml:"event_types"`
	State       ValueConfig       `yaml:"state"`
	PresetMode  ValueConfig       `yaml:"preset_mode"`
	PresetModes map[string]string `yaml:"preset_modes"`
	CmdTurnOn   string            `yaml:"cmd_turn_on"`
	CmdTurnOff  string            `yaml:"cmd_turn_off"`
	CmdSetMode  string            `yaml:"cmd_set_mode,omitempty"`
}

// StateValue implements PlatformConfig.
func (c *ClimateConfig) StateValue(data rfplayer.EventData) (string, error) {
	return c.State.GetValue(data)
}

// StateUnit implements PlatformConfig.
func (c *ClimateConfig) StateUnit(rfplayer.EventData) string { return c.Unit }

// EventType classifies a frame for climate handling: the event code is
// extracted and looked up in the event type map ("state",
// "preset_mode" or "all").
func (c *ClimateConfig) EventType(data rfplayer.EventData) (string, error) {
	code, err := c.EventCode.GetValue(data)
	if err != nil {
		return "", err
	}
	eventType, ok := c.EventTypes[code]
	if !ok {
		return "", errors.New("profiles: unmapped climate event code " + code)
	}
	return eventType, nil
}

// PresetModeValue extracts and maps the preset mode from a frame.
func (c *ClimateConfig) PresetModeValue(data rfplayer.EventData) (string, error) {
	code, err := c.PresetMode.GetValue(data)
	if err != nil {
		return "", err
	}
	if mode, ok := c.PresetModes[code]; ok {
		return mode, nil
	}
	return UndefinedValue, nil
}

// MakeCmdTurnOn expands the turn-on command template.
func (c *ClimateConfig) MakeCmdTurnOn(args map[string]string) string {
	return FormatCommand(c.CmdTurnOn, c.withModeCode(args))
}

// MakeCmdTurnOff expands the turn-off command template.
func (c *ClimateConfig) MakeCmdTurnOff(args map[string]string) string {
	return FormatCommand(c.CmdTurnOff, c.withModeCode(args))
}

// MakeCmdSetMode expands the set-mode command template.
func (c *ClimateConfig) MakeCmdSetMode(args map[string]string) string {
	return FormatCommand(c.CmdSetMode, c.withModeCode(args))
}

// modeToCode maps a human-readable preset mode back to its wire code,
// the inverse of PresetModeValue. Values not present in PresetModes
// pass through unchanged so callers may also send raw codes.
func (c *ClimateConfig) modeToCode(mode string) string {
	for code, name := range c.PresetModes {
		if name == mode {
			return code
		}
	}
	return mode
}

// withModeCode returns a copy of args with the preset_mode entry
// translated to its wire code. Command templates expand the code, not
// the display name.
func (c *ClimateConfig) withModeCode(args map[string]string) map[string]string {
	mode, ok := args["preset_mode"]
	if !ok {
		return args
	}
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = v
	}
	out["preset_mode"] = c.modeToCode(mode)
	return out
}

// PlatformConfigMap is the explicit per-platform config map. Explicit
// fields instead of a generic map keep YAML deserialization unambiguous.
type PlatformConfigMap struct {
	BinarySensor []*SensorConfig  `yaml:"binary_sensor,omitempty"`
	Climate      []*ClimateConfig `yaml:"climate,omitempty"`
	Cover        []*CoverConfig   `yaml:"cover,omitempty"`
	Light        []*LightConfig   `yaml:"light,omitempty"`
	Sensor       []*SensorConfig  `yaml:"sensor,omitempty"`
	Switch       []*SwitchConfig  `yaml:"switch,omitempty"`
}

// get returns the configs for one platform in declaration order.
func (m *PlatformConfigMap) get(platform Platform) []PlatformConfig {
	switch platform {
	case PlatformBinarySensor:
		return asPlatformConfigs(m.BinarySensor)
	case PlatformClimate:
		return asPlatformConfigs(m.Climate)
	case PlatformCover:
		return asPlatformConfigs(m.Cover)
	case PlatformLight:
		return asPlatformConfigs(m.Light)
	case PlatformSensor:
		return asPlatformConfigs(m.Sensor)
	case PlatformSwitch:
		return asPlatformConfigs(m.Switch)
	default:
		return nil
	}
}

func asPlatformConfigs[T PlatformConfig](configs []T) []PlatformConfig {
	result := make([]PlatformConfig, len(configs))
	for i, c := range configs {
		result[i] = c
	}
	return result
}
