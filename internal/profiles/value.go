package profiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

// UndefinedValue is the marker substituted for a raw value that a
// value map does not cover. It is a real value, not an absence: the
// capability produced something, just nothing the profile names.
const UndefinedValue = "undefined"

// ValueConfig declares how to extract one semantic value from a
// structured frame: a path query plus an optional transform pipeline.
//
// The pipeline order is fixed and applied identically everywhere:
// bit_mask (integer AND), bit_offset (integer right-shift), map
// (string lookup, unmapped → UndefinedValue), factor (float multiply).
// A zero mask, offset or factor means the step is not configured.
type ValueConfig struct {
	ValuePath string            `yaml:"value_path"`
	UnitPath  string            `yaml:"unit_path,omitempty"`
	BitMask   int               `yaml:"bit_mask,omitempty"`
	BitOffset int               `yaml:"bit_offset,omitempty"`
	Map       map[string]string `yaml:"map,omitempty"`
	Factor    float64           `yaml:"factor,omitempty"`
}

// GetValue extracts and transforms the value from a frame.
// It is a pure function of (config, packet).
//
// Returns ErrNoValue when the packet is not structured or the path
// resolves to nothing, and ErrConversion when a numeric step meets a
// non-numeric value.
func (c *ValueConfig) GetValue(data rfplayer.EventData) (string, error) {
	return c.find(data, c.ValuePath)
}

// GetUnit extracts the unit using the unit path. Returns ErrNoValue
// when no unit path is configured or it resolves to nothing.
func (c *ValueConfig) GetUnit(data rfplayer.EventData) (string, error) {
	if c.UnitPath == "" {
		return "", ErrNoValue
	}
	return c.find(data, c.UnitPath)
}

func (c *ValueConfig) find(data rfplayer.EventData, path string) (string, error) {
	packet, ok := data.(rfplayer.JSONPacket)
	if !ok {
		return "", ErrNoValue
	}
	v := packet.Get(path)
	if !v.Exists() {
		return "", ErrNoValue
	}
	return c.convert(v.String())
}

// convert runs the fixed transform pipeline on a raw extracted value.
func (c *ValueConfig) convert(value string) (string, error) {
	result := value

	if c.BitMask != 0 {
		n, err := strconv.Atoi(result)
		if err != nil {
			return "", fmt.Errorf("%w: bit_mask on %q: %w", ErrConversion, result, err)
		}
		result = strconv.Itoa(n & c.BitMask)
	}
	if c.BitOffset != 0 {
		n, err := strconv.Atoi(result)
		if err != nil {
			return "", fmt.Errorf("%w: bit_offset on %q: %w", ErrConversion, result, err)
		}
		result = strconv.Itoa(n >> c.BitOffset)
	}
	if len(c.Map) > 0 {
		mapped, ok := c.Map[result]
		if !ok {
			mapped = UndefinedValue
		}
		result = mapped
	}
	if c.Factor != 0 {
		f, err := strconv.ParseFloat(result, 64)
		if err != nil {
			return "", fmt.Errorf("%w: factor on %q: %w", ErrConversion, result, err)
		}
		result = formatFloat(f * c.Factor)
	}
	return result, nil
}

// formatFloat renders a float the way the profile corpus expects:
// shortest decimal form, always with a decimal point ("100.0", "25.5").
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// FormatCommand expands {placeholder} fields in a command template with
// values from args, e.g. "ON {address} {protocol}".
// Unknown placeholders are left untouched.
func FormatCommand(template string, args map[string]string) string {
	result := template
	for key, value := range args {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}
