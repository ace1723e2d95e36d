package profiles

import (
	"errors"
	"testing"

	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

const testDefinitions = `
- name: Oregon Rain Gauge
  match:
    protocol: OREGON
    info_type: "9"
    id_phy: "0x2A1(9|D)"
  platforms:
    sensor:
      - name: total rain
        unit: mm
        state:
          value_path: 'frame.infos.measures.#(type=="total rain").value'

- name: Generic Wildcard
  match:
    info_type: "9"
  platforms:
    sensor:
      - name: anything
        state:
          value_path: frame.infos.adr

- name: Never Reached
  match:
    info_type: "9"
  platforms:
    sensor:
      - name: shadowed
        state:
          value_path: frame.infos.adr
`

const rainFrame = `{
  "frame": {
    "header": {"protocolMeaning": "OREGON", "infoType": "9"},
    "infos": {
      "subType": "0",
      "id_PHY": "0x2A19",
      "adr_channel": "39168",
      "measures": [
        {"type": "total rain", "value": "978.25", "unit": "mm"},
        {"type": "rain", "value": "0.00", "unit": "mm/h"}
      ]
    }
  }
}`

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := Load([]byte(testDefinitions), nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return registry
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name        string
		definitions string
	}{
		{
			name:        "malformed yaml",
			definitions: "- name: x\n  match: [broken",
		},
		{
			name:        "missing info_type",
			definitions: "- name: x\n  match:\n    protocol: OREGON\n",
		},
		{
			name:        "missing profile name",
			definitions: "- match:\n    info_type: \"1\"\n",
		},
		{
			name:        "invalid protocol regex",
			definitions: "- name: x\n  match:\n    info_type: \"1\"\n    protocol: \"[unclosed\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load([]byte(tt.definitions), nil); !errors.Is(err, ErrLoadFailed) {
				t.Fatalf("Load() error = %v, want ErrLoadFailed", err)
			}
		})
	}
}

func TestMatchFirstWins(t *testing.T) {
	registry := loadTestRegistry(t)

	// The specific rule and both wildcards match; the first registered
	// profile wins regardless of specificity.
	profile := registry.Match(jsonPacket(t, rainFrame))
	if profile == nil || profile.Name != "Oregon Rain Gauge" {
		t.Fatalf("Match() = %v, want Oregon Rain Gauge", profile)
	}

	// Without the OREGON protocol only the wildcards match, and the
	// earlier one wins.
	frame := `{"frame":{"header":{"protocolMeaning":"KD101","infoType":"9"},"infos":{"adr":"1"}}}`
	profile = registry.Match(jsonPacket(t, frame))
	if profile == nil || profile.Name != "Generic Wildcard" {
		t.Fatalf("Match() = %v, want Generic Wildcard", profile)
	}
}

func TestMatchRules(t *testing.T) {
	definitions := `
- name: sub typed
  match:
    info_type: "1"
    sub_type: "2"
  platforms: {}
`
	registry, err := Load([]byte(definitions), nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	tests := []struct {
		name  string
		frame string
		want  bool
	}{
		{
			name:  "sub type matches",
			frame: `{"frame":{"header":{"infoType":"1"},"infos":{"subType":"2"}}}`,
			want:  true,
		},
		{
			name:  "numeric sub type matches string rule",
			frame: `{"frame":{"header":{"infoType":"1"},"infos":{"subType":2}}}`,
			want:  true,
		},
		{
			name:  "sub type differs",
			frame: `{"frame":{"header":{"infoType":"1"},"infos":{"subType":"3"}}}`,
			want:  false,
		},
		{
			name:  "missing sub type is a non-match, not an error",
			frame: `{"frame":{"header":{"infoType":"1"},"infos":{}}}`,
			want:  false,
		},
		{
			name:  "missing header section",
			frame: `{"frame":{}}`,
			want:  false,
		},
		{
			name:  "info type differs",
			frame: `{"frame":{"header":{"infoType":"4"},"infos":{"subType":"2"}}}`,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := registry.Match(jsonPacket(t, tt.frame)) != nil
			if got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatchSimplePacketNeverMatches(t *testing.T) {
	registry := loadTestRegistry(t)
	if profile := registry.Match(rfplayer.SimplePacket("Welcome")); profile != nil {
		t.Fatalf("Match() on simple packet = %v, want nil", profile)
	}
}

func TestPlatformConfigs(t *testing.T) {
	registry := loadTestRegistry(t)

	configs, err := registry.PlatformConfigs("Oregon Rain Gauge", PlatformSensor)
	if err != nil {
		t.Fatalf("PlatformConfigs() error: %v", err)
	}
	if len(configs) != 1 || configs[0].ConfigName() != "total rain" {
		t.Fatalf("PlatformConfigs() = %v", configs)
	}

	value, err := configs[0].StateValue(jsonPacket(t, rainFrame))
	if err != nil {
		t.Fatalf("StateValue() error: %v", err)
	}
	if value != "978.25" {
		t.Errorf("StateValue() = %q, want 978.25", value)
	}

	// A platform the profile does not feed yields an empty slice, not
	// an error.
	configs, err = registry.PlatformConfigs("Oregon Rain Gauge", PlatformCover)
	if err != nil {
		t.Fatalf("PlatformConfigs() error: %v", err)
	}
	if len(configs) != 0 {
		t.Errorf("PlatformConfigs() for unused platform = %v, want empty", configs)
	}

	if _, err := registry.PlatformConfigs("nope", PlatformSensor); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("PlatformConfigs() unknown profile = %v, want ErrProfileNotFound", err)
	}
}

func TestProfileNamesOrder(t *testing.T) {
	registry := loadTestRegistry(t)
	names := registry.ProfileNames()
	want := []string{"Oregon Rain Gauge", "Generic Wildcard", "Never Reached"}
	if len(names) != len(want) {
		t.Fatalf("ProfileNames() = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ProfileNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestLoadDefaultProfiles(t *testing.T) {
	registry, err := LoadDefault(nil)
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}
	if registry.Len() == 0 {
		t.Fatal("default profile set is empty")
	}

	profile := registry.Match(jsonPacket(t, rainFrame))
	if profile == nil {
		t.Fatal("default set does not match an Oregon rain frame")
	}

	configs := profile.Configs(PlatformSensor)
	if len(configs) == 0 {
		t.Fatal("rain profile has no sensor configs")
	}

	total := configs[0]
	value, err := total.StateValue(jsonPacket(t, rainFrame))
	if err != nil {
		t.Fatalf("StateValue() error: %v", err)
	}
	if value != "978.25" {
		t.Errorf("StateValue() = %q, want 978.25", value)
	}
	if unit := total.StateUnit(jsonPacket(t, rainFrame)); unit != "mm" {
		t.Errorf("StateUnit() = %q, want mm", unit)
	}
}

func TestLoadDefaultSwitchCommands(t *testing.T) {
	registry, err := LoadDefault(nil)
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}

	frame := `{"frame":{"header":{"protocolMeaning":"BLYSS","infoType":"1"},"infos":{"id":"4261417217","subTypeMeaning":"OFF"}}}`
	profile := registry.Match(jsonPacket(t, frame))
	if profile == nil {
		t.Fatal("default set does not match a BLYSS on/off frame")
	}

	configs := profile.Configs(PlatformSwitch)
	if len(configs) != 1 {
		t.Fatalf("switch configs = %d, want 1", len(configs))
	}

	value, err := configs[0].StateValue(jsonPacket(t, frame))
	if err != nil {
		t.Fatalf("StateValue() error: %v", err)
	}
	if value != "off" {
		t.Errorf("StateValue() = %q, want off", value)
	}

	sw, ok := configs[0].(*SwitchConfig)
	if !ok {
		t.Fatalf("config type = %T, want *SwitchConfig", configs[0])
	}
	cmd := sw.MakeCmdTurnOn(map[string]string{"address": "4261417217", "protocol": "BLYSS"})
	if cmd != "ON 4261417217 BLYSS" {
		t.Errorf("MakeCmdTurnOn() = %q", cmd)
	}
}

func TestClimateSetModeCommand(t *testing.T) {
	registry, err := LoadDefault(nil)
	if err != nil {
		t.Fatalf("LoadDefault() error: %v", err)
	}

	frame := `{"frame":{"header":{"protocolMeaning":"X2D","infoType":"10"},"infos":{"id":"266","function":"2","mode":"3"}}}`
	profile := registry.Match(jsonPacket(t, frame))
	if profile == nil {
		t.Fatal("default set does not match an X2D thermostat frame")
	}

	configs := profile.Configs(PlatformClimate)
	if len(configs) != 1 {
		t.Fatalf("climate configs = %d, want 1", len(configs))
	}
	climate, ok := configs[0].(*ClimateConfig)
	if !ok {
		t.Fatalf("config type = %T, want *ClimateConfig", configs[0])
	}

	// Frames report the wire code, readers get the display name.
	mode, err := climate.PresetModeValue(jsonPacket(t, frame))
	if err != nil {
		t.Fatalf("PresetModeValue() error: %v", err)
	}
	if mode != "comfort" {
		t.Errorf("PresetModeValue() = %q, want comfort", mode)
	}

	// Commands go the other way: the display name is translated back
	// to its wire code before expansion.
	cmd := climate.MakeCmdSetMode(map[string]string{"address": "266", "preset_mode": "comfort"})
	if cmd != "3 266 X2DELEC" {
		t.Errorf("MakeCmdSetMode(comfort) = %q, want 3 266 X2DELEC", cmd)
	}
	cmd = climate.MakeCmdSetMode(map[string]string{"address": "266", "preset_mode": "frost free"})
	if cmd != "5 266 X2DELEC" {
		t.Errorf("MakeCmdSetMode(frost free) = %q, want 5 266 X2DELEC", cmd)
	}

	// Raw wire codes pass through untouched.
	cmd = climate.MakeCmdSetMode(map[string]string{"address": "266", "preset_mode": "7"})
	if cmd != "7 266 X2DELEC" {
		t.Errorf("MakeCmdSetMode(7) = %q, want 7 266 X2DELEC", cmd)
	}

	// Templates without a preset_mode argument are unaffected.
	cmd = climate.MakeCmdTurnOn(map[string]string{"address": "266"})
	if cmd != "ON 266 X2DELEC" {
		t.Errorf("MakeCmdTurnOn() = %q", cmd)
	}
}
