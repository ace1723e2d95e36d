package profiles

import (
	_ "embed"
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/rfplayer-bridge/internal/rfplayer"
)

//go:embed device-profiles.yaml
var defaultDefinitions []byte

// Platform identifies a capability surface a profile can feed.
type Platform string

// Known platforms.
const (
	PlatformBinarySensor Platform = "binary_sensor"
	PlatformClimate      Platform = "climate"
	PlatformCover        Platform = "cover"
	PlatformLight        Platform = "light"
	PlatformSensor       Platform = "sensor"
	PlatformSwitch       Platform = "switch"
)

// Platforms lists every platform in a stable order.
var Platforms = []Platform{
	PlatformBinarySensor,
	PlatformClimate,
	PlatformCover,
	PlatformLight,
	PlatformSensor,
	PlatformSwitch,
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// MatchRule decides whether a frame belongs to a profile.
//
// A rule matches iff every present field matches; absent fields are
// wildcards. InfoType is required and compared exactly; Protocol and
// IDPHY are prefix-anchored regular expressions; SubType is exact.
// Only structured frames can match, and a missing field during
// matching is a non-match, never an error.
type MatchRule struct {
	Protocol string `yaml:"protocol,omitempty"`
	InfoType string `yaml:"info_type"`
	SubType  string `yaml:"sub_type,omitempty"`
	IDPHY    string `yaml:"id_phy,omitempty"`

	protocolRe *regexp.Regexp
	idPhyRe    *regexp.Regexp
}

// compile validates the rule and prepares its regular expressions.
func (m *MatchRule) compile() error {
	if m.InfoType == "" {
		return fmt.Errorf("match rule requires info_type")
	}
	var err error
	if m.Protocol != "" {
		if m.protocolRe, err = regexp.Compile("^(?:" + m.Protocol + ")"); err != nil {
			return fmt.Errorf("protocol pattern %q: %w", m.Protocol, err)
		}
	}
	if m.IDPHY != "" {
		if m.idPhyRe, err = regexp.Compile("^(?:" + m.IDPHY + ")"); err != nil {
			return fmt.Errorf("id_phy pattern %q: %w", m.IDPHY, err)
		}
	}
	return nil
}

// Matches reports whether the structured frame satisfies the rule.
func (m *MatchRule) Matches(packet rfplayer.JSONPacket) bool {
	if m.protocolRe != nil {
		protocol := packet.Get("frame.header.protocolMeaning")
		if !protocol.Exists() || !m.protocolRe.MatchString(protocol.String()) {
			return false
		}
	}

	infoType := packet.Get("frame.header.infoType")
	if !infoType.Exists() || infoType.String() != m.InfoType {
		return false
	}

	if m.SubType != "" {
		subType := packet.Get("frame.infos.subType")
		if !subType.Exists() || subType.String() != m.SubType {
			return false
		}
	}

	if m.idPhyRe != nil {
		idPhy := packet.Get("frame.infos.id_PHY")
		if !idPhy.Exists() || !m.idPhyRe.MatchString(idPhy.String()) {
			return false
		}
	}
	return true
}

// Profile is a named rule plus per-platform capability configurations.
type Profile struct {
	Name      string            `yaml:"name"`
	Match     MatchRule         `yaml:"match"`
	Platforms PlatformConfigMap `yaml:"platforms"`
}

// Configs returns the ordered capability configs for a platform.
// The slice is empty (never nil-checked by callers) when the profile
// does not feed that platform.
func (p *Profile) Configs(platform Platform) []PlatformConfig {
	return p.Platforms.get(platform)
}

// Registry stores RF device profiles. Immutable after Load; safe for
// concurrent use without locking.
type Registry struct {
	profiles []*Profile
	logger   Logger
}

// Load parses YAML profile definitions into a registry.
// The load is all-or-nothing: any syntax or validation error fails the
// whole call and no partial registry is returned.
func Load(definitions []byte, logger Logger) (*Registry, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	var parsed []*Profile
	if err := yaml.Unmarshal(definitions, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	for i, profile := range parsed {
		if profile.Name == "" {
			return nil, fmt.Errorf("%w: profile %d has no name", ErrLoadFailed, i)
		}
		if err := profile.Match.compile(); err != nil {
			return nil, fmt.Errorf("%w: profile %q: %w", ErrLoadFailed, profile.Name, err)
		}
	}

	return &Registry{profiles: parsed, logger: logger}, nil
}

// LoadDefault loads the embedded profile set shipped with the bridge.
func LoadDefault(logger Logger) (*Registry, error) {
	return Load(defaultDefinitions, logger)
}

// Match returns the first profile whose rule matches the frame, in
// registration order, or nil when nothing matches. Non-structured
// payloads never match.
func (r *Registry) Match(data rfplayer.EventData) *Profile {
	packet, ok := data.(rfplayer.JSONPacket)
	if !ok {
		r.logger.Debug("not matching: not a structured frame")
		return nil
	}

	for _, profile := range r.profiles {
		if profile.Match.Matches(packet) {
			return profile
		}
	}
	r.logger.Warn("no matching profile for frame", "frame", packet.String())
	return nil
}

// Profile returns a registered profile by name.
func (r *Registry) Profile(name string) (*Profile, error) {
	for _, profile := range r.profiles {
		if profile.Name == name {
			return profile, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
}

// ProfileNames returns every registered profile name, in registration
// order.
func (r *Registry) ProfileNames() []string {
	names := make([]string, len(r.profiles))
	for i, profile := range r.profiles {
		names[i] = profile.Name
	}
	return names
}

// PlatformConfigs returns the ordered capability configs of a named
// profile for one platform. An unknown profile is an error; a profile
// without configs for the platform yields an empty slice.
func (r *Registry) PlatformConfigs(name string, platform Platform) ([]PlatformConfig, error) {
	profile, err := r.Profile(name)
	if err != nil {
		return nil, err
	}
	return profile.Configs(platform), nil
}

// Len returns the number of registered profiles.
func (r *Registry) Len() int {
	return len(r.profiles)
}
