package rfplayer

import (
	"strconv"
	"strings"
)

// Identity placeholders used when a frame does not carry the
// corresponding field.
const (
	UnknownInfo     = "unknown"
	GatewayProtocol = "gateway"
	GatewayModel    = "gateway"

	// SwitchModel is the generic model substituted for raw on/off
	// command frames, which identify a plain actuator rather than a
	// specific hardware model.
	SwitchModel = "switch"
)

// Field probing order within the frame's infos section. The slices are
// priority lists: the first present key wins. Their order is a protocol
// contract, not an implementation detail.
var (
	// AddressKeys locates the device address.
	AddressKeys = []string{"id", "id_channel", "adr_channel"}

	// ModelKeys locates the device model.
	ModelKeys = []string{"id_PHYMeaning", "subTypeMeaning"}
)

// DeviceID identifies an RF device or the RfPlayer gateway itself.
// It is stable for the lifetime of a physical device and is the sole
// key used for profile caching, redirection and deduplication.
type DeviceID struct {
	Protocol string
	Address  string
	GroupID  string
	Model    string
}

// IDString builds the canonical identity string:
// PROTOCOL-address, or PROTOCOL-group:address when a group is set.
// The protocol is uppercased; the address is kept byte-exact.
func (d DeviceID) IDString() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(d.Protocol))
	b.WriteByte('-')
	if d.GroupID != "" {
		b.WriteString(d.GroupID)
		b.WriteByte(':')
	}
	b.WriteString(d.Address)
	return b.String()
}

// addressLayout describes how a protocol packs group and unit codes
// into its numeric address.
type addressLayout struct {
	groupBits uint
	groupLow  bool // group code in the low bits instead of the high bits
}

// groupLayouts maps protocols with composite addresses to their layout.
// X10 and RTS put the house code in the high bits; X2D and CHACON put
// the area code in the low bits.
var groupLayouts = map[string]addressLayout{
	"X10":    {groupBits: 4},
	"RTS":    {groupBits: 4},
	"DOMIA":  {groupBits: 4},
	"X2D":    {groupBits: 4, groupLow: true},
	"CHACON": {groupBits: 6, groupLow: true},
}

// GroupCode returns the group (house/area) part of a composite address,
// or false when the protocol has no group concept or the address is not
// numeric.
func (d DeviceID) GroupCode() (string, bool) {
	group, _, ok := d.splitAddress()
	return group, ok
}

// UnitCode returns the unit part of a composite address, or false when
// the protocol has no group concept or the address is not numeric.
func (d DeviceID) UnitCode() (string, bool) {
	_, unit, ok := d.splitAddress()
	return unit, ok
}

func (d DeviceID) splitAddress() (group, unit string, ok bool) {
	layout, ok := groupLayouts[strings.ToUpper(d.Protocol)]
	if !ok {
		return "", "", false
	}
	addr, err := strconv.ParseUint(d.Address, 10, 64)
	if err != nil {
		return "", "", false
	}

	mask := uint64(1)<<layout.groupBits - 1
	if layout.groupLow {
		group = strconv.FormatUint(addr&mask, 10)
		unit = strconv.FormatUint(addr>>layout.groupBits, 10)
	} else {
		group = strconv.FormatUint(addr>>layout.groupBits, 10)
		unit = strconv.FormatUint(addr&mask, 10)
	}
	return group, unit, true
}

// Event is a device-oriented event: the raw payload plus the identity
// derived from it. Immutable once constructed.
type Event struct {
	Device DeviceID
	Data   EventData
}

// IDString returns the identity string of the event's device.
func (e Event) IDString() string {
	return e.Device.IDString()
}

// EventAdapter derives device identities from classified packets and
// forwards the resulting events to a callback.
type EventAdapter struct {
	gatewayID string
	callback  func(Event)
}

// NewEventAdapter creates an adapter. gatewayID is the session's port or
// connection identifier, used as the address of the gateway pseudo-device.
func NewEventAdapter(gatewayID string, callback func(Event)) *EventAdapter {
	return &EventAdapter{gatewayID: gatewayID, callback: callback}
}

// RawEvent converts a classified packet into a device event and invokes
// the callback.
func (a *EventAdapter) RawEvent(data EventData) {
	if a.callback == nil {
		return
	}

	switch packet := data.(type) {
	case SimplePacket:
		a.callback(Event{
			Device: DeviceID{
				Protocol: GatewayProtocol,
				Address:  a.gatewayID,
				Model:    GatewayModel,
			},
			Data: packet,
		})
	case JSONPacket:
		a.callback(Event{Device: DeviceFromPacket(packet), Data: packet})
	}
}

// DeviceFromPacket derives a device identity from a structured frame.
//
// The address is the first present key of AddressKeys within frame.infos,
// the model the first present key of ModelKeys, the protocol
// frame.header.protocolMeaning; all three fall back to UnknownInfo.
// Raw on/off models are normalized to SwitchModel here, at identity
// derivation time, so matching and presentation see a consistent model.
func DeviceFromPacket(packet JSONPacket) DeviceID {
	protocol := packet.Get("frame.header.protocolMeaning").String()
	if protocol == "" {
		protocol = UnknownInfo
	}
	id := DeviceID{
		Protocol: protocol,
		Address:  firstPresent(packet, AddressKeys),
		Model:    normalizeModel(firstPresent(packet, ModelKeys)),
	}
	if group, ok := id.GroupCode(); ok && packet.Get("frame.infos.subTypeMeaning").String() == "GROUP" {
		id.GroupID = group
	}
	return id
}

// firstPresent probes frame.infos with the given priority list and
// returns the value of the first key that exists, else UnknownInfo.
func firstPresent(packet JSONPacket, keys []string) string {
	for _, key := range keys {
		if v := packet.Get("frame.infos." + key); v.Exists() {
			return v.String()
		}
	}
	return UnknownInfo
}

func normalizeModel(model string) string {
	switch strings.ToLower(model) {
	case "on", "off":
		return SwitchModel
	default:
		return model
	}
}
