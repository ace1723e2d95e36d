package rfplayer

import "testing"

const oregonFrame = `{
  "frame": {
    "header": {
      "frameType": "0",
      "dataFlag": "0",
      "rfLevel": "-71",
      "floorNoise": "-98",
      "rfQuality": "6",
      "protocol": "5",
      "protocolMeaning": "OREGON",
      "infoType": "9",
      "frequency": "433920"
    },
    "infos": {
      "subType": "0",
      "id_PHY": "0x2A19",
      "id_PHYMeaning": "PCR800",
      "adr_channel": "39168",
      "adr": "153",
      "channel": "0",
      "qualifier": "48",
      "lowBatt": "0",
      "measures": [
        {"type": "total rain", "value": "978.25", "unit": "mm"},
        {"type": "rain", "value": "0.00", "unit": "mm/h"}
      ]
    }
  }
}`

const blyssOffFrame = `{
  "frame": {
    "header": {
      "frameType": "0",
      "protocol": "3",
      "protocolMeaning": "BLYSS",
      "infoType": "1"
    },
    "infos": {
      "subType": "0",
      "id": "4261417217",
      "subTypeMeaning": "OFF"
    }
  }
}`

func mustJSONPacket(t *testing.T, body string) JSONPacket {
	t.Helper()
	packet, err := NewJSONPacket([]byte(body))
	if err != nil {
		t.Fatalf("NewJSONPacket() error: %v", err)
	}
	return packet
}

func TestDeviceFromPacket(t *testing.T) {
	tests := []struct {
		name string
		body string
		want DeviceID
	}{
		{
			name: "oregon sensor via adr_channel and id_PHYMeaning",
			body: oregonFrame,
			want: DeviceID{Protocol: "OREGON", Address: "39168", Model: "PCR800"},
		},
		{
			name: "blyss off command normalized to switch",
			body: blyssOffFrame,
			want: DeviceID{Protocol: "BLYSS", Address: "4261417217", Model: "switch"},
		},
		{
			name: "id wins over id_channel",
			body: `{"frame":{"header":{"protocolMeaning":"X10"},"infos":{"id":"1","id_channel":"2"}}}`,
			want: DeviceID{Protocol: "X10", Address: "1", Model: "unknown"},
		},
		{
			name: "id_channel wins over adr_channel",
			body: `{"frame":{"header":{"protocolMeaning":"X10"},"infos":{"id_channel":"2","adr_channel":"3"}}}`,
			want: DeviceID{Protocol: "X10", Address: "2", Model: "unknown"},
		},
		{
			name: "id_PHYMeaning wins over subTypeMeaning",
			body: `{"frame":{"header":{"protocolMeaning":"OREGON"},"infos":{"id":"7","id_PHYMeaning":"THGR122","subTypeMeaning":"ON"}}}`,
			want: DeviceID{Protocol: "OREGON", Address: "7", Model: "THGR122"},
		},
		{
			name: "missing fields fall back to unknown",
			body: `{"frame":{"header":{"protocolMeaning":"KD101"},"infos":{}}}`,
			want: DeviceID{Protocol: "KD101", Address: "unknown", Model: "unknown"},
		},
		{
			name: "missing protocol falls back to unknown",
			body: `{"frame":{"header":{"infoType":"0"},"infos":{"id":"196721"}}}`,
			want: DeviceID{Protocol: "unknown", Address: "196721", Model: "unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeviceFromPacket(mustJSONPacket(t, tt.body))
			if got != tt.want {
				t.Errorf("DeviceFromPacket() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDeviceIDString(t *testing.T) {
	tests := []struct {
		name   string
		device DeviceID
		want   string
	}{
		{
			name:   "protocol uppercased",
			device: DeviceID{Protocol: "oregon", Address: "39168"},
			want:   "OREGON-39168",
		},
		{
			name:   "group included when set",
			device: DeviceID{Protocol: "X2D", Address: "130994192", GroupID: "1"},
			want:   "X2D-1:130994192",
		},
		{
			name:   "address kept byte-exact",
			device: DeviceID{Protocol: "PARROT", Address: "aB0"},
			want:   "PARROT-aB0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.IDString(); got != tt.want {
				t.Errorf("IDString() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGroupUnitCodes(t *testing.T) {
	tests := []struct {
		name      string
		device    DeviceID
		wantGroup string
		wantUnit  string
		wantOK    bool
	}{
		{
			name:      "x2d area in low bits",
			device:    DeviceID{Protocol: "X2D", Address: "2095907073"},
			wantGroup: "1", wantUnit: "130994192", wantOK: true,
		},
		{
			name:      "chacon area in low six bits",
			device:    DeviceID{Protocol: "CHACON", Address: "146139014"},
			wantGroup: "6", wantUnit: "2283422", wantOK: true,
		},
		{
			name:      "x10 house code in high bits",
			device:    DeviceID{Protocol: "X10", Address: "123"},
			wantGroup: "7", wantUnit: "11", wantOK: true,
		},
		{
			name:      "rts house code in high bits",
			device:    DeviceID{Protocol: "RTS", Address: "123"},
			wantGroup: "7", wantUnit: "11", wantOK: true,
		},
		{
			name:   "protocol without groups",
			device: DeviceID{Protocol: "VISONIC", Address: "123"},
			wantOK: false,
		},
		{
			name:   "non numeric address",
			device: DeviceID{Protocol: "X10", Address: "A1"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			group, gotOK := tt.device.GroupCode()
			unit, _ := tt.device.UnitCode()
			if gotOK != tt.wantOK {
				t.Fatalf("GroupCode() ok = %v, want %v", gotOK, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if group != tt.wantGroup || unit != tt.wantUnit {
				t.Errorf("codes = (%s, %s), want (%s, %s)", group, unit, tt.wantGroup, tt.wantUnit)
			}
		})
	}
}

func TestEventAdapter(t *testing.T) {
	var events []Event
	adapter := NewEventAdapter("/dev/ttyUSB0", func(e Event) { events = append(events, e) })

	adapter.RawEvent(SimplePacket("Welcome to Ziblue Dongle"))
	adapter.RawEvent(mustJSONPacket(t, oregonFrame))

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	gateway := events[0].Device
	if gateway.Protocol != GatewayProtocol || gateway.Address != "/dev/ttyUSB0" || gateway.Model != GatewayModel {
		t.Errorf("gateway identity = %+v", gateway)
	}

	oregon := events[1].Device
	want := DeviceID{Protocol: "OREGON", Address: "39168", Model: "PCR800"}
	if oregon != want {
		t.Errorf("oregon identity = %+v, want %+v", oregon, want)
	}
}
