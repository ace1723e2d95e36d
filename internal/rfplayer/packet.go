package rfplayer

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Wire header tags. The first five characters of every line select the
// payload shape; everything after them is the body.
const (
	headerSimple = "ZIA--"
	headerJSON   = "ZIA33"
)

// unsupportedHeaders are tags the gateway can emit in non-JSON output
// modes. They are recognized and dropped without an event.
var unsupportedHeaders = map[string]struct{}{
	"ZIA00": {},
	"ZIA11": {},
	"ZIA22": {},
	"ZIA44": {},
	"ZIA66": {},
}

// EventData is the decoded payload of one wire frame. It is a closed
// union: SimplePacket for opaque gateway status lines, JSONPacket for
// structured device frames.
type EventData interface {
	eventData()
}

// SimplePacket is an opaque textual payload (ZIA-- frames). The gateway
// uses it for status and command responses such as "Welcome to Ziblue".
type SimplePacket string

func (SimplePacket) eventData() {}

// JSONPacket is a structured payload (ZIA33 frames). The raw JSON body
// is preserved byte-exact and queried lazily by path, so field access is
// deterministic and allocation-free.
type JSONPacket struct {
	body []byte
}

func (JSONPacket) eventData() {}

// NewJSONPacket validates body as JSON and wraps it. The body is not
// copied; callers must not mutate it afterwards.
func NewJSONPacket(body []byte) (JSONPacket, error) {
	if !gjson.ValidBytes(body) {
		return JSONPacket{}, fmt.Errorf("%w: malformed JSON body", ErrInvalidPacket)
	}
	return JSONPacket{body: body}, nil
}

// Get resolves a dotted path (gjson syntax) against the JSON tree.
// The result's Exists method reports whether the path resolved.
func (p JSONPacket) Get(path string) gjson.Result {
	return gjson.GetBytes(p.body, path)
}

// Body returns the raw JSON bytes.
func (p JSONPacket) Body() []byte {
	return p.body
}

func (p JSONPacket) String() string {
	return string(p.body)
}

// ClassifyLine interprets one sanitized wire line.
//
// Dispatch is exact-match on the 5-character header tag:
//
//	ZIA--            → SimplePacket
//	ZIA33            → JSONPacket (body must parse as JSON)
//	ZIA00/11/22/44/66 → ErrUnsupportedPacket (recognized, dropped)
//	anything else    → ErrInvalidPacket
//
// A malformed body is fatal to that packet only, never to the stream.
func ClassifyLine(line string) (EventData, error) {
	if len(line) <= PacketHeaderLen {
		return nil, fmt.Errorf("%w: line too short", ErrInvalidPacket)
	}

	header := line[:PacketHeaderLen]
	body := line[PacketHeaderLen:]

	switch header {
	case headerSimple:
		return SimplePacket(body), nil
	case headerJSON:
		packet, err := NewJSONPacket([]byte(body))
		if err != nil {
			return nil, err
		}
		return packet, nil
	}

	if _, ok := unsupportedHeaders[header]; ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPacket, header)
	}
	return nil, fmt.Errorf("%w: unknown header %q", ErrInvalidPacket, header)
}
