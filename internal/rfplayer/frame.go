package rfplayer

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// PacketHeaderLen is the length of the wire header tag (e.g. "ZIA33").
// Lines that do not exceed this length carry no body and are dropped.
const PacketHeaderLen = 5

// lineCutset contains the characters stripped from both ends of a
// candidate line: NUL, space, tab and carriage return.
const lineCutset = "\x00 \t\r"

// FrameDecoder assembles the raw serial byte stream into candidate lines.
//
// The gateway terminates frames with "\n" but the stream may arrive in
// arbitrary chunks, so undecoded bytes are buffered across Feed calls.
// The decoder never fails: invalid UTF-8 sequences are replaced with the
// Unicode replacement character and logged, and short or empty lines are
// dropped. Feeding a stream in chunks yields the same lines as feeding
// it whole.
//
// FrameDecoder is not safe for concurrent use; a session owns exactly
// one decoder and feeds it from a single goroutine.
type FrameDecoder struct {
	buf    []byte
	logger Logger
}

// NewFrameDecoder creates a decoder with an empty buffer.
// The logger may be nil.
func NewFrameDecoder(logger Logger) *FrameDecoder {
	return &FrameDecoder{logger: logger}
}

// Feed appends data to the internal buffer and returns every complete
// line found so far. A line is complete when a "\n" is seen; the bytes
// after the last terminator stay buffered for the next call.
func (d *FrameDecoder) Feed(data []byte) []string {
	d.buf = append(d.buf, data...)

	var lines []string
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			return lines
		}

		raw := d.buf[:i]
		rest := make([]byte, len(d.buf)-i-1)
		copy(rest, d.buf[i+1:])
		d.buf = rest

		line := d.sanitize(raw)
		if len(line) > PacketHeaderLen {
			lines = append(lines, line)
		} else if line != "" {
			d.logWarn("dropping invalid data", "line", line)
		}
	}
}

// Pending returns the number of buffered bytes awaiting a terminator.
func (d *FrameDecoder) Pending() int {
	return len(d.buf)
}

// sanitize decodes raw bytes as UTF-8 (replacing invalid sequences) and
// strips NUL and surrounding whitespace.
func (d *FrameDecoder) sanitize(raw []byte) string {
	s := string(raw)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, string(utf8.RuneError))
		d.logWarn("invalid utf-8 in frame, bytes replaced", "line", s)
	}
	return strings.Trim(s, lineCutset)
}

func (d *FrameDecoder) logWarn(msg string, keysAndValues ...any) {
	if d.logger != nil {
		d.logger.Warn(msg, keysAndValues...)
	}
}
