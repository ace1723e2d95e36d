package rfplayer

import (
	"reflect"
	"testing"
)

func TestFrameDecoderFeed(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []string
	}{
		{
			name: "single complete line",
			data: "ZIA--Welcome to Ziblue Dongle\n",
			want: []string{"ZIA--Welcome to Ziblue Dongle"},
		},
		{
			name: "crlf terminator stripped",
			data: "ZIA--Hello world!\r\n",
			want: []string{"ZIA--Hello world!"},
		},
		{
			name: "nul and whitespace stripped",
			data: "\x00 ZIA33{\"a\":1}\t\x00\n",
			want: []string{"ZIA33{\"a\":1}"},
		},
		{
			name: "multiple lines in one chunk",
			data: "ZIA--one!\nZIA--two!\n",
			want: []string{"ZIA--one!", "ZIA--two!"},
		},
		{
			name: "short line dropped",
			data: "ZIA--\n",
			want: nil,
		},
		{
			name: "empty line dropped",
			data: "\r\n",
			want: nil,
		},
		{
			name: "incomplete line stays buffered",
			data: "ZIA--partial",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewFrameDecoder(nil)
			got := d.Feed([]byte(tt.data))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Feed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFrameDecoderBuffersAcrossCalls(t *testing.T) {
	d := NewFrameDecoder(nil)

	if got := d.Feed([]byte("ZIA--Hel")); got != nil {
		t.Fatalf("partial feed produced %v, want nil", got)
	}
	if d.Pending() == 0 {
		t.Fatal("expected pending bytes after partial feed")
	}

	got := d.Feed([]byte("lo world!\nZIA33{"))
	want := []string{"ZIA--Hello world!"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Feed() = %v, want %v", got, want)
	}

	got = d.Feed([]byte("\"a\":1}\n"))
	want = []string{"ZIA33{\"a\":1}"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Feed() = %v, want %v", got, want)
	}
}

// Chunk-boundary invariance: any partition of the stream yields the same
// line sequence as feeding it whole.
func TestFrameDecoderChunkInvariance(t *testing.T) {
	stream := "ZIA--Welcome!\r\nZIA33{\"frame\":{\"header\":{\"protocolMeaning\":\"OREGON\"}}}\n" +
		"ZIA00legacy frame\r\nZIA--bye bye\n\x00\r\n"

	whole := NewFrameDecoder(nil).Feed([]byte(stream))

	for chunkSize := 1; chunkSize <= len(stream); chunkSize++ {
		d := NewFrameDecoder(nil)
		var got []string
		for i := 0; i < len(stream); i += chunkSize {
			end := i + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			got = append(got, d.Feed([]byte(stream[i:end]))...)
		}
		if !reflect.DeepEqual(got, whole) {
			t.Fatalf("chunk size %d: got %v, want %v", chunkSize, got, whole)
		}
	}
}

func TestFrameDecoderInvalidUTF8(t *testing.T) {
	d := NewFrameDecoder(nil)

	got := d.Feed([]byte("ZIA--bad\xff\xfebytes\n"))
	if len(got) != 1 {
		t.Fatalf("expected one line despite invalid utf-8, got %v", got)
	}
	// Stream keeps working after the bad chunk.
	got = d.Feed([]byte("ZIA--clean line\n"))
	if len(got) != 1 || got[0] != "ZIA--clean line" {
		t.Fatalf("stream did not recover after invalid utf-8: %v", got)
	}
}
