package aac

import (
	"errors"
	"testing"

	"github.com/tetsuo/mp4inspect/bits"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		in       []byte
		ot       uint8
		idx      uint8
		freq     uint32
		channels uint8
		rate     uint32
	}{
		// 00010 0100 0010 000
		{"aac lc 44.1k stereo", []byte{0x12, 0x10}, 2, 4, 0, 2, 44100},
		// 00101 0011 0001 000
		{"he-aac 48k mono", []byte{0x29, 0x88}, 5, 3, 0, 1, 48000},
		// 11111 000001 0110 0010 ...: escape to 33, 24 kHz, stereo
		{"escaped object type", []byte{0xF8, 0x2C, 0x40}, 33, 6, 0, 2, 24000},
		// 00010 1111 <24-bit 0x005DC0 = 24000> 0001
		{"explicit frequency", []byte{0x17, 0x80, 0x2E, 0xE0, 0x08}, 2, 15, 24000, 1, 24000},
		{"reserved index", []byte{0x16, 0x90}, 2, 13, 0, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Decode(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if c.ObjectType != tt.ot || c.FrequencyIndex != tt.idx || c.Frequency != tt.freq || c.ChannelConfiguration != tt.channels {
				t.Fatalf("got %+v", c)
			}
			if got := c.SampleRate(); got != tt.rate {
				t.Errorf("SampleRate() = %d, want %d", got, tt.rate)
			}
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	for _, in := range [][]byte{nil, {0x12}, {0xF8}, {0x17, 0x80}} {
		if _, err := Decode(in); !errors.Is(err, bits.ErrOutOfBits) {
			t.Errorf("% x: got %v", in, err)
		}
	}
}

func TestCodec(t *testing.T) {
	c, err := Decode([]byte{0x12, 0x10})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Codec(); got != "mp4a.40.2" {
		t.Errorf("Codec() = %q", got)
	}
}

func TestADTSHeader(t *testing.T) {
	c, err := Decode([]byte{0x12, 0x10})
	if err != nil {
		t.Fatal(err)
	}
	hdr, err := c.ADTSHeader(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(hdr) != 7 {
		t.Fatalf("len = %d", len(hdr))
	}
	if hdr[0] != 0xFF || hdr[1]&0xF0 != 0xF0 {
		t.Fatalf("bad syncword % x", hdr)
	}
	profile := hdr[2] >> 6
	index := (hdr[2] >> 2) & 0x0F
	channels := (hdr[2]&0x01)<<2 | hdr[3]>>6
	frameLen := int(hdr[3]&0x03)<<11 | int(hdr[4])<<3 | int(hdr[5])>>5
	if profile != 1 || index != 4 || channels != 2 || frameLen != 107 {
		t.Errorf("profile=%d index=%d channels=%d len=%d", profile, index, channels, frameLen)
	}

	esc, err := Decode([]byte{0xF8, 0x2C, 0x40})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := esc.ADTSHeader(10); !errors.Is(err, ErrNoADTS) {
		t.Errorf("got %v, want ErrNoADTS", err)
	}
}
