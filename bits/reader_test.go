package bits

import (
	"bytes"
	"errors"
	"math/rand/v2"
	"testing"

	codec "github.com/yapingcat/gomedia/go-codec"
)

// bitWriter builds test inputs on gomedia's bit stream writer.
type bitWriter struct {
	bsw *codec.BitStreamWriter
	n   int // bits written
}

func newBitWriter() *bitWriter {
	return &bitWriter{bsw: codec.NewBitStreamWriter(64)}
}

func (w *bitWriter) put(v uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		w.bsw.PutUint8(uint8(v>>uint(i)&1), 1)
		w.n++
	}
}

// bytes pads the stream with zero bits to a byte boundary and returns it.
func (w *bitWriter) bytes() []byte {
	for w.n%8 != 0 {
		w.put(0, 1)
	}
	return w.bsw.Bits()
}

func (w *bitWriter) ue(v uint32) {
	x := uint64(v) + 1
	width := 0
	for t := x; t > 1; t >>= 1 {
		width++
	}
	w.put(0, width)
	w.put(x, width+1)
}

func TestReadBitsWidthExactness(t *testing.T) {
	const pattern = 0xA5C3_1E69
	src := []byte{0xA5, 0xC3, 0x1E, 0x69}
	for width := 1; width < 32; width++ {
		r := NewReader(src)
		hi, err := r.ReadBits(width)
		if err != nil {
			t.Fatalf("width %d: %v", width, err)
		}
		lo, err := r.ReadBits(32 - width)
		if err != nil {
			t.Fatalf("width %d: rest: %v", width, err)
		}
		if got := hi<<(32-width) | lo; got != pattern {
			t.Errorf("width %d: got %#08x, want %#08x", width, got, uint32(pattern))
		}
		if r.Remaining() != 0 {
			t.Errorf("width %d: %d bits left", width, r.Remaining())
		}
	}

	r := NewReader(src)
	v, err := r.ReadBits(32)
	if err != nil || v != pattern {
		t.Fatalf("ReadBits(32) = %#x, %v", v, err)
	}
}

func TestReadBitsNoSideEffectOnFailure(t *testing.T) {
	r := NewReader([]byte{0xF0, 0x0F})
	if _, err := r.ReadBits(3); err != nil {
		t.Fatal(err)
	}
	before := r.Consumed()
	if _, err := r.ReadBits(14); !errors.Is(err, ErrOutOfBits) {
		t.Fatalf("got %v, want ErrOutOfBits", err)
	}
	if r.Consumed() != before {
		t.Fatalf("cursor moved from %d to %d", before, r.Consumed())
	}
	v, err := r.ReadBits(13)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x100F {
		t.Fatalf("got %#x, want 0x100f", v)
	}
}

func TestReadBitsInvalidWidth(t *testing.T) {
	r := NewReader(make([]byte, 8))
	for _, n := range []int{0, -1, 33} {
		if _, err := r.ReadBits(n); !errors.Is(err, ErrInvalidWidth) {
			t.Errorf("ReadBits(%d): got %v", n, err)
		}
	}
}

func TestReadBitMSBFirst(t *testing.T) {
	r := NewReader([]byte{0x80 | 0x20 | 0x01})
	want := []uint8{1, 0, 1, 0, 0, 0, 0, 1}
	for i, w := range want {
		b, err := r.ReadBit()
		if err != nil {
			t.Fatal(err)
		}
		if b != w {
			t.Errorf("bit %d = %d, want %d", i, b, w)
		}
	}
	if _, err := r.ReadBit(); !errors.Is(err, ErrOutOfBits) {
		t.Fatalf("got %v, want ErrOutOfBits", err)
	}
}

func TestExpGolombRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 2, 3, 6, 7, 8, 254, 255, 256, 1<<16 - 1, 1 << 16, 1<<31 - 1, 1 << 31, 0xFFFFFFFE, 0xFFFFFFFF}
	rng := rand.New(rand.NewPCG(7, 11))
	for range 2000 {
		values = append(values, rng.Uint32())
	}

	w := newBitWriter()
	for _, v := range values {
		w.ue(v)
	}
	r := NewReader(w.bytes())
	for i, want := range values {
		got, err := r.ReadExpGolomb()
		if err != nil {
			t.Fatalf("value %d (%d): %v", i, want, err)
		}
		if got != want {
			t.Fatalf("value %d: got %d, want %d", i, got, want)
		}
	}
}

func TestExpGolombLimits(t *testing.T) {
	tests := []struct {
		name string
		in   func() []byte
		want error
	}{
		{
			name: "33 leading zeros",
			in: func() []byte {
				w := newBitWriter()
				w.put(0, 33)
				w.put(1, 1)
				w.put(0, 33)
				return w.bytes()
			},
			want: ErrCodeTooLong,
		},
		{
			name: "32 zeros with non-zero info",
			in: func() []byte {
				w := newBitWriter()
				w.put(0, 32)
				w.put(1, 1)
				w.put(1, 32)
				return w.bytes()
			},
			want: ErrCodeOverflow,
		},
		{
			name: "truncated prefix",
			in:   func() []byte { return []byte{0x00} },
			want: ErrOutOfBits,
		},
		// 00000 1 then two of the five info bits
		{
			name: "truncated info",
			in:   func() []byte { return []byte{0x04} },
			want: ErrOutOfBits,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.in()).ReadExpGolomb()
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSignedExpGolomb(t *testing.T) {
	w := newBitWriter()
	for k := uint32(0); k < 7; k++ {
		w.ue(k)
	}
	r := NewReader(w.bytes())
	for _, want := range []int64{0, 1, -1, 2, -2, 3, -3} {
		got, err := r.ReadSignedExpGolomb()
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestUnescape(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"single", []byte{0, 0, 3, 1}, []byte{0, 0, 1}},
		{"clean", []byte{0x67, 0x42, 0, 1, 0, 0, 2}, []byte{0x67, 0x42, 0, 1, 0, 0, 2}},
		{"three zeros", []byte{0, 0, 0, 3, 1}, []byte{0, 0, 0, 1}},
		{"no rescan", []byte{0, 0, 3, 3}, []byte{0, 0, 3}},
		{"back to back", []byte{0, 0, 3, 0, 0, 3, 0}, []byte{0, 0, 0, 0, 0}},
		{"trailing", []byte{5, 0, 0, 3}, []byte{5, 0, 0}},
		{"lone", []byte{0, 3, 0, 3}, []byte{0, 3, 0, 3}},
		{"empty", []byte{}, []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Unescape(tt.in)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("got % x, want % x", got, tt.want)
			}
		})
	}
}

func TestUnescapeIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for range 500 {
		in := make([]byte, rng.IntN(64))
		for i := range in {
			in[i] = byte(rng.IntN(4))
		}
		once := Unescape(in)
		if bytes.Contains(once, []byte{0, 0, 3}) {
			continue
		}
		if twice := Unescape(once); !bytes.Equal(once, twice) {
			t.Fatalf("not idempotent: % x -> % x -> % x", in, once, twice)
		}
	}
}

func TestUnescapeDoesNotAlias(t *testing.T) {
	in := []byte{0, 0, 3, 1}
	out := Unescape(in)
	out[0] = 9
	if in[0] != 0 {
		t.Fatal("output aliases input")
	}
}

func TestUnescapeMatchesGomedia(t *testing.T) {
	in := []byte{0x67, 0x64, 0x00, 0x00, 0x03, 0x00, 0x1f, 0xac, 0x00, 0x00, 0x03, 0x01, 0x40, 0x50}
	want := []byte{0x67, 0x64, 0x00, 0x00, 0x00, 0x1f, 0xac, 0x00, 0x00, 0x01, 0x40, 0x50}

	got := Unescape(in)
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
	if ref := codec.CovertRbspToSodb(bytes.Clone(in)); !bytes.Equal(got, ref) {
		t.Fatalf("got % x, gomedia % x", got, ref)
	}
}
