// Package bits reads MSB-first bit fields and Exp-Golomb codes from byte slices.
package bits

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBits    = errors.New("bits: out of bits")
	ErrInvalidWidth = errors.New("bits: invalid width")
	ErrCodeTooLong  = errors.New("bits: exp-golomb code too long")
	ErrCodeOverflow = errors.New("bits: exp-golomb code overflows 32 bits")
)

// maxLeadingZeros is the longest zero prefix whose code still fits in 32 bits.
const maxLeadingZeros = 32

// Reader is a forward-only cursor over a byte slice.
type Reader struct {
	buf []byte
	pos int   // index of the current byte
	off uint8 // bits of buf[pos] already consumed, 0..7
}

// NewReader returns a Reader positioned at the first bit of b.
// The slice is borrowed, not copied.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining returns the number of unread bits.
func (r *Reader) Remaining() int {
	return (len(r.buf)-r.pos)*8 - int(r.off)
}

// Consumed returns the number of bits read so far.
func (r *Reader) Consumed() int {
	return r.pos*8 + int(r.off)
}

// ReadBit returns the next bit.
func (r *Reader) ReadBit() (uint8, error) {
	if r.pos >= len(r.buf) {
		return 0, ErrOutOfBits
	}
	bit := (r.buf[r.pos] >> (7 - r.off)) & 1
	r.advance(1)
	return bit, nil
}

// ReadFlag reads one bit as a boolean.
func (r *Reader) ReadFlag() (bool, error) {
	bit, err := r.ReadBit()
	return bit == 1, err
}

// ReadBits returns the next n bits, 1 <= n <= 32, as an unsigned integer.
// On failure the cursor does not move.
func (r *Reader) ReadBits(n int) (uint32, error) {
	if n < 1 || n > 32 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidWidth, n)
	}
	if r.Remaining() < n {
		return 0, ErrOutOfBits
	}
	var v uint32
	for n > 0 {
		avail := int(8 - r.off)
		take := min(avail, n)
		chunk := (r.buf[r.pos] >> (avail - take)) & byte(1<<take-1)
		v = v<<take | uint32(chunk)
		r.advance(take)
		n -= take
	}
	return v, nil
}

// ReadExpGolomb decodes an unsigned Exp-Golomb code, ue(v).
//
// A prefix of 32 zeros is accepted only for the single value 0xFFFFFFFF.
// A 33rd leading zero fails with ErrCodeTooLong.
func (r *Reader) ReadExpGolomb() (uint32, error) {
	zeros := 0
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		zeros++
		if zeros > maxLeadingZeros {
			return 0, ErrCodeTooLong
		}
	}
	if zeros == 0 {
		return 0, nil
	}
	info, err := r.ReadBits(zeros)
	if err != nil {
		return 0, err
	}
	if zeros == maxLeadingZeros {
		if info != 0 {
			return 0, ErrCodeOverflow
		}
		return 0xFFFFFFFF, nil
	}
	return (1<<zeros - 1) + info, nil
}

// ReadSignedExpGolomb decodes a signed Exp-Golomb code, se(v).
func (r *Reader) ReadSignedExpGolomb() (int64, error) {
	k, err := r.ReadExpGolomb()
	if err != nil {
		return 0, err
	}
	if k&1 == 1 {
		return int64(k/2) + 1, nil
	}
	return -int64(k / 2), nil
}

func (r *Reader) advance(n int) {
	total := int(r.off) + n
	r.pos += total / 8
	r.off = uint8(total % 8)
}
