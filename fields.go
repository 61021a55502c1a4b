package mp4

import (
	"bytes"
	"fmt"
)

// fields reads big-endian fields from a loaded payload. The first
// overrun is kept and every later read returns zero.
type fields struct {
	b   []byte
	off int
	err error
}

func newFields(b []byte) *fields { return &fields{b: b} }

func (f *fields) need(n int) bool {
	if f.err != nil {
		return false
	}
	if n < 0 || len(f.b)-f.off < n {
		f.err = fmt.Errorf("%w: field of %d bytes at %d, %d left", ErrBounds, n, f.off, len(f.b)-f.off)
		return false
	}
	return true
}

func (f *fields) u8() uint8 {
	if !f.need(1) {
		return 0
	}
	v := f.b[f.off]
	f.off++
	return v
}

func (f *fields) u16() uint16 {
	if !f.need(2) {
		return 0
	}
	v := be.Uint16(f.b[f.off:])
	f.off += 2
	return v
}

func (f *fields) u24() uint32 {
	if !f.need(3) {
		return 0
	}
	v := uint32(f.b[f.off])<<16 | uint32(f.b[f.off+1])<<8 | uint32(f.b[f.off+2])
	f.off += 3
	return v
}

func (f *fields) u32() uint32 {
	if !f.need(4) {
		return 0
	}
	v := be.Uint32(f.b[f.off:])
	f.off += 4
	return v
}

func (f *fields) u64() uint64 {
	if !f.need(8) {
		return 0
	}
	v := be.Uint64(f.b[f.off:])
	f.off += 8
	return v
}

// uvar reads a u64 for version 1 and a u32 otherwise.
func (f *fields) uvar(version uint8) uint64 {
	if version == 1 {
		return f.u64()
	}
	return uint64(f.u32())
}

func (f *fields) fourcc() BoxType {
	var t BoxType
	if f.need(4) {
		copy(t[:], f.b[f.off:])
		f.off += 4
	}
	return t
}

func (f *fields) skip(n int) {
	if f.need(n) {
		f.off += n
	}
}

// fullBox reads the version and flags of a full box.
func (f *fields) fullBox() (uint8, uint32) {
	return f.u8(), f.u24()
}

// count reads a u32 entry count and checks that count entries of size
// bytes each fit in what is left.
func (f *fields) count(size int) int {
	n := f.u32()
	if f.err != nil {
		return 0
	}
	if uint64(n)*uint64(size) > uint64(len(f.b)-f.off) {
		f.err = fmt.Errorf("%w: %d entries of %d bytes at %d, %d left", ErrBounds, n, size, f.off, len(f.b)-f.off)
		return 0
	}
	return int(n)
}

// cstring reads a NUL-terminated string. A missing terminator takes the
// rest of the payload.
func (f *fields) cstring() string {
	if f.err != nil {
		return ""
	}
	rest := f.b[f.off:]
	if i := bytes.IndexByte(rest, 0); i >= 0 {
		f.off += i + 1
		return string(rest[:i])
	}
	f.off = len(f.b)
	return string(rest)
}

func (f *fields) remaining() int { return len(f.b) - f.off }
