package avc

import "github.com/tetsuo/mp4inspect/bits"

// fields wraps a bits.Reader with a sticky error: once a read fails,
// every later read returns zero and err keeps the first failure.
type fields struct {
	r   *bits.Reader
	err error
}

func newFields(b []byte) *fields {
	return &fields{r: bits.NewReader(b)}
}

func (f *fields) u(n int) uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadBits(n)
	f.err = err
	return v
}

func (f *fields) u8() uint8 { return uint8(f.u(8)) }

func (f *fields) flag() bool {
	if f.err != nil {
		return false
	}
	v, err := f.r.ReadFlag()
	f.err = err
	return v
}

func (f *fields) ue() uint32 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadExpGolomb()
	f.err = err
	return v
}

func (f *fields) se() int64 {
	if f.err != nil {
		return 0
	}
	v, err := f.r.ReadSignedExpGolomb()
	f.err = err
	return v
}
