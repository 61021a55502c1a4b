package mp4

import (
	"fmt"
	"io"
)

// Span is a byte range of the source.
type Span struct {
	Off int64
	Len int64
}

// End returns the offset one past the last byte.
func (s Span) End() int64 { return s.Off + s.Len }

// Contains reports whether c lies entirely within s.
func (s Span) Contains(c Span) bool {
	return c.Len >= 0 && c.Off >= s.Off && c.End() <= s.End()
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Off, s.End())
}

// Source is random-access input of known size.
type Source struct {
	r    io.ReaderAt
	size int64
}

// NewSource wraps r, which must hold at least size bytes.
func NewSource(r io.ReaderAt, size int64) *Source {
	return &Source{r: r, size: size}
}

// Size returns the input size.
func (s *Source) Size() int64 { return s.size }

// Span returns the whole input.
func (s *Source) Span() Span { return Span{Len: s.size} }

// readAt fills p from off. A short read is io.ErrUnexpectedEOF.
func (s *Source) readAt(p []byte, off int64) error {
	n, err := s.r.ReadAt(p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read %d bytes at %d: %w", len(p), off, err)
}
