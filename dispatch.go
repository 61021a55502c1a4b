package mp4

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// Handler decodes the payload of one record into parent.
type Handler[T any] func(d *Decoder, payload Span, parent T) error

// Entry binds a record code to its handler.
type Entry[T any] struct {
	Code   uint32
	Name   string
	Handle Handler[T]
}

// Registry is the set of records accepted inside one container. Lookup is
// by exact code.
type Registry[T any] []Entry[T]

func (r Registry[T]) lookup(code uint32) (Entry[T], bool) {
	for _, e := range r {
		if e.Code == code {
			return e, true
		}
	}
	return Entry[T]{}, false
}

// Stats counts work done by a Decoder.
type Stats struct {
	Records     int   // handler invocations
	BytesLoaded int64 // payload bytes read by leaf handlers
}

// Decoder carries the state of one traversal.
type Decoder struct {
	ctx    context.Context
	src    *Source
	log    logrus.FieldLogger
	trace  *Printer
	limits Limits
	depth  int
	stats  Stats
}

// NewDecoder prepares a traversal of the size bytes of r.
func NewDecoder(ctx context.Context, r io.ReaderAt, size int64, opts ...Option) *Decoder {
	c := newConfig(opts)
	return &Decoder{
		ctx:    ctx,
		src:    NewSource(r, size),
		log:    c.log,
		trace:  NewPrinter(c.trace),
		limits: c.limits,
	}
}

// Stats returns the counters so far.
func (d *Decoder) Stats() Stats { return d.stats }

// Depth returns the nesting depth of the record being decoded.
func (d *Decoder) Depth() int { return d.depth }

// Attr prints a decoded field at the current depth.
func (d *Decoder) Attr(name string, value any) {
	d.trace.Attr(d.depth, name, value)
}

// Load reads the bytes of s. Loads larger than Limits.MaxPayload fail.
func (d *Decoder) Load(s Span) ([]byte, error) {
	if s.Len > d.limits.MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes at %d, limit %d", ErrPayloadTooLarge, s.Len, s.Off, d.limits.MaxPayload)
	}
	if !d.src.Span().Contains(s) {
		return nil, fmt.Errorf("%w: load %s beyond input of %d bytes", ErrBounds, s, d.src.Size())
	}
	b := make([]byte, s.Len)
	if err := d.src.readAt(b, s.Off); err != nil {
		return nil, err
	}
	d.stats.BytesLoaded += s.Len
	d.log.WithFields(logrus.Fields{"off": s.Off, "size": s.Len, "depth": d.depth}).Debug("load")
	return b, nil
}

// Walk decodes the whole input as a sequence of boxes. A truncated header
// at the end of the input ends the walk without error.
func Walk[T any](d *Decoder, reg Registry[T], parent T) error {
	return dispatch(d, BoxHeaders, d.src.Span(), reg, parent, true)
}

// Dispatch decodes the records in bound, handing each to the handler
// registered for its code. Every record must fit inside bound.
func Dispatch[T any](d *Decoder, hc HeaderCodec, bound Span, reg Registry[T], parent T) error {
	return dispatch(d, hc, bound, reg, parent, false)
}

func dispatch[T any](d *Decoder, hc HeaderCodec, bound Span, reg Registry[T], parent T, outermost bool) error {
	end := bound.End()
	for pos := bound.Off; pos < end; {
		if err := d.ctx.Err(); err != nil {
			return err
		}
		h, err := hc.ReadHeader(d.src, pos, end)
		if err != nil {
			if errors.Is(err, ErrShortHeader) {
				if outermost {
					d.log.WithFields(logrus.Fields{"off": pos, "size": end - pos}).Debug("trailing bytes")
					return nil
				}
				return fmt.Errorf("%w: %w", ErrBounds, err)
			}
			return err
		}
		name := hc.Name(h.Code)
		rec := Span{Off: pos, Len: h.Size}
		if !bound.Contains(rec) {
			return fmt.Errorf("%w: %s at %d declares %d bytes, %d left", ErrBounds, name, pos, h.Size, end-pos)
		}
		e, ok := reg.lookup(h.Code)
		if !ok {
			return fmt.Errorf("%w: %s at %d", ErrUnknownRecord, name, pos)
		}
		if d.depth >= d.limits.MaxDepth {
			return fmt.Errorf("%w: %s at %d below %d levels", ErrDepth, name, pos, d.depth)
		}

		d.trace.Header(d.depth, hc.Label(h))
		d.log.WithFields(logrus.Fields{
			"type":  name,
			"off":   pos,
			"size":  h.Size,
			"depth": d.depth,
		}).Debug("record")
		d.stats.Records++

		d.depth++
		err = e.Handle(d, h.Payload(pos), parent)
		d.depth--
		if err != nil {
			return fmt.Errorf("in %s: %w", name, err)
		}
		pos += h.Size
	}
	return nil
}
