package mp4

import (
	"context"
	"io"
)

// Parse decodes the size bytes of r. The top level accepts ftyp, moov and
// mdat boxes; mdat payloads are located but never read. On error the
// partial tree is discarded.
func Parse(ctx context.Context, r io.ReaderAt, size int64, opts ...Option) (*File, error) {
	d := NewDecoder(ctx, r, size, opts...)
	return d.Decode()
}

// Decode runs the traversal. A Decoder decodes once.
func (d *Decoder) Decode() (*File, error) {
	f := &File{}
	if err := Walk(d, fileBoxes, f); err != nil {
		return nil, err
	}
	if err := d.trace.Err(); err != nil {
		return nil, err
	}
	return f, nil
}
