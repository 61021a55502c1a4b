package mp4

import (
	"fmt"
	"io"
	"strings"
)

// Printer writes the structural trace. Every call names its depth; the
// printer keeps no indentation state of its own.
type Printer struct {
	w   io.Writer
	err error
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Header prints a record header line, "[label]".
func (p *Printer) Header(depth int, label string) {
	p.printf(depth, "[%s]\n", label)
}

// Attr prints a "name: value" line.
func (p *Printer) Attr(depth int, name string, value any) {
	p.printf(depth, "%s: %v\n", name, value)
}

// Err returns the first write error.
func (p *Printer) Err() error { return p.err }

func (p *Printer) printf(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, strings.Repeat("  ", depth)+format, args...)
}
