package mp4

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Limits bounds the resources a single Parse may use. Zero fields take
// their defaults.
type Limits struct {
	MaxDepth   int   // container nesting
	MaxPayload int64 // bytes loaded for one leaf record
}

func defaultLimits() Limits {
	return Limits{
		MaxDepth:   16,
		MaxPayload: 64 << 20, // 64 MiB
	}
}

func (l Limits) withDefaults() Limits {
	d := defaultLimits()
	if l.MaxDepth <= 0 {
		l.MaxDepth = d.MaxDepth
	}
	if l.MaxPayload <= 0 {
		l.MaxPayload = d.MaxPayload
	}
	return l
}

type config struct {
	log    logrus.FieldLogger
	trace  io.Writer
	limits Limits
}

// Option configures a Decoder.
type Option func(*config)

// WithLogger sets the logger receiving debug entries for every record.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) { c.log = l }
}

// WithTrace streams the indented structural trace to w.
func WithTrace(w io.Writer) Option {
	return func(c *config) { c.trace = w }
}

// WithLimits replaces all resource limits. Zero fields keep their defaults.
func WithLimits(l Limits) Option {
	return func(c *config) { c.limits = l }
}

// WithMaxDepth sets how deeply records may nest.
func WithMaxDepth(n int) Option {
	return func(c *config) { c.limits.MaxDepth = n }
}

// WithMaxPayload sets the largest leaf payload, in bytes, a handler may load.
func WithMaxPayload(n int64) Option {
	return func(c *config) { c.limits.MaxPayload = n }
}

func newConfig(opts []Option) config {
	var c config
	for _, o := range opts {
		o(&c)
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = l
	}
	if c.trace == nil {
		c.trace = io.Discard
	}
	c.limits = c.limits.withDefaults()
	return c
}
