package mp4

import (
	"errors"

	"github.com/tetsuo/mp4inspect/avc"
	"github.com/tetsuo/mp4inspect/bits"
)

var (
	// ErrBounds reports a record or field extending past its enclosing span.
	ErrBounds = errors.New("mp4: record exceeds bounds")
	// ErrShortHeader reports fewer bytes than a complete header before the
	// end of the enclosing span. At the top level it ends the walk.
	ErrShortHeader = errors.New("mp4: truncated header")
	// ErrUnknownRecord reports a record with no registered handler.
	ErrUnknownRecord = errors.New("mp4: unknown record")
	// ErrDepth reports nesting beyond the configured limit.
	ErrDepth = errors.New("mp4: nesting too deep")
	// ErrDescriptorLength reports a descriptor length longer than 4 octets.
	ErrDescriptorLength = errors.New("mp4: descriptor length too long")
	// ErrPayloadTooLarge reports a payload load beyond the configured limit.
	ErrPayloadTooLarge = errors.New("mp4: payload too large")
	// ErrEntryCount reports an entry count disagreeing with the entries found.
	ErrEntryCount = errors.New("mp4: entry count mismatch")
	// ErrUnsupported matches every field value the decoder refuses.
	ErrUnsupported = errors.New("mp4: unsupported field value")
)

type unsupported string

func (e unsupported) Error() string { return "mp4: unsupported " + string(e) }

func (e unsupported) Is(target error) bool { return target == ErrUnsupported }

var (
	ErrLargeSize     error = unsupported("64-bit box size")
	ErrHandlerType   error = unsupported("handler type")
	ErrESFlags       error = unsupported("ES_Descriptor flags")
	ErrObjectType    error = unsupported("objectTypeIndication")
	ErrSLConfig      error = unsupported("SLConfigDescriptor predefined")
	ErrDescriptorTag error = unsupported("descriptor tag")
)

// Kind is the closed set of failure categories. Its value doubles as the
// process exit code of mp4dump.
type Kind int

const (
	KindNone Kind = iota
	KindIO
	KindBounds
	KindUnknownRecord
	KindBitRead
	KindCodeTooLong
	KindCodeOverflow
	KindUnsupported
)

var kindNames = [...]string{
	KindNone:          "none",
	KindIO:            "io",
	KindBounds:        "bounds",
	KindUnknownRecord: "unknown record",
	KindBitRead:       "bit read",
	KindCodeTooLong:   "code too long",
	KindCodeOverflow:  "code overflow",
	KindUnsupported:   "unsupported",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Classify maps err to its Kind. Errors from this module's packages are
// matched by sentinel; anything else, including I/O and context errors,
// is KindIO.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnsupported), errors.Is(err, avc.ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrUnknownRecord):
		return KindUnknownRecord
	case errors.Is(err, bits.ErrCodeTooLong):
		return KindCodeTooLong
	case errors.Is(err, bits.ErrCodeOverflow):
		return KindCodeOverflow
	case errors.Is(err, bits.ErrOutOfBits), errors.Is(err, bits.ErrInvalidWidth):
		return KindBitRead
	case errors.Is(err, ErrBounds), errors.Is(err, ErrShortHeader),
		errors.Is(err, ErrDepth), errors.Is(err, ErrDescriptorLength),
		errors.Is(err, ErrPayloadTooLarge), errors.Is(err, ErrEntryCount),
		errors.Is(err, avc.ErrTruncated):
		return KindBounds
	}
	return KindIO
}
