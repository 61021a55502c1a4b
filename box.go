// Package mp4 walks ISO Base Media File Format (MP4) files and decodes the
// boxes and MPEG-4 descriptors needed to describe AVC video and AAC audio
// tracks.
//
// Decoding is strict: every record must have a registered handler and must
// fit inside its parent, and the embedded codec configuration is validated
// by the avc and aac packages. The first violation aborts the walk.
package mp4

import (
	"encoding/binary"
	"fmt"
)

var be = binary.BigEndian

// BoxType is a 4-byte box type identifier.
type BoxType [4]byte

func (t BoxType) String() string {
	return string(t[:])
}

// Code returns the type as a big-endian integer, the form used by registries.
func (t BoxType) Code() uint32 {
	return be.Uint32(t[:])
}

// MarshalText implements encoding.TextMarshaler.
func (t BoxType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// newBoxType creates a BoxType from a 4-character string.
func newBoxType(s string) BoxType {
	var t BoxType
	copy(t[:], s)
	return t
}

func boxTypeOf(code uint32) BoxType {
	var t BoxType
	be.PutUint32(t[:], code)
	return t
}

// Known box types.
var (
	TypeFtyp = newBoxType("ftyp")
	TypeMoov = newBoxType("moov")
	TypeMvhd = newBoxType("mvhd")
	TypeTrak = newBoxType("trak")
	TypeTkhd = newBoxType("tkhd")
	TypeEdts = newBoxType("edts")
	TypeElst = newBoxType("elst")
	TypeMdia = newBoxType("mdia")
	TypeMdhd = newBoxType("mdhd")
	TypeHdlr = newBoxType("hdlr")
	TypeMinf = newBoxType("minf")
	TypeVmhd = newBoxType("vmhd")
	TypeSmhd = newBoxType("smhd")
	TypeDinf = newBoxType("dinf")
	TypeDref = newBoxType("dref")
	TypeURL  = newBoxType("url ")
	TypeURN  = newBoxType("urn ")
	TypeStbl = newBoxType("stbl")
	TypeStsd = newBoxType("stsd")
	TypeStts = newBoxType("stts")
	TypeCtts = newBoxType("ctts")
	TypeStsc = newBoxType("stsc")
	TypeStsz = newBoxType("stsz")
	TypeStco = newBoxType("stco")
	TypeStss = newBoxType("stss")
	TypeUdta = newBoxType("udta")
	TypeMdat = newBoxType("mdat")
	TypeAvc1 = newBoxType("avc1")
	TypeAvcC = newBoxType("avcC")
	TypePasp = newBoxType("pasp")
	TypeBtrt = newBoxType("btrt")
	TypeMp4a = newBoxType("mp4a")
	TypeEsds = newBoxType("esds")
)

// Handler types found in hdlr.
var (
	HandlerVide = newBoxType("vide")
	HandlerSoun = newBoxType("soun")
)

// MPEG-4 descriptor tags used inside esds.
const (
	TagESDescriptor        = 0x03
	TagDecoderConfig       = 0x04
	TagDecoderSpecificInfo = 0x05
	TagSLConfig            = 0x06
)

// Header is a decoded record header, either a box header or a descriptor
// tag and length.
type Header struct {
	Code      uint32
	Size      int64 // declared size including the header
	HeaderLen int64
}

// Payload returns the span of the record body for a record starting at off.
func (h Header) Payload(off int64) Span {
	return Span{Off: off + h.HeaderLen, Len: h.Size - h.HeaderLen}
}

// HeaderCodec reads one record header. It returns ErrShortHeader when fewer
// bytes than a complete header remain before end.
type HeaderCodec interface {
	ReadHeader(src *Source, off, end int64) (Header, error)
	// Label formats the header for the trace: box type and total size, or
	// descriptor tag and body length.
	Label(h Header) string
	Name(code uint32) string
}

// BoxHeaders decodes 32-bit size + 4-byte type box headers.
var BoxHeaders HeaderCodec = boxHeaders{}

// DescriptorHeaders decodes tag + base-128 length descriptor headers.
var DescriptorHeaders HeaderCodec = descriptorHeaders{}

type boxHeaders struct{}

func (boxHeaders) ReadHeader(src *Source, off, end int64) (Header, error) {
	if end-off < 8 {
		return Header{}, fmt.Errorf("%w: %d bytes at %d", ErrShortHeader, end-off, off)
	}
	var b [8]byte
	if err := src.readAt(b[:], off); err != nil {
		return Header{}, err
	}
	h := Header{
		Code:      be.Uint32(b[4:]),
		Size:      int64(be.Uint32(b[:4])),
		HeaderLen: 8,
	}
	switch {
	case h.Size == 0:
		h.Size = end - off
	case h.Size == 1:
		return Header{}, fmt.Errorf("%w: %s at %d", ErrLargeSize, boxTypeOf(h.Code), off)
	case h.Size < h.HeaderLen:
		return Header{}, fmt.Errorf("%w: %s at %d declares size %d", ErrBounds, boxTypeOf(h.Code), off, h.Size)
	}
	return h, nil
}

func (boxHeaders) Label(h Header) string {
	return fmt.Sprintf("%s %d", boxTypeOf(h.Code), h.Size)
}

func (boxHeaders) Name(code uint32) string { return boxTypeOf(code).String() }

// maxLengthOctets bounds the descriptor length varint.
const maxLengthOctets = 4

type descriptorHeaders struct{}

func (descriptorHeaders) ReadHeader(src *Source, off, end int64) (Header, error) {
	avail := min(end-off, 1+maxLengthOctets)
	if avail < 2 {
		return Header{}, fmt.Errorf("%w: %d bytes at %d", ErrShortHeader, end-off, off)
	}
	b := make([]byte, avail)
	if err := src.readAt(b, off); err != nil {
		return Header{}, err
	}
	length := int64(0)
	for i := 1; ; i++ {
		if i >= len(b) {
			if i > maxLengthOctets {
				return Header{}, fmt.Errorf("%w: tag 0x%02x at %d", ErrDescriptorLength, b[0], off)
			}
			return Header{}, fmt.Errorf("%w: tag 0x%02x length at %d", ErrShortHeader, b[0], off)
		}
		length = length<<7 | int64(b[i]&0x7f)
		if b[i]&0x80 == 0 {
			hl := int64(i + 1)
			return Header{Code: uint32(b[0]), Size: hl + length, HeaderLen: hl}, nil
		}
	}
}

func (descriptorHeaders) Label(h Header) string {
	return fmt.Sprintf("0x%02x %d", h.Code, h.Size-h.HeaderLen)
}

func (descriptorHeaders) Name(code uint32) string {
	if n, ok := tagNames[byte(code)]; ok {
		return n
	}
	return fmt.Sprintf("tag 0x%02x", code)
}

var tagNames = map[byte]string{
	TagESDescriptor:        "ES_Descriptor",
	TagDecoderConfig:       "DecoderConfigDescriptor",
	TagDecoderSpecificInfo: "DecoderSpecificInfo",
	TagSLConfig:            "SLConfigDescriptor",
}
