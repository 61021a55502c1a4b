// Package mp4test builds small MP4 files for tests.
package mp4test

import "encoding/binary"

var be = binary.BigEndian

// Box encodes a box with a 32-bit size.
func Box(typ string, payload ...[]byte) []byte {
	body := Cat(payload...)
	b := make([]byte, 8, 8+len(body))
	be.PutUint32(b, uint32(8+len(body)))
	copy(b[4:8], typ)
	return append(b, body...)
}

// FullBox encodes a box whose payload starts with version and flags.
func FullBox(typ string, version uint8, flags uint32, payload ...[]byte) []byte {
	vf := U32(uint32(version)<<24 | flags&0xffffff)
	return Box(typ, append([][]byte{vf}, payload...)...)
}

// Descriptor encodes an MPEG-4 descriptor with a minimal length field.
func Descriptor(tag byte, payload ...[]byte) []byte {
	body := Cat(payload...)
	n := len(body)
	var length []byte
	for {
		length = append([]byte{byte(n & 0x7f)}, length...)
		n >>= 7
		if n == 0 {
			break
		}
	}
	for i := 0; i < len(length)-1; i++ {
		length[i] |= 0x80
	}
	return Cat([]byte{tag}, length, body)
}

func Cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func U8(v uint8) []byte { return []byte{v} }

func U16(v uint16) []byte { return be.AppendUint16(nil, v) }

func U24(v uint32) []byte { return []byte{byte(v >> 16), byte(v >> 8), byte(v)} }

func U32(v uint32) []byte { return be.AppendUint32(nil, v) }

func U64(v uint64) []byte { return be.AppendUint64(nil, v) }

func Zeros(n int) []byte { return make([]byte, n) }

// CString returns s with a NUL terminator.
func CString(s string) []byte { return append([]byte(s), 0) }

// Ftyp encodes a file type box.
func Ftyp(major string, minor uint32, compatible ...string) []byte {
	parts := [][]byte{[]byte(major), U32(minor)}
	for _, c := range compatible {
		parts = append(parts, []byte(c))
	}
	return Box("ftyp", parts...)
}

var identity = Cat(
	U32(0x00010000), U32(0), U32(0),
	U32(0), U32(0x00010000), U32(0),
	U32(0), U32(0), U32(0x40000000),
)

// Mvhd encodes a version 0 movie header.
func Mvhd(timescale, duration, nextTrackID uint32) []byte {
	return FullBox("mvhd", 0, 0,
		U32(0), U32(0), U32(timescale), U32(duration),
		U32(0x00010000), U16(0x0100), Zeros(10),
		identity, Zeros(24), U32(nextTrackID))
}

// Tkhd encodes a version 0 track header. Width and height are integers.
func Tkhd(trackID, duration uint32, width, height uint16) []byte {
	return FullBox("tkhd", 0, 0x3,
		U32(0), U32(0), U32(trackID), U32(0), U32(duration),
		Zeros(8), U16(0), U16(0), U16(0), U16(0),
		identity, U32(uint32(width)<<16), U32(uint32(height)<<16))
}

// Mdhd encodes a version 0 media header with language "und".
func Mdhd(timescale, duration uint32) []byte {
	return FullBox("mdhd", 0, 0,
		U32(0), U32(0), U32(timescale), U32(duration), U16(0x55c4), U16(0))
}

func Hdlr(handler, name string) []byte {
	return FullBox("hdlr", 0, 0, U32(0), []byte(handler), Zeros(12), CString(name))
}

// Dinf encodes a data information box with one self-contained url entry.
func Dinf() []byte {
	return Box("dinf", FullBox("dref", 0, 0, U32(1), FullBox("url ", 0, 1)))
}

// Table encodes an entry table box: count followed by fixed-size rows.
func Table(typ string, rows ...[]uint32) []byte {
	parts := [][]byte{U32(uint32(len(rows)))}
	for _, r := range rows {
		for _, v := range r {
			parts = append(parts, U32(v))
		}
	}
	return FullBox(typ, 0, 0, parts...)
}

// Stsz encodes a sample size box with per-sample sizes.
func Stsz(sizes ...uint32) []byte {
	parts := [][]byte{U32(0), U32(uint32(len(sizes)))}
	for _, s := range sizes {
		parts = append(parts, U32(s))
	}
	return FullBox("stsz", 0, 0, parts...)
}

// Stsd encodes a sample description box.
func Stsd(entries ...[]byte) []byte {
	return FullBox("stsd", 0, 0, U32(uint32(len(entries))), Cat(entries...))
}

// Avc1 encodes a visual sample entry.
func Avc1(width, height uint16, children ...[]byte) []byte {
	name := make([]byte, 32)
	name[0] = 4
	copy(name[1:], "test")
	return Box("avc1",
		Zeros(6), U16(1),
		Zeros(16), U16(width), U16(height),
		U32(0x00480000), U32(0x00480000), U32(0), U16(1),
		name, U16(0x18), U16(0xffff),
		Cat(children...))
}

// Mp4a encodes an audio sample entry.
func Mp4a(channels uint16, rate uint32, children ...[]byte) []byte {
	return Box("mp4a",
		Zeros(6), U16(1),
		Zeros(8), U16(channels), U16(16), Zeros(4), U32(rate<<16),
		Cat(children...))
}

// SPS is a baseline 320x240 sequence parameter set with
// pic_order_cnt_type 2, one reference frame and no VUI.
var SPS = []byte{0x67, 0x42, 0xc0, 0x1f, 0xda, 0x05, 0x07, 0xe4}

// PPS is a CAVLC picture parameter set referring to SPS.
var PPS = []byte{0x68, 0xce, 0x3c, 0x80}

// AvcC encodes an avcC box holding one SPS and one PPS.
func AvcC(sps, pps []byte) []byte {
	return Box("avcC",
		U8(1), sps[1:4], U8(0xff), U8(0xe1),
		U16(uint16(len(sps))), sps,
		U8(1), U16(uint16(len(pps))), pps)
}

// ASC is an AAC-LC 44.1 kHz stereo AudioSpecificConfig.
var ASC = []byte{0x12, 0x10}

// Esds encodes an esds box for MPEG-4 audio carrying asc.
func Esds(asc []byte) []byte {
	return FullBox("esds", 0, 0,
		Descriptor(0x03, U16(1), U8(0),
			Descriptor(0x04, U8(0x40), U8(0x15), U24(0), U32(128000), U32(128000),
				Descriptor(0x05, asc)),
			Descriptor(0x06, U8(2))))
}

// Minimal is ftyp(isom, 512, iso2), moov with an mvhd and an empty trak,
// and a 16-byte mdat.
func Minimal() []byte {
	return Cat(
		Ftyp("isom", 512, "iso2"),
		Box("moov", Mvhd(1000, 0, 2), Box("trak")),
		Box("mdat", Zeros(16)),
	)
}

// AV is a two-track file: a 3-sample AVC video track and a 2-sample AAC
// audio track, both with media in one trailing mdat.
//
// Video samples are 100, 200 and 300 bytes, two in the first chunk and
// one in the second, 512 ticks apart at 12800 Hz, with composition
// offsets 1024, 0 and 512 and only the first a sync sample. Audio samples
// are 50 bytes each in one chunk, 1024 ticks apart at 44100 Hz.
func AV() []byte {
	head := avHead(0)
	mdat := uint32(len(head) + 8)
	return Cat(avHead(mdat), Box("mdat", Zeros(700)))
}

func avHead(mdat uint32) []byte {
	video := Box("trak",
		Tkhd(1, 120, 320, 240),
		Box("edts", FullBox("elst", 0, 0, U32(1), U32(120), U32(1024), U32(0x00010000))),
		Box("mdia",
			Mdhd(12800, 1536),
			Hdlr("vide", "VideoHandler"),
			Box("minf",
				FullBox("vmhd", 0, 1, U16(0), U16(0), U16(0), U16(0)),
				Dinf(),
				Box("stbl",
					Stsd(Avc1(320, 240, AvcC(SPS, PPS), Box("pasp", U32(1), U32(1)))),
					Table("stts", []uint32{3, 512}),
					Table("stss", []uint32{1}),
					Table("ctts", []uint32{1, 1024}, []uint32{1, 0}, []uint32{1, 512}),
					Table("stsc", []uint32{1, 2, 1}, []uint32{2, 1, 1}),
					Stsz(100, 200, 300),
					Table("stco", []uint32{mdat}, []uint32{mdat + 300}),
				))))

	audio := Box("trak",
		Tkhd(2, 46, 0, 0),
		Box("mdia",
			Mdhd(44100, 2048),
			Hdlr("soun", "SoundHandler"),
			Box("minf",
				FullBox("smhd", 0, 0, U16(0), U16(0)),
				Dinf(),
				Box("stbl",
					Stsd(Mp4a(2, 44100, Esds(ASC))),
					Table("stts", []uint32{2, 1024}),
					Table("stsc", []uint32{1, 2, 1}),
					Stsz(50, 50),
					Table("stco", []uint32{mdat + 600}),
				))))

	return Cat(
		Ftyp("isom", 512, "isom", "avc1"),
		Box("moov", Mvhd(1000, 120, 3), video, audio),
	)
}
