package avc

import (
	"errors"
	"testing"

	codec "github.com/yapingcat/gomedia/go-codec"

	"github.com/tetsuo/mp4inspect/bits"
)

type bitWriter struct {
	buf []byte
	n   int
}

func (w *bitWriter) put(v uint64, width int) {
	for i := width - 1; i >= 0; i-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[len(w.buf)-1] |= 0x80 >> uint(w.n%8)
		}
		w.n++
	}
}

func (w *bitWriter) flag(b bool) {
	if b {
		w.put(1, 1)
	} else {
		w.put(0, 1)
	}
}

func (w *bitWriter) ue(v uint32) {
	x := uint64(v) + 1
	width := 0
	for t := x; t > 1; t >>= 1 {
		width++
	}
	w.put(0, width)
	w.put(x, width+1)
}

func (w *bitWriter) se(v int64) {
	if v > 0 {
		w.ue(uint32(2*v - 1))
	} else {
		w.ue(uint32(-2 * v))
	}
}

// trailing appends rbsp_trailing_bits.
func (w *bitWriter) trailing() []byte {
	w.put(1, 1)
	for w.n%8 != 0 {
		w.put(0, 1)
	}
	return w.buf
}

// escape inserts emulation prevention bytes.
func escape(rbsp []byte) []byte {
	out := make([]byte, 0, len(rbsp)+4)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 3 {
			out = append(out, 3)
			zeros = 0
		}
		out = append(out, b)
		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return out
}

type spsParams struct {
	profile     uint8
	poc         uint32
	widthMbs    uint32
	heightMaps  uint32
	frameOnly   bool
	crop        [4]uint32 // left, right, top, bottom
	vui         func(w *bitWriter)
	stopAfterPO bool
}

func buildSPS(p spsParams) []byte {
	var w bitWriter
	w.put(uint64(p.profile), 8)
	w.put(0xC0, 8)
	w.put(31, 8)
	w.ue(0)
	w.ue(0)
	w.ue(p.poc)
	if p.stopAfterPO {
		return w.buf
	}
	w.ue(1)
	w.flag(false)
	w.ue(p.widthMbs - 1)
	w.ue(p.heightMaps - 1)
	w.flag(p.frameOnly)
	if !p.frameOnly {
		w.flag(false)
	}
	w.flag(true)
	cropping := p.crop != [4]uint32{}
	w.flag(cropping)
	if cropping {
		for _, c := range p.crop {
			w.ue(c)
		}
	}
	w.flag(p.vui != nil)
	if p.vui != nil {
		p.vui(&w)
	}
	return w.trailing()
}

func spsNALU(rbsp []byte) []byte {
	return append([]byte{0x67}, escape(rbsp)...)
}

func buildPPS(sliceGroups uint32, qp int64) []byte {
	var w bitWriter
	w.ue(0)
	w.ue(0)
	w.flag(false)
	w.flag(false)
	w.ue(sliceGroups)
	if sliceGroups == 0 {
		w.ue(0)
		w.ue(0)
		w.flag(false)
		w.put(0, 2)
		w.se(qp)
		w.se(0)
		w.se(-2)
		w.flag(true)
		w.flag(false)
		w.flag(false)
	}
	return w.trailing()
}

func ppsNALU(rbsp []byte) []byte {
	return append([]byte{0x68}, escape(rbsp)...)
}

func TestDecodeSPSMinimal(t *testing.T) {
	rbsp := buildSPS(spsParams{
		profile:    66,
		poc:        2,
		widthMbs:   120,
		heightMaps: 68,
		frameOnly:  true,
		crop:       [4]uint32{0, 0, 0, 4},
	})
	s, err := DecodeSPS(rbsp)
	if err != nil {
		t.Fatal(err)
	}
	if s.ProfileIdc != 66 || s.LevelIdc != 31 {
		t.Errorf("profile/level = %d/%d", s.ProfileIdc, s.LevelIdc)
	}
	if !s.ConstraintSet(0) || !s.ConstraintSet(1) || s.ConstraintSet(2) {
		t.Errorf("constraint flags = %08b", s.ConstraintFlags)
	}
	if s.PicWidthInMbsMinus1 != 119 || s.PicHeightInMapUnitsMinus1 != 67 {
		t.Errorf("mbs = %d x %d", s.PicWidthInMbsMinus1, s.PicHeightInMapUnitsMinus1)
	}
	if !s.FrameCropping || s.CropBottom != 4 || s.CropLeft|s.CropRight|s.CropTop != 0 {
		t.Errorf("crop = %v %d %d %d %d", s.FrameCropping, s.CropLeft, s.CropRight, s.CropTop, s.CropBottom)
	}
	if s.Width() != 1920 || s.Height() != 1080 {
		t.Errorf("size = %dx%d, want 1920x1080", s.Width(), s.Height())
	}
	if s.VUI != nil {
		t.Errorf("unexpected VUI")
	}

	// Cross-check against an independent H.264 parser.
	w, h := codec.GetH264Resolution(append([]byte{0, 0, 0, 1}, spsNALU(rbsp)...))
	if int(w) != s.Width() || int(h) != s.Height() {
		t.Errorf("go-codec resolution %dx%d, ours %dx%d", w, h, s.Width(), s.Height())
	}
}

func TestSPSLargeCropClampsToZero(t *testing.T) {
	const half = 1 << 31
	tests := []struct {
		name string
		crop [4]uint32
	}{
		{"horizontal", [4]uint32{half, half, 0, 0}},
		{"vertical", [4]uint32{0, 0, half, half}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := DecodeSPS(buildSPS(spsParams{
				profile:    66,
				poc:        2,
				widthMbs:   120,
				heightMaps: 68,
				frameOnly:  true,
				crop:       tt.crop,
			}))
			if err != nil {
				t.Fatal(err)
			}
			if tt.crop[0] != 0 && s.Width() != 0 {
				t.Errorf("width = %d, want 0", s.Width())
			}
			if tt.crop[2] != 0 && s.Height() != 0 {
				t.Errorf("height = %d, want 0", s.Height())
			}
		})
	}
}

func TestDecodeSPSFieldCoding(t *testing.T) {
	rbsp := buildSPS(spsParams{
		profile:    77,
		poc:        2,
		widthMbs:   40,
		heightMaps: 15,
		frameOnly:  false,
		crop:       [4]uint32{1, 2, 0, 1},
	})
	s, err := DecodeSPS(rbsp)
	if err != nil {
		t.Fatal(err)
	}
	if s.FrameMbsOnly || s.MbAdaptiveFrameField {
		t.Errorf("frame flags = %v %v", s.FrameMbsOnly, s.MbAdaptiveFrameField)
	}
	// 40*16 - 2*(1+2) = 634; 2*15*16 - 4*(0+1) = 476
	if s.Width() != 634 || s.Height() != 476 {
		t.Errorf("size = %dx%d, want 634x476", s.Width(), s.Height())
	}
}

func TestDecodeSPSRejectsOrderCountType(t *testing.T) {
	for _, poc := range []uint32{0, 1} {
		// The payload ends right after pic_order_cnt_type: any further read
		// would fail with ErrOutOfBits instead.
		rbsp := buildSPS(spsParams{profile: 66, poc: poc, stopAfterPO: true})
		_, err := DecodeSPS(rbsp)
		if !errors.Is(err, ErrPicOrderCntType) {
			t.Fatalf("poc %d: got %v, want ErrPicOrderCntType", poc, err)
		}
		if !errors.Is(err, ErrUnsupported) {
			t.Fatalf("poc %d: %v does not match ErrUnsupported", poc, err)
		}
	}
}

func TestDecodeSPSRejectsExtendedProfile(t *testing.T) {
	for _, profile := range []uint8{100, 110, 122, 144, 244} {
		_, err := DecodeSPS(buildSPS(spsParams{profile: profile, poc: 2, widthMbs: 1, heightMaps: 1, frameOnly: true}))
		if !errors.Is(err, ErrProfile) {
			t.Errorf("profile %d: got %v", profile, err)
		}
	}
}

func TestDecodeSPSTruncated(t *testing.T) {
	rbsp := buildSPS(spsParams{profile: 66, poc: 2, widthMbs: 80, heightMaps: 45, frameOnly: true})
	_, err := DecodeSPS(rbsp[:5])
	if !errors.Is(err, bits.ErrOutOfBits) {
		t.Fatalf("got %v, want ErrOutOfBits", err)
	}
}

func TestDecodeVUI(t *testing.T) {
	// flags in order: aspect, overscan, video signal, chroma loc
	prefix := func(aspect bool, idc uint8, overscan, signal, chroma bool) func(*bitWriter) {
		return func(w *bitWriter) {
			w.flag(aspect)
			if aspect {
				w.put(uint64(idc), 8)
			}
			w.flag(overscan)
			w.flag(signal)
			w.flag(chroma)
		}
	}
	tail := func(nal, vcl bool) func(*bitWriter) {
		return func(w *bitWriter) {
			w.flag(true)
			w.put(1001, 32)
			w.put(60000, 32)
			w.flag(true)
			w.flag(nal)
			w.flag(vcl)
			w.flag(false)
			w.flag(true)
			w.flag(true)
			for _, v := range []uint32{2, 1, 16, 16, 2, 4} {
				w.ue(v)
			}
		}
	}
	join := func(fs ...func(*bitWriter)) func(*bitWriter) {
		return func(w *bitWriter) {
			for _, f := range fs {
				f(w)
			}
		}
	}

	tests := []struct {
		name string
		vui  func(*bitWriter)
		want error
	}{
		{"accepted", join(prefix(true, 1, false, false, false), tail(false, false)), nil},
		{"extended sar", join(prefix(true, 255, false, false, false), tail(false, false)), ErrAspectRatioIdc},
		{"overscan", join(prefix(false, 0, true, false, false), tail(false, false)), ErrOverscan},
		{"video signal", join(prefix(false, 0, false, true, false), tail(false, false)), ErrVideoSignalType},
		{"chroma loc", join(prefix(false, 0, false, false, true), tail(false, false)), ErrChromaLoc},
		{"nal hrd", join(prefix(false, 0, false, false, false), tail(true, false)), ErrNalHrd},
		{"vcl hrd", join(prefix(false, 0, false, false, false), tail(false, true)), ErrVclHrd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rbsp := buildSPS(spsParams{profile: 66, poc: 2, widthMbs: 80, heightMaps: 45, frameOnly: true, vui: tt.vui})
			s, err := DecodeSPS(rbsp)
			if tt.want != nil {
				if !errors.Is(err, tt.want) {
					t.Fatalf("got %v, want %v", err, tt.want)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			v := s.VUI
			if v == nil {
				t.Fatal("missing VUI")
			}
			if v.AspectRatioIdc != 1 || v.NumUnitsInTick != 1001 || v.TimeScale != 60000 || !v.FixedFrameRate {
				t.Errorf("vui = %+v", v)
			}
			if v.MaxNumReorderFrames != 2 || v.MaxDecFrameBuffering != 4 || v.MaxBytesPerPicDenom != 2 {
				t.Errorf("bitstream restriction = %+v", v)
			}
			if fr := v.FrameRate(); fr < 29.96 || fr > 29.98 {
				t.Errorf("frame rate = %f", fr)
			}
		})
	}
}

func TestDecodePPS(t *testing.T) {
	p, err := DecodePPS(buildPPS(0, -3))
	if err != nil {
		t.Fatal(err)
	}
	if p.PicInitQPMinus26 != -3 || p.ChromaQPIndexOffset != -2 || !p.DeblockingFilterControlPresent {
		t.Errorf("pps = %+v", p)
	}

	_, err = DecodePPS(buildPPS(1, 0))
	if !errors.Is(err, ErrSliceGroups) {
		t.Fatalf("got %v, want ErrSliceGroups", err)
	}
}

func TestDecodeNALU(t *testing.T) {
	sps := spsNALU(buildSPS(spsParams{profile: 66, poc: 2, widthMbs: 80, heightMaps: 45, frameOnly: true}))
	n, err := DecodeNALU(sps)
	if err != nil {
		t.Fatal(err)
	}
	if n.Type != 7 || n.RefIdc != 3 || n.SPS == nil || n.PPS != nil {
		t.Fatalf("nalu = %+v", n)
	}
	if n.SPS.Width() != 1280 || n.SPS.Height() != 720 {
		t.Errorf("size = %dx%d", n.SPS.Width(), n.SPS.Height())
	}

	_, err = DecodeNALU([]byte{0x65, 0x88, 0x84})
	if !errors.Is(err, ErrNALUnitType) {
		t.Fatalf("got %v, want ErrNALUnitType", err)
	}
	if _, err := DecodeNALU(nil); !errors.Is(err, bits.ErrOutOfBits) {
		t.Fatalf("empty: got %v", err)
	}
}

func TestDecodeConfig(t *testing.T) {
	sps := spsNALU(buildSPS(spsParams{profile: 66, poc: 2, widthMbs: 80, heightMaps: 45, frameOnly: true}))
	pps0 := ppsNALU(buildPPS(0, 0))
	pps1 := ppsNALU(buildPPS(0, 4))

	startCode := []byte{0, 0, 0, 1}
	record, err := codec.CreateH264AVCCExtradata(
		[][]byte{append(append([]byte{}, startCode...), sps...)},
		[][]byte{append(append([]byte{}, startCode...), pps0...), append(append([]byte{}, startCode...), pps1...)},
	)
	if err != nil {
		t.Fatal(err)
	}

	c, err := DecodeConfig(record)
	if err != nil {
		t.Fatal(err)
	}
	if c.ConfigurationVersion != 1 || c.ProfileIndication != 66 || c.LevelIndication != 31 || c.LengthSizeMinusOne != 3 {
		t.Errorf("header = %+v", c)
	}
	if len(c.SPS) != 1 || len(c.PPS) != 2 {
		t.Fatalf("got %d sps, %d pps", len(c.SPS), len(c.PPS))
	}
	if c.PPS[1].PPS.PicInitQPMinus26 != 4 {
		t.Errorf("second pps qp = %d", c.PPS[1].PPS.PicInitQPMinus26)
	}
	if got := c.Codec(); got != "avc1.42c01f" {
		t.Errorf("codec = %q", got)
	}

	t.Run("truncated", func(t *testing.T) {
		for _, n := range []int{3, 7, len(record) - 1} {
			if _, err := DecodeConfig(record[:n]); !errors.Is(err, ErrTruncated) {
				t.Errorf("len %d: got %v", n, err)
			}
		}
	})
	t.Run("extended profile", func(t *testing.T) {
		bad := append([]byte{}, record...)
		bad[1] = 100
		if _, err := DecodeConfig(bad); !errors.Is(err, ErrProfile) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("pps in sps list", func(t *testing.T) {
		bad := []byte{1, 66, 0xc0, 31, 0xff, 0xe1}
		bad = append(bad, 0, byte(len(pps0)))
		bad = append(bad, pps0...)
		bad = append(bad, 0)
		if _, err := DecodeConfig(bad); !errors.Is(err, ErrNALUnitType) {
			t.Errorf("got %v", err)
		}
	})
}
