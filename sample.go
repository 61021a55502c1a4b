package mp4

import (
	"fmt"

	"github.com/tetsuo/mp4inspect/avc"
)

// Stbl is the sample table box.
type Stbl struct {
	Stsd *Stsd `json:"stsd,omitempty"`
	Stts *Stts `json:"stts,omitempty"`
	Stss *Stss `json:"stss,omitempty"`
	Ctts *Ctts `json:"ctts,omitempty"`
	Stsc *Stsc `json:"stsc,omitempty"`
	Stsz *Stsz `json:"stsz,omitempty"`
	Stco *Stco `json:"stco,omitempty"`

	handler BoxType
}

// Stsd is the sample description box.
type Stsd struct {
	Entries []*SampleEntry `json:"entries"`
}

// SampleEntry is one sample description. Exactly one of Visual or Audio
// is set.
type SampleEntry struct {
	Type               BoxType      `json:"type"`
	DataReferenceIndex uint16       `json:"data_reference_index"`
	Visual             *VisualEntry `json:"visual,omitempty"`
	Audio              *AudioEntry  `json:"audio,omitempty"`
}

// VisualEntry holds the fields of a visual sample entry and its children.
type VisualEntry struct {
	Width          uint16             `json:"width"`
	Height         uint16             `json:"height"`
	HResolution    float64            `json:"horizresolution"`
	VResolution    float64            `json:"vertresolution"`
	FrameCount     uint16             `json:"frame_count"`
	CompressorName string             `json:"compressorname"`
	Depth          uint16             `json:"depth"`
	AvcC           *avc.DecoderConfig `json:"avcC,omitempty"`
	Pasp           *Pasp              `json:"pasp,omitempty"`
	Btrt           *Btrt              `json:"btrt,omitempty"`
}

// AudioEntry holds the fields of an audio sample entry and its children.
type AudioEntry struct {
	ChannelCount uint16  `json:"channelcount"`
	SampleSize   uint16  `json:"samplesize"`
	SampleRate   float64 `json:"samplerate"`
	Esds         *Esds   `json:"esds,omitempty"`
}

// Pasp is the pixel aspect ratio box.
type Pasp struct {
	HSpacing uint32 `json:"h_spacing"`
	VSpacing uint32 `json:"v_spacing"`
}

// Btrt is the bit rate box.
type Btrt struct {
	BufferSizeDB uint32 `json:"buffer_size_db"`
	MaxBitrate   uint32 `json:"max_bitrate"`
	AvgBitrate   uint32 `json:"avg_bitrate"`
}

// SttsEntry is a time-to-sample run.
type SttsEntry struct {
	Count    uint32 `json:"count"`
	Duration uint32 `json:"duration"`
}

// Stts is the decoding time-to-sample box.
type Stts struct {
	Entries []SttsEntry `json:"entries"`
}

// Stss is the sync sample box. Sample numbers are 1-based.
type Stss struct {
	Entries []uint32 `json:"entries"`
}

// CttsEntry is a composition offset run.
type CttsEntry struct {
	Count  uint32 `json:"count"`
	Offset int32  `json:"offset"`
}

// Ctts is the composition time-to-sample box.
type Ctts struct {
	Entries []CttsEntry `json:"entries"`
}

// StscEntry is a sample-to-chunk run.
type StscEntry struct {
	FirstChunk             uint32 `json:"first_chunk"`
	SamplesPerChunk        uint32 `json:"samples_per_chunk"`
	SampleDescriptionIndex uint32 `json:"sample_description_index"`
}

// Stsc is the sample-to-chunk box.
type Stsc struct {
	Entries []StscEntry `json:"entries"`
}

// Stsz is the sample size box. Entries is empty when every sample has
// SampleSize bytes.
type Stsz struct {
	SampleSize  uint32   `json:"sample_size"`
	SampleCount uint32   `json:"sample_count"`
	Entries     []uint32 `json:"entries,omitempty"`
}

// Stco is the chunk offset box.
type Stco struct {
	Entries []uint32 `json:"entries"`
}

var (
	stblBoxes Registry[*Stbl]
	videBoxes Registry[*Stsd]
	sounBoxes Registry[*Stsd]
	avc1Boxes Registry[*VisualEntry]
	mp4aBoxes Registry[*AudioEntry]
)

func init() {
	stblBoxes = Registry[*Stbl]{
		{TypeStsd.Code(), "stsd", decodeStsd},
		{TypeStts.Code(), "stts", decodeStts},
		{TypeStss.Code(), "stss", decodeStss},
		{TypeCtts.Code(), "ctts", decodeCtts},
		{TypeStsc.Code(), "stsc", decodeStsc},
		{TypeStsz.Code(), "stsz", decodeStsz},
		{TypeStco.Code(), "stco", decodeStco},
	}
	videBoxes = Registry[*Stsd]{
		{TypeAvc1.Code(), "avc1", decodeAvc1},
	}
	sounBoxes = Registry[*Stsd]{
		{TypeMp4a.Code(), "mp4a", decodeMp4a},
	}
	avc1Boxes = Registry[*VisualEntry]{
		{TypeAvcC.Code(), "avcC", decodeAvcC},
		{TypePasp.Code(), "pasp", decodePasp},
		{TypeBtrt.Code(), "btrt", decodeBtrt},
	}
	mp4aBoxes = Registry[*AudioEntry]{
		{TypeEsds.Code(), "esds", decodeEsds},
	}
}

func decodeStbl(d *Decoder, p Span, minf *Minf) error {
	minf.Stbl = &Stbl{handler: minf.handler}
	return Dispatch(d, BoxHeaders, p, stblBoxes, minf.Stbl)
}

// prefix loads the first n bytes of p and returns the span after them.
func (d *Decoder) prefix(p Span, n int64) (*fields, Span, error) {
	if p.Len < n {
		return nil, Span{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrBounds, n, p.Len)
	}
	f, err := d.loadFields(Span{Off: p.Off, Len: n})
	if err != nil {
		return nil, Span{}, err
	}
	return f, Span{Off: p.Off + n, Len: p.Len - n}, nil
}

func decodeStsd(d *Decoder, p Span, stbl *Stbl) error {
	f, rest, err := d.prefix(p, 8)
	if err != nil {
		return err
	}
	f.fullBox()
	n := f.u32()
	d.Attr("entry_count", n)

	stsd := &Stsd{Entries: []*SampleEntry{}}
	if n > 0 {
		var reg Registry[*Stsd]
		switch stbl.handler {
		case HandlerVide:
			reg = videBoxes
		case HandlerSoun:
			reg = sounBoxes
		default:
			return fmt.Errorf("%w %q", ErrHandlerType, stbl.handler.String())
		}
		if err := Dispatch(d, BoxHeaders, rest, reg, stsd); err != nil {
			return err
		}
	}
	if len(stsd.Entries) != int(n) {
		return fmt.Errorf("%w: stsd declares %d entries, found %d", ErrEntryCount, n, len(stsd.Entries))
	}
	stbl.Stsd = stsd
	return nil
}

// sampleEntryHeader reads the 8 bytes shared by every sample entry.
func sampleEntryHeader(f *fields) uint16 {
	f.skip(6)
	return f.u16()
}

func decodeAvc1(d *Decoder, p Span, stsd *Stsd) error {
	f, rest, err := d.prefix(p, 78)
	if err != nil {
		return err
	}
	e := &SampleEntry{Type: TypeAvc1, DataReferenceIndex: sampleEntryHeader(f)}
	v := &VisualEntry{}
	f.skip(16)
	v.Width = f.u16()
	v.Height = f.u16()
	v.HResolution = fixed32(f.u32())
	v.VResolution = fixed32(f.u32())
	f.skip(4)
	v.FrameCount = f.u16()
	n := min(int(f.u8()), 31)
	v.CompressorName = string(f.b[f.off : f.off+n])
	f.skip(31)
	v.Depth = f.u16()
	f.skip(2)
	if f.err != nil {
		return f.err
	}

	d.Attr("data_reference_index", e.DataReferenceIndex)
	d.Attr("width", v.Width)
	d.Attr("height", v.Height)
	d.Attr("compressorname", v.CompressorName)
	d.Attr("depth", v.Depth)
	e.Visual = v
	if err := Dispatch(d, BoxHeaders, rest, avc1Boxes, v); err != nil {
		return err
	}
	stsd.Entries = append(stsd.Entries, e)
	return nil
}

func decodeAvcC(d *Decoder, p Span, v *VisualEntry) error {
	b, err := d.Load(p)
	if err != nil {
		return err
	}
	c, err := avc.DecodeConfig(b)
	if err != nil {
		return err
	}
	d.Attr("configuration_version", c.ConfigurationVersion)
	d.Attr("profile_idc", c.ProfileIndication)
	d.Attr("profile_compatibility", fmt.Sprintf("0x%02x", c.ProfileCompatibility))
	d.Attr("level_idc", c.LevelIndication)
	d.Attr("length_size_minus_one", c.LengthSizeMinusOne)
	d.Attr("codec", c.Codec())
	for _, n := range c.SPS {
		s := n.SPS
		d.Attr("sps", fmt.Sprintf("id=%d %dx%d poc_type=%d ref_frames=%d", s.ID, s.Width(), s.Height(), s.PicOrderCntType, s.MaxNumRefFrames))
		if s.VUI != nil && s.VUI.TimingInfoPresent {
			d.Attr("frame_rate", s.VUI.FrameRate())
		}
	}
	for _, n := range c.PPS {
		d.Attr("pps", fmt.Sprintf("id=%d sps_id=%d entropy_coding_mode=%t", n.PPS.ID, n.PPS.SPSID, n.PPS.EntropyCodingMode))
	}
	v.AvcC = c
	return nil
}

func decodePasp(d *Decoder, p Span, v *VisualEntry) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	ps := &Pasp{HSpacing: f.u32(), VSpacing: f.u32()}
	if f.err != nil {
		return f.err
	}
	d.Attr("h_spacing", ps.HSpacing)
	d.Attr("v_spacing", ps.VSpacing)
	v.Pasp = ps
	return nil
}

func decodeBtrt(d *Decoder, p Span, v *VisualEntry) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	b := &Btrt{BufferSizeDB: f.u32(), MaxBitrate: f.u32(), AvgBitrate: f.u32()}
	if f.err != nil {
		return f.err
	}
	d.Attr("max_bitrate", b.MaxBitrate)
	d.Attr("avg_bitrate", b.AvgBitrate)
	v.Btrt = b
	return nil
}

func decodeMp4a(d *Decoder, p Span, stsd *Stsd) error {
	f, rest, err := d.prefix(p, 28)
	if err != nil {
		return err
	}
	e := &SampleEntry{Type: TypeMp4a, DataReferenceIndex: sampleEntryHeader(f)}
	a := &AudioEntry{}
	f.skip(8)
	a.ChannelCount = f.u16()
	a.SampleSize = f.u16()
	f.skip(4)
	a.SampleRate = float64(f.u32()) / (1 << 16)
	if f.err != nil {
		return f.err
	}
	d.Attr("data_reference_index", e.DataReferenceIndex)
	d.Attr("channelcount", a.ChannelCount)
	d.Attr("samplesize", a.SampleSize)
	d.Attr("samplerate", a.SampleRate)
	e.Audio = a
	if err := Dispatch(d, BoxHeaders, rest, mp4aBoxes, a); err != nil {
		return err
	}
	stsd.Entries = append(stsd.Entries, e)
	return nil
}

func decodeStts(d *Decoder, p Span, stbl *Stbl) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	f.fullBox()
	n := f.count(8)
	s := &Stts{Entries: make([]SttsEntry, n)}
	for i := range s.Entries {
		s.Entries[i] = SttsEntry{Count: f.u32(), Duration: f.u32()}
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("entry_count", n)
	stbl.Stts = s
	return nil
}

func decodeStss(d *Decoder, p Span, stbl *Stbl) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	f.fullBox()
	n := f.count(4)
	s := &Stss{Entries: make([]uint32, n)}
	for i := range s.Entries {
		s.Entries[i] = f.u32()
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("entry_count", n)
	stbl.Stss = s
	return nil
}

func decodeCtts(d *Decoder, p Span, stbl *Stbl) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	f.fullBox()
	n := f.count(8)
	c := &Ctts{Entries: make([]CttsEntry, n)}
	for i := range c.Entries {
		// Version 0 offsets are unsigned in the box; real files use them
		// as signed either way.
		c.Entries[i] = CttsEntry{Count: f.u32(), Offset: int32(f.u32())}
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("entry_count", n)
	stbl.Ctts = c
	return nil
}

func decodeStsc(d *Decoder, p Span, stbl *Stbl) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	f.fullBox()
	n := f.count(12)
	s := &Stsc{Entries: make([]StscEntry, n)}
	for i := range s.Entries {
		s.Entries[i] = StscEntry{
			FirstChunk:             f.u32(),
			SamplesPerChunk:        f.u32(),
			SampleDescriptionIndex: f.u32(),
		}
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("entry_count", n)
	stbl.Stsc = s
	return nil
}

func decodeStsz(d *Decoder, p Span, stbl *Stbl) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	f.fullBox()
	s := &Stsz{SampleSize: f.u32()}
	if s.SampleSize == 0 {
		n := f.count(4)
		s.SampleCount = uint32(n)
		s.Entries = make([]uint32, n)
		for i := range s.Entries {
			s.Entries[i] = f.u32()
		}
	} else {
		s.SampleCount = f.u32()
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("sample_size", s.SampleSize)
	d.Attr("sample_count", s.SampleCount)
	stbl.Stsz = s
	return nil
}

func decodeStco(d *Decoder, p Span, stbl *Stbl) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	f.fullBox()
	n := f.count(4)
	s := &Stco{Entries: make([]uint32, n)}
	for i := range s.Entries {
		s.Entries[i] = f.u32()
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("entry_count", n)
	stbl.Stco = s
	return nil
}
