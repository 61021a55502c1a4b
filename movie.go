package mp4

import "fmt"

// File is the decoded structure of an MP4 file.
type File struct {
	Ftyp *Ftyp  `json:"ftyp,omitempty"`
	Moov *Moov  `json:"moov,omitempty"`
	Mdat []Mdat `json:"mdat,omitempty"`
}

// Ftyp is the file type box.
type Ftyp struct {
	MajorBrand       BoxType   `json:"major_brand"`
	MinorVersion     uint32    `json:"minor_version"`
	CompatibleBrands []BoxType `json:"compatible_brands"`
}

// Mdat records where a media data box sits. Its payload is never read.
type Mdat struct {
	Offset int64 `json:"offset"`
	Size   int64 `json:"size"`
}

// Moov is the movie box.
type Moov struct {
	Mvhd  *Mvhd   `json:"mvhd,omitempty"`
	Traks []*Trak `json:"traks"`
}

// Mvhd is the movie header box.
type Mvhd struct {
	Version          uint8    `json:"version"`
	CreationTime     uint64   `json:"creation_time"`
	ModificationTime uint64   `json:"modification_time"`
	TimeScale        uint32   `json:"timescale"`
	Duration         uint64   `json:"duration"`
	Rate             float64  `json:"rate"`
	Volume           float64  `json:"volume"`
	Matrix           [9]int32 `json:"matrix"`
	NextTrackID      uint32   `json:"next_track_id"`
}

// Trak is a track box.
type Trak struct {
	Tkhd *Tkhd `json:"tkhd,omitempty"`
	Elst *Elst `json:"elst,omitempty"`
	Mdia *Mdia `json:"mdia,omitempty"`
}

// Track header flags.
const (
	TrackEnabled   = 0x1
	TrackInMovie   = 0x2
	TrackInPreview = 0x4
)

// Tkhd is the track header box.
type Tkhd struct {
	Version          uint8    `json:"version"`
	Flags            uint32   `json:"flags"`
	CreationTime     uint64   `json:"creation_time"`
	ModificationTime uint64   `json:"modification_time"`
	TrackID          uint32   `json:"track_id"`
	Duration         uint64   `json:"duration"`
	Layer            int16    `json:"layer"`
	AlternateGroup   int16    `json:"alternate_group"`
	Volume           float64  `json:"volume"`
	Matrix           [9]int32 `json:"matrix"`
	Width            float64  `json:"width"`
	Height           float64  `json:"height"`
}

// ElstEntry is one edit list segment.
type ElstEntry struct {
	SegmentDuration uint64  `json:"segment_duration"`
	MediaTime       int64   `json:"media_time"`
	MediaRate       float64 `json:"media_rate"`
}

// Elst is the edit list box.
type Elst struct {
	Entries []ElstEntry `json:"entries"`
}

// Mdia is the media box.
type Mdia struct {
	Mdhd *Mdhd `json:"mdhd,omitempty"`
	Hdlr *Hdlr `json:"hdlr,omitempty"`
	Minf *Minf `json:"minf,omitempty"`
}

// Mdhd is the media header box.
type Mdhd struct {
	Version          uint8  `json:"version"`
	CreationTime     uint64 `json:"creation_time"`
	ModificationTime uint64 `json:"modification_time"`
	TimeScale        uint32 `json:"timescale"`
	Duration         uint64 `json:"duration"`
	Language         string `json:"language"`
}

// Hdlr is the handler reference box.
type Hdlr struct {
	HandlerType BoxType `json:"handler_type"`
	Name        string  `json:"name"`
}

// Minf is the media information box.
type Minf struct {
	Vmhd *Vmhd `json:"vmhd,omitempty"`
	Smhd *Smhd `json:"smhd,omitempty"`
	Dref *Dref `json:"dref,omitempty"`
	Stbl *Stbl `json:"stbl,omitempty"`

	handler BoxType
}

// Vmhd is the video media header box.
type Vmhd struct {
	GraphicsMode uint16    `json:"graphics_mode"`
	Opcolor      [3]uint16 `json:"opcolor"`
}

// Smhd is the sound media header box.
type Smhd struct {
	Balance float64 `json:"balance"`
}

// Dref is the data reference box.
type Dref struct {
	Entries []DrefEntry `json:"entries"`
}

// DrefEntry is a url or urn data entry.
type DrefEntry struct {
	Type          BoxType `json:"type"`
	SelfContained bool    `json:"self_contained"`
	Name          string  `json:"name,omitempty"`
	Location      string  `json:"location,omitempty"`
}

var (
	fileBoxes Registry[*File]
	moovBoxes Registry[*Moov]
	trakBoxes Registry[*Trak]
	edtsBoxes Registry[*Trak]
	mdiaBoxes Registry[*Mdia]
	minfBoxes Registry[*Minf]
	dinfBoxes Registry[*Minf]
	drefBoxes Registry[*Dref]
)

func init() {
	fileBoxes = Registry[*File]{
		{TypeFtyp.Code(), "ftyp", decodeFtyp},
		{TypeMoov.Code(), "moov", decodeMoov},
		{TypeMdat.Code(), "mdat", decodeMdat},
	}
	moovBoxes = Registry[*Moov]{
		{TypeMvhd.Code(), "mvhd", decodeMvhd},
		{TypeTrak.Code(), "trak", decodeTrak},
		{TypeUdta.Code(), "udta", skip[*Moov]},
	}
	trakBoxes = Registry[*Trak]{
		{TypeTkhd.Code(), "tkhd", decodeTkhd},
		{TypeEdts.Code(), "edts", decodeEdts},
		{TypeMdia.Code(), "mdia", decodeMdia},
	}
	edtsBoxes = Registry[*Trak]{
		{TypeElst.Code(), "elst", decodeElst},
	}
	mdiaBoxes = Registry[*Mdia]{
		{TypeMdhd.Code(), "mdhd", decodeMdhd},
		{TypeHdlr.Code(), "hdlr", decodeHdlr},
		{TypeMinf.Code(), "minf", decodeMinf},
	}
	minfBoxes = Registry[*Minf]{
		{TypeVmhd.Code(), "vmhd", decodeVmhd},
		{TypeSmhd.Code(), "smhd", decodeSmhd},
		{TypeDinf.Code(), "dinf", decodeDinf},
		{TypeStbl.Code(), "stbl", decodeStbl},
	}
	dinfBoxes = Registry[*Minf]{
		{TypeDref.Code(), "dref", decodeDref},
	}
	drefBoxes = Registry[*Dref]{
		{TypeURL.Code(), "url ", decodeURL},
		{TypeURN.Code(), "urn ", decodeURN},
	}
}

// loadFields loads a leaf payload for field decoding.
func (d *Decoder) loadFields(p Span) (*fields, error) {
	b, err := d.Load(p)
	if err != nil {
		return nil, err
	}
	return newFields(b), nil
}

// skip accepts a record without reading it.
func skip[T any](d *Decoder, p Span, _ T) error {
	d.log.WithField("off", p.Off).Debug("skip")
	return nil
}

func fixed16(v uint16) float64 { return float64(int16(v)) / (1 << 8) }

func fixed32(v uint32) float64 { return float64(int32(v)) / (1 << 16) }

func (f *fields) matrix() [9]int32 {
	var m [9]int32
	for i := range m {
		m[i] = int32(f.u32())
	}
	return m
}

func decodeFtyp(d *Decoder, p Span, file *File) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	t := &Ftyp{MajorBrand: f.fourcc(), MinorVersion: f.u32()}
	if f.err == nil && f.remaining()%4 != 0 {
		return fmt.Errorf("%w: %d trailing bytes in compatible brands", ErrBounds, f.remaining())
	}
	for f.err == nil && f.remaining() > 0 {
		t.CompatibleBrands = append(t.CompatibleBrands, f.fourcc())
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("major_brand", t.MajorBrand)
	d.Attr("minor_version", t.MinorVersion)
	for _, b := range t.CompatibleBrands {
		d.Attr("compatible_brand", b)
	}
	file.Ftyp = t
	return nil
}

func decodeMoov(d *Decoder, p Span, file *File) error {
	file.Moov = &Moov{Traks: []*Trak{}}
	return Dispatch(d, BoxHeaders, p, moovBoxes, file.Moov)
}

func decodeMdat(d *Decoder, p Span, file *File) error {
	file.Mdat = append(file.Mdat, Mdat{Offset: p.Off, Size: p.Len})
	d.Attr("data_size", p.Len)
	return nil
}

func decodeMvhd(d *Decoder, p Span, moov *Moov) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	m := &Mvhd{}
	m.Version, _ = f.fullBox()
	m.CreationTime = f.uvar(m.Version)
	m.ModificationTime = f.uvar(m.Version)
	m.TimeScale = f.u32()
	m.Duration = f.uvar(m.Version)
	m.Rate = fixed32(f.u32())
	m.Volume = fixed16(f.u16())
	f.skip(10)
	m.Matrix = f.matrix()
	f.skip(24) // pre_defined
	m.NextTrackID = f.u32()
	if f.err != nil {
		return f.err
	}
	d.Attr("timescale", m.TimeScale)
	d.Attr("duration", m.Duration)
	d.Attr("rate", m.Rate)
	d.Attr("volume", m.Volume)
	d.Attr("next_track_id", m.NextTrackID)
	moov.Mvhd = m
	return nil
}

func decodeTrak(d *Decoder, p Span, moov *Moov) error {
	t := &Trak{}
	moov.Traks = append(moov.Traks, t)
	return Dispatch(d, BoxHeaders, p, trakBoxes, t)
}

func decodeTkhd(d *Decoder, p Span, trak *Trak) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	t := &Tkhd{}
	t.Version, t.Flags = f.fullBox()
	t.CreationTime = f.uvar(t.Version)
	t.ModificationTime = f.uvar(t.Version)
	t.TrackID = f.u32()
	f.skip(4)
	t.Duration = f.uvar(t.Version)
	f.skip(8)
	t.Layer = int16(f.u16())
	t.AlternateGroup = int16(f.u16())
	t.Volume = fixed16(f.u16())
	f.skip(2)
	t.Matrix = f.matrix()
	t.Width = fixed32(f.u32())
	t.Height = fixed32(f.u32())
	if f.err != nil {
		return f.err
	}
	d.Attr("track_id", t.TrackID)
	d.Attr("flags", fmt.Sprintf("0x%06x", t.Flags))
	d.Attr("duration", t.Duration)
	d.Attr("width", t.Width)
	d.Attr("height", t.Height)
	trak.Tkhd = t
	return nil
}

func decodeEdts(d *Decoder, p Span, trak *Trak) error {
	return Dispatch(d, BoxHeaders, p, edtsBoxes, trak)
}

func decodeElst(d *Decoder, p Span, trak *Trak) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	version, _ := f.fullBox()
	size := 12
	if version == 1 {
		size = 20
	}
	n := f.count(size)
	e := &Elst{Entries: make([]ElstEntry, 0, n)}
	for range n {
		var ent ElstEntry
		if version == 1 {
			ent.SegmentDuration = f.u64()
			ent.MediaTime = int64(f.u64())
		} else {
			ent.SegmentDuration = uint64(f.u32())
			ent.MediaTime = int64(int32(f.u32()))
		}
		ent.MediaRate = fixed32(f.u32())
		e.Entries = append(e.Entries, ent)
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("entry_count", n)
	trak.Elst = e
	return nil
}

func decodeMdia(d *Decoder, p Span, trak *Trak) error {
	trak.Mdia = &Mdia{}
	return Dispatch(d, BoxHeaders, p, mdiaBoxes, trak.Mdia)
}

func decodeMdhd(d *Decoder, p Span, mdia *Mdia) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	m := &Mdhd{}
	m.Version, _ = f.fullBox()
	m.CreationTime = f.uvar(m.Version)
	m.ModificationTime = f.uvar(m.Version)
	m.TimeScale = f.u32()
	m.Duration = f.uvar(m.Version)
	m.Language = language(f.u16())
	f.skip(2)
	if f.err != nil {
		return f.err
	}
	d.Attr("timescale", m.TimeScale)
	d.Attr("duration", m.Duration)
	d.Attr("language", m.Language)
	mdia.Mdhd = m
	return nil
}

// language unpacks an ISO 639-2/T code stored as three 5-bit letters.
func language(v uint16) string {
	return string([]byte{
		byte(v>>10&0x1f) + 0x60,
		byte(v>>5&0x1f) + 0x60,
		byte(v&0x1f) + 0x60,
	})
}

func decodeHdlr(d *Decoder, p Span, mdia *Mdia) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	f.fullBox()
	f.skip(4) // pre_defined
	h := &Hdlr{HandlerType: f.fourcc()}
	f.skip(12)
	h.Name = f.cstring()
	if f.err != nil {
		return f.err
	}
	d.Attr("handler_type", h.HandlerType)
	d.Attr("name", h.Name)
	mdia.Hdlr = h
	return nil
}

func decodeMinf(d *Decoder, p Span, mdia *Mdia) error {
	mdia.Minf = &Minf{}
	if mdia.Hdlr != nil {
		mdia.Minf.handler = mdia.Hdlr.HandlerType
	}
	return Dispatch(d, BoxHeaders, p, minfBoxes, mdia.Minf)
}

func decodeVmhd(d *Decoder, p Span, minf *Minf) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	f.fullBox()
	v := &Vmhd{GraphicsMode: f.u16()}
	for i := range v.Opcolor {
		v.Opcolor[i] = f.u16()
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("graphics_mode", v.GraphicsMode)
	minf.Vmhd = v
	return nil
}

func decodeSmhd(d *Decoder, p Span, minf *Minf) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	f.fullBox()
	s := &Smhd{Balance: fixed16(f.u16())}
	f.skip(2)
	if f.err != nil {
		return f.err
	}
	d.Attr("balance", s.Balance)
	minf.Smhd = s
	return nil
}

func decodeDinf(d *Decoder, p Span, minf *Minf) error {
	return Dispatch(d, BoxHeaders, p, dinfBoxes, minf)
}

func decodeDref(d *Decoder, p Span, minf *Minf) error {
	if p.Len < 8 {
		return fmt.Errorf("%w: dref header needs 8 bytes, have %d", ErrBounds, p.Len)
	}
	f, err := d.loadFields(Span{Off: p.Off, Len: 8})
	if err != nil {
		return err
	}
	f.fullBox()
	n := f.u32()
	d.Attr("entry_count", n)

	dref := &Dref{Entries: []DrefEntry{}}
	if err := Dispatch(d, BoxHeaders, Span{Off: p.Off + 8, Len: p.Len - 8}, drefBoxes, dref); err != nil {
		return err
	}
	if len(dref.Entries) != int(n) {
		return fmt.Errorf("%w: dref declares %d entries, found %d", ErrEntryCount, n, len(dref.Entries))
	}
	minf.Dref = dref
	return nil
}

func decodeURL(d *Decoder, p Span, dref *Dref) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	_, flags := f.fullBox()
	e := DrefEntry{Type: TypeURL, SelfContained: flags&1 != 0}
	if !e.SelfContained {
		e.Location = f.cstring()
	}
	if f.err != nil {
		return f.err
	}
	d.Attr("self_contained", e.SelfContained)
	if !e.SelfContained {
		d.Attr("location", e.Location)
	}
	dref.Entries = append(dref.Entries, e)
	return nil
}

func decodeURN(d *Decoder, p Span, dref *Dref) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	_, flags := f.fullBox()
	e := DrefEntry{Type: TypeURN, SelfContained: flags&1 != 0}
	e.Name = f.cstring()
	e.Location = f.cstring()
	if f.err != nil {
		return f.err
	}
	d.Attr("self_contained", e.SelfContained)
	d.Attr("name", e.Name)
	d.Attr("location", e.Location)
	dref.Entries = append(dref.Entries, e)
	return nil
}
