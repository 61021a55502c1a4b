package mp4

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/tetsuo/mp4inspect/aac"
)

// Esds is the elementary stream descriptor box.
type Esds struct {
	ES *ESDescriptor `json:"es_descriptor,omitempty"`
}

// ESDescriptor is an ES_Descriptor (tag 0x03) without dependency, URL or
// OCR stream references.
type ESDescriptor struct {
	ID             uint16                   `json:"es_id"`
	StreamPriority uint8                    `json:"stream_priority"`
	DecoderConfig  *DecoderConfigDescriptor `json:"decoder_config,omitempty"`
	SLConfig       *SLConfigDescriptor      `json:"sl_config,omitempty"`
}

// DecoderConfigDescriptor is a DecoderConfigDescriptor (tag 0x04).
type DecoderConfigDescriptor struct {
	ObjectTypeIndication uint8                    `json:"object_type_indication"`
	StreamType           uint8                    `json:"stream_type"`
	UpStream             bool                     `json:"up_stream"`
	BufferSizeDB         uint32                   `json:"buffer_size_db"`
	MaxBitrate           uint32                   `json:"max_bitrate"`
	AvgBitrate           uint32                   `json:"avg_bitrate"`
	AudioConfig          *aac.AudioSpecificConfig `json:"audio_specific_config,omitempty"`
}

// SLConfigDescriptor is an SLConfigDescriptor (tag 0x06).
type SLConfigDescriptor struct {
	Predefined uint8 `json:"predefined"`
}

// objectTypeAudio is the objectTypeIndication of MPEG-4 audio.
const objectTypeAudio = 0x40

// slPredefinedMP4 is the SLConfigDescriptor predefined value reserved for
// MP4 files.
const slPredefinedMP4 = 2

var (
	esdsDescriptors   Registry[*Esds]
	esDescriptors     Registry[*ESDescriptor]
	configDescriptors Registry[*DecoderConfigDescriptor]
)

func init() {
	esdsDescriptors = Registry[*Esds]{
		{TagESDescriptor, "ES_Descriptor", decodeESDescriptor},
	}
	esDescriptors = Registry[*ESDescriptor]{
		{TagDecoderConfig, "DecoderConfigDescriptor", decodeDecoderConfig},
		{TagSLConfig, "SLConfigDescriptor", decodeSLConfig},
	}
	configDescriptors = Registry[*DecoderConfigDescriptor]{
		{TagDecoderSpecificInfo, "DecoderSpecificInfo", decodeDecoderSpecificInfo},
	}
}

func decodeEsds(d *Decoder, p Span, a *AudioEntry) error {
	f, rest, err := d.prefix(p, 4)
	if err != nil {
		return err
	}
	f.fullBox()
	a.Esds = &Esds{}
	err = Dispatch(d, DescriptorHeaders, rest, esdsDescriptors, a.Esds)
	if errors.Is(err, ErrUnknownRecord) {
		// Any unexpected tag in the chain is a descriptor mismatch.
		return fmt.Errorf("%w: %w", ErrDescriptorTag, err)
	}
	return err
}

func decodeESDescriptor(d *Decoder, p Span, esds *Esds) error {
	f, rest, err := d.prefix(p, 3)
	if err != nil {
		return err
	}
	es := &ESDescriptor{ID: f.u16()}
	flags := f.u8()
	if flags&0xe0 != 0 {
		return fmt.Errorf("%w 0x%02x", ErrESFlags, flags>>5)
	}
	es.StreamPriority = flags & 0x1f
	d.Attr("es_id", es.ID)
	d.Attr("stream_priority", es.StreamPriority)
	esds.ES = es
	return Dispatch(d, DescriptorHeaders, rest, esDescriptors, es)
}

func decodeDecoderConfig(d *Decoder, p Span, es *ESDescriptor) error {
	f, rest, err := d.prefix(p, 13)
	if err != nil {
		return err
	}
	c := &DecoderConfigDescriptor{ObjectTypeIndication: f.u8()}
	if c.ObjectTypeIndication != objectTypeAudio {
		return fmt.Errorf("%w 0x%02x", ErrObjectType, c.ObjectTypeIndication)
	}
	b := f.u8()
	c.StreamType = b >> 2
	c.UpStream = b&0x02 != 0
	c.BufferSizeDB = f.u24()
	c.MaxBitrate = f.u32()
	c.AvgBitrate = f.u32()
	d.Attr("object_type_indication", fmt.Sprintf("0x%02x", c.ObjectTypeIndication))
	d.Attr("stream_type", c.StreamType)
	d.Attr("up_stream", c.UpStream)
	d.Attr("buffer_size_db", c.BufferSizeDB)
	d.Attr("max_bitrate", c.MaxBitrate)
	d.Attr("avg_bitrate", c.AvgBitrate)
	es.DecoderConfig = c
	return Dispatch(d, DescriptorHeaders, rest, configDescriptors, c)
}

func decodeDecoderSpecificInfo(d *Decoder, p Span, c *DecoderConfigDescriptor) error {
	b, err := d.Load(p)
	if err != nil {
		return err
	}
	asc, err := aac.Decode(b)
	if err != nil {
		return err
	}
	d.Attr("audio_object_type", asc.ObjectType)
	d.Attr("sampling_frequency_index", asc.FrequencyIndex)
	d.Attr("sampling_frequency", asc.SampleRate())
	d.Attr("channel_configuration", asc.ChannelConfiguration)
	d.Attr("codec", asc.Codec())
	hdr, err := asc.ADTSHeader(0)
	switch {
	case err == nil:
		d.Attr("adts_header", hex.EncodeToString(hdr))
	case !errors.Is(err, aac.ErrNoADTS):
		return err
	}
	c.AudioConfig = asc
	return nil
}

func decodeSLConfig(d *Decoder, p Span, es *ESDescriptor) error {
	f, err := d.loadFields(p)
	if err != nil {
		return err
	}
	s := &SLConfigDescriptor{Predefined: f.u8()}
	if f.err != nil {
		return f.err
	}
	if s.Predefined != slPredefinedMP4 {
		return fmt.Errorf("%w %d", ErrSLConfig, s.Predefined)
	}
	d.Attr("predefined", s.Predefined)
	es.SLConfig = s
	return nil
}
