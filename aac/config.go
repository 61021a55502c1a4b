// Package aac decodes the MPEG-4 AudioSpecificConfig carried in an esds
// DecoderSpecificInfo descriptor.
package aac

import (
	"errors"
	"fmt"

	codec "github.com/yapingcat/gomedia/go-codec"

	"github.com/tetsuo/mp4inspect/bits"
)

const (
	objectTypeEscape = 31
	freqIndexEscape  = 15
)

// ErrNoADTS reports an object type that cannot be framed as ADTS.
var ErrNoADTS = errors.New("aac: object type has no ADTS profile")

var sampleRates = [...]uint32{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050,
	16000, 12000, 11025, 8000, 7350,
}

// AudioSpecificConfig holds the leading fields of an AudioSpecificConfig.
// Codec-specific extension data that follows is not decoded.
type AudioSpecificConfig struct {
	ObjectType           uint8  `json:"audio_object_type"`
	FrequencyIndex       uint8  `json:"sampling_frequency_index"`
	Frequency            uint32 `json:"sampling_frequency,omitempty"`
	ChannelConfiguration uint8  `json:"channel_configuration"`

	raw []byte
}

// Decode reads an AudioSpecificConfig from b.
func Decode(b []byte) (*AudioSpecificConfig, error) {
	r := bits.NewReader(b)
	c := &AudioSpecificConfig{raw: append([]byte(nil), b...)}

	ot, err := r.ReadBits(5)
	if err != nil {
		return nil, fmt.Errorf("audio object type: %w", err)
	}
	if ot == objectTypeEscape {
		ext, err := r.ReadBits(6)
		if err != nil {
			return nil, fmt.Errorf("audio object type ext: %w", err)
		}
		ot = 32 + ext
	}
	c.ObjectType = uint8(ot)

	idx, err := r.ReadBits(4)
	if err != nil {
		return nil, fmt.Errorf("sampling frequency index: %w", err)
	}
	c.FrequencyIndex = uint8(idx)
	if idx == freqIndexEscape {
		if c.Frequency, err = r.ReadBits(24); err != nil {
			return nil, fmt.Errorf("sampling frequency: %w", err)
		}
	}

	ch, err := r.ReadBits(4)
	if err != nil {
		return nil, fmt.Errorf("channel configuration: %w", err)
	}
	c.ChannelConfiguration = uint8(ch)
	return c, nil
}

// SampleRate resolves the sampling frequency in Hz. Reserved indices
// yield 0.
func (c *AudioSpecificConfig) SampleRate() uint32 {
	if c.FrequencyIndex == freqIndexEscape {
		return c.Frequency
	}
	if int(c.FrequencyIndex) < len(sampleRates) {
		return sampleRates[c.FrequencyIndex]
	}
	return 0
}

// Codec returns the RFC 6381 codec parameter, e.g. "mp4a.40.2".
func (c *AudioSpecificConfig) Codec() string {
	return fmt.Sprintf("mp4a.40.%d", c.ObjectType)
}

// ADTSHeader returns the 7-byte ADTS header for a raw frame of frameLen
// bytes. ADTS carries a 2-bit profile, so only object types 1 to 4 qualify.
func (c *AudioSpecificConfig) ADTSHeader(frameLen int) ([]byte, error) {
	if c.ObjectType < 1 || c.ObjectType > 4 || c.FrequencyIndex == freqIndexEscape {
		return nil, fmt.Errorf("%w: %d", ErrNoADTS, c.ObjectType)
	}
	hdr, err := codec.ConvertASCToADTS(c.raw, frameLen+7)
	if err != nil {
		return nil, err
	}
	return hdr.Encode(), nil
}
