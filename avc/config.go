package avc

import (
	"encoding/binary"
	"fmt"
)

// DecoderConfig is an AVCDecoderConfigurationRecord.
type DecoderConfig struct {
	ConfigurationVersion uint8   `json:"configuration_version"`
	ProfileIndication    uint8   `json:"profile_idc"`
	ProfileCompatibility uint8   `json:"profile_compatibility"`
	LevelIndication      uint8   `json:"level_idc"`
	LengthSizeMinusOne   uint8   `json:"length_size_minus_one"`
	SPS                  []*NALU `json:"sps"`
	PPS                  []*NALU `json:"pps"`
}

// Codec returns the RFC 6381 codec parameter, e.g. "avc1.64001f".
func (c *DecoderConfig) Codec() string {
	return fmt.Sprintf("avc1.%02x%02x%02x", c.ProfileIndication, c.ProfileCompatibility, c.LevelIndication)
}

// DecodeConfig decodes an avcC payload. Each parameter set is unescaped
// and decoded in turn; the first failure aborts the record. Bytes after the
// last PPS are ignored.
func DecodeConfig(b []byte) (*DecoderConfig, error) {
	if len(b) < 6 {
		return nil, fmt.Errorf("%w: %d byte header", ErrTruncated, len(b))
	}
	c := &DecoderConfig{
		ConfigurationVersion: b[0],
		ProfileIndication:    b[1],
		ProfileCompatibility: b[2],
		LevelIndication:      b[3],
		LengthSizeMinusOne:   b[4] & 0x3,
	}
	if IsExtendedProfile(c.ProfileIndication) {
		return nil, fmt.Errorf("%w %d", ErrProfile, c.ProfileIndication)
	}

	ptr := 6
	numSPS := int(b[5] & 0x1f)
	sps, ptr, err := decodeParameterSets(b, ptr, numSPS, NALTypeSPS)
	if err != nil {
		return nil, fmt.Errorf("sps: %w", err)
	}
	c.SPS = sps

	if ptr >= len(b) {
		return nil, fmt.Errorf("%w: missing pps count", ErrTruncated)
	}
	numPPS := int(b[ptr])
	ptr++
	pps, _, err := decodeParameterSets(b, ptr, numPPS, NALTypePPS)
	if err != nil {
		return nil, fmt.Errorf("pps: %w", err)
	}
	c.PPS = pps
	return c, nil
}

func decodeParameterSets(b []byte, ptr, count int, want uint8) ([]*NALU, int, error) {
	out := make([]*NALU, 0, count)
	for i := range count {
		if len(b)-ptr < 2 {
			return nil, ptr, fmt.Errorf("%w: entry %d length", ErrTruncated, i)
		}
		n := int(binary.BigEndian.Uint16(b[ptr:]))
		ptr += 2
		if len(b)-ptr < n {
			return nil, ptr, fmt.Errorf("%w: entry %d needs %d bytes, have %d", ErrTruncated, i, n, len(b)-ptr)
		}
		nalu, err := DecodeNALU(b[ptr : ptr+n])
		if err != nil {
			return nil, ptr, fmt.Errorf("entry %d: %w", i, err)
		}
		if nalu.Type != want {
			return nil, ptr, fmt.Errorf("entry %d: %w %d", i, ErrNALUnitType, nalu.Type)
		}
		out = append(out, nalu)
		ptr += n
	}
	return out, ptr, nil
}
