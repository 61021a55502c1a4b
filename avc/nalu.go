package avc

import (
	"fmt"

	"github.com/tetsuo/mp4inspect/bits"
)

// NAL unit types of the parameter sets.
const (
	NALTypeSPS = 7
	NALTypePPS = 8
)

// NALU is a parameter-set NAL unit. Exactly one of SPS or PPS is set.
type NALU struct {
	RefIdc uint8 `json:"nal_ref_idc"`
	Type   uint8 `json:"nal_unit_type"`
	Size   int   `json:"size"`
	SPS    *SPS  `json:"sps,omitempty"`
	PPS    *PPS  `json:"pps,omitempty"`
}

// DecodeNALU decodes a NAL unit without start code. Only SPS (7) and
// PPS (8) units are accepted.
func DecodeNALU(b []byte) (*NALU, error) {
	if len(b) == 0 {
		return nil, bits.ErrOutOfBits
	}
	n := &NALU{
		RefIdc: (b[0] >> 5) & 0x3,
		Type:   b[0] & 0x1f,
		Size:   len(b),
	}
	rbsp := bits.Unescape(b[1:])

	var err error
	switch n.Type {
	case NALTypeSPS:
		n.SPS, err = DecodeSPS(rbsp)
	case NALTypePPS:
		n.PPS, err = DecodePPS(rbsp)
	default:
		return nil, fmt.Errorf("%w %d", ErrNALUnitType, n.Type)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}
