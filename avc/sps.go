// Package avc decodes H.264 parameter sets and the AVC decoder configuration
// record carried in an avcC box.
//
// The decoders are narrow. Every syntax element whose value
// would change the layout of the rest of the payload in a way they do not
// model is rejected with a named error wrapping ErrUnsupported.
package avc

import "fmt"

// Profiles whose SPS carries chroma format, bit depth and scaling lists
// after seq_parameter_set_id.
var extendedProfiles = map[uint8]bool{
	44: true, 83: true, 86: true, 100: true, 110: true, 118: true, 122: true,
	128: true, 134: true, 135: true, 138: true, 139: true, 144: true, 244: true,
}

// IsExtendedProfile reports whether profile_idc selects a profile the
// decoders reject.
func IsExtendedProfile(profile uint8) bool { return extendedProfiles[profile] }

// SPS is a decoded sequence parameter set.
type SPS struct {
	ProfileIdc      uint8 `json:"profile_idc"`
	ConstraintFlags uint8 `json:"constraint_flags"`
	LevelIdc        uint8 `json:"level_idc"`

	ID                    uint32 `json:"seq_parameter_set_id"`
	Log2MaxFrameNumMinus4 uint32 `json:"log2_max_frame_num_minus4"`
	PicOrderCntType       uint32 `json:"pic_order_cnt_type"`
	MaxNumRefFrames       uint32 `json:"max_num_ref_frames"`
	GapsInFrameNumAllowed bool   `json:"gaps_in_frame_num_value_allowed_flag"`

	PicWidthInMbsMinus1       uint32 `json:"pic_width_in_mbs_minus1"`
	PicHeightInMapUnitsMinus1 uint32 `json:"pic_height_in_map_units_minus1"`
	FrameMbsOnly              bool   `json:"frame_mbs_only_flag"`
	MbAdaptiveFrameField      bool   `json:"mb_adaptive_frame_field_flag"`
	Direct8x8Inference        bool   `json:"direct_8x8_inference_flag"`

	FrameCropping bool   `json:"frame_cropping_flag"`
	CropLeft      uint32 `json:"frame_crop_left_offset"`
	CropRight     uint32 `json:"frame_crop_right_offset"`
	CropTop       uint32 `json:"frame_crop_top_offset"`
	CropBottom    uint32 `json:"frame_crop_bottom_offset"`

	VUI *VUI `json:"vui,omitempty"`
}

// ConstraintSet reports constraint_set{i}_flag, i in 0..2.
func (s *SPS) ConstraintSet(i int) bool {
	return s.ConstraintFlags&(0x80>>i) != 0
}

// Width returns the cropped luma width in pixels. Only 4:2:0 sampling
// reaches this point, so the horizontal crop unit is 2.
func (s *SPS) Width() int {
	w := (int(s.PicWidthInMbsMinus1) + 1) * 16
	w -= 2 * (int(s.CropLeft) + int(s.CropRight))
	return max(w, 0)
}

// Height returns the cropped luma height in pixels.
func (s *SPS) Height() int {
	fields := 2
	if s.FrameMbsOnly {
		fields = 1
	}
	h := fields * (int(s.PicHeightInMapUnitsMinus1) + 1) * 16
	h -= 2 * fields * (int(s.CropTop) + int(s.CropBottom))
	return max(h, 0)
}

// DecodeSPS decodes a sequence parameter set from its RBSP, i.e. the NAL
// unit payload after the header byte with emulation prevention removed.
func DecodeSPS(rbsp []byte) (*SPS, error) {
	f := newFields(rbsp)
	s := &SPS{}

	s.ProfileIdc = f.u8()
	if f.err != nil {
		return nil, f.err
	}
	if IsExtendedProfile(s.ProfileIdc) {
		return nil, fmt.Errorf("%w %d", ErrProfile, s.ProfileIdc)
	}
	s.ConstraintFlags = f.u8()
	s.LevelIdc = f.u8()
	s.ID = f.ue()
	s.Log2MaxFrameNumMinus4 = f.ue()
	s.PicOrderCntType = f.ue()
	if f.err != nil {
		return nil, f.err
	}
	if s.PicOrderCntType != 2 {
		return nil, fmt.Errorf("%w %d", ErrPicOrderCntType, s.PicOrderCntType)
	}

	s.MaxNumRefFrames = f.ue()
	s.GapsInFrameNumAllowed = f.flag()
	s.PicWidthInMbsMinus1 = f.ue()
	s.PicHeightInMapUnitsMinus1 = f.ue()
	s.FrameMbsOnly = f.flag()
	if !s.FrameMbsOnly {
		s.MbAdaptiveFrameField = f.flag()
	}
	s.Direct8x8Inference = f.flag()
	s.FrameCropping = f.flag()
	if s.FrameCropping {
		s.CropLeft = f.ue()
		s.CropRight = f.ue()
		s.CropTop = f.ue()
		s.CropBottom = f.ue()
	}
	vuiPresent := f.flag()
	if f.err != nil {
		return nil, f.err
	}
	if vuiPresent {
		vui, err := decodeVUI(f)
		if err != nil {
			return nil, fmt.Errorf("vui: %w", err)
		}
		s.VUI = vui
	}
	return s, nil
}
