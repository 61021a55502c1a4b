package avc

import "fmt"

// extendedSAR is the aspect_ratio_idc value that is followed by an explicit
// sar_width/sar_height pair.
const extendedSAR = 255

// VUI holds the video usability information accepted by DecodeSPS.
type VUI struct {
	AspectRatioInfoPresent bool  `json:"aspect_ratio_info_present_flag"`
	AspectRatioIdc         uint8 `json:"aspect_ratio_idc,omitempty"`

	TimingInfoPresent bool   `json:"timing_info_present_flag"`
	NumUnitsInTick    uint32 `json:"num_units_in_tick,omitempty"`
	TimeScale         uint32 `json:"time_scale,omitempty"`
	FixedFrameRate    bool   `json:"fixed_frame_rate_flag,omitempty"`

	PicStructPresent bool `json:"pic_struct_present_flag"`

	BitstreamRestriction           bool   `json:"bitstream_restriction_flag"`
	MotionVectorsOverPicBoundaries bool   `json:"motion_vectors_over_pic_boundaries_flag,omitempty"`
	MaxBytesPerPicDenom            uint32 `json:"max_bytes_per_pic_denom,omitempty"`
	MaxBitsPerMbDenom              uint32 `json:"max_bits_per_mb_denom,omitempty"`
	Log2MaxMvLengthHorizontal      uint32 `json:"log2_max_mv_length_horizontal,omitempty"`
	Log2MaxMvLengthVertical        uint32 `json:"log2_max_mv_length_vertical,omitempty"`
	MaxNumReorderFrames            uint32 `json:"max_num_reorder_frames,omitempty"`
	MaxDecFrameBuffering           uint32 `json:"max_dec_frame_buffering,omitempty"`
}

// FrameRate returns frames per second derived from the timing info, or 0.
func (v *VUI) FrameRate() float64 {
	if !v.TimingInfoPresent || v.NumUnitsInTick == 0 {
		return 0
	}
	return float64(v.TimeScale) / float64(2*uint64(v.NumUnitsInTick))
}

func decodeVUI(f *fields) (*VUI, error) {
	v := &VUI{}

	v.AspectRatioInfoPresent = f.flag()
	if v.AspectRatioInfoPresent {
		v.AspectRatioIdc = f.u8()
		if f.err == nil && v.AspectRatioIdc == extendedSAR {
			return nil, fmt.Errorf("%w %d", ErrAspectRatioIdc, v.AspectRatioIdc)
		}
	}
	if f.flag() {
		return nil, ErrOverscan
	}
	if f.flag() {
		return nil, ErrVideoSignalType
	}
	if f.flag() {
		return nil, ErrChromaLoc
	}

	v.TimingInfoPresent = f.flag()
	if v.TimingInfoPresent {
		v.NumUnitsInTick = f.u(32)
		v.TimeScale = f.u(32)
		v.FixedFrameRate = f.flag()
	}
	if f.flag() {
		return nil, ErrNalHrd
	}
	if f.flag() {
		return nil, ErrVclHrd
	}
	v.PicStructPresent = f.flag()

	v.BitstreamRestriction = f.flag()
	if v.BitstreamRestriction {
		v.MotionVectorsOverPicBoundaries = f.flag()
		v.MaxBytesPerPicDenom = f.ue()
		v.MaxBitsPerMbDenom = f.ue()
		v.Log2MaxMvLengthHorizontal = f.ue()
		v.Log2MaxMvLengthVertical = f.ue()
		v.MaxNumReorderFrames = f.ue()
		v.MaxDecFrameBuffering = f.ue()
	}
	if f.err != nil {
		return nil, f.err
	}
	return v, nil
}
