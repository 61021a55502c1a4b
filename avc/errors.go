package avc

import "errors"

// ErrUnsupported matches every field value the decoders refuse to accept.
var ErrUnsupported = errors.New("avc: unsupported field value")

// ErrTruncated reports a configuration record shorter than its counts declare.
var ErrTruncated = errors.New("avc: truncated configuration record")

type unsupported string

func (e unsupported) Error() string { return "avc: unsupported " + string(e) }

func (e unsupported) Is(target error) bool { return target == ErrUnsupported }

var (
	ErrProfile         error = unsupported("profile_idc")
	ErrPicOrderCntType error = unsupported("pic_order_cnt_type")
	ErrAspectRatioIdc  error = unsupported("aspect_ratio_idc")
	ErrOverscan        error = unsupported("overscan_info_present_flag")
	ErrVideoSignalType error = unsupported("video_signal_type_present_flag")
	ErrChromaLoc       error = unsupported("chroma_loc_info_present_flag")
	ErrNalHrd          error = unsupported("nal_hrd_parameters_present_flag")
	ErrVclHrd          error = unsupported("vcl_hrd_parameters_present_flag")
	ErrSliceGroups     error = unsupported("num_slice_groups_minus1")
	ErrNALUnitType     error = unsupported("nal_unit_type")
)
