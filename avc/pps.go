package avc

import "fmt"

// PPS is a decoded picture parameter set. Slice groups are not supported.
type PPS struct {
	ID                                uint32 `json:"pic_parameter_set_id"`
	SPSID                             uint32 `json:"seq_parameter_set_id"`
	EntropyCodingMode                 bool   `json:"entropy_coding_mode_flag"`
	BottomFieldPicOrderInFramePresent bool   `json:"bottom_field_pic_order_in_frame_present_flag"`
	NumSliceGroupsMinus1              uint32 `json:"num_slice_groups_minus1"`
	NumRefIdxL0DefaultActiveMinus1    uint32 `json:"num_ref_idx_l0_default_active_minus1"`
	NumRefIdxL1DefaultActiveMinus1    uint32 `json:"num_ref_idx_l1_default_active_minus1"`
	WeightedPred                      bool   `json:"weighted_pred_flag"`
	WeightedBipredIdc                 uint8  `json:"weighted_bipred_idc"`
	PicInitQPMinus26                  int64  `json:"pic_init_qp_minus26"`
	PicInitQSMinus26                  int64  `json:"pic_init_qs_minus26"`
	ChromaQPIndexOffset               int64  `json:"chroma_qp_index_offset"`
	DeblockingFilterControlPresent    bool   `json:"deblocking_filter_control_present_flag"`
	ConstrainedIntraPred              bool   `json:"constrained_intra_pred_flag"`
	RedundantPicCntPresent            bool   `json:"redundant_pic_cnt_present_flag"`
}

// DecodePPS decodes a picture parameter set from its RBSP.
func DecodePPS(rbsp []byte) (*PPS, error) {
	f := newFields(rbsp)
	p := &PPS{}

	p.ID = f.ue()
	p.SPSID = f.ue()
	p.EntropyCodingMode = f.flag()
	p.BottomFieldPicOrderInFramePresent = f.flag()
	p.NumSliceGroupsMinus1 = f.ue()
	if f.err != nil {
		return nil, f.err
	}
	if p.NumSliceGroupsMinus1 > 0 {
		return nil, fmt.Errorf("%w %d", ErrSliceGroups, p.NumSliceGroupsMinus1)
	}

	p.NumRefIdxL0DefaultActiveMinus1 = f.ue()
	p.NumRefIdxL1DefaultActiveMinus1 = f.ue()
	p.WeightedPred = f.flag()
	p.WeightedBipredIdc = uint8(f.u(2))
	p.PicInitQPMinus26 = f.se()
	p.PicInitQSMinus26 = f.se()
	p.ChromaQPIndexOffset = f.se()
	p.DeblockingFilterControlPresent = f.flag()
	p.ConstrainedIntraPred = f.flag()
	p.RedundantPicCntPresent = f.flag()
	if f.err != nil {
		return nil, f.err
	}
	return p, nil
}
