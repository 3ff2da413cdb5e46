package h264

import (
	"github.com/espack/espack/pkg/bits"
)

// PPS holds the picture parameter set fields slice header parsing depends
// on. Entropy coding and quantization fields are consumed but not kept.
type PPS struct {
	ID    uint32
	SPSID uint32

	PicOrderPresent          bool // bottom_field_pic_order_in_frame_present_flag
	NumRefIdxL0DefaultActive uint32
	NumRefIdxL1DefaultActive uint32
	WeightedPred             bool
	WeightedBipredIDC        uint32
	RedundantPicCntPresent   bool
}

// ParsePPS decodes a picture parameter set from a full Annex B unit,
// start code included.
func ParsePPS(b []byte) (*PPS, error) {
	naluType, err := NALUType(b)
	if err != nil {
		return nil, err
	}
	if naluType != NALUTypePPS {
		return nil, ErrInvalidNALU
	}

	i := 0
	for b[i] == 0 {
		i++
	}
	r := bits.NewReader(b[i+2:])

	p := &PPS{}
	if p.ID, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	if p.ID >= MaxPPSCount {
		return nil, ErrBadParamSetID
	}

	if p.SPSID, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	if p.SPSID >= MaxSPSCount {
		return nil, ErrBadParamSetID
	}

	if _, err = r.ReadFlag(); err != nil { // entropy_coding_mode_flag
		return nil, err
	}
	if p.PicOrderPresent, err = r.ReadFlag(); err != nil {
		return nil, err
	}

	numSliceGroups, err := r.ReadUEGolomb()
	if err != nil {
		return nil, err
	}
	if numSliceGroups > 0 {
		if err = skipSliceGroupMap(r, numSliceGroups+1); err != nil {
			return nil, err
		}
	}

	var v uint32
	if v, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	p.NumRefIdxL0DefaultActive = v + 1

	if v, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	p.NumRefIdxL1DefaultActive = v + 1

	if p.WeightedPred, err = r.ReadFlag(); err != nil {
		return nil, err
	}
	if p.WeightedBipredIDC, err = r.ReadBits(2); err != nil {
		return nil, err
	}

	if _, err = r.ReadSEGolomb(); err != nil { // pic_init_qp_minus26
		return nil, err
	}
	if _, err = r.ReadSEGolomb(); err != nil { // pic_init_qs_minus26
		return nil, err
	}
	if _, err = r.ReadSEGolomb(); err != nil { // chroma_qp_index_offset
		return nil, err
	}

	if _, err = r.ReadFlag(); err != nil { // deblocking_filter_control_present_flag
		return nil, err
	}
	if _, err = r.ReadFlag(); err != nil { // constrained_intra_pred_flag
		return nil, err
	}
	if p.RedundantPicCntPresent, err = r.ReadFlag(); err != nil {
		return nil, err
	}

	// the rbsp may continue with 8x8 transform syntax, nothing here reads it

	return p, nil
}

// skipSliceGroupMap consumes the slice group map per 7.3.2.2. Only FMO
// streams carry it, but skipping must be exact to keep later fields aligned.
func skipSliceGroupMap(r *bits.Reader, numSliceGroups uint32) error {
	mapType, err := r.ReadUEGolomb()
	if err != nil {
		return err
	}

	switch mapType {
	case 0:
		for i := uint32(0); i < numSliceGroups; i++ {
			if _, err = r.ReadUEGolomb(); err != nil { // run_length_minus1
				return err
			}
		}
	case 2:
		for i := uint32(0); i < numSliceGroups-1; i++ {
			if _, err = r.ReadUEGolomb(); err != nil { // top_left
				return err
			}
			if _, err = r.ReadUEGolomb(); err != nil { // bottom_right
				return err
			}
		}
	case 3, 4, 5:
		if _, err = r.ReadFlag(); err != nil { // slice_group_change_direction_flag
			return err
		}
		if _, err = r.ReadUEGolomb(); err != nil { // slice_group_change_rate_minus1
			return err
		}
	case 6:
		size, err := r.ReadUEGolomb()
		if err != nil {
			return err
		}
		width := bitWidth(numSliceGroups - 1)
		for i := uint32(0); i <= size; i++ {
			if _, err = r.ReadBits(width); err != nil {
				return err
			}
		}
	}

	return nil
}

// bitWidth - ceil(log2(v+1)), bits needed to hold v.
func bitWidth(v uint32) (n byte) {
	for ; v != 0; v >>= 1 {
		n++
	}
	return
}
