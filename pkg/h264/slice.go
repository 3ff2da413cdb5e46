package h264

import (
	"github.com/espack/espack/pkg/bits"
)

// SliceHeader carries the slice header fields that decide picture
// boundaries per 7.4.1.2.4, plus the fields the stream parser needs to
// shape packs. POC fields stay zero when the active SPS does not use them,
// so whole-field comparison is safe.
type SliceHeader struct {
	RefIdc   byte
	NALUType byte
	IDR      bool

	Type  SliceType
	PPSID uint32

	FrameNum    uint32
	FieldPic    bool
	BottomField bool

	IdrPicID uint32

	PicOrderCntLsb         uint32
	DeltaPicOrderCntBottom int32
	DeltaPicOrderCnt       [2]int32

	RedundantPicCnt uint32

	// MMCO5 records a memory_management_control_operation 5, which resets
	// frame numbering and matters for boundary detection on the next slice.
	MMCO5 bool
}

// ParseSliceHeader reads the part of a slice header that needs no
// parameter sets: enough to learn which PPS the slice activates. The
// caller resolves the sets and finishes with ParseRest.
func ParseSliceHeader(b []byte) (*SliceHeader, error) {
	naluType, err := NALUType(b)
	if err != nil {
		return nil, err
	}
	if !IsSliceType(naluType) {
		return nil, ErrInvalidNALU
	}

	i := 0
	for b[i] == 0 {
		i++
	}

	h := &SliceHeader{
		RefIdc:   b[i+1] >> 5,
		NALUType: naluType,
		IDR:      naluType == NALUTypeIDR,
	}

	r := bits.NewReader(b[i+2:])
	if _, err = r.ReadUEGolomb(); err != nil { // first_mb_in_slice
		return nil, err
	}

	var v uint32
	if v, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	h.Type = SliceType(v)

	if h.PPSID, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	if h.PPSID >= MaxPPSCount {
		return nil, ErrBadParamSetID
	}

	return h, nil
}

// ParseRest finishes the slice header once the parameter sets are known.
// It re-reads from the start of the unit, bit positions past slice_type
// depend on the sets anyway. Values past the boundary-relevant fields are
// consumed to verify the header is well formed, then discarded.
func (h *SliceHeader) ParseRest(b []byte, sps *SPS, pps *PPS) error {
	i := 0
	for b[i] == 0 {
		i++
	}
	r := bits.NewReader(b[i+2:])

	var err error
	if _, err = r.ReadUEGolomb(); err != nil { // first_mb_in_slice
		return err
	}
	if _, err = r.ReadUEGolomb(); err != nil { // slice_type, kept from phase one
		return err
	}
	if _, err = r.ReadUEGolomb(); err != nil { // pic_parameter_set_id
		return err
	}

	if sps.SeparateColourPlaneFlag {
		if _, err = r.ReadBits(2); err != nil { // colour_plane_id
			return err
		}
	}

	if h.FrameNum, err = r.ReadBits(sps.Log2MaxFrameNum); err != nil {
		return err
	}

	if !sps.FrameMbsOnly {
		if h.FieldPic, err = r.ReadFlag(); err != nil {
			return err
		}
		if h.FieldPic {
			if h.BottomField, err = r.ReadFlag(); err != nil {
				return err
			}
		}
	}

	if h.IDR {
		if h.IdrPicID, err = r.ReadUEGolomb(); err != nil {
			return err
		}
	}

	switch sps.PicOrderCntType {
	case 0:
		if h.PicOrderCntLsb, err = r.ReadBits(sps.Log2MaxPicOrderCntLsb); err != nil {
			return err
		}
		if pps.PicOrderPresent && !h.FieldPic {
			if h.DeltaPicOrderCntBottom, err = r.ReadSEGolomb(); err != nil {
				return err
			}
		}
	case 1:
		if !sps.DeltaPicOrderAlwaysZero {
			if h.DeltaPicOrderCnt[0], err = r.ReadSEGolomb(); err != nil {
				return err
			}
			if pps.PicOrderPresent && !h.FieldPic {
				if h.DeltaPicOrderCnt[1], err = r.ReadSEGolomb(); err != nil {
					return err
				}
			}
		}
	}

	if pps.RedundantPicCntPresent {
		if h.RedundantPicCnt, err = r.ReadUEGolomb(); err != nil {
			return err
		}
	}

	return h.parseTail(r, sps, pps)
}

// parseTail walks reference picture list modifications, prediction weight
// tables and decoded reference picture marking. Only mmco 5 is recorded.
func (h *SliceHeader) parseTail(r *bits.Reader, sps *SPS, pps *PPS) error {
	sliceType := h.Type % 5
	var err error

	if sliceType == SliceB {
		if _, err = r.ReadFlag(); err != nil { // direct_spatial_mv_pred_flag
			return err
		}
	}

	numRefIdxL0 := pps.NumRefIdxL0DefaultActive
	numRefIdxL1 := pps.NumRefIdxL1DefaultActive

	if sliceType == SliceP || sliceType == SliceSP || sliceType == SliceB {
		var override bool
		if override, err = r.ReadFlag(); err != nil {
			return err
		}
		if override {
			var v uint32
			if v, err = r.ReadUEGolomb(); err != nil {
				return err
			}
			numRefIdxL0 = v + 1
			if sliceType == SliceB {
				if v, err = r.ReadUEGolomb(); err != nil {
					return err
				}
				numRefIdxL1 = v + 1
			}
		}

		if err = skipRefPicListReordering(r); err != nil {
			return err
		}
		if sliceType == SliceB {
			if err = skipRefPicListReordering(r); err != nil {
				return err
			}
		}
	}

	weighted := (pps.WeightedPred && (sliceType == SliceP || sliceType == SliceSP)) ||
		(pps.WeightedBipredIDC == 1 && sliceType == SliceB)
	if weighted {
		chroma := sps.ChromaArrayType() != 0
		if err = skipPredWeightTable(r, numRefIdxL0, chroma); err != nil {
			return err
		}
		if sliceType == SliceB {
			if err = skipPredWeightTable(r, numRefIdxL1, chroma); err != nil {
				return err
			}
		}
	}

	if h.RefIdc != 0 {
		if err = h.parseDecRefPicMarking(r); err != nil {
			return err
		}
	}

	// entropy coding init, qp and deblocking follow, nothing reads them

	return nil
}

func skipRefPicListReordering(r *bits.Reader) error {
	flag, err := r.ReadFlag()
	if err != nil || !flag {
		return err
	}

	for {
		idc, err := r.ReadUEGolomb()
		if err != nil {
			return err
		}
		if idc == 3 {
			return nil
		}
		if idc > 3 {
			return ErrInvalidNALU
		}
		// abs_diff_pic_num_minus1 or long_term_pic_num
		if _, err = r.ReadUEGolomb(); err != nil {
			return err
		}
	}
}

func skipPredWeightTable(r *bits.Reader, numRefIdx uint32, chroma bool) error {
	var err error
	if _, err = r.ReadUEGolomb(); err != nil { // luma_log2_weight_denom
		return err
	}
	if chroma {
		if _, err = r.ReadUEGolomb(); err != nil { // chroma_log2_weight_denom
			return err
		}
	}

	for i := uint32(0); i < numRefIdx; i++ {
		var flag bool
		if flag, err = r.ReadFlag(); err != nil {
			return err
		}
		if flag {
			if _, err = r.ReadSEGolomb(); err != nil { // luma_weight
				return err
			}
			if _, err = r.ReadSEGolomb(); err != nil { // luma_offset
				return err
			}
		}

		if chroma {
			if flag, err = r.ReadFlag(); err != nil {
				return err
			}
			if flag {
				for j := 0; j < 4; j++ { // chroma weight and offset per plane
					if _, err = r.ReadSEGolomb(); err != nil {
						return err
					}
				}
			}
		}
	}

	return nil
}

func (h *SliceHeader) parseDecRefPicMarking(r *bits.Reader) error {
	if h.IDR {
		// no_output_of_prior_pics_flag, long_term_reference_flag
		_, err := r.ReadBits(2)
		return err
	}

	adaptive, err := r.ReadFlag()
	if err != nil || !adaptive {
		return err
	}

	for {
		mmco, err := r.ReadUEGolomb()
		if err != nil {
			return err
		}
		switch mmco {
		case 0:
			return nil
		case 5:
			h.MMCO5 = true
		case 1, 2, 3, 4, 6:
			if _, err = r.ReadUEGolomb(); err != nil {
				return err
			}
			if mmco == 3 { // difference_of_pic_nums and long_term_frame_idx
				if _, err = r.ReadUEGolomb(); err != nil {
					return err
				}
			}
		default:
			return ErrInvalidNALU
		}
	}
}

// DifferentPictures applies the first-slice detection rules of 7.4.1.2.4:
// it reports whether two slice headers cannot belong to the same coded
// picture.
func DifferentPictures(a, b *SliceHeader) bool {
	if a.FrameNum != b.FrameNum ||
		a.PPSID != b.PPSID ||
		a.FieldPic != b.FieldPic ||
		a.BottomField != b.BottomField {
		return true
	}
	if a.RefIdc != b.RefIdc {
		return true
	}
	if a.IDR != b.IDR {
		return true
	}
	if a.IDR && a.IdrPicID != b.IdrPicID {
		return true
	}
	if a.PicOrderCntLsb != b.PicOrderCntLsb ||
		a.DeltaPicOrderCntBottom != b.DeltaPicOrderCntBottom {
		return true
	}
	if a.DeltaPicOrderCnt != b.DeltaPicOrderCnt {
		return true
	}
	// slices sharing every field above but differing here split into a
	// primary and a redundant coded picture
	if a.RedundantPicCnt != b.RedundantPicCnt {
		return true
	}
	return false
}
