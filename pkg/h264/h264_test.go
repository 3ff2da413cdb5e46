package h264

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espack/espack/pkg/bits"
)

// nalu prefixes a four byte start code and the nal header.
func nalu(refIdc, naluType byte, rbsp []byte) []byte {
	b := []byte{0, 0, 0, 1, refIdc<<5 | naluType}
	return append(b, rbsp...)
}

// testSPS builds a Baseline SPS with pic_order_cnt_type 2 and the given
// macroblock grid and crops.
func testSPS(id, widthMbs, heightMapUnits, cropBottom uint32) []byte {
	return testSPSCropped(id, widthMbs, heightMapUnits, 0, cropBottom)
}

func testSPSCropped(id, widthMbs, heightMapUnits, cropLR, cropBottom uint32) []byte {
	w := bits.NewWriter()
	w.WriteBits(ProfileBaseline, 8)
	w.WriteBits(0, 8)  // constraint flags
	w.WriteBits(30, 8) // level_idc
	w.WriteUEGolomb(id)
	w.WriteUEGolomb(0) // log2_max_frame_num_minus4
	w.WriteUEGolomb(2) // pic_order_cnt_type
	w.WriteUEGolomb(1) // max_num_ref_frames
	w.WriteBit(0)      // gaps_in_frame_num_value_allowed_flag
	w.WriteUEGolomb(widthMbs - 1)
	w.WriteUEGolomb(heightMapUnits - 1)
	w.WriteBit(1) // frame_mbs_only_flag
	w.WriteBit(0) // direct_8x8_inference_flag
	if cropLR != 0 || cropBottom != 0 {
		w.WriteBit(1)
		w.WriteUEGolomb(cropLR)
		w.WriteUEGolomb(cropLR)
		w.WriteUEGolomb(0)
		w.WriteUEGolomb(cropBottom)
	} else {
		w.WriteBit(0)
	}
	w.WriteBit(0) // vui_parameters_present_flag
	w.WriteBit(1) // rbsp stop bit
	return nalu(3, NALUTypeSPS, w.Bytes())
}

func testPPS(id, spsID uint32) []byte {
	return testPPSFlags(id, spsID, false)
}

func testPPSFlags(id, spsID uint32, redundantPresent bool) []byte {
	w := bits.NewWriter()
	w.WriteUEGolomb(id)
	w.WriteUEGolomb(spsID)
	w.WriteBit(0)      // entropy_coding_mode_flag
	w.WriteBit(0)      // bottom_field_pic_order_in_frame_present_flag
	w.WriteUEGolomb(0) // num_slice_groups_minus1
	w.WriteUEGolomb(0) // num_ref_idx_l0_default_active_minus1
	w.WriteUEGolomb(0) // num_ref_idx_l1_default_active_minus1
	w.WriteBit(0)      // weighted_pred_flag
	w.WriteBits(0, 2)  // weighted_bipred_idc
	w.WriteSEGolomb(0) // pic_init_qp_minus26
	w.WriteSEGolomb(0) // pic_init_qs_minus26
	w.WriteSEGolomb(0) // chroma_qp_index_offset
	w.WriteBit(0)      // deblocking_filter_control_present_flag
	w.WriteBit(0)      // constrained_intra_pred_flag
	if redundantPresent {
		w.WriteBit(1) // redundant_pic_cnt_present_flag
	} else {
		w.WriteBit(0)
	}
	w.WriteBit(1) // rbsp stop bit
	return nalu(3, NALUTypePPS, w.Bytes())
}

// testIDRSlice builds an IDR I slice header for the testSPS/testPPS pair,
// followed by filler standing in for slice data.
func testIDRSlice(ppsID, frameNum, idrPicID uint32) []byte {
	w := bits.NewWriter()
	w.WriteUEGolomb(0) // first_mb_in_slice
	w.WriteUEGolomb(uint32(SliceI))
	w.WriteUEGolomb(ppsID)
	w.WriteBits(frameNum, 4)
	w.WriteUEGolomb(idrPicID)
	w.WriteBits(0, 2) // dec_ref_pic_marking
	w.WriteBits(0xAAAA, 16)
	return nalu(3, NALUTypeIDR, w.Bytes())
}

func testPSlice(ppsID, frameNum uint32) []byte {
	w := bits.NewWriter()
	w.WriteUEGolomb(0) // first_mb_in_slice
	w.WriteUEGolomb(uint32(SliceP))
	w.WriteUEGolomb(ppsID)
	w.WriteBits(frameNum, 4)
	w.WriteBit(0) // num_ref_idx_active_override_flag
	w.WriteBit(0) // ref_pic_list_modification_flag_l0
	w.WriteBit(0) // adaptive_ref_pic_marking_mode_flag
	w.WriteBits(0xAAAA, 16)
	return nalu(3, NALUTypeNonIDR, w.Bytes())
}

// testPSliceRedundant is testPSlice for a PPS with
// redundant_pic_cnt_present_flag set.
func testPSliceRedundant(ppsID, frameNum, redundant uint32) []byte {
	w := bits.NewWriter()
	w.WriteUEGolomb(0) // first_mb_in_slice
	w.WriteUEGolomb(uint32(SliceP))
	w.WriteUEGolomb(ppsID)
	w.WriteBits(frameNum, 4)
	w.WriteUEGolomb(redundant) // redundant_pic_cnt
	w.WriteBit(0)              // num_ref_idx_active_override_flag
	w.WriteBit(0)              // ref_pic_list_modification_flag_l0
	w.WriteBit(0)              // adaptive_ref_pic_marking_mode_flag
	w.WriteBits(0xAAAA, 16)
	return nalu(3, NALUTypeNonIDR, w.Bytes())
}

func TestNextStartCode(t *testing.T) {
	b := []byte{0, 0, 0, 1, 0xAA, 0, 0, 1, 0xBB}
	assert.Equal(t, 1, NextStartCode(b, 0))
	assert.Equal(t, 5, NextStartCode(b, 4))
	assert.Equal(t, -1, NextStartCode(b, 6))

	assert.Equal(t, -1, NextStartCode([]byte{0, 0, 1}, 0), "no payload byte after the code")
	assert.Equal(t, -1, NextStartCode([]byte{0xAA, 0xBB, 0xCC}, 0))
}

func TestNALUType(t *testing.T) {
	v, err := NALUType([]byte{0, 0, 1, 0x65, 0xFF})
	require.Nil(t, err)
	assert.Equal(t, byte(NALUTypeIDR), v)

	v, err = NALUType([]byte{0, 0, 0, 1, 0x41, 0xFF})
	require.Nil(t, err)
	assert.Equal(t, byte(NALUTypeNonIDR), v)

	_, err = NALUType([]byte{0, 1, 0x65})
	assert.Equal(t, ErrInvalidNALU, err)
	_, err = NALUType([]byte{0, 0, 0, 0, 1, 0x65})
	assert.Equal(t, ErrInvalidNALU, err)
	_, err = NALUType([]byte{0, 0, 1, 0x80 | 0x65})
	assert.Equal(t, ErrInvalidNALU, err, "forbidden bit set")
}

func TestIsKeyframe(t *testing.T) {
	idr := concat(testSPS(0, 120, 68, 8), testPPS(0, 0), testIDRSlice(0, 0, 0))
	assert.True(t, IsKeyframe(idr))
	assert.False(t, IsKeyframe(testPSlice(0, 1)))
	assert.False(t, IsKeyframe([]byte{0xAA, 0xBB}))
}

func TestDecodeAVCC(t *testing.T) {
	avcc := []byte{0, 0, 0, 3, 0x65, 0xAA, 0xBB, 0, 0, 0, 1, 0x41}
	want := []byte{0, 0, 0, 1, 0x65, 0xAA, 0xBB, 0, 0, 0, 1, 0x41}

	keep := append([]byte(nil), avcc...)
	assert.Equal(t, want, DecodeAVCC(keep, true))
	assert.Equal(t, avcc, keep, "clone leaves the source intact")

	assert.Equal(t, want, DecodeAVCC(keep, false))
	assert.Equal(t, want, keep, "rewritten in place")

	joined := JoinAnnexB([]byte{0x67, 0x42}, []byte{0x68, 0xCE})
	assert.Equal(t, []byte{0, 0, 0, 1, 0x67, 0x42, 0, 0, 0, 1, 0x68, 0xCE}, joined)
}

func TestParseSPS(t *testing.T) {
	sps, err := ParseSPS(testSPS(0, 120, 68, 4))
	require.Nil(t, err)

	assert.Equal(t, byte(ProfileBaseline), sps.ProfileIDC)
	assert.Equal(t, uint32(0), sps.ID)
	assert.Equal(t, byte(4), sps.Log2MaxFrameNum)
	assert.Equal(t, uint32(2), sps.PicOrderCntType)
	assert.Equal(t, uint32(1), sps.NumRefFrames)

	g := sps.Geometry()
	assert.Equal(t, 1920, g.PaddedWidth)
	assert.Equal(t, 1088, g.PaddedHeight)
	assert.Equal(t, 1920, g.TrueWidth)
	assert.Equal(t, 1080, g.TrueHeight)
	assert.Equal(t, 0, g.CropTop)

	// no crop at all: true size equals the padded grid
	sps, err = ParseSPS(testSPS(0, 120, 68, 0))
	require.Nil(t, err)
	g = sps.Geometry()
	assert.Equal(t, 1920, g.TrueWidth)
	assert.Equal(t, 1088, g.TrueHeight)

	// symmetric horizontal crop of 2 takes 8 luma samples total
	sps, err = ParseSPS(testSPSCropped(0, 120, 68, 2, 0))
	require.Nil(t, err)
	g = sps.Geometry()
	assert.Equal(t, 1920-8, g.TrueWidth)
	assert.Equal(t, 4, g.CropLeft)
}

func TestParseSPSReal(t *testing.T) {
	tests := []struct {
		name   string
		sps    string
		width  int
		height int
	}{
		{"Amcrest AD410", "Z0IAMukAUAHjQgAAB9IAAOqcCAA=", 2560, 1920},
		{"Sonoff", "R00AKZmgHgCJ+WEAAAMD6AAATiCE", 1920, 1080},
		{"Dahua", "Z01AMqaAKAC1kAA=", 2560, 1440},
		{"Reolink", "Z2QAM6wVFKAoAPGQ", 2560, 1920},
	}

	for _, test := range tests {
		raw, err := base64.StdEncoding.DecodeString(test.sps)
		require.Nil(t, err, test.name)

		sps, err := ParseSPS(append([]byte{0, 0, 0, 1}, raw...))
		require.Nil(t, err, test.name)

		g := sps.Geometry()
		assert.Equal(t, test.width, g.TrueWidth, test.name)
		assert.Equal(t, test.height, g.TrueHeight, test.name)
	}
}

// Scalable profiles carry the high profile chroma/bit-depth syntax.
func TestParseSPSScalableProfile(t *testing.T) {
	w := bits.NewWriter()
	w.WriteBits(ProfileScalableBaseline, 8)
	w.WriteBits(0, 8)  // constraint flags
	w.WriteBits(30, 8) // level_idc
	w.WriteUEGolomb(0) // seq_parameter_set_id
	w.WriteUEGolomb(1) // chroma_format_idc 4:2:0
	w.WriteUEGolomb(0) // bit_depth_luma_minus8
	w.WriteUEGolomb(0) // bit_depth_chroma_minus8
	w.WriteBit(0)      // qpprime_y_zero_transform_bypass_flag
	w.WriteBit(0)      // seq_scaling_matrix_present_flag
	w.WriteUEGolomb(0) // log2_max_frame_num_minus4
	w.WriteUEGolomb(2) // pic_order_cnt_type
	w.WriteUEGolomb(1) // max_num_ref_frames
	w.WriteBit(0)      // gaps_in_frame_num_value_allowed_flag
	w.WriteUEGolomb(119)
	w.WriteUEGolomb(67)
	w.WriteBit(1) // frame_mbs_only_flag
	w.WriteBit(0) // direct_8x8_inference_flag
	w.WriteBit(0) // frame_cropping_flag
	w.WriteBit(0) // vui_parameters_present_flag
	w.WriteBit(1) // rbsp stop bit

	sps, err := ParseSPS(nalu(3, NALUTypeSPS, w.Bytes()))
	require.Nil(t, err)
	assert.Equal(t, byte(ProfileScalableBaseline), sps.ProfileIDC)
	assert.Equal(t, "Scalable Baseline", ProfileName(sps.ProfileIDC))
	assert.Equal(t, 1920, sps.Geometry().TrueWidth)
}

func TestParseSPSUnknownProfile(t *testing.T) {
	b := testSPS(0, 120, 68, 0)
	b[5] = 33 // profile_idc nothing defines
	_, err := ParseSPS(b)
	assert.Equal(t, ErrUnknownProfile, err)
}

func TestParsePPS(t *testing.T) {
	pps, err := ParsePPS(testPPS(3, 0))
	require.Nil(t, err)
	assert.Equal(t, uint32(3), pps.ID)
	assert.Equal(t, uint32(0), pps.SPSID)
	assert.Equal(t, uint32(1), pps.NumRefIdxL0DefaultActive)
	assert.False(t, pps.WeightedPred)
	assert.False(t, pps.RedundantPicCntPresent)
}

func TestSliceHeader(t *testing.T) {
	sps, err := ParseSPS(testSPS(0, 120, 68, 0))
	require.Nil(t, err)
	pps, err := ParsePPS(testPPS(0, 0))
	require.Nil(t, err)

	b := testIDRSlice(0, 0, 7)
	hdr, err := ParseSliceHeader(b)
	require.Nil(t, err)
	assert.True(t, hdr.IDR)
	assert.Equal(t, SliceI, hdr.Type)
	assert.Equal(t, uint32(0), hdr.PPSID)

	require.Nil(t, hdr.ParseRest(b, sps, pps))
	assert.Equal(t, uint32(7), hdr.IdrPicID)
	assert.Equal(t, uint32(0), hdr.FrameNum)
	assert.False(t, hdr.FieldPic)

	b2 := testPSlice(0, 1)
	hdr2, err := ParseSliceHeader(b2)
	require.Nil(t, err)
	require.Nil(t, hdr2.ParseRest(b2, sps, pps))
	assert.False(t, hdr2.IDR)
	assert.Equal(t, uint32(1), hdr2.FrameNum)
}

func TestDifferentPictures(t *testing.T) {
	sps, err := ParseSPS(testSPS(0, 120, 68, 0))
	require.Nil(t, err)
	pps, err := ParsePPS(testPPS(0, 0))
	require.Nil(t, err)

	parse := func(b []byte) *SliceHeader {
		h, err := ParseSliceHeader(b)
		require.Nil(t, err)
		require.Nil(t, h.ParseRest(b, sps, pps))
		return h
	}

	a := parse(testPSlice(0, 1))
	assert.False(t, DifferentPictures(a, parse(testPSlice(0, 1))))
	assert.True(t, DifferentPictures(a, parse(testPSlice(0, 2))), "frame_num differs")
	assert.True(t, DifferentPictures(a, parse(testIDRSlice(0, 1, 0))), "idr flag differs")

	i1 := parse(testIDRSlice(0, 0, 1))
	i2 := parse(testIDRSlice(0, 0, 2))
	assert.True(t, DifferentPictures(i1, i2), "idr_pic_id differs")
}

// A redundant slice repeats every boundary field of its primary except
// redundant_pic_cnt, so that field alone must split the pictures.
func TestDifferentPicturesRedundant(t *testing.T) {
	sps, err := ParseSPS(testSPS(0, 120, 68, 0))
	require.Nil(t, err)
	pps, err := ParsePPS(testPPSFlags(0, 0, true))
	require.Nil(t, err)
	require.True(t, pps.RedundantPicCntPresent)

	parse := func(b []byte) *SliceHeader {
		h, err := ParseSliceHeader(b)
		require.Nil(t, err)
		require.Nil(t, h.ParseRest(b, sps, pps))
		return h
	}

	primary := parse(testPSliceRedundant(0, 1, 0))
	redundant := parse(testPSliceRedundant(0, 1, 1))
	assert.Equal(t, uint32(1), redundant.RedundantPicCnt)

	assert.True(t, DifferentPictures(primary, redundant))
	assert.False(t, DifferentPictures(primary, parse(testPSliceRedundant(0, 1, 0))))
}

func TestParamStore(t *testing.T) {
	var store ParamStore

	raw := testSPS(0, 120, 68, 0)
	info, err := ParseSPS(raw)
	require.Nil(t, err)

	assert.True(t, store.UpdateSPS(raw, info))
	assert.False(t, store.UpdateSPS(raw, info), "verbatim repeat is not a change")

	got, gotRaw := store.SPS(0)
	require.NotNil(t, got)
	assert.Equal(t, raw, gotRaw)

	raw2 := testSPS(0, 80, 45, 0)
	info2, err := ParseSPS(raw2)
	require.Nil(t, err)
	assert.True(t, store.UpdateSPS(raw2, info2))

	missing, _ := store.SPS(1)
	assert.Nil(t, missing)
	missingPPS, _ := store.PPS(0)
	assert.Nil(t, missingPPS)
}
