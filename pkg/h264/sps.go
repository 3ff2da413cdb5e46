package h264

import (
	"errors"
	"fmt"

	"github.com/espack/espack/pkg/bits"
	"github.com/espack/espack/pkg/pack"
)

var (
	ErrUnknownProfile = errors.New("h264: unknown profile_idc")
	ErrBadParamSetID  = errors.New("h264: parameter set id out of range")
)

// SPS holds the sequence parameter set fields the pipeline needs: picture
// geometry, POC configuration for boundary detection, and reference frame
// bounds. VUI is not consumed, nothing downstream reads it.
type SPS struct {
	ProfileIDC byte
	LevelIDC   byte
	ID         uint32

	ChromaFormatIDC         uint32
	SeparateColourPlaneFlag bool

	Log2MaxFrameNum         byte // log2_max_frame_num_minus4 + 4
	PicOrderCntType         uint32
	Log2MaxPicOrderCntLsb   byte // log2_max_pic_order_cnt_lsb_minus4 + 4
	DeltaPicOrderAlwaysZero bool

	NumRefFrames uint32

	PicWidthInMbs        uint32 // pic_width_in_mbs_minus1 + 1
	PicHeightInMapUnits  uint32 // pic_height_in_map_units_minus1 + 1
	FrameMbsOnly         bool
	MbAdaptiveFrameField bool

	CropLeft   uint32
	CropRight  uint32
	CropTop    uint32
	CropBottom uint32
}

// ChromaArrayType per 7.4.2.1.1: zero when colour planes are coded
// separately, otherwise chroma_format_idc.
func (s *SPS) ChromaArrayType() uint32 {
	if s.SeparateColourPlaneFlag {
		return 0
	}
	return s.ChromaFormatIDC
}

// Geometry derives the decoded frame layout per 7.4.2.1: the padded size is
// the coded macroblock grid, crops are in luma samples (doubled vertically
// for field coded content), and the true size is what remains.
func (s *SPS) Geometry() pack.Geometry {
	heightScale := 1
	cropScaleY := 2
	if !s.FrameMbsOnly {
		heightScale = 2
		cropScaleY = 4
	}

	paddedW := int(s.PicWidthInMbs) * 16
	paddedH := int(s.PicHeightInMapUnits) * 16 * heightScale

	cropL := 2 * int(s.CropLeft)
	cropR := 2 * int(s.CropRight)
	cropT := cropScaleY * int(s.CropTop)
	cropB := cropScaleY * int(s.CropBottom)

	return pack.Geometry{
		PaddedWidth:  paddedW,
		PaddedHeight: paddedH,
		TrueWidth:    paddedW - cropL - cropR,
		TrueHeight:   paddedH - cropT - cropB,
		CropLeft:     cropL,
		CropTop:      cropT,
	}
}

func (s *SPS) String() string {
	g := s.Geometry()
	return fmt.Sprintf(
		"%s %d.%d, %dx%d",
		ProfileName(s.ProfileIDC), s.LevelIDC/10, s.LevelIDC%10, g.TrueWidth, g.TrueHeight,
	)
}

// ParseSPS decodes a sequence parameter set from a full Annex B unit,
// start code included. Unknown profiles fail closed: guessing at the
// syntax past the profile branch would corrupt every later field.
func ParseSPS(b []byte) (*SPS, error) {
	naluType, err := NALUType(b)
	if err != nil {
		return nil, err
	}
	if naluType != NALUTypeSPS {
		return nil, ErrInvalidNALU
	}

	i := 0
	for b[i] == 0 {
		i++
	}
	r := bits.NewReader(b[i+2:]) // past 0x01 and the nal header

	s := &SPS{}
	profile, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	s.ProfileIDC = byte(profile)

	if _, err = r.ReadBits(8); err != nil { // constraint flags + reserved
		return nil, err
	}
	level, err := r.ReadBits(8)
	if err != nil {
		return nil, err
	}
	s.LevelIDC = byte(level)

	if s.ID, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	if s.ID >= MaxSPSCount {
		return nil, ErrBadParamSetID
	}

	s.ChromaFormatIDC = 1 // 4:2:0 unless the high profile branch says else

	switch s.ProfileIDC {
	case ProfileHigh, ProfileHigh10, ProfileHigh422, ProfileHigh444, ProfileCAVLC444,
		ProfileScalableBaseline, ProfileScalableHigh:
		if s.ChromaFormatIDC, err = r.ReadUEGolomb(); err != nil {
			return nil, err
		}

		n := 8
		if s.ChromaFormatIDC == 3 {
			if s.SeparateColourPlaneFlag, err = r.ReadFlag(); err != nil {
				return nil, err
			}
			n = 12
		}

		if _, err = r.ReadUEGolomb(); err != nil { // bit_depth_luma_minus8
			return nil, err
		}
		if _, err = r.ReadUEGolomb(); err != nil { // bit_depth_chroma_minus8
			return nil, err
		}
		if _, err = r.ReadFlag(); err != nil { // qpprime_y_zero_transform_bypass_flag
			return nil, err
		}

		var present bool
		if present, err = r.ReadFlag(); err != nil {
			return nil, err
		}
		if present {
			for i := 0; i < n; i++ {
				var listPresent bool
				if listPresent, err = r.ReadFlag(); err != nil {
					return nil, err
				}
				if listPresent {
					size := 16
					if i >= 6 {
						size = 64
					}
					if err = skipScalingList(r, size); err != nil {
						return nil, err
					}
				}
			}
		}

	case ProfileBaseline, ProfileMain, ProfileExtended:
		// no extra syntax before log2_max_frame_num

	default:
		return nil, ErrUnknownProfile
	}

	v, err := r.ReadUEGolomb()
	if err != nil {
		return nil, err
	}
	s.Log2MaxFrameNum = byte(v) + 4

	if s.PicOrderCntType, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	switch s.PicOrderCntType {
	case 0:
		if v, err = r.ReadUEGolomb(); err != nil {
			return nil, err
		}
		s.Log2MaxPicOrderCntLsb = byte(v) + 4
	case 1:
		if s.DeltaPicOrderAlwaysZero, err = r.ReadFlag(); err != nil {
			return nil, err
		}
		if _, err = r.ReadSEGolomb(); err != nil { // offset_for_non_ref_pic
			return nil, err
		}
		if _, err = r.ReadSEGolomb(); err != nil { // offset_for_top_to_bottom_field
			return nil, err
		}
		var cycle uint32
		if cycle, err = r.ReadUEGolomb(); err != nil {
			return nil, err
		}
		for i := uint32(0); i < cycle; i++ {
			if _, err = r.ReadSEGolomb(); err != nil {
				return nil, err
			}
		}
	}

	if s.NumRefFrames, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	if _, err = r.ReadFlag(); err != nil { // gaps_in_frame_num_value_allowed_flag
		return nil, err
	}

	if v, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	s.PicWidthInMbs = v + 1

	if v, err = r.ReadUEGolomb(); err != nil {
		return nil, err
	}
	s.PicHeightInMapUnits = v + 1

	if s.FrameMbsOnly, err = r.ReadFlag(); err != nil {
		return nil, err
	}
	if !s.FrameMbsOnly {
		if s.MbAdaptiveFrameField, err = r.ReadFlag(); err != nil {
			return nil, err
		}
	}

	if _, err = r.ReadFlag(); err != nil { // direct_8x8_inference_flag
		return nil, err
	}

	cropping, err := r.ReadFlag()
	if err != nil {
		return nil, err
	}
	if cropping {
		if s.CropLeft, err = r.ReadUEGolomb(); err != nil {
			return nil, err
		}
		if s.CropRight, err = r.ReadUEGolomb(); err != nil {
			return nil, err
		}
		if s.CropTop, err = r.ReadUEGolomb(); err != nil {
			return nil, err
		}
		if s.CropBottom, err = r.ReadUEGolomb(); err != nil {
			return nil, err
		}
	}

	// vui_parameters_present_flag and everything after is not needed

	return s, nil
}

// skipScalingList consumes a scaling_list without keeping the weights,
// only the delta run-length matters for staying in sync.
func skipScalingList(r *bits.Reader, size int) error {
	lastScale := int32(8)
	nextScale := int32(8)
	for i := 0; i < size; i++ {
		if nextScale != 0 {
			delta, err := r.ReadSEGolomb()
			if err != nil {
				return err
			}
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}
