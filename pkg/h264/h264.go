package h264

import "errors"

// http://www.itu.int/rec/T-REC-H.264

const (
	NALUTypeNonIDR     = 1 // Coded slice of a non-IDR picture
	NALUTypePartitionA = 2 // Coded slice data partition A
	NALUTypePartitionB = 3 // Coded slice data partition B
	NALUTypePartitionC = 4 // Coded slice data partition C
	NALUTypeIDR        = 5 // Coded slice of an IDR picture
	NALUTypeSEI        = 6 // Supplemental enhancement information
	NALUTypeSPS        = 7 // Sequence parameter set
	NALUTypePPS        = 8 // Picture parameter set
	NALUTypeAUD        = 9 // Access unit delimiter
	NALUTypeEOSeq      = 10
	NALUTypeEOStream   = 11
	NALUTypeFiller     = 12

	// 13..23 reserved, 24..31 unspecified, both discarded by the parser
	NALUTypeReservedFirst    = 13
	NALUTypeUnspecifiedFirst = 24
)

const (
	MaxSPSCount = 32
	MaxPPSCount = 256
)

const (
	ProfileBaseline         = 66
	ProfileMain             = 77
	ProfileExtended         = 88
	ProfileScalableBaseline = 83
	ProfileScalableHigh     = 86
	ProfileHigh             = 100
	ProfileHigh10           = 110
	ProfileHigh422          = 122
	ProfileHigh444          = 244
	ProfileCAVLC444         = 44
)

var ErrInvalidNALU = errors.New("h264: invalid nal unit")

// NALUType returns the nal_unit_type of an Annex B unit. The unit starts
// with a 2 or 3 zero byte prefix, then 0x01, then the header byte with
// forbidden_zero_bit clear.
func NALUType(b []byte) (byte, error) {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	if i < 2 || i > 3 || i == len(b) || b[i] != 1 || i+1 == len(b) {
		return 0, ErrInvalidNALU
	}
	hdr := b[i+1]
	if hdr&0x80 != 0 {
		return 0, ErrInvalidNALU
	}
	return hdr & 0x1F, nil
}

// IsSliceType reports whether the type carries coded picture data.
func IsSliceType(naluType byte) bool {
	return naluType >= NALUTypeNonIDR && naluType <= NALUTypeIDR
}

// IsKeyframe reports whether an Annex B access unit contains an IDR slice.
func IsKeyframe(b []byte) bool {
	for pos := NextStartCode(b, 0); pos >= 0; {
		next := NextStartCode(b, pos+4)
		unit := b[pos:]
		if next >= 0 {
			unit = b[pos:next]
		}
		if t, err := NALUType(unit); err == nil && t == NALUTypeIDR {
			return true
		}
		pos = next
	}
	return false
}

// ProfileName - human readable profile_idc.
func ProfileName(idc byte) string {
	switch idc {
	case ProfileBaseline:
		return "Baseline"
	case ProfileMain:
		return "Main"
	case ProfileExtended:
		return "Extended"
	case ProfileScalableBaseline:
		return "Scalable Baseline"
	case ProfileScalableHigh:
		return "Scalable High"
	case ProfileHigh:
		return "High"
	case ProfileHigh10:
		return "High 10"
	case ProfileHigh422:
		return "High 4:2:2"
	case ProfileHigh444:
		return "High 4:4:4"
	case ProfileCAVLC444:
		return "CAVLC 4:4:4"
	}
	return "Unknown"
}

// SliceType per 7.4.3, values 5..9 alias 0..4.
type SliceType uint32

const (
	SliceP SliceType = iota
	SliceB
	SliceI
	SliceSP
	SliceSI
)

func (s SliceType) String() string {
	switch s % 5 {
	case SliceP:
		return "P"
	case SliceB:
		return "B"
	case SliceI:
		return "I"
	case SliceSP:
		return "SP"
	case SliceSI:
		return "SI"
	}
	return "?"
}
