package vp8

import "errors"

// https://datatracker.ietf.org/doc/html/rfc6386

var (
	ErrTruncated    = errors.New("vp8: frame too short")
	ErrHiddenFrame  = errors.New("vp8: frame not meant for display")
	ErrBadStartCode = errors.New("vp8: bad keyframe start code")
)

// FrameHeader is the uncompressed data chunk in front of every VP8 frame.
type FrameHeader struct {
	Keyframe  bool
	Version   byte
	ShowFrame bool
	Width     int
	Height    int
}

// ParseFrameHeader reads the 3-byte frame tag and, on keyframes, the
// 7-byte start code and dimensions that follow. The frame type bit is
// inverted relative to every other flag in the format: zero means keyframe.
func ParseFrameHeader(b []byte) (*FrameHeader, error) {
	if len(b) < 3 {
		return nil, ErrTruncated
	}

	tag := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16

	h := &FrameHeader{
		Keyframe:  tag&1 == 0,
		Version:   byte(tag >> 1 & 0b111),
		ShowFrame: tag>>4&1 != 0,
	}

	if !h.ShowFrame {
		return nil, ErrHiddenFrame
	}

	if h.Keyframe {
		if len(b) < 10 {
			return nil, ErrTruncated
		}
		if b[3] != 0x9D || b[4] != 0x01 || b[5] != 0x2A {
			return nil, ErrBadStartCode
		}
		h.Width = int(b[6]) | (int(b[7])&0x3F)<<8
		h.Height = int(b[8]) | (int(b[9])&0x3F)<<8
	}

	return h, nil
}
