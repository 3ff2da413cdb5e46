package vp8

import "encoding/binary"

// IVF container framing, the form hardware VP8 decoders expect raw frames
// wrapped in. https://wiki.multimedia.cx/index.php/IVF

const (
	IVFSequenceHeaderSize = 32
	IVFFrameHeaderSize    = 12
)

// IVFSequenceHeader builds the 32-byte stream header. The frame count field
// stays zero, live streams have no known length.
func IVFSequenceHeader(width, height int) []byte {
	b := make([]byte, IVFSequenceHeaderSize)
	copy(b, "DKIF")
	// bytes 4..5 version 0
	binary.LittleEndian.PutUint16(b[6:], IVFSequenceHeaderSize)
	copy(b[8:], "VP80")
	binary.LittleEndian.PutUint16(b[12:], uint16(width))
	binary.LittleEndian.PutUint16(b[14:], uint16(height))
	binary.LittleEndian.PutUint16(b[16:], 1) // framerate
	binary.LittleEndian.PutUint16(b[18:], 1) // timescale
	return b
}

// IVFFrameHeader builds the 12-byte per-frame header: payload size plus a
// zero timestamp, decoders that matter here ignore it.
func IVFFrameHeader(size int) []byte {
	b := make([]byte, IVFFrameHeaderSize)
	binary.LittleEndian.PutUint32(b, uint32(size))
	return b
}
