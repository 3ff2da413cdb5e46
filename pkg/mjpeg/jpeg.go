package mjpeg

import (
	"encoding/binary"
	"errors"
)

// https://www.w3.org/Graphics/JPEG/itu-t81.pdf

const (
	MarkerSOF0 = 0xC0 // Start Of Frame, baseline
	MarkerSOF1 = 0xC1 // Start Of Frame, extended sequential
	MarkerSOF2 = 0xC2 // Start Of Frame, progressive
	MarkerDHT  = 0xC4 // Define Huffman Table
	MarkerSOI  = 0xD8 // Start Of Image
	MarkerEOI  = 0xD9 // End Of Image
	MarkerSOS  = 0xDA // Start Of Scan
	MarkerDQT  = 0xDB // Define Quantization Table
)

var (
	ErrNotJPEG    = errors.New("mjpeg: missing image start marker")
	ErrTruncated  = errors.New("mjpeg: truncated image")
	ErrNoGeometry = errors.New("mjpeg: no frame header before scan data")
)

// NextMarker returns the offset of the first marker at or after from: the
// position of an 0xFF byte followed by a marker code. Stuffed zero bytes
// and 0xFF fill runs do not qualify. Returns -1, 0 when none remains.
func NextMarker(b []byte, from int) (int, byte) {
	for i := from; i+1 < len(b); i++ {
		if b[i] == 0xFF && b[i+1] != 0x00 && b[i+1] != 0xFF {
			return i, b[i+1]
		}
	}
	return -1, 0
}

// Header describes a JPEG image from its frame header segment.
type Header struct {
	Width       int
	Height      int
	Components  int
	Progressive bool
}

// ParseHeader walks the segments of a JPEG image until the first start of
// frame and returns its geometry. Restart interval and scan content are
// not inspected.
func ParseHeader(b []byte) (*Header, error) {
	if len(b) < 2 || b[0] != 0xFF || b[1] != MarkerSOI {
		return nil, ErrNotJPEG
	}

	pos := 2
	for {
		i, marker := NextMarker(b, pos)
		if i < 0 {
			return nil, ErrTruncated
		}

		switch marker {
		case MarkerSOF0, MarkerSOF1, MarkerSOF2:
			// segment: length u16, precision u8, height u16, width u16,
			// component count u8
			if i+10 > len(b) {
				return nil, ErrTruncated
			}
			return &Header{
				Height:      int(binary.BigEndian.Uint16(b[i+5:])),
				Width:       int(binary.BigEndian.Uint16(b[i+7:])),
				Components:  int(b[i+9]),
				Progressive: marker == MarkerSOF2,
			}, nil

		case MarkerSOS, MarkerEOI:
			return nil, ErrNoGeometry
		}

		if i+4 > len(b) {
			return nil, ErrTruncated
		}
		pos = i + 2 + int(binary.BigEndian.Uint16(b[i+2:]))
	}
}
