package h264

import (
	"encoding/binary"
)

// DecodeAVCC rewrites length-prefixed units to Annex B in place, every
// four byte length becomes a start code. Pass safeClone when the source
// buffer must stay intact.
func DecodeAVCC(b []byte, safeClone bool) []byte {
	if safeClone {
		b = append([]byte(nil), b...)
	}
	for i := 0; i+4 <= len(b); {
		size := int(binary.BigEndian.Uint32(b[i:]))
		b[i] = 0
		b[i+1] = 0
		b[i+2] = 0
		b[i+3] = 1
		i += 4 + size
	}
	return b
}

// JoinAnnexB concatenates raw units into one Annex B buffer, prefixing a
// four byte start code to each. Turns out-of-band parameter sets into
// pushable units.
func JoinAnnexB(units ...[]byte) []byte {
	n := 0
	for _, u := range units {
		n += 4 + len(u)
	}
	b := make([]byte, 0, n)
	for _, u := range units {
		b = append(b, 0, 0, 0, 1)
		b = append(b, u...)
	}
	return b
}
