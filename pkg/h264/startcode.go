package h264

// NextStartCode returns the index of the first Annex B start code at or
// after from: the first zero of a 00 00 01 sequence that a payload byte
// follows. A four byte 00 00 00 01 code matches at its second zero, which
// NALUType tolerates. Returns -1 when no start code remains. The search
// keeps a rolling 32-bit window so each byte is inspected once.
func NextStartCode(b []byte, from int) int {
	state := uint32(0xFFFFFFFF) // poisoned so history before b can't match
	for i := from; i < len(b); i++ {
		state = state<<8 | uint32(b[i])
		if state&0xFFFFFF00 == 0x00000100 {
			return i - 3
		}
	}
	return -1
}
