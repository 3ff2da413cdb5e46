package bits

import "errors"

// ErrNotEnoughData - buffer ended in the middle of a syntax element.
// Callers may retry with more bytes, unlike with semantic errors.
var ErrNotEnoughData = errors.New("bits: not enough data")

// ErrCodeTooLong - Exp-Golomb zero prefix longer than start-code emulation
// avoidance allows, so the stream is malformed rather than truncated.
var ErrCodeTooLong = errors.New("bits: exp-golomb code too long")

// Reader reads fixed-width and Exp-Golomb coded fields from a byte buffer.
// Bytes are pulled lazily into a 32-bit accumulator, stream order, most
// significant bits first.
type Reader struct {
	buf []byte
	pos int    // next byte to pull from buf
	acc uint32 // bit accumulator
	n   byte   // bits available in acc
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// ReadBits reads an unsigned integer of up to 24 bits. Wider values are
// Exp-Golomb coded in H.264, so 24 covers every fixed-width field. Reading
// zero bits succeeds with zero - ReadUEGolomb relies on that.
func (r *Reader) ReadBits(n byte) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if n > 24 {
		return 0, errors.New("bits: read width over 24")
	}

	for r.n < n {
		if r.pos == len(r.buf) {
			return 0, ErrNotEnoughData
		}
		r.acc |= uint32(r.buf[r.pos]) << (24 - r.n)
		r.pos++
		r.n += 8
	}

	v := r.acc >> (32 - n)
	r.acc <<= n
	r.n -= n
	return v, nil
}

func (r *Reader) ReadFlag() (bool, error) {
	v, err := r.ReadBits(1)
	return v != 0, err
}

// ReadUEGolomb - ReadExponentialGolomb (unsigned)
func (r *Reader) ReadUEGolomb() (uint32, error) {
	var zeros byte
	for {
		b, err := r.ReadBits(1)
		if err != nil {
			return 0, err
		}
		if b != 0 {
			break
		}
		// legal streams avoid start-code emulation, keeping prefixes short
		if zeros++; zeros > 23 {
			return 0, ErrCodeTooLong
		}
	}

	suffix, err := r.ReadBits(zeros)
	if err != nil {
		return 0, err
	}

	return 1<<zeros - 1 + suffix, nil
}

// ReadSEGolomb - ReadSignedExponentialGolomb
func (r *Reader) ReadSEGolomb() (int32, error) {
	v, err := r.ReadUEGolomb()
	if err != nil {
		return 0, err
	}
	if v&1 != 0 {
		return int32(v+1) >> 1, nil
	}
	return -int32(v >> 1), nil
}
