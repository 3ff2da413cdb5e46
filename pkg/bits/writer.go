package bits

type Writer struct {
	buf  []byte // total buf
	byte byte   // current byte
	bits byte   // bits left in byte
	len  int    // current len of buf
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) WriteBit(b byte) {
	if w.bits == 0 {
		if w.len != 0 {
			w.buf = append(w.buf, w.byte)
		}

		w.byte = 0
		w.bits = 7
		w.len++
	} else {
		w.bits--
	}

	w.byte |= b << w.bits
}

func (w *Writer) WriteBits(v uint32, n byte) {
	for i := n - 1; i != 255; i-- {
		w.WriteBit(byte(v>>i) & 0b1)
	}
}

// WriteUEGolomb writes an unsigned Exp-Golomb code.
func (w *Writer) WriteUEGolomb(v uint32) {
	var zeros byte
	for v+1 >= 2<<zeros {
		zeros++
	}
	w.WriteBits(0, zeros)
	w.WriteBits(v+1, zeros+1)
}

// WriteSEGolomb writes a signed Exp-Golomb code, inverse of ReadSEGolomb.
func (w *Writer) WriteSEGolomb(v int32) {
	if v > 0 {
		w.WriteUEGolomb(uint32(v)<<1 - 1)
	} else {
		w.WriteUEGolomb(uint32(-v) << 1)
	}
}

// Bytes returns the written stream, the last byte zero-padded. The
// current byte is flushed lazily, so it is pending whenever more bytes
// were started than appended.
func (w *Writer) Bytes() []byte {
	if w.len > len(w.buf) {
		return append(w.buf, w.byte)
	}
	return w.buf
}
