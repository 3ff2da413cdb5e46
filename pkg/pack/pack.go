package pack

// CodecType identifies the bitstream format carried by a pack.
type CodecType byte

const (
	CodecNone CodecType = iota
	CodecH264
	CodecVP8
	CodecJPEG
)

func (c CodecType) String() string {
	switch c {
	case CodecH264:
		return "h264"
	case CodecVP8:
		return "vp8"
	case CodecJPEG:
		return "jpeg"
	}
	return "none"
}

// Chunk is a contiguous piece of bitstream. A chunk either owns its bytes or
// borrows them from a producer buffer, in which case free releases the buffer
// once the consumer is done with it.
type Chunk struct {
	Data []byte
	free func()
}

// NewChunk makes a chunk owning its bytes.
func NewChunk(data []byte) *Chunk {
	return &Chunk{Data: data}
}

// NewBorrowedChunk makes a chunk over producer-owned bytes.
func NewBorrowedChunk(data []byte, free func()) *Chunk {
	return &Chunk{Data: data, free: free}
}

// Release fires the free callback, once.
func (c *Chunk) Release() {
	if c.free != nil {
		c.free()
		c.free = nil
	}
}

// HasFree reports whether a callback is still pending on this chunk.
func (c *Chunk) HasFree() bool {
	return c.free != nil
}

// SetFree attaches a release callback. Caller checks HasFree first.
func (c *Chunk) SetFree(free func()) {
	c.free = free
}

// Geometry describes the decoded frame layout. Padded dimensions are the
// coded macroblock grid, true dimensions the visible picture after cropping.
// Comparable with ==.
type Geometry struct {
	PaddedWidth  int
	PaddedHeight int
	TrueWidth    int
	TrueHeight   int
	CropLeft     int
	CropTop      int
	Rotation     int // degrees clockwise
}

// GeometryFromSize builds a geometry for a picture with no cropping,
// padding each dimension up to the 16-pixel macroblock grid.
func GeometryFromSize(width, height int) Geometry {
	return Geometry{
		PaddedWidth:  (width + 15) &^ 15,
		PaddedHeight: (height + 15) &^ 15,
		TrueWidth:    width,
		TrueHeight:   height,
	}
}

// Meta carries producer-side hints that travel with a pack.
type Meta struct {
	Timestamp int64 // nanoseconds, 0 when unknown
	Rotation  int
}

// Merge overlays m with values from other, keeping the newer timestamp.
func (m *Meta) Merge(other *Meta) {
	if other == nil {
		return
	}
	if other.Timestamp > m.Timestamp {
		m.Timestamp = other.Timestamp
	}
	if other.Rotation != 0 {
		m.Rotation = other.Rotation
	}
}

// Pack is one decodable unit: all chunks belonging to a single picture plus
// everything the decoder needs to consume it.
type Pack struct {
	Chunks       []*Chunk
	Geometry     Geometry
	MaxRefFrames int
	Codec        CodecType
	Meta         Meta

	// CanReopenDecoding marks packs a decoder may start from (keyframes
	// with their parameter sets).
	CanReopenDecoding bool
	// CanBeDropped marks packs no later picture references.
	CanBeDropped bool
	// IsComplete is set once no further chunks will be appended.
	IsComplete bool
	// NeedsReordering is set when output order may differ from coded order.
	NeedsReordering bool
	// NeedsFlushing asks the decoder to drain after this pack.
	NeedsFlushing bool
	// Decoded is set by the consumer once the pack has been fed.
	Decoded bool
}

// Size returns the total payload length in bytes.
func (p *Pack) Size() (n int) {
	for _, c := range p.Chunks {
		n += len(c.Data)
	}
	return
}

// Append adds a chunk to the pack.
func (p *Pack) Append(c *Chunk) {
	p.Chunks = append(p.Chunks, c)
}

// Release fires pending callbacks on every chunk.
func (p *Pack) Release() {
	for _, c := range p.Chunks {
		c.Release()
	}
}
