package mjpeg

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espack/espack/pkg/pack"
)

// testJPEG builds the segment skeleton of a baseline image: SOI, a
// quantization table, the frame header, a scan and EOI.
func testJPEG(width, height int) []byte {
	b := []byte{0xFF, MarkerSOI}
	b = append(b, 0xFF, MarkerDQT, 0x00, 0x04, 0x12, 0x34)
	b = append(b, 0xFF, MarkerSOF0, 0x00, 0x11, 8,
		byte(height>>8), byte(height), byte(width>>8), byte(width), 3)
	b = append(b, 1, 0x11, 0, 2, 0x11, 1, 3, 0x11, 1) // component specs
	b = append(b, 0xFF, MarkerSOS, 0x00, 0x08, 1, 1, 0, 0, 0x3F, 0)
	b = append(b, 0x12, 0x34, 0x56, 0xFF, 0x00, 0x78) // entropy data, stuffed 0xFF
	return append(b, 0xFF, MarkerEOI)
}

func TestNextMarker(t *testing.T) {
	b := testJPEG(640, 480)
	i, marker := NextMarker(b, 2)
	assert.Equal(t, 2, i)
	assert.Equal(t, byte(MarkerDQT), marker)

	// stuffed zero after 0xFF is entropy data, not a marker
	i, marker = NextMarker([]byte{0x12, 0xFF, 0x00, 0xFF, MarkerEOI}, 0)
	assert.Equal(t, 3, i)
	assert.Equal(t, byte(MarkerEOI), marker)

	i, _ = NextMarker([]byte{0x12, 0x34}, 0)
	assert.Equal(t, -1, i)
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(testJPEG(640, 480))
	require.Nil(t, err)
	assert.Equal(t, 640, h.Width)
	assert.Equal(t, 480, h.Height)
	assert.Equal(t, 3, h.Components)
	assert.False(t, h.Progressive)

	_, err = ParseHeader([]byte{0x12, 0x34})
	assert.Equal(t, ErrNotJPEG, err)

	// an image cut before the frame header
	_, err = ParseHeader([]byte{0xFF, MarkerSOI, 0xFF, MarkerDQT, 0x00, 0x04, 0x12, 0x34})
	assert.Equal(t, ErrTruncated, err)
}

func TestParser(t *testing.T) {
	q := pack.NewQueue(zerolog.Nop(), 2)
	p := NewParser(zerolog.Nop(), q)

	img := testJPEG(640, 480)
	released := false
	n := p.PushBuffer(img, func() { released = true }, nil)
	assert.Equal(t, len(img), n)
	assert.False(t, released)

	require.Equal(t, 1, q.Len())
	pk := q.Front()
	assert.True(t, pk.IsComplete)
	assert.True(t, pk.CanReopenDecoding)
	assert.True(t, pk.CanBeDropped)
	assert.Equal(t, pack.CodecJPEG, pk.Codec)
	assert.Equal(t, 640, pk.Geometry.TrueWidth)
	assert.Equal(t, 480, pk.Geometry.TrueHeight)
	require.Equal(t, 1, len(pk.Chunks))

	q.PopFront()
	assert.True(t, released)
}

func TestParserBackpressure(t *testing.T) {
	q := pack.NewQueue(zerolog.Nop(), 1)
	p := NewParser(zerolog.Nop(), q)

	p.PushBuffer(testJPEG(640, 480), nil, nil)
	assert.Equal(t, 0, p.PushBuffer(testJPEG(640, 480), nil, nil))

	q.PopFront()
	img := testJPEG(640, 480)
	assert.Equal(t, len(img), p.PushBuffer(img, nil, nil))
}

func TestParserBadImage(t *testing.T) {
	q := pack.NewQueue(zerolog.Nop(), 2)
	p := NewParser(zerolog.Nop(), q)

	released := false
	bad := []byte{0x12, 0x34, 0x56}
	n := p.PushBuffer(bad, func() { released = true }, nil)
	assert.Equal(t, len(bad), n)
	assert.True(t, released)
	assert.True(t, q.Empty())
}
