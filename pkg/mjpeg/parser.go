package mjpeg

import (
	"github.com/rs/zerolog"

	"github.com/espack/espack/pkg/pack"
)

// Parser wraps complete JPEG images into single-chunk packs. Every image
// stands alone, so every pack is a reopening point and may be dropped.
type Parser struct {
	log   zerolog.Logger
	queue *pack.Queue
}

func NewParser(log zerolog.Logger, queue *pack.Queue) *Parser {
	return &Parser{log: log, queue: queue}
}

// PushBuffer consumes one image and returns len(buf), or 0 when the pack
// queue is full and the caller should retry. Images without a readable
// frame header are dropped but counted as consumed.
func (p *Parser) PushBuffer(buf []byte, free func(), meta *pack.Meta) int {
	if p.queue.Full() {
		return 0
	}

	hdr, err := ParseHeader(buf)
	if err != nil {
		p.log.Warn().Err(err).Msg("[mjpeg] image dropped")
		if free != nil {
			free()
		}
		return len(buf)
	}

	pk := &pack.Pack{
		Codec:             pack.CodecJPEG,
		Geometry:          pack.GeometryFromSize(hdr.Width, hdr.Height),
		MaxRefFrames:      1,
		CanReopenDecoding: true,
		CanBeDropped:      true,
	}
	pk.Meta.Merge(meta)
	pk.Append(pack.NewChunk(buf))
	p.queue.PushNewPack(pk)
	p.queue.CompleteBack()

	if free != nil {
		p.queue.AttachFreeCallback(free)
	}

	return len(buf)
}

// Reset seals whatever is open, the parser itself keeps no state.
func (p *Parser) Reset() {
	p.queue.CompleteBack()
}
