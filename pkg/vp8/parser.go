package vp8

import (
	"github.com/rs/zerolog"

	"github.com/espack/espack/pkg/pack"
)

// MaxRefFrames - a VP8 decoder keeps at most four buffers: the frame in
// flight plus golden, altref and last.
const MaxRefFrames = 4

// Parser wraps VP8 frames into single-pack IVF units. Each buffer must
// hold exactly one frame starting at offset zero, VP8 has no start codes
// to resync on. Keyframe packs open with a fresh IVF sequence header when
// the geometry changed, so a pack marked CanReopenDecoding is always
// self-contained.
type Parser struct {
	log   zerolog.Logger
	queue *pack.Queue

	synced   bool
	geometry pack.Geometry
}

func NewParser(log zerolog.Logger, queue *pack.Queue) *Parser {
	return &Parser{log: log, queue: queue}
}

// PushBuffer consumes one frame and returns len(buf), or 0 when the pack
// queue is full and the caller should retry. Undecodable frames are counted
// as consumed, there is nothing to resume from inside a VP8 frame.
func (p *Parser) PushBuffer(buf []byte, free func(), meta *pack.Meta) int {
	if p.queue.Full() {
		return 0
	}

	hdr, err := ParseFrameHeader(buf)
	if err != nil {
		p.log.Warn().Err(err).Msg("[vp8] frame dropped")
		p.synced = false
		if free != nil {
			free()
		}
		return len(buf)
	}

	if !hdr.Keyframe && !p.synced {
		p.log.Debug().Msg("[vp8] waiting for keyframe")
		if free != nil {
			free()
		}
		return len(buf)
	}

	pk := &pack.Pack{
		Codec:             pack.CodecVP8,
		Geometry:          p.geometry,
		MaxRefFrames:      MaxRefFrames,
		CanReopenDecoding: hdr.Keyframe,
	}
	pk.Meta.Merge(meta)

	if hdr.Keyframe {
		g := pack.GeometryFromSize(hdr.Width, hdr.Height)
		if g != p.geometry || !p.synced {
			p.log.Debug().Int("width", hdr.Width).Int("height", hdr.Height).
				Msg("[vp8] new sequence")
			pk.Append(pack.NewChunk(IVFSequenceHeader(hdr.Width, hdr.Height)))
		}
		p.geometry = g
		pk.Geometry = g
		p.synced = true
	}

	pk.Append(pack.NewChunk(IVFFrameHeader(len(buf))))
	pk.Append(pack.NewChunk(buf))
	p.queue.PushNewPack(pk)
	p.queue.CompleteBack()

	if free != nil {
		p.queue.AttachFreeCallback(free)
	}

	return len(buf)
}

// Reset drops sync so output resumes with a sequence header at the next
// keyframe.
func (p *Parser) Reset() {
	p.queue.CompleteBack()
	p.synced = false
	p.geometry = pack.Geometry{}
}
