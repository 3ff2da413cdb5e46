package h264

import (
	"github.com/rs/zerolog"

	"github.com/espack/espack/pkg/pack"
)

// Parser splits an Annex B elementary stream into per-picture packs.
// Keyframe packs open with the raw SPS and PPS units from the store, so a
// decoder can start from any pack with CanReopenDecoding set. Parameter set
// activation is tracked explicitly: a non-IDR picture can switch PPS within
// the active sequence, but only an IDR picture can activate an SPS, so after
// a mid-stream parameter change or a parse error the parser drops pictures
// until the next IDR.
type Parser struct {
	log   zerolog.Logger
	queue *pack.Queue
	store ParamStore

	// first slice header of the picture being assembled, nil while no
	// picture is open
	memo *SliceHeader

	activeSPS int // -1 when no sequence is active
	activePPS int

	desynced bool // throttles drop logging to one line per desync
}

func NewParser(log zerolog.Logger, queue *pack.Queue) *Parser {
	return &Parser{log: log, queue: queue, activeSPS: -1, activePPS: -1}
}

// Store exposes the parameter set store, sources that learn SPS/PPS out of
// band (SDP, mp4 headers) seed it through PushBuffer instead.
func (p *Parser) Store() *ParamStore {
	return &p.store
}

// PushBuffer consumes Annex B data from buf and returns the number of bytes
// accepted. A short count means the pack queue is full, the caller re-offers
// the rest once packs drain. buf must hold whole units, a unit is never
// split across calls. free, when not nil, is handed to the queue once the
// buffer is fully consumed and fires when the last chunk referencing buf is
// released; on partial consumption the caller keeps ownership.
func (p *Parser) PushBuffer(buf []byte, free func(), meta *pack.Meta) int {
	pos := NextStartCode(buf, 0)
	if pos < 0 {
		p.log.Warn().Int("len", len(buf)).Msg("[h264] no start code in buffer")
		if free != nil {
			free()
		}
		return len(buf)
	}
	if pos > 1 || (pos == 1 && buf[0] != 0) {
		p.log.Warn().Int("offset", pos).Msg("[h264] garbage before first start code")
	}

	consumed := len(buf)
	for pos >= 0 {
		next := NextStartCode(buf, pos+4)

		var unit []byte
		if next < 0 {
			unit = buf[pos:]
		} else {
			unit = buf[pos:next]
		}

		if !p.handleNALU(unit, meta) {
			consumed = pos
			break
		}

		pos = next
	}

	if consumed == len(buf) && free != nil {
		p.queue.AttachFreeCallback(free)
	}

	return consumed
}

// Reset prepares the parser for a discontinuity: the open pack is sealed
// as-is and activation state drops, so decoding resumes at the next IDR.
// The parameter set store is kept, sets stay valid across stream errors.
func (p *Parser) Reset() {
	p.queue.CompleteBack()
	p.memo = nil
	p.activeSPS = -1
	p.activePPS = -1
	p.desynced = false
}

// handleNALU dispatches one unit. It returns false only when a new picture
// cannot open because the queue is full, every other outcome consumes the
// unit.
func (p *Parser) handleNALU(unit []byte, meta *pack.Meta) bool {
	naluType, err := NALUType(unit)
	if err != nil {
		p.log.Warn().Err(err).Msg("[h264] bad unit dropped")
		return true
	}

	switch naluType {
	case NALUTypeSPS:
		p.handleSPS(unit)
	case NALUTypePPS:
		p.handlePPS(unit)
	case NALUTypeNonIDR, NALUTypeIDR, NALUTypePartitionA:
		return p.handleSlice(unit, meta)
	case NALUTypePartitionB, NALUTypePartitionC:
		if p.memo != nil {
			p.queue.PushChunk(pack.NewChunk(unit))
		}
	case NALUTypeEOSeq, NALUTypeEOStream:
		if back := p.queue.Back(); back != nil {
			back.NeedsFlushing = true
			p.queue.CompleteBack()
			p.memo = nil
		} else {
			p.log.Warn().Msg("[h264] end of stream with no pack to flush")
		}
	default:
		// SEI, AUD, filler, reserved and unspecified types carry nothing
		// the decoder pipeline needs
	}

	return true
}

func (p *Parser) handleSPS(unit []byte) {
	sps, err := ParseSPS(unit)
	if err != nil {
		p.log.Warn().Err(err).Msg("[h264] bad sps dropped")
		return
	}

	if !p.store.UpdateSPS(unit, sps) {
		return // repeated verbatim, common in front of every keyframe
	}

	p.log.Debug().Uint32("id", sps.ID).Str("info", sps.String()).Msg("[h264] new sps")

	if p.activeSPS == int(sps.ID) {
		// the active sequence changed under us, force reactivation
		p.activeSPS = -1
		p.activePPS = -1
		p.memo = nil
	}
}

func (p *Parser) handlePPS(unit []byte) {
	pps, err := ParsePPS(unit)
	if err != nil {
		p.log.Warn().Err(err).Msg("[h264] bad pps dropped")
		return
	}

	if sps, _ := p.store.SPS(pps.SPSID); sps == nil {
		p.log.Warn().Uint32("id", pps.ID).Uint32("sps", pps.SPSID).
			Msg("[h264] pps references unknown sps, dropped")
		return
	}

	if !p.store.UpdatePPS(unit, pps) {
		return
	}

	p.log.Debug().Uint32("id", pps.ID).Msg("[h264] new pps")

	if p.activePPS == int(pps.ID) {
		p.activePPS = -1
		if p.activeSPS != int(pps.SPSID) {
			p.activeSPS = -1
		}
		p.memo = nil
	}
}

func (p *Parser) handleSlice(unit []byte, meta *pack.Meta) bool {
	hdr, err := ParseSliceHeader(unit)
	if err != nil {
		p.dropPicture().Err(err).Msg("[h264] bad slice header dropped")
		return true
	}

	pps, _ := p.store.PPS(hdr.PPSID)
	if pps == nil {
		p.dropPicture().Uint32("pps", hdr.PPSID).Msg("[h264] slice without pps dropped")
		return true
	}
	sps, spsRaw := p.store.SPS(pps.SPSID)
	if sps == nil {
		p.dropPicture().Uint32("sps", pps.SPSID).Msg("[h264] slice without sps dropped")
		return true
	}

	if err = hdr.ParseRest(unit, sps, pps); err != nil {
		p.dropPicture().Err(err).Msg("[h264] bad slice header dropped")
		return true
	}

	if p.memo != nil && !DifferentPictures(p.memo, hdr) {
		p.queue.PushChunk(pack.NewChunk(unit))
		p.memo = hdr // mmco 5 on a later slice must reach the next compare
		return true
	}

	if !hdr.IDR && p.activeSPS != int(pps.SPSID) {
		p.dropPicture().Msg("[h264] waiting for keyframe")
		return true
	}

	if p.queue.Full() {
		return false
	}

	_, ppsRaw := p.store.PPS(hdr.PPSID)

	pk := &pack.Pack{
		Codec:             pack.CodecH264,
		Geometry:          sps.Geometry(),
		MaxRefFrames:      int(sps.NumRefFrames),
		CanReopenDecoding: hdr.IDR,
		CanBeDropped:      hdr.RefIdc == 0,
		NeedsReordering:   sps.ProfileIDC != ProfileBaseline,
	}
	pk.Meta.Merge(meta)
	p.queue.PushNewPack(pk)

	if hdr.IDR {
		// a reopening point carries its parameter sets even when nothing
		// changed, the decoder may have seen none of the stream
		pk.Append(pack.NewChunk(spsRaw))
		pk.Append(pack.NewChunk(ppsRaw))
		p.activeSPS = int(pps.SPSID)
		p.activePPS = int(hdr.PPSID)
	} else if p.activePPS != int(hdr.PPSID) {
		pk.Append(pack.NewChunk(ppsRaw))
		p.activePPS = int(hdr.PPSID)
	}

	pk.Append(pack.NewChunk(unit))

	p.memo = hdr
	p.desynced = false

	return true
}

// dropPicture abandons the picture in progress and deactivates the
// parameter set chain, so no pack opens before the next IDR. It returns a
// warn event, silenced while a desync run is already reported.
func (p *Parser) dropPicture() *zerolog.Event {
	p.queue.CompleteBack()
	p.memo = nil
	p.activeSPS = -1
	p.activePPS = -1

	if p.desynced {
		return p.log.Debug()
	}
	p.desynced = true
	return p.log.Warn()
}
