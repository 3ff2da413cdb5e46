package feed

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/espack/espack/pkg/pack"
)

// Sink is the decoder side of a pack queue: something that accepts a
// configured bitstream. Open is called before the first Feed and again
// whenever the stream configuration changes.
type Sink interface {
	Open(codec pack.CodecType, geometry pack.Geometry, maxRefFrames int, reordering bool) error
	Feed(b []byte) error
	Flush() error
	Close() error
}

// Stats counts feeder activity, read by status endpoints.
type Stats struct {
	PacksFed     uint64
	PacksSkipped uint64
	BytesFed     uint64
}

// Feeder drains a pack queue into a sink, reopening the sink whenever a
// pack needs a different configuration. While the sink is closed, packs
// that cannot serve as a starting point are skipped.
type Feeder struct {
	log  zerolog.Logger
	sink Sink

	open         bool
	codec        pack.CodecType
	geometry     pack.Geometry
	maxRefFrames int
	reordering   bool

	stats Stats
}

func NewFeeder(log zerolog.Logger, sink Sink) *Feeder {
	return &Feeder{log: log, sink: sink}
}

// Stats can be read from another goroutine while the feeder runs.
func (f *Feeder) Stats() Stats {
	return Stats{
		PacksFed:     atomic.LoadUint64(&f.stats.PacksFed),
		PacksSkipped: atomic.LoadUint64(&f.stats.PacksSkipped),
		BytesFed:     atomic.LoadUint64(&f.stats.BytesFed),
	}
}

// Step consumes at most one pack from q and reports whether it did any
// work. Callers loop until false, then wait for the producer.
func (f *Feeder) Step(q *pack.Queue) bool {
	if !q.HasPackForConsumption() {
		return false
	}
	p := q.Front()

	if f.open && f.needsReopening(p) {
		if err := f.sink.Close(); err != nil {
			f.log.Warn().Err(err).Msg("[feed] close failed")
		}
		f.open = false
	}

	if !f.open {
		if !p.CanReopenDecoding {
			atomic.AddUint64(&f.stats.PacksSkipped, 1)
			q.PopFront()
			return true
		}
		if err := f.sink.Open(p.Codec, p.Geometry, p.MaxRefFrames, p.NeedsReordering); err != nil {
			f.log.Error().Err(err).Msg("[feed] open failed")
			q.PopFront()
			return true
		}
		f.open = true
		f.codec = p.Codec
		f.geometry = p.Geometry
		f.maxRefFrames = p.MaxRefFrames
		f.reordering = p.NeedsReordering
	}

	for _, c := range p.Chunks {
		if err := f.sink.Feed(c.Data); err != nil {
			f.log.Error().Err(err).Msg("[feed] feed failed, reopening")
			_ = f.sink.Close()
			f.open = false
			q.PopFront()
			return true
		}
		atomic.AddUint64(&f.stats.BytesFed, uint64(len(c.Data)))
	}

	if p.NeedsFlushing {
		if err := f.sink.Flush(); err != nil {
			f.log.Warn().Err(err).Msg("[feed] flush failed")
		}
	}

	atomic.AddUint64(&f.stats.PacksFed, 1)
	q.MarkFrontDecoded()
	q.PopFront()
	return true
}

// Drain runs Step until the queue has nothing consumable.
func (f *Feeder) Drain(q *pack.Queue) {
	for f.Step(q) {
	}
}

// Close shuts the sink down, flushing first when it is open.
func (f *Feeder) Close() error {
	if !f.open {
		return nil
	}
	f.open = false
	if err := f.sink.Flush(); err != nil {
		f.log.Warn().Err(err).Msg("[feed] flush failed")
	}
	return f.sink.Close()
}

func (f *Feeder) needsReopening(p *pack.Pack) bool {
	return p.Codec != f.codec ||
		p.Geometry != f.geometry ||
		p.MaxRefFrames > f.maxRefFrames ||
		p.NeedsReordering != f.reordering
}
