package pack

import "github.com/rs/zerolog"

// DefaultLimit caps the number of buffered packs before producers
// are pushed back.
const DefaultLimit = 16

// Queue hands packs from a stream parser to a decoder feeder. At most the
// back pack is open for appending; everything in front of it is complete.
// Not safe for concurrent use, callers serialize access.
type Queue struct {
	log    zerolog.Logger
	packs  []*Pack
	popped uint64
	limit  int
}

func NewQueue(log zerolog.Logger, limit int) *Queue {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Queue{log: log, limit: limit}
}

// PushNewPack completes the current back pack, if any, and opens p.
func (q *Queue) PushNewPack(p *Pack) {
	q.CompleteBack()
	q.packs = append(q.packs, p)
}

// PushChunk appends a chunk to the open back pack. A chunk with no pack to
// join means the producer lost track of picture boundaries, drop it.
func (q *Queue) PushChunk(c *Chunk) {
	if len(q.packs) == 0 {
		q.log.Warn().Msg("[pack] chunk without an open pack, dropped")
		c.Release()
		return
	}
	q.packs[len(q.packs)-1].Append(c)
}

// AttachFreeCallback hands ownership of a producer buffer to the queue: the
// callback is planted on the last chunk of the back pack so it fires once the
// consumer is done with the buffer. When no eligible chunk exists (empty
// queue, chunkless pack, or a callback already in place) the buffer is not
// referenced anymore and free fires immediately.
func (q *Queue) AttachFreeCallback(free func()) {
	if len(q.packs) > 0 {
		p := q.packs[len(q.packs)-1]
		if n := len(p.Chunks); n > 0 && !p.Chunks[n-1].HasFree() {
			p.Chunks[n-1].SetFree(free)
			return
		}
	}
	free()
}

// CompleteBack seals the open back pack.
func (q *Queue) CompleteBack() {
	if n := len(q.packs); n > 0 {
		q.packs[n-1].IsComplete = true
	}
}

// HasPackForConsumption reports whether the front pack is sealed and ready
// to be handed to a decoder whole.
func (q *Queue) HasPackForConsumption() bool {
	return len(q.packs) > 0 && q.packs[0].IsComplete
}

// HasPackForFeeding reports whether the front pack has chunks to stream out,
// complete or not.
func (q *Queue) HasPackForFeeding() bool {
	return len(q.packs) > 0 && len(q.packs[0].Chunks) > 0
}

func (q *Queue) Front() *Pack {
	if len(q.packs) == 0 {
		return nil
	}
	return q.packs[0]
}

func (q *Queue) Back() *Pack {
	if len(q.packs) == 0 {
		return nil
	}
	return q.packs[len(q.packs)-1]
}

func (q *Queue) Len() int {
	return len(q.packs)
}

func (q *Queue) Empty() bool {
	return len(q.packs) == 0
}

// Full reports whether opening another pack would exceed the limit.
func (q *Queue) Full() bool {
	return len(q.packs) >= q.limit
}

// PopFront removes the front pack, releasing its chunks.
func (q *Queue) PopFront() {
	if len(q.packs) == 0 {
		return
	}
	q.packs[0].Release()
	q.packs = q.packs[1:]
	q.popped++
}

// PopChunk removes and releases the first chunk of the front pack.
func (q *Queue) PopChunk() *Chunk {
	p := q.Front()
	if p == nil || len(p.Chunks) == 0 {
		return nil
	}
	c := p.Chunks[0]
	p.Chunks = p.Chunks[1:]
	c.Release()
	return c
}

// MarkFrontDecoded flags the front pack as consumed by the decoder.
func (q *Queue) MarkFrontDecoded() {
	if len(q.packs) > 0 {
		q.packs[0].Decoded = true
	}
}

// Clear drops every pack, releasing all chunks. Popped counter survives.
func (q *Queue) Clear() {
	for _, p := range q.packs {
		p.Release()
	}
	q.packs = nil
}

// Popped returns the number of packs consumed over the queue's lifetime.
func (q *Queue) Popped() uint64 {
	return q.popped
}
