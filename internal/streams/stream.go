package streams

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/espack/espack/internal/api"
	"github.com/espack/espack/internal/app"
	"github.com/espack/espack/pkg/feed"
	"github.com/espack/espack/pkg/h264"
	"github.com/espack/espack/pkg/mjpeg"
	"github.com/espack/espack/pkg/pack"
	"github.com/espack/espack/pkg/vp8"
)

// Parser is the codec side of a pipeline: it turns raw bitstream
// buffers into packs on the queue and reports how much it consumed.
type Parser interface {
	PushBuffer(buf []byte, free func(), meta *pack.Meta) int
	Reset()
}

// Stream is one configured pipeline: source > parser > queue > feeder.
type Stream struct {
	name   string
	conf   Config
	codec  pack.CodecType
	parser Parser
	queue  *pack.Queue
	feeder *feed.Feeder

	source sourceFunc

	mu      sync.Mutex
	done    chan struct{}
	wg      sync.WaitGroup
	bytesIn uint64
	lastErr error

	// pipeMu serializes queue access between the source goroutine and
	// status readers
	pipeMu sync.Mutex
}

func NewStream(name string, conf Config) (*Stream, error) {
	s := &Stream{name: name, conf: conf}

	log := app.GetLogger("streams").With().Str("stream", name).Logger()
	s.queue = pack.NewQueue(log, conf.Queue)

	source, codec, err := openSource(conf.Source)
	if err != nil {
		return nil, err
	}
	s.source = source
	s.codec = codec

	switch codec {
	case pack.CodecH264:
		s.parser = h264.NewParser(log, s.queue)
	case pack.CodecVP8:
		s.parser = vp8.NewParser(log, s.queue)
	case pack.CodecJPEG:
		s.parser = mjpeg.NewParser(log, s.queue)
	default:
		return nil, fmt.Errorf("streams: unsupported codec for %q", conf.Source)
	}

	sink, err := openSink(conf.Sink)
	if err != nil {
		return nil, err
	}
	s.feeder = feed.NewFeeder(log, sink)

	return s, nil
}

func (s *Stream) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		err := s.source(s)
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()

		s.pipeMu.Lock()
		s.feeder.Drain(s.queue)
		s.pipeMu.Unlock()
		if err := s.feeder.Close(); err != nil {
			log.Warn().Err(err).Str("stream", s.name).Msg("[streams] sink close")
		}

		if err != nil {
			log.Error().Err(err).Str("stream", s.name).Msg("[streams] source")
			api.Publish(api.Event{Type: "error", Stream: s.name, Value: err.Error()})
		} else {
			api.Publish(api.Event{Type: "eos", Stream: s.name})
		}
	}()
}

func (s *Stream) Stop() {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	s.wg.Wait()
}

// Push offers one bitstream buffer to the parser and drains the queue
// through the feeder. Called from the source goroutine only.
func (s *Stream) Push(buf []byte, free func(), meta *pack.Meta) {
	atomic.AddUint64(&s.bytesIn, uint64(len(buf)))

	s.pipeMu.Lock()
	defer s.pipeMu.Unlock()

	for {
		n := s.parser.PushBuffer(buf, free, meta)

		progress := false
		for s.feeder.Step(s.queue) {
			progress = true
		}

		if n == len(buf) {
			return
		}
		if n == 0 && !progress {
			// queue stuck with nothing consumable, drop the rest
			log.Warn().Str("stream", s.name).Msg("[streams] pipeline stalled, dropping buffer")
			s.parser.Reset()
			if free != nil {
				free()
			}
			return
		}
		buf = buf[n:]
	}
}

func (s *Stream) stopping() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

func (s *Stream) Stats() api.StreamStats {
	fs := s.feeder.Stats()

	s.pipeMu.Lock()
	queueLen := s.queue.Len()
	s.pipeMu.Unlock()

	return api.StreamStats{
		Name:         s.name,
		Codec:        s.codec.String(),
		BytesIn:      atomic.LoadUint64(&s.bytesIn),
		PacksFed:     fs.PacksFed,
		PacksSkipped: fs.PacksSkipped,
		BytesFed:     fs.BytesFed,
		QueueLen:     queueLen,
	}
}

func (s *Stream) MarshalInfo() any {
	s.mu.Lock()
	running := s.done != nil
	lastErr := s.lastErr
	s.mu.Unlock()

	info := map[string]any{
		"source":  s.conf.Source,
		"codec":   s.codec.String(),
		"running": running,
		"stats":   s.Stats(),
	}
	if lastErr != nil {
		info["error"] = lastErr.Error()
	}
	return info
}
