package feed

import (
	"os"

	"github.com/espack/espack/pkg/pack"
)

// NullSink accepts and discards everything, the default stream consumer.
type NullSink struct{}

func (NullSink) Open(pack.CodecType, pack.Geometry, int, bool) error { return nil }
func (NullSink) Feed([]byte) error                                   { return nil }
func (NullSink) Flush() error                                        { return nil }
func (NullSink) Close() error                                        { return nil }

// DumpSink writes the fed bitstream to a file. For H.264 the output is a
// playable Annex B stream, for VP8 a playable IVF file.
type DumpSink struct {
	Path string

	f      *os.File
	opened bool
}

func (d *DumpSink) Open(pack.CodecType, pack.Geometry, int, bool) error {
	if d.f != nil {
		return nil
	}
	// truncate on the first open only, a reopened stream restarts inline
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if !d.opened {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	f, err := os.OpenFile(d.Path, flags, 0644)
	if err != nil {
		return err
	}
	d.f = f
	d.opened = true
	return nil
}

func (d *DumpSink) Feed(b []byte) error {
	_, err := d.f.Write(b)
	return err
}

func (d *DumpSink) Flush() error {
	return d.f.Sync()
}

func (d *DumpSink) Close() error {
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
