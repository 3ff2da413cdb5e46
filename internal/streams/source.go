package streams

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/deepch/vdk/codec/h264parser"
	"github.com/deepch/vdk/format/mp4"
	"github.com/pion/rtp"
	"github.com/pion/sdp/v3"

	"github.com/espack/espack/pkg/feed"
	"github.com/espack/espack/pkg/h264"
	"github.com/espack/espack/pkg/pack"
	"github.com/espack/espack/pkg/vp8"
)

type sourceFunc func(s *Stream) error

func openSource(rawURL string) (sourceFunc, pack.CodecType, error) {
	switch {
	case strings.HasPrefix(rawURL, "rtp://"):
		return openRTP(rawURL)
	case strings.HasPrefix(rawURL, "sdp:"):
		return openSDP(rawURL[4:])
	case strings.HasPrefix(rawURL, "mp4:"):
		return openMP4(rawURL[4:])
	case strings.HasPrefix(rawURL, "file:"):
		return openFile(rawURL[5:])
	}
	return nil, pack.CodecNone, fmt.Errorf("streams: unknown source %q", rawURL)
}

func openSink(rawURL string) (feed.Sink, error) {
	switch {
	case rawURL == "" || rawURL == "null":
		return feed.NullSink{}, nil
	case strings.HasPrefix(rawURL, "dump:"):
		return &feed.DumpSink{Path: rawURL[5:]}, nil
	}
	return nil, fmt.Errorf("streams: unknown sink %q", rawURL)
}

func parseCodec(name string) pack.CodecType {
	switch strings.ToLower(name) {
	case "h264", "avc":
		return pack.CodecH264
	case "vp8":
		return pack.CodecVP8
	case "jpeg", "mjpeg":
		return pack.CodecJPEG
	}
	return pack.CodecNone
}

// rtp://:5004?codec=h264
func openRTP(rawURL string) (sourceFunc, pack.CodecType, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, pack.CodecNone, err
	}
	codec := parseCodec(u.Query().Get("codec"))
	if codec != pack.CodecH264 && codec != pack.CodecVP8 {
		return nil, pack.CodecNone, fmt.Errorf("streams: rtp source needs codec=h264 or codec=vp8")
	}
	source := func(s *Stream) error {
		return rtpLoop(s, u.Host, codec, nil)
	}
	return source, codec, nil
}

// sdp:session.sdp - raw RTP session described by a local SDP file
func openSDP(path string) (sourceFunc, pack.CodecType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pack.CodecNone, err
	}

	var sd sdp.SessionDescription
	if err = sd.Unmarshal(data); err != nil {
		return nil, pack.CodecNone, err
	}

	for _, md := range sd.MediaDescriptions {
		if md.MediaName.Media != "video" || len(md.MediaName.Formats) == 0 {
			continue
		}

		payloadType := md.MediaName.Formats[0]
		codec := pack.CodecNone
		if rtpmap, ok := md.Attribute("rtpmap"); ok && strings.HasPrefix(rtpmap, payloadType+" ") {
			name, _, _ := strings.Cut(rtpmap[len(payloadType)+1:], "/")
			codec = parseCodec(name)
		}
		if codec == pack.CodecNone {
			continue
		}

		// H264 sessions may carry the parameter sets out of band
		var seed []byte
		if codec == pack.CodecH264 {
			if fmtp, ok := md.Attribute("fmtp"); ok {
				if sps, pps := h264.GetParameterSet(fmtp); sps != nil && pps != nil {
					seed = h264.JoinAnnexB(sps, pps)
				}
			}
		}

		addr := fmt.Sprintf(":%d", md.MediaName.Port.Value)
		source := func(s *Stream) error {
			return rtpLoop(s, addr, codec, seed)
		}
		return source, codec, nil
	}

	return nil, pack.CodecNone, errors.New("streams: no usable video media in sdp")
}

func rtpLoop(s *Stream, addr string, codec pack.CodecType, seed []byte) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if seed != nil {
		s.Push(seed, nil, nil)
	}

	var depack interface {
		Push(*rtp.Packet) []byte
	}
	switch codec {
	case pack.CodecH264:
		depack = &h264.RTPDepacketizer{}
	case pack.CodecVP8:
		depack = &vp8.RTPDepacketizer{}
	}

	done := s.stopping()
	buf := make([]byte, 2048)

	for {
		select {
		case <-done:
			return nil
		default:
		}

		if err = conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return err
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return err
		}

		packet := &rtp.Packet{}
		if err = packet.Unmarshal(buf[:n]); err != nil {
			log.Debug().Err(err).Str("stream", s.name).Msg("[streams] bad rtp packet")
			continue
		}

		if au := depack.Push(packet); au != nil {
			s.Push(au, nil, &pack.Meta{Timestamp: int64(packet.Timestamp)})
		}
	}
}

// mp4:recording.mp4 - replay the H264 track of a local file
func openMP4(path string) (sourceFunc, pack.CodecType, error) {
	source := func(s *Stream) error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		demuxer := mp4.NewDemuxer(f)
		tracks, err := demuxer.Streams()
		if err != nil {
			return err
		}

		videoIdx := -1
		for i, track := range tracks {
			if cd, ok := track.(h264parser.CodecData); ok {
				s.Push(h264.JoinAnnexB(cd.SPS(), cd.PPS()), nil, nil)
				videoIdx = i
				break
			}
		}
		if videoIdx < 0 {
			return errors.New("streams: no h264 track in mp4")
		}

		done := s.stopping()

		for {
			select {
			case <-done:
				return nil
			default:
			}

			packet, err := demuxer.ReadPacket()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if int(packet.Idx) != videoIdx {
				continue
			}

			au := h264.DecodeAVCC(packet.Data, false)
			s.Push(au, nil, &pack.Meta{Timestamp: packet.Time.Milliseconds()})
		}
	}
	return source, pack.CodecH264, nil
}

// file:clip.ivf?codec=vp8 - replay a raw bitstream file
func openFile(rawURL string) (sourceFunc, pack.CodecType, error) {
	path, query, _ := strings.Cut(rawURL, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, pack.CodecNone, err
	}
	codec := parseCodec(values.Get("codec"))
	if codec == pack.CodecNone {
		return nil, pack.CodecNone, fmt.Errorf("streams: file source needs a codec param")
	}

	source := func(s *Stream) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		if codec == pack.CodecVP8 && bytes.HasPrefix(data, []byte("DKIF")) {
			return replayIVF(s, data)
		}

		s.Push(data, nil, nil)
		return nil
	}
	return source, codec, nil
}

func replayIVF(s *Stream, data []byte) error {
	pos := vp8.IVFSequenceHeaderSize
	for pos+vp8.IVFFrameHeaderSize <= len(data) {
		size := int(binary.LittleEndian.Uint32(data[pos:]))
		pts := int64(binary.LittleEndian.Uint64(data[pos+4:]))
		pos += vp8.IVFFrameHeaderSize
		if pos+size > len(data) {
			return errors.New("streams: truncated ivf frame")
		}
		s.Push(data[pos:pos+size], nil, &pack.Meta{Timestamp: pts})
		pos += size
	}
	return nil
}
