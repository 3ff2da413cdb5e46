package h264

import (
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// RTPDepacketizer reassembles Annex B access units from RTP packets. The
// pion depacketizer handles FU-A and STAP-A and emits start code prefixed
// units, packets up to the marker belong to the same access unit.
type RTPDepacketizer struct {
	depack codecs.H264Packet
	buffer []byte
}

func NewRTPDepacketizer() *RTPDepacketizer {
	return &RTPDepacketizer{}
}

// Push adds a packet and returns a complete access unit on the marker
// packet, nil otherwise. Ownership of the returned slice moves to the
// caller.
func (d *RTPDepacketizer) Push(packet *rtp.Packet) []byte {
	payload, err := d.depack.Unmarshal(packet.Payload)
	if err != nil || len(payload) == 0 {
		return nil
	}

	// ffmpeg with `-tune zerolatency` slices every picture over several
	// packets, collect until the marker
	d.buffer = append(d.buffer, payload...)
	if !packet.Marker {
		return nil
	}

	au := d.buffer
	d.buffer = nil
	return au
}
