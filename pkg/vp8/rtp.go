package vp8

import (
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// RTPDepacketizer reassembles VP8 frames from RTP packets per RFC 7741.
type RTPDepacketizer struct {
	depack codecs.VP8Packet
	buffer []byte
}

func NewRTPDepacketizer() *RTPDepacketizer {
	return &RTPDepacketizer{}
}

// Push adds a packet and returns a complete frame on the marker packet,
// nil otherwise. Ownership of the returned slice moves to the caller.
func (d *RTPDepacketizer) Push(packet *rtp.Packet) []byte {
	payload, err := d.depack.Unmarshal(packet.Payload)
	if err != nil || len(payload) == 0 {
		return nil
	}

	d.buffer = append(d.buffer, payload...)
	if !packet.Marker {
		return nil
	}

	frame := d.buffer
	d.buffer = nil
	return frame
}
