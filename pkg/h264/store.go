package h264

import "bytes"

type spsSlot struct {
	raw  []byte
	info *SPS
}

type ppsSlot struct {
	raw  []byte
	info *PPS
}

// ParamStore keeps the raw bytes and parsed form of every parameter set
// seen on a stream, indexed by id. Raw bytes are kept so keyframe packs can
// be prefixed with the exact units the encoder produced. The store survives
// parser resets, parameter sets stay valid across stream errors.
type ParamStore struct {
	sps [MaxSPSCount]spsSlot
	pps [MaxPPSCount]ppsSlot
}

// UpdateSPS stores an SPS and reports whether the slot content changed.
// The raw slice is copied into a fresh buffer, so slices handed out by SPS
// stay valid after later updates.
func (s *ParamStore) UpdateSPS(raw []byte, info *SPS) bool {
	slot := &s.sps[info.ID]
	if bytes.Equal(slot.raw, raw) {
		return false
	}
	slot.raw = append([]byte(nil), raw...)
	slot.info = info
	return true
}

// UpdatePPS stores a PPS and reports whether the slot content changed.
func (s *ParamStore) UpdatePPS(raw []byte, info *PPS) bool {
	slot := &s.pps[info.ID]
	if bytes.Equal(slot.raw, raw) {
		return false
	}
	slot.raw = append([]byte(nil), raw...)
	slot.info = info
	return true
}

// SPS returns the parsed set and its raw bytes, nil when the id was never
// seen.
func (s *ParamStore) SPS(id uint32) (*SPS, []byte) {
	if id >= MaxSPSCount {
		return nil, nil
	}
	return s.sps[id].info, s.sps[id].raw
}

// PPS returns the parsed set and its raw bytes, nil when the id was never
// seen.
func (s *ParamStore) PPS(id uint32) (*PPS, []byte) {
	if id >= MaxPPSCount {
		return nil, nil
	}
	return s.pps[id].info, s.pps[id].raw
}
