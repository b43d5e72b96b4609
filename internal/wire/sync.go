package wire

import (
	"encoding/binary"
	"fmt"
)

// PeerInfo is the PEER_INFO_RESPONSE payload (§4.5): "a node sends
// PEER_INFO_REQUEST to learn their nickname/status/role". Role itself is
// not carried on the wire - it is derived locally from signed state - so
// this payload only needs nickname and presence status.
type PeerInfo struct {
	Nickname string
	Status   byte
}

func EncodePeerInfo(p *PeerInfo) []byte {
	name := []byte(p.Nickname)
	buf := make([]byte, 0, 2+len(name)+1)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(name)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, name...)
	buf = append(buf, p.Status)
	return buf
}

func DecodePeerInfo(raw []byte) (*PeerInfo, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("wire: peer info too short")
	}
	nameLen := int(binary.BigEndian.Uint16(raw[0:2]))
	if len(raw) != 2+nameLen+1 {
		return nil, fmt.Errorf("wire: peer info length mismatch")
	}
	if nameLen > MaxNicknameLen {
		return nil, fmt.Errorf("wire: nickname too long: %d bytes", nameLen)
	}
	return &PeerInfo{
		Nickname: string(raw[2 : 2+nameLen]),
		Status:   raw[2+nameLen],
	}, nil
}

// VersionVector is the SYNC_REQUEST payload (§4.5): "carrying local
// version numbers for each piece of state".
type VersionVector struct {
	SharedStateVersion uint32
	ModListVersion     uint32
	SanctionsVersion   uint32
	TopicVersion       uint32
}

func EncodeVersionVector(v *VersionVector) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint32(buf[0:4], v.SharedStateVersion)
	binary.BigEndian.PutUint32(buf[4:8], v.ModListVersion)
	binary.BigEndian.PutUint32(buf[8:12], v.SanctionsVersion)
	binary.BigEndian.PutUint32(buf[12:16], v.TopicVersion)
	return buf
}

func DecodeVersionVector(raw []byte) (*VersionVector, error) {
	if len(raw) != 16 {
		return nil, fmt.Errorf("wire: version vector wrong size: %d bytes", len(raw))
	}
	return &VersionVector{
		SharedStateVersion: binary.BigEndian.Uint32(raw[0:4]),
		ModListVersion:     binary.BigEndian.Uint32(raw[4:8]),
		SanctionsVersion:   binary.BigEndian.Uint32(raw[8:12]),
		TopicVersion:       binary.BigEndian.Uint32(raw[12:16]),
	}, nil
}

// SyncResponse carries whichever pieces of state the sender holds that are
// newer than the requester's version vector (§4.5: "the recipient replies
// with the newer pieces it has"). Each field is a presence-flagged,
// length-prefixed optional blob so a responder that has nothing newer for
// a given piece can omit it entirely.
type SyncResponse struct {
	SharedState   []byte // encoded wire.SharedState, or nil
	ModList       []byte // encoded wire.ModList, or nil
	SanctionsList []byte // encoded wire.SanctionsList, or nil
	Topic         []byte // encoded wire.TopicInfo, or nil
}

func encodeOptional(buf []byte, field []byte) []byte {
	if field == nil {
		return append(buf, 0, 0, 0, 0)
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(field))+1)
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, 1)
	buf = append(buf, field...)
	return buf
}

func decodeOptional(raw []byte, off int) ([]byte, int, error) {
	if len(raw) < off+4 {
		return nil, 0, fmt.Errorf("wire: sync response truncated (field length)")
	}
	l := int(binary.BigEndian.Uint32(raw[off:]))
	off += 4
	if l == 0 {
		return nil, off, nil
	}
	if len(raw) < off+l {
		return nil, 0, fmt.Errorf("wire: sync response truncated (field bytes)")
	}
	present := raw[off]
	off += 1
	if present == 0 {
		return nil, off + l - 1, nil
	}
	field := append([]byte(nil), raw[off:off+l-1]...)
	off += l - 1
	return field, off, nil
}

func EncodeSyncResponse(s *SyncResponse) []byte {
	var buf []byte
	buf = encodeOptional(buf, s.SharedState)
	buf = encodeOptional(buf, s.ModList)
	buf = encodeOptional(buf, s.SanctionsList)
	buf = encodeOptional(buf, s.Topic)
	return buf
}

func DecodeSyncResponse(raw []byte) (*SyncResponse, error) {
	s := &SyncResponse{}
	off := 0
	var err error
	if s.SharedState, off, err = decodeOptional(raw, off); err != nil {
		return nil, err
	}
	if s.ModList, off, err = decodeOptional(raw, off); err != nil {
		return nil, err
	}
	if s.SanctionsList, off, err = decodeOptional(raw, off); err != nil {
		return nil, err
	}
	if s.Topic, off, err = decodeOptional(raw, off); err != nil {
		return nil, err
	}
	if off != len(raw) {
		return nil, fmt.Errorf("wire: sync response has %d trailing bytes", len(raw)-off)
	}
	return s, nil
}
