package wire

import (
	"encoding/binary"
	"fmt"
)

// BroadcastHeader is the fixed prefix of every BROADCAST packet body (§6):
// a one-byte sub-type tag followed by an 8-byte timestamp, then the
// sub-type-specific payload.
type BroadcastHeader struct {
	Type      BroadcastType
	Timestamp int64 // unix nanoseconds
	Payload   []byte
}

func EncodeBroadcast(h *BroadcastHeader) []byte {
	buf := make([]byte, 1+8+len(h.Payload))
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint64(buf[1:9], uint64(h.Timestamp))
	copy(buf[9:], h.Payload)
	return buf
}

func DecodeBroadcast(raw []byte) (*BroadcastHeader, error) {
	if len(raw) < 9 {
		return nil, fmt.Errorf("wire: broadcast body too short: %d bytes", len(raw))
	}
	return &BroadcastHeader{
		Type:      BroadcastType(raw[0]),
		Timestamp: int64(binary.BigEndian.Uint64(raw[1:9])),
		Payload:   append([]byte(nil), raw[9:]...),
	}, nil
}

// PrivateMessage is the BROADCAST/PRIVATE_MESSAGE payload: target peer_id
// plus message kind (plain/action) and body.
type PrivateMessage struct {
	TargetPeerID uint32
	Action       bool
	Body         []byte
}

func EncodePrivateMessage(m *PrivateMessage) []byte {
	buf := make([]byte, 4+1+len(m.Body))
	binary.BigEndian.PutUint32(buf[0:4], m.TargetPeerID)
	if m.Action {
		buf[4] = 1
	}
	copy(buf[5:], m.Body)
	return buf
}

func DecodePrivateMessage(raw []byte) (*PrivateMessage, error) {
	if len(raw) < 5 {
		return nil, fmt.Errorf("wire: private message too short")
	}
	return &PrivateMessage{
		TargetPeerID: binary.BigEndian.Uint32(raw[0:4]),
		Action:       raw[4] != 0,
		Body:         append([]byte(nil), raw[5:]...),
	}, nil
}

// KickPeer / SetMod / SetObserver moderation broadcast payloads all share
// the same shape: a single target X25519 public key.
type TargetPeer struct {
	EncPK [PublicKeySize]byte
}

func EncodeTargetPeer(t *TargetPeer) []byte {
	buf := make([]byte, PublicKeySize)
	copy(buf, t.EncPK[:])
	return buf
}

func DecodeTargetPeer(raw []byte) (*TargetPeer, error) {
	if len(raw) != PublicKeySize {
		return nil, fmt.Errorf("wire: target peer payload wrong size: %d bytes", len(raw))
	}
	t := &TargetPeer{}
	copy(t.EncPK[:], raw)
	return t, nil
}
