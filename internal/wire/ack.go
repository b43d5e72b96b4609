package wire

import (
	"encoding/binary"
	"fmt"
)

// AckKind mirrors internal/group/lossless.AckKind on the wire (§4.3): a
// plain receipt confirmation, or a request to retransmit a specific id.
type AckKind byte

const (
	AckKindRecv    AckKind = 0
	AckKindRequest AckKind = 1
)

// MessageAck is the MESSAGE_ACK lossy packet body (§6).
type MessageAck struct {
	Kind AckKind
	ID   uint64
}

func EncodeMessageAck(a *MessageAck) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(a.Kind)
	binary.BigEndian.PutUint64(buf[1:], a.ID)
	return buf
}

func DecodeMessageAck(raw []byte) (*MessageAck, error) {
	if len(raw) != 9 {
		return nil, fmt.Errorf("wire: message ack wrong size: %d bytes", len(raw))
	}
	return &MessageAck{Kind: AckKind(raw[0]), ID: binary.BigEndian.Uint64(raw[1:])}, nil
}

// KeyRotation is the KEY_ROTATION body (§6): the sender's new X25519
// public key, used to re-derive the shared session key without tearing
// down the connection.
type KeyRotation struct {
	NewEncPK [PublicKeySize]byte
}

func EncodeKeyRotation(k *KeyRotation) []byte {
	buf := make([]byte, PublicKeySize)
	copy(buf, k.NewEncPK[:])
	return buf
}

func DecodeKeyRotation(raw []byte) (*KeyRotation, error) {
	if len(raw) != PublicKeySize {
		return nil, fmt.Errorf("wire: key rotation wrong size: %d bytes", len(raw))
	}
	k := &KeyRotation{}
	copy(k.NewEncPK[:], raw)
	return k, nil
}
