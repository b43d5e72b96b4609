package wire

import (
	"encoding/binary"
	"fmt"
)

// HandshakeHello is the INVITE_REQUEST/INVITE_RESPONSE body (§4.2): the
// sender's signing key (needed for role derivation, since the envelope
// only exposes the encryption key used for X25519), the group it wants to
// join, its chosen nickname, and - on INVITE_REQUEST only, when the group
// is password-gated - the SHA-256 of the password it was given out of
// band. HS_RESPONSE_ACK carries no body.
type HandshakeHello struct {
	ChatID       [ChatIDSize]byte
	SignPK       [PublicKeySize]byte
	Nickname     string
	PasswordHash [32]byte
}

func EncodeHandshakeHello(h *HandshakeHello) []byte {
	name := []byte(h.Nickname)
	buf := make([]byte, 0, ChatIDSize+PublicKeySize+2+len(name)+32)
	buf = append(buf, h.ChatID[:]...)
	buf = append(buf, h.SignPK[:]...)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(name)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, name...)
	buf = append(buf, h.PasswordHash[:]...)
	return buf
}

func DecodeHandshakeHello(raw []byte) (*HandshakeHello, error) {
	const fixed = ChatIDSize + PublicKeySize + 2
	if len(raw) < fixed {
		return nil, fmt.Errorf("wire: handshake hello too short: %d bytes", len(raw))
	}
	h := &HandshakeHello{}
	off := 0
	copy(h.ChatID[:], raw[off:])
	off += ChatIDSize
	copy(h.SignPK[:], raw[off:])
	off += PublicKeySize
	nameLen := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	if len(raw) != off+nameLen+32 {
		return nil, fmt.Errorf("wire: handshake hello length mismatch")
	}
	if nameLen > MaxNicknameLen {
		return nil, fmt.Errorf("wire: nickname too long: %d bytes", nameLen)
	}
	h.Nickname = string(raw[off : off+nameLen])
	off += nameLen
	copy(h.PasswordHash[:], raw[off:])
	return h, nil
}

// InviteReject is the INVITE_RESPONSE_REJECT body (§6, §8 scenario 6): a
// short machine-readable reason so the initiator can distinguish a wrong
// password from a full group without parsing free text.
type InviteReject struct {
	Reason string
}

func EncodeInviteReject(r *InviteReject) []byte {
	return []byte(r.Reason)
}

func DecodeInviteReject(raw []byte) *InviteReject {
	return &InviteReject{Reason: string(raw)}
}
