// Package invite implements the friend-channel invite handshake (§4.7):
// three messages carried over an external one-to-one messenger (not the
// group packet channel) that hand a prospective member enough to open a
// direct connection and run the standard peer handshake (§4.2) inside the
// group. The wire format here is intentionally simple binary encoding,
// matching internal/invite/code.go's manual byte-packing style, since
// these messages are already protected by the external messenger's own
// transport security.
package invite

import (
	"encoding/binary"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/groupwire/internal/wire"
)

// Invite is the first message, sent by the inviter (§4.7 step 1).
type Invite struct {
	ChatID    [wire.ChatIDSize]byte
	GroupName string
}

func (m *Invite) Encode() []byte {
	name := []byte(m.GroupName)
	buf := make([]byte, 0, 32+2+len(name))
	buf = append(buf, m.ChatID[:]...)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(name)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, name...)
	return buf
}

func DecodeInvite(raw []byte) (*Invite, error) {
	if len(raw) < 32+2 {
		return nil, fmt.Errorf("invite: message too short")
	}
	m := &Invite{}
	copy(m.ChatID[:], raw)
	off := 32
	nameLen := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	if len(raw) != off+nameLen {
		return nil, fmt.Errorf("invite: length mismatch")
	}
	if nameLen > wire.MaxGroupNameLen {
		return nil, fmt.Errorf("invite: group name too long: %d bytes", nameLen)
	}
	m.GroupName = string(raw[off:])
	return m, nil
}

// Accepted is the second message, sent by the invitee (§4.7 step 2).
type Accepted struct {
	ChatID   [wire.ChatIDSize]byte
	EncPK    [wire.PublicKeySize]byte
	SignPK   [wire.PublicKeySize]byte
	Nickname string
}

func (m *Accepted) Encode() []byte {
	name := []byte(m.Nickname)
	buf := make([]byte, 0, 32+32+32+2+len(name))
	buf = append(buf, m.ChatID[:]...)
	buf = append(buf, m.EncPK[:]...)
	buf = append(buf, m.SignPK[:]...)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(name)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, name...)
	return buf
}

func DecodeAccepted(raw []byte) (*Accepted, error) {
	if len(raw) < 32+32+32+2 {
		return nil, fmt.Errorf("invite: accepted message too short")
	}
	m := &Accepted{}
	off := 0
	copy(m.ChatID[:], raw[off:])
	off += 32
	copy(m.EncPK[:], raw[off:])
	off += 32
	copy(m.SignPK[:], raw[off:])
	off += 32
	nameLen := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	if len(raw) != off+nameLen {
		return nil, fmt.Errorf("invite: accepted message length mismatch")
	}
	if nameLen > wire.MaxNicknameLen {
		return nil, fmt.Errorf("invite: nickname too long: %d bytes", nameLen)
	}
	m.Nickname = string(raw[off:])
	return m, nil
}

// Confirmation is the third message, sent by the inviter (§4.7 step 3).
// Beyond the fields spec.md lists literally, it also carries the inviter's
// enc-pk and sign-pk: the invitee has no other way to learn them before
// opening the direct connection and sealing its INVITE_REQUEST, since the
// group-channel handshake's X25519 exchange (§4.2) requires both sides'
// encryption keys up front.
type Confirmation struct {
	ChatID       [wire.ChatIDSize]byte
	InviterEncPK [wire.PublicKeySize]byte
	InviterSignPK [wire.PublicKeySize]byte
	TCPRelays []ma.Multiaddr
	HasIPPort bool
	IP        [4]byte
	Port      uint16
}

func (m *Confirmation) Encode() ([]byte, error) {
	relayBytes, err := wire.EncodeTCPRelays(m.TCPRelays)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 32+32+32+len(relayBytes)+7)
	buf = append(buf, m.ChatID[:]...)
	buf = append(buf, m.InviterEncPK[:]...)
	buf = append(buf, m.InviterSignPK[:]...)
	buf = append(buf, relayBytes...)
	if m.HasIPPort {
		buf = append(buf, 1)
		buf = append(buf, m.IP[:]...)
		var portBuf [2]byte
		binary.BigEndian.PutUint16(portBuf[:], m.Port)
		buf = append(buf, portBuf[:]...)
	} else {
		buf = append(buf, 0)
	}
	return buf, nil
}

func DecodeConfirmation(raw []byte) (*Confirmation, error) {
	if len(raw) < 32+32+32+1 {
		return nil, fmt.Errorf("invite: confirmation too short")
	}
	m := &Confirmation{}
	off := 0
	copy(m.ChatID[:], raw[off:])
	off += 32
	copy(m.InviterEncPK[:], raw[off:])
	off += 32
	copy(m.InviterSignPK[:], raw[off:])
	off += 32

	if len(raw) < off+1 {
		return nil, fmt.Errorf("invite: confirmation truncated (relay count)")
	}
	relayCount := int(raw[off])
	scan := off + 1
	for i := 0; i < relayCount; i++ {
		if len(raw) < scan+2 {
			return nil, fmt.Errorf("invite: confirmation truncated (relay length)")
		}
		l := int(binary.BigEndian.Uint16(raw[scan:]))
		scan += 2 + l
	}
	relays, err := wire.DecodeTCPRelays(raw[off:scan])
	if err != nil {
		return nil, err
	}
	m.TCPRelays = relays
	off = scan

	if len(raw) < off+1 {
		return nil, fmt.Errorf("invite: confirmation truncated (ip_port flag)")
	}
	hasIPPort := raw[off]
	off++
	if hasIPPort != 0 {
		if len(raw) != off+6 {
			return nil, fmt.Errorf("invite: confirmation truncated (ip_port)")
		}
		m.HasIPPort = true
		copy(m.IP[:], raw[off:])
		off += 4
		m.Port = binary.BigEndian.Uint16(raw[off:])
		off += 2
	} else if off != len(raw) {
		return nil, fmt.Errorf("invite: confirmation has %d trailing bytes", len(raw)-off)
	}
	return m, nil
}
