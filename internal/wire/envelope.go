package wire

import (
	"encoding/binary"
	"fmt"
)

// NetType labels the underlying substrate of a framed packet (§4.2
// "direct UDP when reachable, TCP relays as fallback"). It is the first
// byte of every on-wire packet (§6). pkg/session stamps NetTypeUDP on
// every packet it seals for a roster peer, relay sends included, and on
// receipt takes the substrate from the transport callback rather than
// from this byte.
type NetType byte

const (
	NetTypeUDP NetType = 0x01
	NetTypeTCP NetType = 0x02
)

// Envelope is the outer, unauthenticated-except-by-AEAD framing of every
// group-channel packet (§6):
//
//	[ net_type : 1 ][ sender_enc_pk : 32 ][ nonce : 24 ][ AEAD_seal(...) ]
type Envelope struct {
	NetType    NetType
	SenderPK   [PublicKeySize]byte
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

const envelopeHeaderLen = 1 + PublicKeySize + NonceSize

// Encode serializes the envelope.
func (e *Envelope) Encode() []byte {
	buf := make([]byte, envelopeHeaderLen+len(e.Ciphertext))
	buf[0] = byte(e.NetType)
	copy(buf[1:], e.SenderPK[:])
	copy(buf[1+PublicKeySize:], e.Nonce[:])
	copy(buf[envelopeHeaderLen:], e.Ciphertext)
	return buf
}

// DecodeEnvelope parses the outer framing without touching the sealed
// payload.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	if len(raw) < envelopeHeaderLen {
		return nil, fmt.Errorf("wire: envelope too short: %d bytes", len(raw))
	}
	e := &Envelope{NetType: NetType(raw[0])}
	copy(e.SenderPK[:], raw[1:1+PublicKeySize])
	copy(e.Nonce[:], raw[1+PublicKeySize:envelopeHeaderLen])
	e.Ciphertext = append([]byte(nil), raw[envelopeHeaderLen:]...)
	return e, nil
}

// Plaintext is the sealed payload's structure (§6):
//
//	[ gp_packet_type : 1 ][ message_id : 8 (lossless only) ][ body ]
type Plaintext struct {
	Type      PacketType
	MessageID uint64 // meaningful only when Type.IsLossless()
	Body      []byte
}

// EncodePlaintext serializes the plaintext that gets AEAD-sealed.
func EncodePlaintext(p *Plaintext) []byte {
	if !p.Type.IsLossless() {
		buf := make([]byte, 1+len(p.Body))
		buf[0] = byte(p.Type)
		copy(buf[1:], p.Body)
		return buf
	}
	buf := make([]byte, 1+8+len(p.Body))
	buf[0] = byte(p.Type)
	binary.BigEndian.PutUint64(buf[1:9], p.MessageID)
	copy(buf[9:], p.Body)
	return buf
}

// DecodePlaintext parses a plaintext payload into its type, message id
// (when lossless) and body.
func DecodePlaintext(raw []byte) (*Plaintext, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("wire: empty plaintext")
	}
	t := PacketType(raw[0])
	if !t.IsLossless() {
		return &Plaintext{Type: t, Body: append([]byte(nil), raw[1:]...)}, nil
	}
	if len(raw) < 9 {
		return nil, fmt.Errorf("wire: lossless plaintext missing message_id: %d bytes", len(raw))
	}
	return &Plaintext{
		Type:      t,
		MessageID: binary.BigEndian.Uint64(raw[1:9]),
		Body:      append([]byte(nil), raw[9:]...),
	}, nil
}
