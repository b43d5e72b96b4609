package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// PingIDSize is the size of the announce responder's anti-replay challenge
// (§4.6, §6).
const PingIDSize = 32

// SendbackSize is the size of the opaque correlation token the searcher
// attaches to an announce request and the responder echoes back (§6,
// GLOSSARY "Sendback").
const SendbackSize = 8

// GroupAnnounceBlob is the group-scoped payload inside an onion announce
// request/response (§4.6, §6): "a group-scoped blob: {chat_id,
// peer_public_key, peer_sign_public_key, ip_port?, tcp_relays[]}".
type GroupAnnounceBlob struct {
	ChatID           [ChatIDSize]byte
	PeerPublicKey    [PublicKeySize]byte
	PeerSignPublicKey [PublicKeySize]byte
	HasIPPort        bool
	IP               [4]byte
	Port             uint16
	TCPRelays        []ma.Multiaddr
}

func (b *GroupAnnounceBlob) Encode() ([]byte, error) {
	relayBytes, err := EncodeTCPRelays(b.TCPRelays)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 32+32+32+1+6+len(relayBytes))
	buf = append(buf, b.ChatID[:]...)
	buf = append(buf, b.PeerPublicKey[:]...)
	buf = append(buf, b.PeerSignPublicKey[:]...)
	if b.HasIPPort {
		buf = append(buf, 1)
		buf = append(buf, b.IP[:]...)
		var portBuf [2]byte
		binary.BigEndian.PutUint16(portBuf[:], b.Port)
		buf = append(buf, portBuf[:]...)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, relayBytes...)
	return buf, nil
}

func DecodeGroupAnnounceBlob(raw []byte) (*GroupAnnounceBlob, int, error) {
	if len(raw) < 32+32+32+1 {
		return nil, 0, fmt.Errorf("wire: group announce blob too short")
	}
	b := &GroupAnnounceBlob{}
	off := 0
	copy(b.ChatID[:], raw[off:])
	off += 32
	copy(b.PeerPublicKey[:], raw[off:])
	off += 32
	copy(b.PeerSignPublicKey[:], raw[off:])
	off += 32
	hasIPPort := raw[off]
	off++
	if hasIPPort != 0 {
		if len(raw) < off+6 {
			return nil, 0, fmt.Errorf("wire: group announce blob truncated (ip_port)")
		}
		b.HasIPPort = true
		copy(b.IP[:], raw[off:])
		off += 4
		b.Port = binary.BigEndian.Uint16(raw[off:])
		off += 2
	}
	if len(raw) < off+1 {
		return nil, 0, fmt.Errorf("wire: group announce blob truncated (relay count)")
	}
	relayCount := int(raw[off])
	relayTotalLen := 1
	scan := off + 1
	for i := 0; i < relayCount; i++ {
		if len(raw) < scan+2 {
			return nil, 0, fmt.Errorf("wire: group announce blob truncated (relay length)")
		}
		l := int(binary.BigEndian.Uint16(raw[scan:]))
		scan += 2 + l
		relayTotalLen += 2 + l
	}
	if len(raw) < off+relayTotalLen {
		return nil, 0, fmt.Errorf("wire: group announce blob truncated (relay bytes)")
	}
	relays, err := DecodeTCPRelays(raw[off : off+relayTotalLen])
	if err != nil {
		return nil, 0, err
	}
	b.TCPRelays = relays
	off += relayTotalLen
	return b, off, nil
}

// AnnounceRequest is the plaintext onion announce request payload (§6):
//
//	[ ping_id:32 ][ search_pk:32 ][ data_pk:32 ][ sendback:8 ]
//	[ group_announce_blob: variable ]
type AnnounceRequest struct {
	PingID   [PingIDSize]byte
	SearchPK [PublicKeySize]byte
	DataPK   [PublicKeySize]byte
	Sendback [SendbackSize]byte
	Blob     GroupAnnounceBlob
}

func (r *AnnounceRequest) Encode() ([]byte, error) {
	blob, err := r.Blob.Encode()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 32+32+32+8+len(blob))
	buf = append(buf, r.PingID[:]...)
	buf = append(buf, r.SearchPK[:]...)
	buf = append(buf, r.DataPK[:]...)
	buf = append(buf, r.Sendback[:]...)
	buf = append(buf, blob...)
	return buf, nil
}

func DecodeAnnounceRequest(raw []byte) (*AnnounceRequest, error) {
	if len(raw) < 32+32+32+8 {
		return nil, fmt.Errorf("wire: announce request too short")
	}
	r := &AnnounceRequest{}
	off := 0
	copy(r.PingID[:], raw[off:])
	off += 32
	copy(r.SearchPK[:], raw[off:])
	off += 32
	copy(r.DataPK[:], raw[off:])
	off += 32
	copy(r.Sendback[:], raw[off:])
	off += 8
	blob, n, err := DecodeGroupAnnounceBlob(raw[off:])
	if err != nil {
		return nil, err
	}
	r.Blob = *blob
	off += n
	if off != len(raw) {
		return nil, fmt.Errorf("wire: announce request has %d trailing bytes", len(raw)-off)
	}
	return r, nil
}

// AnnounceStatus is the first byte of an AnnounceResponse (§6).
type AnnounceStatus byte

const (
	AnnounceNotStored         AnnounceStatus = 0
	AnnounceStoredWithDataPK  AnnounceStatus = 1
	AnnounceStoredWithPingID  AnnounceStatus = 2
)

// CloseNode is one DHT-close candidate the responder suggests the searcher
// try next (§4.6 "up to MAX_SENT_NODES DHT-close candidates").
type CloseNode struct {
	ID   peer.ID
	Addr ma.Multiaddr
}

// AnnounceResponse is the onion announce response payload (§6):
//
//	[ status:1 ][ ping_id_or_data_pk:32 ][ node_count:1 ][ nodes:pack ]
//	[ announce_count:1 ][ announces:pack ]
type AnnounceResponse struct {
	Status          AnnounceStatus
	PingIDOrDataPK  [32]byte
	Nodes           []CloseNode
	Announces       []GroupAnnounceBlob
}

func (r *AnnounceResponse) Encode() ([]byte, error) {
	buf := make([]byte, 0, 1+32+1+1)
	buf = append(buf, byte(r.Status))
	buf = append(buf, r.PingIDOrDataPK[:]...)
	if len(r.Nodes) > 0xFF {
		return nil, fmt.Errorf("wire: too many close nodes: %d", len(r.Nodes))
	}
	buf = append(buf, byte(len(r.Nodes)))
	for _, n := range r.Nodes {
		idBytes := []byte(n.ID)
		if len(idBytes) > 0xFF {
			return nil, fmt.Errorf("wire: peer id too long: %d bytes", len(idBytes))
		}
		buf = append(buf, byte(len(idBytes)))
		buf = append(buf, idBytes...)
		addrBytes := n.Addr.Bytes()
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(addrBytes)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, addrBytes...)
	}
	if len(r.Announces) > 0xFF {
		return nil, fmt.Errorf("wire: too many announces: %d", len(r.Announces))
	}
	buf = append(buf, byte(len(r.Announces)))
	for i := range r.Announces {
		ab, err := r.Announces[i].Encode()
		if err != nil {
			return nil, err
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(ab)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, ab...)
	}
	return buf, nil
}

func DecodeAnnounceResponse(raw []byte) (*AnnounceResponse, error) {
	if len(raw) < 1+32+1 {
		return nil, fmt.Errorf("wire: announce response too short")
	}
	r := &AnnounceResponse{Status: AnnounceStatus(raw[0])}
	off := 1
	copy(r.PingIDOrDataPK[:], raw[off:])
	off += 32
	nodeCount := int(raw[off])
	off++
	for i := 0; i < nodeCount; i++ {
		if len(raw) < off+1 {
			return nil, fmt.Errorf("wire: announce response truncated (node id len)")
		}
		idLen := int(raw[off])
		off++
		if len(raw) < off+idLen+2 {
			return nil, fmt.Errorf("wire: announce response truncated (node id)")
		}
		id := peer.ID(raw[off : off+idLen])
		off += idLen
		addrLen := int(binary.BigEndian.Uint16(raw[off:]))
		off += 2
		if len(raw) < off+addrLen {
			return nil, fmt.Errorf("wire: announce response truncated (node addr)")
		}
		addr, err := ma.NewMultiaddrBytes(raw[off : off+addrLen])
		if err != nil {
			return nil, fmt.Errorf("wire: invalid close-node multiaddr: %w", err)
		}
		off += addrLen
		r.Nodes = append(r.Nodes, CloseNode{ID: id, Addr: addr})
	}
	if len(raw) < off+1 {
		return nil, fmt.Errorf("wire: announce response truncated (announce count)")
	}
	announceCount := int(raw[off])
	off++
	for i := 0; i < announceCount; i++ {
		if len(raw) < off+2 {
			return nil, fmt.Errorf("wire: announce response truncated (announce len)")
		}
		l := int(binary.BigEndian.Uint16(raw[off:]))
		off += 2
		if len(raw) < off+l {
			return nil, fmt.Errorf("wire: announce response truncated (announce bytes)")
		}
		blob, n, err := DecodeGroupAnnounceBlob(raw[off : off+l])
		if err != nil {
			return nil, err
		}
		if n != l {
			return nil, fmt.Errorf("wire: announce blob has %d trailing bytes", l-n)
		}
		r.Announces = append(r.Announces, *blob)
		off += l
	}
	if off != len(raw) {
		return nil, fmt.Errorf("wire: announce response has %d trailing bytes", len(raw)-off)
	}
	return r, nil
}
