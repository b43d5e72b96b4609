package wire

import (
	"encoding/binary"
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
)

// MaxTCPRelays bounds the number of relay addresses carried in one
// TCP_RELAYS packet or FRIEND_INVITE confirmation (§4.7).
const MaxTCPRelays = 8

// EncodeTCPRelays serializes a list of relay multiaddrs as
// [count:1]{[len:2][bytes:len]}*, matching the length-prefixed-field style
// internal/invite/code.go uses for its relay address field, but generalized
// to a list and to the canonical multiaddr binary form instead of a raw
// IPv4+port pair so relay addresses carrying a /p2p/ peer ID round-trip
// exactly.
func EncodeTCPRelays(relays []ma.Multiaddr) ([]byte, error) {
	if len(relays) > MaxTCPRelays {
		return nil, fmt.Errorf("wire: too many TCP relays: %d (max %d)", len(relays), MaxTCPRelays)
	}
	buf := []byte{byte(len(relays))}
	for _, r := range relays {
		b := r.Bytes()
		if len(b) > 0xFFFF {
			return nil, fmt.Errorf("wire: relay address too long: %d bytes", len(b))
		}
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, b...)
	}
	return buf, nil
}

// DecodeTCPRelays parses the output of EncodeTCPRelays.
func DecodeTCPRelays(raw []byte) ([]ma.Multiaddr, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("wire: tcp relays payload empty")
	}
	count := int(raw[0])
	if count > MaxTCPRelays {
		return nil, fmt.Errorf("wire: tcp relays count %d exceeds max %d", count, MaxTCPRelays)
	}
	off := 1
	relays := make([]ma.Multiaddr, 0, count)
	for i := 0; i < count; i++ {
		if len(raw) < off+2 {
			return nil, fmt.Errorf("wire: tcp relays truncated (length prefix)")
		}
		l := int(binary.BigEndian.Uint16(raw[off:]))
		off += 2
		if len(raw) < off+l {
			return nil, fmt.Errorf("wire: tcp relays truncated (address bytes)")
		}
		addr, err := ma.NewMultiaddrBytes(raw[off : off+l])
		if err != nil {
			return nil, fmt.Errorf("wire: invalid relay multiaddr: %w", err)
		}
		relays = append(relays, addr)
		off += l
	}
	if off != len(raw) {
		return nil, fmt.Errorf("wire: tcp relays has %d trailing bytes", len(raw)-off)
	}
	return relays, nil
}
