package wire

import (
	"encoding/binary"
	"fmt"
)

// SanctionEntry is one signed moderation event (§6):
//
//	[ version:4 ][ target_sign_pk:32 ][ event:1 ][ issuer_sign_pk:32 ][ signature:64 ]
//
// Each entry is independently verifiable against its own issuer_sign_pk.
type SanctionEntry struct {
	Version    uint32
	TargetPK   [PublicKeySize]byte
	Event      ModerationEventType
	IssuerPK   [PublicKeySize]byte
	Signature  [SignatureSize]byte
}

func (e *SanctionEntry) SignTarget() []byte {
	buf := make([]byte, 0, 4+32+1+32)
	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], e.Version)
	buf = append(buf, tmp4[:]...)
	buf = append(buf, e.TargetPK[:]...)
	buf = append(buf, byte(e.Event))
	buf = append(buf, e.IssuerPK[:]...)
	return buf
}

func (e *SanctionEntry) EncodeSigned() []byte {
	return append(e.SignTarget(), e.Signature[:]...)
}

const sanctionEntryLen = 4 + 32 + 1 + 32 + SignatureSize

func DecodeSanctionEntry(raw []byte) (*SanctionEntry, error) {
	if len(raw) != sanctionEntryLen {
		return nil, fmt.Errorf("wire: sanction entry wrong size: %d bytes, want %d", len(raw), sanctionEntryLen)
	}
	e := &SanctionEntry{}
	off := 0
	e.Version = binary.BigEndian.Uint32(raw[off:])
	off += 4
	copy(e.TargetPK[:], raw[off:])
	off += 32
	e.Event = ModerationEventType(raw[off])
	off++
	copy(e.IssuerPK[:], raw[off:])
	off += 32
	copy(e.Signature[:], raw[off:off+SignatureSize])
	return e, nil
}

// ModList is the founder-signed moderator roster (§3, §4.4).
type ModList struct {
	Version    uint32
	Moderators [][PublicKeySize]byte
	Signature  [SignatureSize]byte
}

func (m *ModList) SignTarget() []byte {
	buf := make([]byte, 0, 4+2+len(m.Moderators)*32)
	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], m.Version)
	buf = append(buf, tmp4[:]...)
	var tmp2 [2]byte
	binary.BigEndian.PutUint16(tmp2[:], uint16(len(m.Moderators)))
	buf = append(buf, tmp2[:]...)
	for _, pk := range m.Moderators {
		buf = append(buf, pk[:]...)
	}
	return buf
}

func (m *ModList) EncodeSigned() []byte {
	return append(m.SignTarget(), m.Signature[:]...)
}

func DecodeModList(raw []byte) (*ModList, error) {
	if len(raw) < 4+2 {
		return nil, fmt.Errorf("wire: mod list too short")
	}
	m := &ModList{}
	off := 0
	m.Version = binary.BigEndian.Uint32(raw[off:])
	off += 4
	count := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	if len(raw) != off+count*32+SignatureSize {
		return nil, fmt.Errorf("wire: mod list length mismatch")
	}
	m.Moderators = make([][PublicKeySize]byte, count)
	for i := 0; i < count; i++ {
		copy(m.Moderators[i][:], raw[off:])
		off += 32
	}
	copy(m.Signature[:], raw[off:off+SignatureSize])
	return m, nil
}

// SanctionsList is the moderator-signed sanctions roster (§3, §4.4). The
// Credential is the founder-issued block proving IssuerPK was a moderator
// (or the founder) at the time the list was signed.
type SanctionsList struct {
	Version    uint32
	Entries    []SanctionEntry
	IssuerPK   [PublicKeySize]byte
	Credential [SignatureSize]byte
}

func (l *SanctionsList) EncodeSigned() []byte {
	var tmp4 [4]byte
	buf := make([]byte, 0, 4+2+len(l.Entries)*sanctionEntryLen+32+SignatureSize)
	binary.BigEndian.PutUint32(tmp4[:], l.Version)
	buf = append(buf, tmp4[:]...)
	var cnt [2]byte
	binary.BigEndian.PutUint16(cnt[:], uint16(len(l.Entries)))
	buf = append(buf, cnt[:]...)
	for i := range l.Entries {
		buf = append(buf, l.Entries[i].EncodeSigned()...)
	}
	buf = append(buf, l.IssuerPK[:]...)
	buf = append(buf, l.Credential[:]...)
	return buf
}

func DecodeSanctionsList(raw []byte) (*SanctionsList, error) {
	if len(raw) < 4+2+32+SignatureSize {
		return nil, fmt.Errorf("wire: sanctions list too short")
	}
	l := &SanctionsList{}
	off := 0
	l.Version = binary.BigEndian.Uint32(raw[off:])
	off += 4
	count := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	want := off + count*sanctionEntryLen + 32 + SignatureSize
	if len(raw) != want {
		return nil, fmt.Errorf("wire: sanctions list length mismatch: got %d, want %d", len(raw), want)
	}
	l.Entries = make([]SanctionEntry, count)
	for i := 0; i < count; i++ {
		e, err := DecodeSanctionEntry(raw[off : off+sanctionEntryLen])
		if err != nil {
			return nil, err
		}
		l.Entries[i] = *e
		off += sanctionEntryLen
	}
	copy(l.IssuerPK[:], raw[off:])
	off += 32
	copy(l.Credential[:], raw[off:off+SignatureSize])
	return l, nil
}

// CredentialSignTarget is what the founder signs to vouch that issuerPK
// may publish a sanctions list at the given version.
func CredentialSignTarget(version uint32, issuerPK [PublicKeySize]byte) []byte {
	buf := make([]byte, 0, 4+32)
	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], version)
	buf = append(buf, tmp4[:]...)
	buf = append(buf, issuerPK[:]...)
	return buf
}
