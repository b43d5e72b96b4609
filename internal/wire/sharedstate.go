package wire

import (
	"encoding/binary"
	"fmt"
)

// SharedState is the founder-signed group configuration payload (§6):
//
//	[ version:4 ][ founder_sign_pk:32 ][ chat_id:32 ][ privacy_state:1 ]
//	[ peer_limit:4 ][ password_hash:32 ][ mod_list_hash:32 ][ group_name_len:2 ][ group_name:L ]
//	[ topic_lock:1 ][ maintainer_sign_pk:32 ]
//
// followed by a 64-byte Ed25519 signature over the preceding bytes.
type SharedState struct {
	Version           uint32
	FounderSignPK     [PublicKeySize]byte
	ChatID            [ChatIDSize]byte
	Privacy           PrivacyState
	PeerLimit         uint32
	PasswordHash      [32]byte
	ModListHash       [32]byte
	GroupName         string
	TopicLock         TopicLock
	MaintainerSignPK  [PublicKeySize]byte
	Signature         [SignatureSize]byte
}

// EncodeSigned serializes the full payload including the trailing signature.
func (s *SharedState) EncodeSigned() []byte {
	body := s.encodeBody()
	return append(body, s.Signature[:]...)
}

// SignTarget returns the bytes that must be signed/verified - everything
// except the trailing signature itself.
func (s *SharedState) SignTarget() []byte {
	return s.encodeBody()
}

func (s *SharedState) encodeBody() []byte {
	name := []byte(s.GroupName)
	buf := make([]byte, 0, 4+32+32+1+4+32+32+2+len(name)+1+32)
	var tmp4 [4]byte

	binary.BigEndian.PutUint32(tmp4[:], s.Version)
	buf = append(buf, tmp4[:]...)
	buf = append(buf, s.FounderSignPK[:]...)
	buf = append(buf, s.ChatID[:]...)
	buf = append(buf, byte(s.Privacy))
	binary.BigEndian.PutUint32(tmp4[:], s.PeerLimit)
	buf = append(buf, tmp4[:]...)
	buf = append(buf, s.PasswordHash[:]...)
	buf = append(buf, s.ModListHash[:]...)
	var tmp2 [2]byte
	binary.BigEndian.PutUint16(tmp2[:], uint16(len(name)))
	buf = append(buf, tmp2[:]...)
	buf = append(buf, name...)
	buf = append(buf, byte(s.TopicLock))
	buf = append(buf, s.MaintainerSignPK[:]...)
	return buf
}

const sharedStateMinLen = 4 + 32 + 32 + 1 + 4 + 32 + 32 + 2

// DecodeSharedState parses a SharedState payload including its signature.
func DecodeSharedState(raw []byte) (*SharedState, error) {
	if len(raw) < sharedStateMinLen {
		return nil, fmt.Errorf("wire: shared state too short: %d bytes", len(raw))
	}
	s := &SharedState{}
	off := 0
	s.Version = binary.BigEndian.Uint32(raw[off:])
	off += 4
	copy(s.FounderSignPK[:], raw[off:])
	off += 32
	copy(s.ChatID[:], raw[off:])
	off += 32
	s.Privacy = PrivacyState(raw[off])
	off++
	s.PeerLimit = binary.BigEndian.Uint32(raw[off:])
	off += 4
	copy(s.PasswordHash[:], raw[off:])
	off += 32
	copy(s.ModListHash[:], raw[off:])
	off += 32
	nameLen := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	if len(raw) < off+nameLen+1+32+SignatureSize {
		return nil, fmt.Errorf("wire: shared state truncated")
	}
	if nameLen > MaxGroupNameLen {
		return nil, fmt.Errorf("wire: group name too long: %d bytes", nameLen)
	}
	s.GroupName = string(raw[off : off+nameLen])
	off += nameLen
	s.TopicLock = TopicLock(raw[off])
	off++
	copy(s.MaintainerSignPK[:], raw[off:])
	off += 32
	copy(s.Signature[:], raw[off:off+SignatureSize])
	off += SignatureSize
	if off != len(raw) {
		return nil, fmt.Errorf("wire: shared state has %d trailing bytes", len(raw)-off)
	}
	return s, nil
}

// TopicInfo is the signed topic payload (§3): topic bytes, setter sign-pk,
// version counter, signature.
type TopicInfo struct {
	Topic      string
	SetterPK   [PublicKeySize]byte
	Version    uint32
	Signature  [SignatureSize]byte
}

func (t *TopicInfo) SignTarget() []byte {
	topic := []byte(t.Topic)
	buf := make([]byte, 0, 4+32+2+len(topic))
	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], t.Version)
	buf = append(buf, tmp4[:]...)
	buf = append(buf, t.SetterPK[:]...)
	var tmp2 [2]byte
	binary.BigEndian.PutUint16(tmp2[:], uint16(len(topic)))
	buf = append(buf, tmp2[:]...)
	buf = append(buf, topic...)
	return buf
}

func (t *TopicInfo) EncodeSigned() []byte {
	return append(t.SignTarget(), t.Signature[:]...)
}

func DecodeTopicInfo(raw []byte) (*TopicInfo, error) {
	if len(raw) < 4+32+2 {
		return nil, fmt.Errorf("wire: topic info too short")
	}
	t := &TopicInfo{}
	off := 0
	t.Version = binary.BigEndian.Uint32(raw[off:])
	off += 4
	copy(t.SetterPK[:], raw[off:])
	off += 32
	topicLen := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	if topicLen > MaxTopicLen {
		return nil, fmt.Errorf("wire: topic too long: %d bytes", topicLen)
	}
	if len(raw) < off+topicLen+SignatureSize {
		return nil, fmt.Errorf("wire: topic info truncated")
	}
	t.Topic = string(raw[off : off+topicLen])
	off += topicLen
	copy(t.Signature[:], raw[off:off+SignatureSize])
	off += SignatureSize
	if off != len(raw) {
		return nil, fmt.Errorf("wire: topic info has %d trailing bytes", len(raw)-off)
	}
	return t, nil
}
