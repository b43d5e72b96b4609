// Package wire implements the group-channel packet framing and binary
// payload layouts fixed by the protocol (§6): the outer envelope, the
// lossless message-id prefix, the closed enumeration of packet and
// broadcast-subtype tags, and the fixed-layout signed payloads (shared
// state, moderation events, onion announce). Decoding is implemented as a
// tagged-variant switch, never virtual dispatch, per the Design Notes in
// spec.md §9.
package wire

import "fmt"

// Fixed sizes (§6).
const (
	PublicKeySize      = 32
	SecretKeySize      = 32
	SignatureSize      = 64
	NonceSize          = 24
	MACSize            = 16
	ChatIDSize         = 32
	MaxGroupNameLen    = 48
	MaxNicknameLen     = 128
	MaxTopicLen        = 512
	MaxPasswordLen     = 32
	MaxPartMessageLen  = 128
	MaxMessageLen      = 1372
	MaxCustomPacketLen = 1373
)

// PacketType is the one-byte tag at the start of every group-channel
// plaintext (§6). The high bit distinguishes lossless (0xF0-0xFF) from
// lossy (0x01-0x04) types.
type PacketType byte

const (
	PacketPing                   PacketType = 0x01
	PacketMessageAck             PacketType = 0x02
	PacketInviteResponseReject   PacketType = 0x03
	// PacketCustomLossy carries the same application payload as
	// PacketCustom but bypasses the reliable queue entirely, mirroring
	// group_chats.h's lossy/lossless split for gc_send_custom_packet.
	PacketCustomLossy            PacketType = 0x04
	PacketKeyRotation            PacketType = 0xF0
	PacketTCPRelays              PacketType = 0xF1
	PacketCustom                 PacketType = 0xF2
	PacketBroadcast              PacketType = 0xF3
	PacketPeerInfoRequest        PacketType = 0xF4
	PacketPeerInfoResponse       PacketType = 0xF5
	PacketInviteRequest          PacketType = 0xF6
	PacketInviteResponse         PacketType = 0xF7
	PacketSyncRequest            PacketType = 0xF8
	PacketSyncResponse           PacketType = 0xF9
	PacketTopic                  PacketType = 0xFA
	PacketSharedState            PacketType = 0xFB
	PacketModList                PacketType = 0xFC
	PacketSanctionsList          PacketType = 0xFD
	PacketFriendInvite           PacketType = 0xFE
	PacketHSResponseAck          PacketType = 0xFF
)

// IsLossless reports whether packets of this type travel through the
// lossless send/recv queue (§4.3) and therefore carry a message_id.
func (t PacketType) IsLossless() bool {
	switch t {
	case PacketPing, PacketMessageAck, PacketInviteResponseReject, PacketCustomLossy:
		return false
	default:
		return true
	}
}

func (t PacketType) String() string {
	switch t {
	case PacketPing:
		return "PING"
	case PacketMessageAck:
		return "MESSAGE_ACK"
	case PacketInviteResponseReject:
		return "INVITE_RESPONSE_REJECT"
	case PacketCustomLossy:
		return "CUSTOM_PACKET_LOSSY"
	case PacketKeyRotation:
		return "KEY_ROTATION"
	case PacketTCPRelays:
		return "TCP_RELAYS"
	case PacketCustom:
		return "CUSTOM_PACKET"
	case PacketBroadcast:
		return "BROADCAST"
	case PacketPeerInfoRequest:
		return "PEER_INFO_REQUEST"
	case PacketPeerInfoResponse:
		return "PEER_INFO_RESPONSE"
	case PacketInviteRequest:
		return "INVITE_REQUEST"
	case PacketInviteResponse:
		return "INVITE_RESPONSE"
	case PacketSyncRequest:
		return "SYNC_REQUEST"
	case PacketSyncResponse:
		return "SYNC_RESPONSE"
	case PacketTopic:
		return "TOPIC"
	case PacketSharedState:
		return "SHARED_STATE"
	case PacketModList:
		return "MOD_LIST"
	case PacketSanctionsList:
		return "SANCTIONS_LIST"
	case PacketFriendInvite:
		return "FRIEND_INVITE"
	case PacketHSResponseAck:
		return "HS_RESPONSE_ACK"
	default:
		return fmt.Sprintf("PacketType(0x%02x)", byte(t))
	}
}

// BroadcastType is the one-byte tag inside a BROADCAST packet body (§6).
type BroadcastType byte

const (
	BroadcastStatus         BroadcastType = 0x00
	BroadcastNick           BroadcastType = 0x01
	BroadcastPlainMessage   BroadcastType = 0x02
	BroadcastActionMessage  BroadcastType = 0x03
	BroadcastPrivateMessage BroadcastType = 0x04
	BroadcastPeerExit       BroadcastType = 0x05
	BroadcastKickPeer       BroadcastType = 0x06
	BroadcastSetMod         BroadcastType = 0x07
	BroadcastSetObserver    BroadcastType = 0x08
)

func (t BroadcastType) String() string {
	switch t {
	case BroadcastStatus:
		return "STATUS"
	case BroadcastNick:
		return "NICK"
	case BroadcastPlainMessage:
		return "PLAIN_MESSAGE"
	case BroadcastActionMessage:
		return "ACTION_MESSAGE"
	case BroadcastPrivateMessage:
		return "PRIVATE_MESSAGE"
	case BroadcastPeerExit:
		return "PEER_EXIT"
	case BroadcastKickPeer:
		return "KICK_PEER"
	case BroadcastSetMod:
		return "SET_MOD"
	case BroadcastSetObserver:
		return "SET_OBSERVER"
	default:
		return fmt.Sprintf("BroadcastType(0x%02x)", byte(t))
	}
}

// PrivacyState is the group's announce visibility (§3).
type PrivacyState byte

const (
	PrivacyPublic  PrivacyState = 0
	PrivacyPrivate PrivacyState = 1
)

// TopicLock controls whether only founder/moderators may set the topic (§4.4).
type TopicLock byte

const (
	TopicLockDisabled TopicLock = 0
	TopicLockEnabled  TopicLock = 1
)

// ModerationEventType tags a signed moderation action (§6).
type ModerationEventType byte

const (
	ModEventSetObserver ModerationEventType = 0x00
	ModEventUnsetObserver ModerationEventType = 0x01
)
