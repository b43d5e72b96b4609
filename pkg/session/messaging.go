package session

import (
	"fmt"
	"time"

	"github.com/shurlinet/groupwire/internal/group"
	"github.com/shurlinet/groupwire/internal/group/broadcast"
	"github.com/shurlinet/groupwire/internal/group/sharedstate"
	"github.com/shurlinet/groupwire/internal/gwcrypto"
	"github.com/shurlinet/groupwire/internal/wire"
)

// ErrMessageTooLong is returned when a message body exceeds MaxMessageLen.
var ErrMessageTooLong = fmt.Errorf("session: message exceeds max length")

// ErrCustomPacketTooLong is returned when a custom packet exceeds
// MaxCustomPacketLen.
var ErrCustomPacketTooLong = fmt.Errorf("session: custom packet exceeds max length")

func (m *Manager) groupState(chatID [wire.ChatIDSize]byte) (*groupState, error) {
	gs, ok := m.groups[chatID]
	if !ok {
		return nil, ErrUnknownGroup
	}
	return gs, nil
}

func (m *Manager) fanOutBroadcast(gs *groupState, kind wire.BroadcastType, payload []byte) error {
	body := broadcast.BuildBroadcast(kind, payload, time.Now())
	return m.fanOutPacket(gs, wire.PacketBroadcast, body)
}

// fanOutPacket sends a pre-built lossless body to every confirmed peer,
// used for the authority packets (TOPIC, SHARED_STATE) as well as
// BROADCAST sub-messages (§4.4, §4.5).
func (m *Manager) fanOutPacket(gs *groupState, packetType wire.PacketType, body []byte) error {
	var firstErr error
	gs.g.Roster.Range(func(h group.PeerHandle, rec *group.PeerRecord) bool {
		if !rec.Conn.Confirmed() {
			return true
		}
		if err := m.sendLossless(gs, h, rec, packetType, body); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// SendPlainMessage broadcasts a plain chat message to every confirmed peer
// (§4.5).
func (m *Manager) SendPlainMessage(chatID [wire.ChatIDSize]byte, body []byte) error {
	if len(body) > wire.MaxMessageLen {
		return ErrMessageTooLong
	}
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	return m.fanOutBroadcast(gs, wire.BroadcastPlainMessage, body)
}

// SendActionMessage broadcasts an action ("/me ...") message.
func (m *Manager) SendActionMessage(chatID [wire.ChatIDSize]byte, body []byte) error {
	if len(body) > wire.MaxMessageLen {
		return ErrMessageTooLong
	}
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	return m.fanOutBroadcast(gs, wire.BroadcastActionMessage, body)
}

// SendPrivateMessage sends a targeted message to one peer, still routed
// through the BROADCAST envelope but addressed to a single peer_id and
// delivered only to that peer (§4.5, §6 PrivateMessage payload).
func (m *Manager) SendPrivateMessage(chatID [wire.ChatIDSize]byte, targetPeerID uint32, body []byte, action bool) error {
	if len(body) > wire.MaxMessageLen {
		return ErrMessageTooLong
	}
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	h, rec, err := gs.g.Roster.ByPeerID(targetPeerID)
	if err != nil {
		return err
	}
	payload := wire.EncodePrivateMessage(&wire.PrivateMessage{TargetPeerID: targetPeerID, Action: action, Body: body})
	wrapped := broadcast.BuildBroadcast(wire.BroadcastPrivateMessage, payload, time.Now())
	return m.sendLossless(gs, h, rec, wire.PacketBroadcast, wrapped)
}

// SendCustomPacket sends an application-defined packet to one peer, either
// lossless (queued, acked, retransmitted) or lossy (fire-and-forget) per
// the caller's choice - group_chats.h's gc_send_custom_packet split
// between PACKET_ID_CUSTOM_LOSSLESS and PACKET_ID_CUSTOM_LOSSY.
func (m *Manager) SendCustomPacket(chatID [wire.ChatIDSize]byte, targetPeerID uint32, lossless bool, body []byte) error {
	if len(body) > wire.MaxCustomPacketLen {
		return ErrCustomPacketTooLong
	}
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	h, rec, err := gs.g.Roster.ByPeerID(targetPeerID)
	if err != nil {
		return err
	}
	if lossless {
		return m.sendLossless(gs, h, rec, wire.PacketCustom, body)
	}
	return m.sealAndDispatch(gs, rec, wire.PacketCustomLossy, 0, body)
}

// SetNickname changes this host's own nickname and broadcasts the change.
func (m *Manager) SetNickname(chatID [wire.ChatIDSize]byte, nickname string) error {
	if len(nickname) > wire.MaxNicknameLen {
		return fmt.Errorf("session: nickname too long")
	}
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	gs.selfNickname = nickname
	return m.fanOutBroadcast(gs, wire.BroadcastNick, []byte(nickname))
}

// SetStatus changes this host's presence status and broadcasts it.
func (m *Manager) SetStatus(chatID [wire.ChatIDSize]byte, status byte) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	gs.selfStatus = status
	return m.fanOutBroadcast(gs, wire.BroadcastStatus, []byte{status})
}

// ToggleIgnore sets or clears the ignore flag for a peer (§3 "ignored",
// §8 P7).
func (m *Manager) ToggleIgnore(chatID [wire.ChatIDSize]byte, targetPeerID uint32, ignored bool) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	_, rec, err := gs.g.Roster.ByPeerID(targetPeerID)
	if err != nil {
		return err
	}
	rec.Ignored = ignored
	return nil
}

// SetTopic sets the group topic, subject to the topic-lock and role check
// (§4.4).
func (m *Manager) SetTopic(chatID [wire.ChatIDSize]byte, topic string) error {
	if len(topic) > wire.MaxTopicLen {
		return fmt.Errorf("session: topic too long")
	}
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	if !gs.g.Authority.CanSetTopic(selfSignPK) {
		return fmt.Errorf("session: topic is locked to founder/moderators")
	}
	version := uint32(1)
	if gs.g.Topic != nil {
		version = gs.g.Topic.Version + 1
	}
	t := &wire.TopicInfo{Topic: topic, SetterPK: selfSignPK, Version: version}
	sig := m.self.Sign(t.SignTarget())
	copy(t.Signature[:], sig)
	gs.g.Topic = t
	return m.fanOutPacket(gs, wire.PacketTopic, t.EncodeSigned())
}

// KickPeer is a founder/moderator-only operation that removes a peer and
// broadcasts the eviction (§4.4, §3 peer-removal reason iii).
func (m *Manager) KickPeer(chatID [wire.ChatIDSize]byte, targetPeerID uint32) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	if err := requireRole(gs.g.Authority, selfSignPK, sharedstate.RoleModerator); err != nil {
		return err
	}
	h, rec, err := gs.g.Roster.ByPeerID(targetPeerID)
	if err != nil {
		return err
	}
	payload := wire.EncodeTargetPeer(&wire.TargetPeer{EncPK: rec.EncPK})
	if err := m.fanOutBroadcast(gs, wire.BroadcastKickPeer, payload); err != nil {
		return err
	}
	gs.sink.OnPeerLeft(h, rec, "kicked")
	return gs.g.Roster.Remove(h)
}

// SetPassword is a founder-only shared-state operation (§4.4).
func (m *Manager) SetPassword(chatID [wire.ChatIDSize]byte, password []byte) error {
	if len(password) > wire.MaxPasswordLen {
		return fmt.Errorf("session: password too long")
	}
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	if err := gs.g.Authority.RequireFounder(selfSignPK); err != nil {
		return err
	}
	return m.bumpAndBroadcastSharedState(gs, func(s *wire.SharedState) {
		s.PasswordHash = hashPasswordOrZero(password)
	})
}

// SetPrivacyState is a founder-only shared-state operation (§4.4).
func (m *Manager) SetPrivacyState(chatID [wire.ChatIDSize]byte, privacy wire.PrivacyState) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	if err := gs.g.Authority.RequireFounder(selfSignPK); err != nil {
		return err
	}
	return m.bumpAndBroadcastSharedState(gs, func(s *wire.SharedState) {
		s.Privacy = privacy
	})
}

// SetPeerLimit is a founder-only shared-state operation (§4.4).
func (m *Manager) SetPeerLimit(chatID [wire.ChatIDSize]byte, limit uint32) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	if err := gs.g.Authority.RequireFounder(selfSignPK); err != nil {
		return err
	}
	gs.g.Roster.SetPeerLimit(limit)
	return m.bumpAndBroadcastSharedState(gs, func(s *wire.SharedState) {
		s.PeerLimit = limit
	})
}

// SetTopicLock is a founder-only shared-state operation (§4.4).
func (m *Manager) SetTopicLock(chatID [wire.ChatIDSize]byte, lock wire.TopicLock) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	if err := gs.g.Authority.RequireFounder(selfSignPK); err != nil {
		return err
	}
	return m.bumpAndBroadcastSharedState(gs, func(s *wire.SharedState) {
		s.TopicLock = lock
	})
}

// SetModerators is a founder-only operation that replaces the group's
// moderator list, bumping its version and re-signing with the founder's
// own key (§4.4, RequireFounder's set_mod).
func (m *Manager) SetModerators(chatID [wire.ChatIDSize]byte, moderators [][wire.PublicKeySize]byte) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	if err := gs.g.Authority.RequireFounder(selfSignPK); err != nil {
		return err
	}
	version := uint32(1)
	if gs.g.Authority.Mods != nil {
		version = gs.g.Authority.Mods.Version + 1
	}
	ml := &wire.ModList{Version: version, Moderators: moderators}
	sig := m.self.Sign(ml.SignTarget())
	copy(ml.Signature[:], sig)

	before := snapshotRoles(gs)
	if err := gs.g.Authority.AdoptModList(ml); err != nil {
		return err
	}
	applyRoleChanges(gs, before)
	return m.fanOutPacket(gs, wire.PacketModList, ml.EncodeSigned())
}

// Sanction is a founder-only operation that records an observer demotion
// (or lifts one) for targetSignPK (§4.4, §6 SanctionEntry). The founder
// issues its own credential, vouching for itself as issuer at this
// version; a moderator-issued sanction would instead carry a credential
// handed out separately by the founder, which this host does not yet
// have a way to request.
func (m *Manager) Sanction(chatID [wire.ChatIDSize]byte, targetSignPK [wire.PublicKeySize]byte, event wire.ModerationEventType) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	if err := gs.g.Authority.RequireFounder(selfSignPK); err != nil {
		return err
	}

	version := uint32(1)
	if existing, ok := gs.g.Authority.Sanctions[targetSignPK]; ok {
		version = existing.Version + 1
	}
	entry := wire.SanctionEntry{Version: version, TargetPK: targetSignPK, Event: event, IssuerPK: selfSignPK}
	copy(entry.Signature[:], m.self.Sign(entry.SignTarget()))

	credential := m.self.Sign(wire.CredentialSignTarget(version, selfSignPK))
	list := &wire.SanctionsList{Version: version, Entries: []wire.SanctionEntry{entry}, IssuerPK: selfSignPK}
	copy(list.Credential[:], credential)

	before := snapshotRoles(gs)
	if _, err := gs.g.Authority.AdoptSanctionsList(list); err != nil {
		return err
	}
	applyRoleChanges(gs, before)
	return m.fanOutPacket(gs, wire.PacketSanctionsList, list.EncodeSigned())
}

func (m *Manager) bumpAndBroadcastSharedState(gs *groupState, mutate func(*wire.SharedState)) error {
	next := *gs.g.Authority.State
	mutate(&next)
	next.Version = gs.g.Authority.State.Version + 1
	sig := m.self.Sign(next.SignTarget())
	copy(next.Signature[:], sig)
	if err := gs.g.Authority.AdoptSharedState(&next); err != nil {
		return err
	}
	return m.fanOutPacket(gs, wire.PacketSharedState, next.EncodeSigned())
}

func hashPasswordOrZero(password []byte) [32]byte {
	if len(password) == 0 {
		return [32]byte{}
	}
	return gwcrypto.HashPassword(password)
}
