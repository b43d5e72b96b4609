package session

import (
	"context"
	"fmt"
	"net"
	"strconv"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/groupwire/internal/group"
	"github.com/shurlinet/groupwire/internal/invite"
	"github.com/shurlinet/groupwire/internal/wire"
)

// friendMsgKind tags which of the three friend-invite messages (§4.7) a
// blob carried over Messenger.SendToFriend contains, since the messenger
// interface has no framing of its own beyond an opaque payload.
type friendMsgKind byte

const (
	friendMsgInvite friendMsgKind = iota
	friendMsgAccepted
	friendMsgConfirmation
)

func encodeFriendMessage(kind friendMsgKind, body []byte) []byte {
	return append([]byte{byte(kind)}, body...)
}

func decodeFriendMessage(raw []byte) (friendMsgKind, []byte, error) {
	if len(raw) < 1 {
		return 0, nil, fmt.Errorf("session: empty friend message")
	}
	return friendMsgKind(raw[0]), raw[1:], nil
}

// ipv4FromMultiaddr extracts the IPv4 address and port out of a
// "/ip4/a.b.c.d/udp/port"-shaped multiaddr, the inverse of dispatch.go's
// buildIPv4Multiaddr.
func ipv4FromMultiaddr(addr ma.Multiaddr) (ip [4]byte, port uint16, ok bool) {
	ipStr, err := addr.ValueForProtocol(ma.P_IP4)
	if err != nil {
		return ip, 0, false
	}
	parsed := net.ParseIP(ipStr).To4()
	if parsed == nil {
		return ip, 0, false
	}
	copy(ip[:], parsed)

	portStr, err := addr.ValueForProtocol(ma.P_UDP)
	if err != nil {
		return ip, 0, false
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || p < 0 || p > 65535 {
		return ip, 0, false
	}
	return ip, uint16(p), true
}

// inviteeContext holds what this host needs to carry a received Invite
// through Accepted and into the peer handshake once Confirmation arrives
// (§4.7). The sink is supplied at AcceptInvite time, since OnFriendMessage
// alone has no caller-supplied event sink to hand the eventual JoinGroup.
type inviteeContext struct {
	flow *invite.InviteeFlow
	sink group.EventSink
}

// SendInvite starts the friend-invite flow as the inviter (§4.7 step 1),
// sent over the external messenger rather than the group channel.
func (m *Manager) SendInvite(ctx context.Context, friendID string, chatID [wire.ChatIDSize]byte) error {
	if m.messenger == nil {
		return fmt.Errorf("session: no messenger transport configured")
	}
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	msg := invite.Invite{ChatID: chatID, GroupName: gs.g.Authority.State.GroupName}
	m.inviterFlows[friendID] = invite.NewInviterFlow(msg)
	return m.messenger.SendToFriend(ctx, friendID, encodeFriendMessage(friendMsgInvite, msg.Encode()))
}

// AcceptInvite replies to a received Invite with Accepted (§4.7 step 2),
// once the host (typically after surfacing the pending invite to a user)
// decides to join. sink receives this group's events once the handshake
// inside the group actually completes.
func (m *Manager) AcceptInvite(ctx context.Context, friendID string, nickname string, sink group.EventSink) error {
	if m.messenger == nil {
		return fmt.Errorf("session: no messenger transport configured")
	}
	pending, ok := m.pendingInvites[friendID]
	if !ok {
		return fmt.Errorf("session: no pending invite from %s", friendID)
	}
	if sink == nil {
		sink = group.NoopEventSink{}
	}
	pending.sink = sink

	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	accepted := &invite.Accepted{
		ChatID:   pending.flow.Received.ChatID,
		EncPK:    m.self.EncPub,
		SignPK:   selfSignPK,
		Nickname: nickname,
	}
	if err := pending.flow.OnAcceptedSent(); err != nil {
		return err
	}
	return m.messenger.SendToFriend(ctx, friendID, encodeFriendMessage(friendMsgAccepted, accepted.Encode()))
}

// OnFriendMessage implements transport.Receiver's friend-channel leg,
// routing each of the three friend-invite messages through its state
// machine (§4.7).
func (m *Manager) OnFriendMessage(friendID string, payload []byte) {
	kind, body, err := decodeFriendMessage(payload)
	if err != nil {
		return
	}
	switch kind {
	case friendMsgInvite:
		msg, err := invite.DecodeInvite(body)
		if err != nil {
			return
		}
		m.pendingInvites[friendID] = &inviteeContext{flow: invite.NewInviteeFlow(*msg)}
	case friendMsgAccepted:
		flow, ok := m.inviterFlows[friendID]
		if !ok {
			return
		}
		accepted, err := invite.DecodeAccepted(body)
		if err != nil {
			return
		}
		if err := flow.OnAccepted(accepted); err != nil {
			return
		}
		m.sendConfirmation(friendID, flow, accepted)
	case friendMsgConfirmation:
		pending, ok := m.pendingInvites[friendID]
		if !ok {
			return
		}
		confirmation, err := invite.DecodeConfirmation(body)
		if err != nil {
			return
		}
		if err := pending.flow.OnConfirmation(confirmation); err != nil {
			return
		}
		m.completeInviteeJoin(friendID, pending, confirmation)
	}
}

func (m *Manager) sendConfirmation(friendID string, flow *invite.InviterFlow, accepted *invite.Accepted) {
	if m.messenger == nil {
		return
	}
	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	confirmation := &invite.Confirmation{
		ChatID:        flow.Sent.ChatID,
		InviterEncPK:  m.self.EncPub,
		InviterSignPK: selfSignPK,
		TCPRelays:     m.selfRelays,
	}
	if m.selfDirectAddr != nil {
		if ip, port, ok := ipv4FromMultiaddr(m.selfDirectAddr); ok {
			confirmation.HasIPPort = true
			confirmation.IP = ip
			confirmation.Port = port
		}
	}
	raw, err := confirmation.Encode()
	if err != nil {
		return
	}
	if err := flow.OnConfirmationSent(); err != nil {
		return
	}
	m.messenger.SendToFriend(context.Background(), friendID, encodeFriendMessage(friendMsgConfirmation, raw))
}

// completeInviteeJoin finishes the invitee's side of the friend-invite
// flow by joining the target group's local state (if not already joined)
// and initiating the real group-channel peer handshake (§4.2) against the
// inviter, using whichever address Confirmation supplied. The roster entry
// for the inviter is created only once that handshake actually starts, not
// here - the friend-invite layer only ever hands off an address, never a
// peer record.
func (m *Manager) completeInviteeJoin(friendID string, pending *inviteeContext, confirmation *invite.Confirmation) {
	delete(m.pendingInvites, friendID)

	chatID := pending.flow.Received.ChatID
	var founderSignPK [wire.PublicKeySize]byte
	copy(founderSignPK[:], chatID[:])

	if _, ok := m.Group(chatID); !ok {
		if _, err := m.JoinGroup(founderSignPK, chatID, pending.sink); err != nil {
			return
		}
	}

	var directAddr, relayAddr ma.Multiaddr
	if confirmation.HasIPPort {
		directAddr = buildIPv4Multiaddr(confirmation.IP, confirmation.Port)
	}
	if len(confirmation.TCPRelays) > 0 {
		relayAddr = confirmation.TCPRelays[0]
	}
	m.InitiateHandshake(chatID, confirmation.InviterEncPK, confirmation.InviterSignPK, directAddr, relayAddr, [32]byte{})
}
