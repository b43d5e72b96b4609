package session

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/groupwire/internal/group"
	"github.com/shurlinet/groupwire/internal/group/broadcast"
	"github.com/shurlinet/groupwire/internal/group/lossless"
	"github.com/shurlinet/groupwire/internal/group/sharedstate"
	"github.com/shurlinet/groupwire/internal/gwcrypto"
	"github.com/shurlinet/groupwire/internal/transport"
	"github.com/shurlinet/groupwire/internal/wire"
)

var _ transport.Receiver = (*Manager)(nil)

// OnUDPPacket handles an envelope that arrived over direct UDP.
func (m *Manager) OnUDPPacket(sourceAddr ma.Multiaddr, envelope []byte) {
	m.handleEnvelope(wire.NetTypeUDP, sourceAddr, nil, envelope)
}

// OnRelayPacket handles an envelope relayed over a TCP relay connection.
func (m *Manager) OnRelayPacket(relay ma.Multiaddr, envelope []byte) {
	m.handleEnvelope(wire.NetTypeTCP, nil, relay, envelope)
}

// OnOnionPacket handles an onion announce response, updating each group's
// announce client and initiating a peer handshake with any newly
// discovered member (§4.6).
func (m *Manager) OnOnionPacket(payload []byte) {
	resp, err := wire.DecodeAnnounceResponse(payload)
	if err != nil {
		return
	}
	for _, gs := range m.groups {
		if gs.onionClient == nil {
			continue
		}
		if resp.Status == wire.AnnounceStoredWithPingID {
			gs.onionClient.SetPingID(resp.PingIDOrDataPK)
		}
		for _, dp := range gs.onionClient.ExtractDiscoveredPeers(resp) {
			if _, _, err := gs.g.Roster.ByEncPK(dp.EncPK); err == nil {
				continue
			}
			var directAddr ma.Multiaddr
			if dp.HasIPPort {
				directAddr = buildIPv4Multiaddr(dp.IP, dp.Port)
			}
			m.InitiateHandshake(gs.g.ChatID, dp.EncPK, dp.SignPK, directAddr, nil, [32]byte{})
		}
	}
}

// findPeer linearly scans every group this host holds for a roster entry
// under encPK. A host participates in at most a handful of groups at once,
// so this stays cheap without needing a second, cross-group index.
func (m *Manager) findPeer(encPK [wire.PublicKeySize]byte) (*groupState, group.PeerHandle, *group.PeerRecord, bool) {
	for _, gs := range m.groups {
		if h, rec, err := gs.g.Roster.ByEncPK(encPK); err == nil {
			return gs, h, rec, true
		}
	}
	return nil, group.PeerHandle{}, nil, false
}

func (m *Manager) handleEnvelope(net wire.NetType, directAddr, relayAddr ma.Multiaddr, raw []byte) {
	env, err := wire.DecodeEnvelope(raw)
	if err != nil {
		return
	}
	now := time.Now()

	gs, h, rec, found := m.findPeer(env.SenderPK)
	if !found {
		m.handleFreshHandshake(net, directAddr, relayAddr, env, now)
		return
	}

	plain, err := gwcrypto.Open(rec.SessionKey, env.Nonce[:], env.Ciphertext)
	if err != nil {
		return
	}
	pt, err := wire.DecodePlaintext(plain)
	if err != nil {
		return
	}

	switch net {
	case wire.NetTypeUDP:
		rec.Conn.RecordDirectRecv(now)
		if directAddr != nil {
			rec.DirectAddr = directAddr
		}
	case wire.NetTypeTCP:
		rec.Conn.RecordRelayRecv(now, m.confirmedTimeout)
		if relayAddr != nil {
			rec.RelayAddr = relayAddr
		}
	}

	wasConfirmed := rec.Conn.Confirmed()
	rec.Conn.OnAnyAuthenticatedPacket()
	m.dispatchPlaintext(gs, h, rec, pt, now)

	// PendingSync is cleared before anything is sent, so a nested delivery
	// that already confirmed this peer cannot fire the join a second time.
	if !wasConfirmed && rec.Conn.Confirmed() && rec.PendingSync {
		rec.PendingSync = false
		gs.sink.OnPeerJoined(h, rec)
		if m.metrics != nil {
			m.metrics.PeersConfirmedTotal.WithLabelValues(chatIDString(gs.g.ChatID)).Inc()
		}
		vv := broadcast.BuildVersionVector(gs.g.Authority, topicVersion(gs.g.Topic))
		m.sendLossless(gs, h, rec, wire.PacketSyncRequest, wire.EncodeVersionVector(vv))
	}
}

// handleFreshHandshake treats an envelope from an unrecognized encryption
// key as a would-be member's first INVITE_REQUEST (§4.2): the session key
// needs no round trip to derive, since X25519 only requires both public
// keys, both of which are already in hand (ours, and the envelope's
// sender_enc_pk).
func (m *Manager) handleFreshHandshake(net wire.NetType, directAddr, relayAddr ma.Multiaddr, env *wire.Envelope, now time.Time) {
	key, err := gwcrypto.DeriveSessionKey(m.self.EncPriv, env.SenderPK)
	if err != nil {
		return
	}
	plain, err := gwcrypto.Open(key, env.Nonce[:], env.Ciphertext)
	if err != nil {
		return
	}
	pt, err := wire.DecodePlaintext(plain)
	if err != nil || pt.Type != wire.PacketInviteRequest {
		return
	}
	hello, err := wire.DecodeHandshakeHello(pt.Body)
	if err != nil {
		return
	}
	gs, ok := m.groups[hello.ChatID]
	if !ok {
		return
	}
	m.acceptInviteRequest(gs, net, directAddr, relayAddr, env.SenderPK, hello, key, pt.MessageID, now)
}

func (m *Manager) acceptInviteRequest(gs *groupState, net wire.NetType, directAddr, relayAddr ma.Multiaddr, senderEncPK [wire.PublicKeySize]byte, hello *wire.HandshakeHello, key []byte, requestID uint64, now time.Time) {
	var zeroHash [32]byte
	if gs.g.Authority.State.PasswordHash != zeroHash {
		if !gwcrypto.ConstantTimeCompare(gs.g.Authority.State.PasswordHash[:], hello.PasswordHash[:]) {
			m.audit.PasswordRejected(chatIDString(gs.g.ChatID), fmt.Sprintf("%x", senderEncPK[:8]))
			m.sendRejectDirect(net, directAddr, relayAddr, key, "invalid_password")
			return
		}
	}

	h, rec, err := gs.g.Roster.Add(senderEncPK, hello.SignPK)
	if err != nil {
		if err == group.ErrGroupFull {
			m.audit.GroupFull(chatIDString(gs.g.ChatID), fmt.Sprintf("%x", senderEncPK[:8]))
			m.sendRejectDirect(net, directAddr, relayAddr, key, "group_full")
		}
		return
	}

	rec.SessionKey = key
	rec.Nickname = hello.Nickname
	rec.Role = gs.g.Authority.DeriveRole(hello.SignPK)
	rec.Send = lossless.NewSendQueue(m.sendQueueDepth)
	rec.Recv = lossless.NewRecvQueue(m.recvWindow)
	rec.AckLimiter = &lossless.AckRequestLimiter{}
	rec.PendingSync = true
	rec.LastPingAt = now

	switch net {
	case wire.NetTypeUDP:
		rec.DirectAddr = directAddr
		rec.Conn.RecordDirectRecv(now)
	case wire.NetTypeTCP:
		rec.RelayAddr = relayAddr
		rec.Conn.RecordRelayRecv(now, m.confirmedTimeout)
	}

	if err := rec.Conn.OnRequestReceived(); err != nil {
		gs.g.Roster.Remove(h)
		return
	}

	// The INVITE_REQUEST is the first message of the sender's lossless
	// stream: consume and ack it here, so the HS_RESPONSE_ACK that follows
	// is delivered in order instead of waiting behind a gap.
	if outcome, _ := rec.Recv.Receive(requestID, byte(wire.PacketInviteRequest), nil); outcome == lossless.OutcomeDelivered {
		m.sendAck(gs, rec, wire.AckKindRecv, requestID)
	}

	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	resp := &wire.HandshakeHello{ChatID: gs.g.ChatID, SignPK: selfSignPK, Nickname: gs.selfNickname}
	m.sendLossless(gs, h, rec, wire.PacketInviteResponse, wire.EncodeHandshakeHello(resp))
}

// sendRejectDirect seals a lossy INVITE_RESPONSE_REJECT directly to the
// addresses observed on the rejected INVITE_REQUEST. The sender never
// joins the roster, so there is no send queue to route this through.
func (m *Manager) sendRejectDirect(net wire.NetType, directAddr, relayAddr ma.Multiaddr, key []byte, reason string) {
	plain := wire.EncodePlaintext(&wire.Plaintext{
		Type: wire.PacketInviteResponseReject,
		Body: wire.EncodeInviteReject(&wire.InviteReject{Reason: reason}),
	})
	nonce, ciphertext, err := gwcrypto.Seal(key, plain)
	if err != nil {
		return
	}
	var nonceArr [wire.NonceSize]byte
	copy(nonceArr[:], nonce)
	var senderPK [wire.PublicKeySize]byte
	copy(senderPK[:], m.self.EncPub[:])
	raw := (&wire.Envelope{NetType: net, SenderPK: senderPK, Nonce: nonceArr, Ciphertext: ciphertext}).Encode()

	ctx := context.Background()
	switch net {
	case wire.NetTypeTCP:
		if m.relay != nil && relayAddr != nil {
			m.relay.SendViaRelay(ctx, relayAddr, wire.CloseNode{Addr: directAddr}, raw)
		}
	default:
		if m.udp != nil && directAddr != nil {
			m.udp.SendUDP(ctx, directAddr, raw)
		}
	}
}

func (m *Manager) dispatchPlaintext(gs *groupState, h group.PeerHandle, rec *group.PeerRecord, pt *wire.Plaintext, now time.Time) {
	if !pt.Type.IsLossless() {
		m.handleLossyPacket(gs, h, rec, pt.Type, pt.Body)
		return
	}

	outcome, deliveries := rec.Recv.Receive(pt.MessageID, byte(pt.Type), pt.Body)
	switch outcome {
	case lossless.OutcomeDuplicate:
		m.sendAck(gs, rec, wire.AckKindRecv, pt.MessageID)
	case lossless.OutcomeWindowExceeded:
		if rec.AckLimiter != nil && rec.AckLimiter.Allow(now) {
			m.sendAck(gs, rec, wire.AckKindRequest, rec.Recv.NextExpected())
		}
	case lossless.OutcomeBuffered:
		// held pending earlier arrivals; the sender's own backoff will
		// eventually retransmit the missing id.
	case lossless.OutcomeDelivered:
		for _, d := range deliveries {
			m.sendAck(gs, rec, wire.AckKindRecv, d.ID)
			m.handleLosslessPacket(gs, h, rec, wire.PacketType(d.Type), d.Payload)
			if m.metrics != nil {
				m.metrics.MessagesDeliveredTotal.WithLabelValues(chatIDString(gs.g.ChatID)).Inc()
			}
		}
	}
}

func (m *Manager) sendAck(gs *groupState, rec *group.PeerRecord, kind wire.AckKind, id uint64) {
	body := wire.EncodeMessageAck(&wire.MessageAck{Kind: kind, ID: id})
	m.sealAndDispatch(gs, rec, wire.PacketMessageAck, 0, body)
}

func (m *Manager) handleLossyPacket(gs *groupState, h group.PeerHandle, rec *group.PeerRecord, pType wire.PacketType, body []byte) {
	switch pType {
	case wire.PacketPing:
		// arrival already recorded by the caller; nothing further to do.
	case wire.PacketMessageAck:
		ack, err := wire.DecodeMessageAck(body)
		if err != nil {
			return
		}
		switch ack.Kind {
		case wire.AckKindRecv:
			rec.Send.Ack(ack.ID)
		case wire.AckKindRequest:
			if entry := rec.Send.ForceRetransmit(ack.ID); entry != nil {
				m.sealAndDispatch(gs, rec, wire.PacketType(entry.Type), entry.ID, entry.Payload)
			}
		}
	case wire.PacketInviteResponseReject:
		reject := wire.DecodeInviteReject(body)
		m.audit.HandshakeFailed(chatIDString(gs.g.ChatID), fmt.Sprintf("%d", rec.PeerID), reject.Reason)
		gs.sink.OnPeerLeft(h, rec, reject.Reason)
		gs.g.Roster.Remove(h)
	case wire.PacketCustomLossy:
		if broadcast.ShouldDeliverCustomPacket(rec) {
			gs.sink.OnCustomPacket(h, rec, false, body)
		}
	}
}

func (m *Manager) handleLosslessPacket(gs *groupState, h group.PeerHandle, rec *group.PeerRecord, pType wire.PacketType, body []byte) {
	switch pType {
	case wire.PacketInviteRequest:
		// simultaneous-open retry from an already-known peer; the session
		// key and roster entry already exist.
	case wire.PacketInviteResponse:
		m.handleInviteResponse(gs, rec, body)
	case wire.PacketHSResponseAck:
		rec.Conn.OnResponseAckReceived()
	case wire.PacketBroadcast:
		m.handleBroadcast(gs, h, rec, body)
	case wire.PacketTopic:
		m.handleTopic(gs, rec, body)
	case wire.PacketSharedState:
		m.handleSharedState(gs, rec, body)
	case wire.PacketModList:
		m.handleModList(gs, rec, body)
	case wire.PacketSanctionsList:
		m.handleSanctionsList(gs, body)
	case wire.PacketPeerInfoRequest:
		info := wire.EncodePeerInfo(&wire.PeerInfo{Nickname: gs.selfNickname, Status: gs.selfStatus})
		m.sendLossless(gs, h, rec, wire.PacketPeerInfoResponse, info)
	case wire.PacketPeerInfoResponse:
		if info, err := wire.DecodePeerInfo(body); err == nil {
			rec.Nickname = info.Nickname
			rec.Status = info.Status
		}
	case wire.PacketSyncRequest:
		m.handleSyncRequest(gs, h, rec, body)
	case wire.PacketSyncResponse:
		m.handleSyncResponse(gs, body)
	case wire.PacketTCPRelays:
		if relays, err := wire.DecodeTCPRelays(body); err == nil && len(relays) > 0 {
			rec.RelayAddr = relays[0]
		}
	case wire.PacketKeyRotation:
		m.handleKeyRotation(gs, h, rec, body)
	case wire.PacketCustom:
		if broadcast.ShouldDeliverCustomPacket(rec) {
			gs.sink.OnCustomPacket(h, rec, true, body)
		}
	case wire.PacketFriendInvite:
		// the friend-invite flow (§4.7) runs over the external messenger,
		// never the group channel; an arriving one here is a misbehaving
		// or stale peer.
		m.audit.SignatureRejected(chatIDString(gs.g.ChatID), fmt.Sprintf("%d", rec.PeerID), "friend_invite_on_group_channel")
	}
}

func (m *Manager) handleInviteResponse(gs *groupState, rec *group.PeerRecord, body []byte) {
	hello, err := wire.DecodeHandshakeHello(body)
	if err != nil {
		return
	}
	if err := rec.Conn.OnResponseReceived(); err != nil {
		return
	}
	rec.SignPK = hello.SignPK
	rec.Nickname = hello.Nickname
	rec.Role = gs.g.Authority.DeriveRole(hello.SignPK)
	m.sendLossless(gs, findHandle(gs, rec), rec, wire.PacketHSResponseAck, nil)
	rec.Conn.OnAckSent()
}

// findHandle recovers a peer's handle from its encryption key. Callers
// already hold the *PeerRecord from an earlier roster lookup that returned
// the handle too; this exists only for the few call sites (like
// handleInviteResponse) where threading the handle through would be more
// disruptive than a single extra map lookup.
func findHandle(gs *groupState, rec *group.PeerRecord) group.PeerHandle {
	h, _, err := gs.g.Roster.ByEncPK(rec.EncPK)
	if err != nil {
		return group.PeerHandle{}
	}
	return h
}

func (m *Manager) handleBroadcast(gs *groupState, h group.PeerHandle, rec *group.PeerRecord, body []byte) {
	bh, err := wire.DecodeBroadcast(body)
	if err != nil {
		return
	}
	if !broadcast.ShouldDeliver(rec, bh.Type) {
		return
	}
	switch bh.Type {
	case wire.BroadcastStatus:
		if len(bh.Payload) == 1 {
			rec.Status = bh.Payload[0]
		}
	case wire.BroadcastNick:
		if len(bh.Payload) <= wire.MaxNicknameLen {
			rec.Nickname = string(bh.Payload)
		}
	case wire.BroadcastPlainMessage:
		gs.sink.OnPlainMessage(h, rec, bh.Payload)
	case wire.BroadcastActionMessage:
		gs.sink.OnActionMessage(h, rec, bh.Payload)
	case wire.BroadcastPrivateMessage:
		pm, err := wire.DecodePrivateMessage(bh.Payload)
		if err != nil {
			return
		}
		if pm.Action {
			gs.sink.OnActionMessage(h, rec, pm.Body)
		} else {
			gs.sink.OnPrivateMessage(h, rec, pm.Body)
		}
	case wire.BroadcastPeerExit:
		gs.sink.OnPeerLeft(h, rec, "left")
		gs.g.Roster.Remove(h)
	case wire.BroadcastKickPeer:
		tp, err := wire.DecodeTargetPeer(bh.Payload)
		if err != nil {
			return
		}
		if kh, krec, err := gs.g.Roster.ByEncPK(tp.EncPK); err == nil {
			gs.sink.OnPeerLeft(kh, krec, "kicked")
			gs.g.Roster.Remove(kh)
		}
	case wire.BroadcastSetMod, wire.BroadcastSetObserver:
		// advisory only; authoritative role changes arrive signed via
		// MOD_LIST/SANCTIONS_LIST and are applied in handleModList /
		// handleSanctionsList.
	}
}

func (m *Manager) handleTopic(gs *groupState, rec *group.PeerRecord, body []byte) {
	t, err := wire.DecodeTopicInfo(body)
	if err != nil {
		return
	}
	if gs.g.Topic != nil && t.Version <= gs.g.Topic.Version {
		return
	}
	if !gwcrypto.Verify(ed25519.PublicKey(t.SetterPK[:]), t.SignTarget(), t.Signature[:]) {
		m.audit.SignatureRejected(chatIDString(gs.g.ChatID), fmt.Sprintf("%d", rec.PeerID), "topic")
		return
	}
	if !gs.g.Authority.CanSetTopic(t.SetterPK) {
		return
	}
	gs.g.Topic = t
	var setterPeerID uint32
	if _, setterRec, err := gs.g.Roster.BySignPK(t.SetterPK); err == nil {
		setterPeerID = setterRec.PeerID
	}
	gs.sink.OnTopicChanged(t.Topic, setterPeerID)
}

func (m *Manager) handleSharedState(gs *groupState, rec *group.PeerRecord, body []byte) {
	s, err := wire.DecodeSharedState(body)
	if err != nil {
		return
	}
	before := *gs.g.Authority.State
	if err := gs.g.Authority.AdoptSharedState(s); err != nil {
		if err == sharedstate.ErrBadSignature {
			m.audit.SignatureRejected(chatIDString(gs.g.ChatID), fmt.Sprintf("%d", rec.PeerID), "shared_state")
		}
		return
	}
	if before.Privacy != s.Privacy {
		gs.sink.OnSharedStateChanged("privacy")
	}
	if before.PeerLimit != s.PeerLimit {
		gs.g.Roster.SetPeerLimit(s.PeerLimit)
		gs.sink.OnSharedStateChanged("peer_limit")
	}
	if before.PasswordHash != s.PasswordHash {
		gs.sink.OnSharedStateChanged("password")
	}
	if before.TopicLock != s.TopicLock {
		gs.sink.OnSharedStateChanged("topic_lock")
	}
	if before.GroupName != s.GroupName {
		gs.sink.OnSharedStateChanged("group_name")
	}
}

// snapshotRoles / applyRoleChanges diff every member's derived role around a
// MOD_LIST or SANCTIONS_LIST adoption, since either can change more than
// one peer's standing at once.
func snapshotRoles(gs *groupState) map[[wire.PublicKeySize]byte]sharedstate.Role {
	snap := make(map[[wire.PublicKeySize]byte]sharedstate.Role)
	gs.g.Roster.Range(func(_ group.PeerHandle, rc *group.PeerRecord) bool {
		snap[rc.SignPK] = rc.Role
		return true
	})
	return snap
}

func applyRoleChanges(gs *groupState, before map[[wire.PublicKeySize]byte]sharedstate.Role) {
	gs.g.Roster.Range(func(rh group.PeerHandle, rc *group.PeerRecord) bool {
		newRole := gs.g.Authority.DeriveRole(rc.SignPK)
		if old := before[rc.SignPK]; old != newRole {
			rc.Role = newRole
			gs.sink.OnRoleChanged(rh, rc, old, newRole)
		}
		return true
	})
}

func (m *Manager) handleModList(gs *groupState, rec *group.PeerRecord, body []byte) {
	ml, err := wire.DecodeModList(body)
	if err != nil {
		return
	}
	before := snapshotRoles(gs)
	if err := gs.g.Authority.AdoptModList(ml); err != nil {
		if err == sharedstate.ErrBadSignature {
			m.audit.SignatureRejected(chatIDString(gs.g.ChatID), fmt.Sprintf("%d", rec.PeerID), "mod_list")
		}
		return
	}
	applyRoleChanges(gs, before)
}

func (m *Manager) handleSanctionsList(gs *groupState, body []byte) {
	sl, err := wire.DecodeSanctionsList(body)
	if err != nil {
		return
	}
	before := snapshotRoles(gs)
	if _, err := gs.g.Authority.AdoptSanctionsList(sl); err != nil {
		return
	}
	applyRoleChanges(gs, before)
}

func (m *Manager) handleSyncRequest(gs *groupState, h group.PeerHandle, rec *group.PeerRecord, body []byte) {
	vv, err := wire.DecodeVersionVector(body)
	if err != nil {
		return
	}
	resp := broadcast.BuildSyncResponse(gs.g.Authority, gs.g.Topic, vv)
	m.sendLossless(gs, h, rec, wire.PacketSyncResponse, wire.EncodeSyncResponse(resp))
	if m.metrics != nil {
		m.metrics.SyncRoundsTotal.WithLabelValues(chatIDString(gs.g.ChatID)).Inc()
	}
}

func (m *Manager) handleSyncResponse(gs *groupState, body []byte) {
	resp, err := wire.DecodeSyncResponse(body)
	if err != nil {
		return
	}
	if resp.SharedState != nil {
		if s, err := wire.DecodeSharedState(resp.SharedState); err == nil {
			gs.g.Authority.AdoptSharedState(s)
		}
	}
	if resp.ModList != nil {
		if ml, err := wire.DecodeModList(resp.ModList); err == nil {
			gs.g.Authority.AdoptModList(ml)
		}
	}
	if resp.SanctionsList != nil {
		if sl, err := wire.DecodeSanctionsList(resp.SanctionsList); err == nil {
			gs.g.Authority.AdoptSanctionsList(sl)
		}
	}
	if resp.Topic != nil {
		if t, err := wire.DecodeTopicInfo(resp.Topic); err == nil {
			if gs.g.Topic == nil || t.Version > gs.g.Topic.Version {
				gs.g.Topic = t
			}
		}
	}
}

func (m *Manager) handleKeyRotation(gs *groupState, h group.PeerHandle, rec *group.PeerRecord, body []byte) {
	rot, err := wire.DecodeKeyRotation(body)
	if err != nil {
		return
	}
	key, err := gwcrypto.DeriveSessionKey(m.self.EncPriv, rot.NewEncPK)
	if err != nil {
		return
	}
	if err := gs.g.Roster.UpdateEncPK(h, rot.NewEncPK); err != nil {
		return
	}
	rec.SessionKey = key
}

func topicVersion(t *wire.TopicInfo) uint32 {
	if t == nil {
		return 0
	}
	return t.Version
}

func buildIPv4Multiaddr(ip [4]byte, port uint16) ma.Multiaddr {
	addr, err := ma.NewMultiaddr(fmt.Sprintf("/ip4/%d.%d.%d.%d/udp/%d", ip[0], ip[1], ip[2], ip[3], port))
	if err != nil {
		return nil
	}
	return addr
}
