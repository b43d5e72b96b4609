// Package session exposes the public group-chat engine API: creating or
// joining a group, sending messages, moderation operations, and the
// single tick(now) entry point that drives the whole cooperative,
// single-threaded state machine (§5). It wires together internal/group,
// internal/group/conn, internal/group/lossless, internal/group/
// sharedstate, internal/group/broadcast, internal/onion, internal/invite,
// internal/wire, and internal/gwcrypto into one caller-facing Manager,
// the way pkg/p2pnet/service.go composes its lower-level pieces behind a
// single Service/Host-shaped API.
package session

import (
	"context"
	"fmt"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/groupwire/internal/audit"
	"github.com/shurlinet/groupwire/internal/group"
	"github.com/shurlinet/groupwire/internal/group/broadcast"
	"github.com/shurlinet/groupwire/internal/group/conn"
	"github.com/shurlinet/groupwire/internal/group/lossless"
	"github.com/shurlinet/groupwire/internal/group/sharedstate"
	"github.com/shurlinet/groupwire/internal/gwcrypto"
	"github.com/shurlinet/groupwire/internal/invite"
	"github.com/shurlinet/groupwire/internal/metrics"
	"github.com/shurlinet/groupwire/internal/onion"
	"github.com/shurlinet/groupwire/internal/transport"
	"github.com/shurlinet/groupwire/internal/wire"
)

// Manager owns every group this host has founded or joined, plus the
// shared collaborators (identity, transports, metrics, audit log).
type Manager struct {
	self *gwcrypto.ExtendedKeyPair

	groups map[[wire.ChatIDSize]byte]*groupState

	inviterFlows   map[string]*invite.InviterFlow   // friend-invite handshakes we initiated, by friend_id
	pendingInvites map[string]*inviteeContext       // friend-invite handshakes offered to us, by friend_id

	udp   transport.UDPSender
	relay transport.TCPRelay
	onionT transport.OnionTransport
	messenger transport.Messenger

	selfDirectAddr ma.Multiaddr   // this host's own reachable UDP address, if any (§4.7 Confirmation)
	selfRelays     []ma.Multiaddr // this host's own reachable TCP relays, if any

	metrics *metrics.Metrics
	audit   *audit.Logger

	sendQueueDepth int
	recvWindow     int
	pingInterval   time.Duration
	unconfirmedTimeout time.Duration
	confirmedTimeout   time.Duration
}

// groupState bundles one joined/founded Group with its onion announce
// client (nil unless one is attached; CreateGroup and JoinGroup leave it
// nil), event sink, and this host's own published presence (needed to
// answer PEER_INFO_REQUEST and to fill in outgoing HandshakeHello/Accepted
// messages).
type groupState struct {
	g        *group.Group
	sink     group.EventSink
	onionClient *onion.Client
	topicByPeer uint32

	selfNickname string
	selfStatus   byte
}

// Options configures a new Manager. Zero-value fields fall back to
// spec-mandated defaults (§5, §6).
type Options struct {
	UDP       transport.UDPSender
	Relay     transport.TCPRelay
	Onion     transport.OnionTransport
	Messenger transport.Messenger

	SelfDirectAddr ma.Multiaddr
	SelfRelays     []ma.Multiaddr

	Metrics   *metrics.Metrics
	Audit     *audit.Logger

	SendQueueDepth     int
	RecvWindow         int
	PingInterval       time.Duration
	UnconfirmedTimeout time.Duration
	ConfirmedTimeout   time.Duration
}

// New creates a Manager for the given long-term identity.
func New(self *gwcrypto.ExtendedKeyPair, opts Options) *Manager {
	m := &Manager{
		self:   self,
		groups: make(map[[wire.ChatIDSize]byte]*groupState),

		inviterFlows:   make(map[string]*invite.InviterFlow),
		pendingInvites: make(map[string]*inviteeContext),

		udp:       opts.UDP,
		relay:     opts.Relay,
		onionT:    opts.Onion,
		messenger: opts.Messenger,

		selfDirectAddr: opts.SelfDirectAddr,
		selfRelays:     opts.SelfRelays,

		metrics:   opts.Metrics,
		audit:     opts.Audit,

		sendQueueDepth:     opts.SendQueueDepth,
		recvWindow:         opts.RecvWindow,
		pingInterval:       opts.PingInterval,
		unconfirmedTimeout: opts.UnconfirmedTimeout,
		confirmedTimeout:   opts.ConfirmedTimeout,
	}
	if m.sendQueueDepth == 0 {
		m.sendQueueDepth = lossless.DefaultMaxQueueDepth
	}
	if m.recvWindow == 0 {
		m.recvWindow = lossless.DefaultRecvWindow
	}
	if m.pingInterval == 0 {
		m.pingInterval = 12 * time.Second
	}
	if m.unconfirmedTimeout == 0 {
		m.unconfirmedTimeout = 12 * time.Second
	}
	if m.confirmedTimeout == 0 {
		m.confirmedTimeout = 82 * time.Second
	}
	return m
}

// ErrUnknownGroup is returned when an operation names a chat_id the
// Manager has no state for.
var ErrUnknownGroup = fmt.Errorf("session: unknown group")

// CreateGroup founds a new group with self as founder (§4.1 "create_group").
func (m *Manager) CreateGroup(groupName string, peerLimit uint32, privacy wire.PrivacyState, sink group.EventSink) (*group.Group, error) {
	g, err := group.NewFounded(m.self, groupName, peerLimit, privacy)
	if err != nil {
		return nil, err
	}
	if sink == nil {
		sink = group.NoopEventSink{}
	}
	m.groups[g.ChatID] = &groupState{g: g, sink: sink}
	if err := g.Connect(); err != nil {
		return nil, err
	}
	return g, nil
}

// JoinGroup begins joining a group discovered by invite or announce
// (§4.1 "join_group"). The shared-state authority is filled in once the
// first SHARED_STATE packet arrives from a peer.
func (m *Manager) JoinGroup(founderSignPK [wire.PublicKeySize]byte, chatID [wire.ChatIDSize]byte, sink group.EventSink) (*group.Group, error) {
	g := group.NewJoining(m.self, founderSignPK, chatID)
	if sink == nil {
		sink = group.NoopEventSink{}
	}
	m.groups[chatID] = &groupState{g: g, sink: sink}
	if err := g.Connect(); err != nil {
		return nil, err
	}
	return g, nil
}

// LeaveGroup tears down a group's local state (§4.1 "leave_group"),
// broadcasting a PEER_EXIT to every still-connected peer first.
func (m *Manager) LeaveGroup(chatID [wire.ChatIDSize]byte) error {
	gs, ok := m.groups[chatID]
	if !ok {
		return ErrUnknownGroup
	}
	now := time.Now()
	exit := broadcast.BuildBroadcast(wire.BroadcastPeerExit, nil, now)
	gs.g.Roster.Range(func(h group.PeerHandle, rec *group.PeerRecord) bool {
		m.sendLossless(gs, h, rec, wire.PacketBroadcast, exit)
		return true
	})
	gs.g.Disconnect()
	delete(m.groups, chatID)
	return nil
}

// Disconnect tears down a group's peer sessions without forgetting the
// group itself, so Reconnect can later re-dial (§4.1 "disconnect").
func (m *Manager) Disconnect(chatID [wire.ChatIDSize]byte) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	old := gs.g.State()
	gs.g.Disconnect()
	gs.sink.OnConnectionStateChanged(old, gs.g.State())
	return nil
}

// Reconnect resumes a previously disconnected group, restarting the
// announce/dial process (§4.1 "reconnect").
func (m *Manager) Reconnect(chatID [wire.ChatIDSize]byte) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	old := gs.g.State()
	if err := gs.g.Connect(); err != nil {
		return err
	}
	gs.sink.OnConnectionStateChanged(old, gs.g.State())
	return nil
}

// Group returns the live Group state for chatID, if any.
func (m *Manager) Group(chatID [wire.ChatIDSize]byte) (*group.Group, bool) {
	gs, ok := m.groups[chatID]
	if !ok {
		return nil, false
	}
	return gs.g, true
}

// sendLossless enqueues a plaintext body on a peer's reliable send queue
// and hands the sealed envelope to whichever transport the peer's
// connection state prefers (§4.2, §4.3).
func (m *Manager) sendLossless(gs *groupState, h group.PeerHandle, rec *group.PeerRecord, packetType wire.PacketType, body []byte) error {
	now := time.Now()
	id, err := rec.Send.Enqueue(byte(packetType), body, now)
	if err != nil {
		return err
	}
	return m.sealAndDispatch(gs, rec, packetType, id, body)
}

func (m *Manager) sealAndDispatch(gs *groupState, rec *group.PeerRecord, packetType wire.PacketType, messageID uint64, body []byte) error {
	plain := wire.EncodePlaintext(&wire.Plaintext{Type: packetType, MessageID: messageID, Body: body})
	nonce, ciphertext, err := gwcrypto.Seal(rec.SessionKey, plain)
	if err != nil {
		return err
	}
	var nonceArr [wire.NonceSize]byte
	copy(nonceArr[:], nonce)
	var senderPK [wire.PublicKeySize]byte
	copy(senderPK[:], m.self.EncPub[:])
	env := &wire.Envelope{NetType: wire.NetTypeUDP, SenderPK: senderPK, Nonce: nonceArr, Ciphertext: ciphertext}
	raw := env.Encode()

	if m.metrics != nil {
		m.metrics.MessagesSentTotal.WithLabelValues(chatIDString(gs.g.ChatID), packetType.String()).Inc()
	}

	ctx := context.Background()
	transportKind := rec.Conn.ActiveTransport(time.Now(), m.confirmedTimeout)
	switch transportKind {
	case conn.TransportRelay:
		if m.relay == nil {
			return fmt.Errorf("session: no relay transport configured")
		}
		if rec.RelayAddr == nil {
			return fmt.Errorf("session: peer %d has no known relay address", rec.PeerID)
		}
		target := wire.CloseNode{Addr: rec.DirectAddr}
		return m.relay.SendViaRelay(ctx, rec.RelayAddr, target, raw)
	default:
		if m.udp == nil {
			return fmt.Errorf("session: no UDP transport configured")
		}
		if rec.DirectAddr == nil {
			return fmt.Errorf("session: peer %d has no known direct address", rec.PeerID)
		}
		return m.udp.SendUDP(ctx, rec.DirectAddr, raw)
	}
}

func chatIDString(id [wire.ChatIDSize]byte) string {
	return fmt.Sprintf("%x", id[:8])
}

// Tick drives the single-threaded cooperative scheduler (§5): peer
// timeouts, retransmit scans, and ping keepalives for every group this
// Manager owns. It does not publish or search onion announces. It must be
// called at a steady interval
// (recommended ≤ 50ms) by the host event loop.
func (m *Manager) Tick(ctx context.Context, now time.Time) {
	for _, gs := range m.groups {
		m.tickGroup(ctx, gs, now)
	}
}

func (m *Manager) tickGroup(ctx context.Context, gs *groupState, now time.Time) {
	var toDrop []group.PeerHandle
	gs.g.Roster.Range(func(h group.PeerHandle, rec *group.PeerRecord) bool {
		if rec.Conn.TimedOut(now, m.confirmedTimeout) {
			toDrop = append(toDrop, h)
			return true
		}
		for _, due := range rec.Send.DueForRetransmit(now) {
			m.sealAndDispatch(gs, rec, wire.PacketType(due.Type), due.ID, due.Payload)
			if m.metrics != nil {
				m.metrics.MessagesRetransmitted.WithLabelValues(chatIDString(gs.g.ChatID)).Inc()
			}
		}
		if now.Sub(rec.LastPingAt) >= m.pingInterval {
			rec.LastPingAt = now
			m.sendPing(gs, rec)
		}
		return true
	})
	for _, h := range toDrop {
		rec, err := gs.g.Roster.Get(h)
		if err != nil {
			continue
		}
		gs.sink.OnPeerLeft(h, rec, "timeout")
		gs.g.Roster.Remove(h)
		if m.metrics != nil {
			m.metrics.PeersDroppedTotal.WithLabelValues(chatIDString(gs.g.ChatID), "timeout").Inc()
		}
	}
	if m.metrics != nil {
		m.metrics.PeersActive.WithLabelValues(chatIDString(gs.g.ChatID)).Set(float64(gs.g.Roster.Len()))
	}
}

func (m *Manager) sendPing(gs *groupState, rec *group.PeerRecord) error {
	plain := wire.EncodePlaintext(&wire.Plaintext{Type: wire.PacketPing})
	nonce, ciphertext, err := gwcrypto.Seal(rec.SessionKey, plain)
	if err != nil {
		return err
	}
	var nonceArr [wire.NonceSize]byte
	copy(nonceArr[:], nonce)
	var senderPK [wire.PublicKeySize]byte
	copy(senderPK[:], m.self.EncPub[:])
	env := &wire.Envelope{NetType: wire.NetTypeUDP, SenderPK: senderPK, Nonce: nonceArr, Ciphertext: ciphertext}
	raw := env.Encode()
	if m.metrics != nil {
		m.metrics.MessagesSentTotal.WithLabelValues(chatIDString(gs.g.ChatID), wire.PacketPing.String()).Inc()
	}
	if rec.DirectAddr != nil && m.udp != nil {
		return m.udp.SendUDP(context.Background(), rec.DirectAddr, raw)
	}
	if rec.RelayAddr != nil && m.relay != nil {
		return m.relay.SendViaRelay(context.Background(), rec.RelayAddr, wire.CloseNode{Addr: rec.DirectAddr}, raw)
	}
	return nil
}

// requireRole is a convenience guard combining sharedstate.Authority role
// derivation with a required minimum role, used by the moderation
// operations below.
func requireRole(a *sharedstate.Authority, signPK [wire.PublicKeySize]byte, min sharedstate.Role) error {
	if a.DeriveRole(signPK) < min {
		return fmt.Errorf("session: operation requires role >= %v", min)
	}
	return nil
}
