package session

import (
	"fmt"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/groupwire/internal/group/lossless"
	"github.com/shurlinet/groupwire/internal/gwcrypto"
	"github.com/shurlinet/groupwire/internal/wire"
)

// InitiateHandshake starts the INVITE_REQUEST side of the peer handshake
// (§4.2) against a peer discovered either by onion announce or by a
// friend-invite Confirmation. passwordHash is sent along for a
// password-gated group; it is the zero value otherwise.
func (m *Manager) InitiateHandshake(chatID [wire.ChatIDSize]byte, remoteEncPK, remoteSignPK [wire.PublicKeySize]byte, directAddr, relayAddr ma.Multiaddr, passwordHash [32]byte) error {
	gs, err := m.groupState(chatID)
	if err != nil {
		return err
	}
	if directAddr == nil && relayAddr == nil {
		return fmt.Errorf("session: no address to dial peer")
	}

	key, err := gwcrypto.DeriveSessionKey(m.self.EncPriv, remoteEncPK)
	if err != nil {
		return err
	}

	h, rec, err := gs.g.Roster.Add(remoteEncPK, remoteSignPK)
	if err != nil {
		return err
	}
	rec.SessionKey = key
	rec.Role = gs.g.Authority.DeriveRole(remoteSignPK)
	rec.Send = lossless.NewSendQueue(m.sendQueueDepth)
	rec.Recv = lossless.NewRecvQueue(m.recvWindow)
	rec.AckLimiter = &lossless.AckRequestLimiter{}
	rec.DirectAddr = directAddr
	rec.RelayAddr = relayAddr
	rec.PendingSync = true

	now := time.Now()
	rec.LastPingAt = now
	if directAddr != nil {
		rec.Conn.RecordDirectRecv(now)
	} else {
		rec.Conn.RecordRelayRecv(now, m.confirmedTimeout)
	}

	if err := rec.Conn.OnRequestSent(); err != nil {
		gs.g.Roster.Remove(h)
		return err
	}

	var selfSignPK [wire.PublicKeySize]byte
	copy(selfSignPK[:], m.self.SignPub)
	hello := &wire.HandshakeHello{
		ChatID:       chatID,
		SignPK:       selfSignPK,
		Nickname:     gs.selfNickname,
		PasswordHash: passwordHash,
	}
	return m.sendLossless(gs, h, rec, wire.PacketInviteRequest, wire.EncodeHandshakeHello(hello))
}
