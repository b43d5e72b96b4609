// Package transport defines the collaborator interfaces the group session
// engine consumes for everything that touches a socket, an onion circuit,
// or an external messenger (spec.md §1 Non-goals: transport, the onion
// routing network, the DHT, and friend messaging are all external
// collaborators). The engine is built entirely against these interfaces;
// cmd/groupwired supplies a concrete implementation for its demo loopback
// transport.
package transport

import (
	"context"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/groupwire/internal/wire"
)

// UDPSender delivers a sealed group-channel envelope to a direct UDP
// address.
type UDPSender interface {
	SendUDP(ctx context.Context, addr ma.Multiaddr, envelope []byte) error
}

// TCPRelay delivers a sealed group-channel envelope through a TCP relay
// connection. It does not report whether a relay is reachable.
type TCPRelay interface {
	SendViaRelay(ctx context.Context, relay ma.Multiaddr, targetPeer wire.CloseNode, envelope []byte) error
}

// OnionTransport carries onion announce requests/responses to and from
// the rendezvous network. Actual onion routing (layered encryption,
// circuit building) is the collaborator's responsibility.
type OnionTransport interface {
	SendOnion(ctx context.Context, target wire.CloseNode, payload []byte) error
}

// Messenger delivers friend-channel invite messages (§4.7) through the
// host's external one-to-one messaging system and notifies when a friend
// comes online.
type Messenger interface {
	SendToFriend(ctx context.Context, friendID string, payload []byte) error
	NotifyOnline(friendID string) <-chan struct{}
}

// Receiver is implemented by the engine and driven by the host's event
// loop: every inbound byte blob from any transport is handed to the
// matching method, and the engine decodes/validates/dispatches it.
type Receiver interface {
	OnUDPPacket(sourceAddr ma.Multiaddr, envelope []byte)
	OnRelayPacket(relay ma.Multiaddr, envelope []byte)
	OnOnionPacket(payload []byte)
	OnFriendMessage(friendID string, payload []byte)
}
