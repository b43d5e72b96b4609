package group

import (
	"fmt"

	"github.com/shurlinet/groupwire/internal/gwcrypto"
	"github.com/shurlinet/groupwire/internal/group/sharedstate"
	"github.com/shurlinet/groupwire/internal/wire"
)

// ConnectionState is the group-level lifecycle state machine (§3):
// disconnected -> connecting -> connected -> disconnected.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// ErrInvalidStateTransition is returned by Group's lifecycle methods when
// called out of order (e.g. Connect() on an already-connected group).
var ErrInvalidStateTransition = fmt.Errorf("group: invalid state transition")

// Group is one joined or founded chat's full local state (§3): identity,
// shared configuration authority, topic, and peer roster.
type Group struct {
	ChatID [wire.ChatIDSize]byte
	Self   *gwcrypto.ExtendedKeyPair

	Authority *sharedstate.Authority
	Topic     *wire.TopicInfo
	Roster    *Roster

	state ConnectionState
}

// NewFounded creates a brand new group with self as founder (§4.1
// "create_group"): chat_id is the founder's own Ed25519 public key.
func NewFounded(self *gwcrypto.ExtendedKeyPair, groupName string, peerLimit uint32, privacy wire.PrivacyState) (*Group, error) {
	var chatID [wire.ChatIDSize]byte
	copy(chatID[:], self.SignPub)

	g := &Group{
		ChatID:    chatID,
		Self:      self,
		Authority: sharedstate.NewAuthority(chatID, chatID),
		Roster:    NewRoster(peerLimit),
		state:     StateDisconnected,
	}
	g.Authority.State.GroupName = groupName
	g.Authority.State.PeerLimit = peerLimit
	g.Authority.State.Privacy = privacy
	g.Authority.State.Version = 1
	sig := g.Self.Sign(g.Authority.State.SignTarget())
	copy(g.Authority.State.Signature[:], sig)
	return g, nil
}

// NewJoining creates the local state for a group being joined by address
// (§4.1 "join_group"): the shared state authority starts empty and is
// filled in once the first SHARED_STATE packet arrives from a peer.
func NewJoining(self *gwcrypto.ExtendedKeyPair, founderSignPK [wire.PublicKeySize]byte, chatID [wire.ChatIDSize]byte) *Group {
	return &Group{
		ChatID:    chatID,
		Self:      self,
		Authority: sharedstate.NewAuthority(founderSignPK, chatID),
		Roster:    NewRoster(0),
		state:     StateDisconnected,
	}
}

// State reports the current group-level connection state.
func (g *Group) State() ConnectionState { return g.state }

// Connect transitions disconnected -> connecting, starting the announce
// and/or direct peer-dial process (§3).
func (g *Group) Connect() error {
	if g.state != StateDisconnected {
		return ErrInvalidStateTransition
	}
	g.state = StateConnecting
	return nil
}

// MarkConnected transitions connecting -> connected, once at least one
// peer handshake has completed or (for a freshly founded, empty group) the
// group is considered live on its own.
func (g *Group) MarkConnected() error {
	if g.state != StateConnecting {
		return ErrInvalidStateTransition
	}
	g.state = StateConnected
	return nil
}

// Disconnect transitions to disconnected from any state, tearing down all
// peer sessions (§4.1 "disconnect"). Session keys are zeroed via
// Roster.Remove as each peer is dropped.
func (g *Group) Disconnect() {
	g.Roster.Range(func(h PeerHandle, _ *PeerRecord) bool {
		g.Roster.Remove(h)
		return true
	})
	g.state = StateDisconnected
}

// SelfRole reports this instance's own derived role in the group.
func (g *Group) SelfRole() sharedstate.Role {
	var signPK [wire.PublicKeySize]byte
	copy(signPK[:], g.Self.SignPub)
	return g.Authority.DeriveRole(signPK)
}
