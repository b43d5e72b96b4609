package group

import "github.com/shurlinet/groupwire/internal/group/sharedstate"

// EventSink receives notifications about a single group's activity. It
// replaces the libtoxcore pattern of one process-wide callback table with
// a collaborator each Group instance owns directly, per the Design Notes
// in spec.md §9: multiple groups (or tests) can run in the same process
// without stepping on each other's callbacks, the same way
// pkg/p2pnet/audit.go's AuditLogger is an owned instance rather than a
// package-level logger.
//
// All methods are called synchronously from the tick loop or a packet
// handler; implementations must not block.
type EventSink interface {
	OnPeerJoined(h PeerHandle, rec *PeerRecord)
	OnPeerLeft(h PeerHandle, rec *PeerRecord, reason string)
	OnPlainMessage(h PeerHandle, rec *PeerRecord, body []byte)
	OnActionMessage(h PeerHandle, rec *PeerRecord, body []byte)
	OnPrivateMessage(h PeerHandle, rec *PeerRecord, body []byte)
	OnCustomPacket(h PeerHandle, rec *PeerRecord, lossless bool, body []byte)
	OnRoleChanged(h PeerHandle, rec *PeerRecord, oldRole, newRole sharedstate.Role)
	OnTopicChanged(topic string, setterPeerID uint32)
	OnSharedStateChanged(field string)
	OnConnectionStateChanged(old, new ConnectionState)
}

// NoopEventSink implements EventSink with no-op methods, for callers that
// only care about a subset of events or are wiring up tests.
type NoopEventSink struct{}

func (NoopEventSink) OnPeerJoined(PeerHandle, *PeerRecord)                              {}
func (NoopEventSink) OnPeerLeft(PeerHandle, *PeerRecord, string)                        {}
func (NoopEventSink) OnPlainMessage(PeerHandle, *PeerRecord, []byte)                    {}
func (NoopEventSink) OnActionMessage(PeerHandle, *PeerRecord, []byte)                   {}
func (NoopEventSink) OnPrivateMessage(PeerHandle, *PeerRecord, []byte)                  {}
func (NoopEventSink) OnCustomPacket(PeerHandle, *PeerRecord, bool, []byte)              {}
func (NoopEventSink) OnRoleChanged(PeerHandle, *PeerRecord, sharedstate.Role, sharedstate.Role) {}
func (NoopEventSink) OnTopicChanged(string, uint32)                                     {}
func (NoopEventSink) OnSharedStateChanged(string)                                       {}
func (NoopEventSink) OnConnectionStateChanged(ConnectionState, ConnectionState)         {}

var _ EventSink = NoopEventSink{}
