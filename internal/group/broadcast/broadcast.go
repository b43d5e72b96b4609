// Package broadcast implements the broadcast and sync sub-protocol
// (§4.5): building BROADCAST sub-messages, the ignore filter applied to
// inbound user messages, and the SYNC_REQUEST/RESPONSE negotiation that
// brings a newly confirmed or catching-up peer's copy of shared state,
// moderator list, and topic up to date. The sanctions list is not part of
// that exchange: BuildVersionVector leaves SanctionsVersion at zero and
// BuildSyncResponse never fills SanctionsList.
//
// Like internal/group/sharedstate, this package works against already
// decoded internal/wire types and the group roster/authority; it knows
// nothing about sockets or crypto.
package broadcast

import (
	"time"

	"github.com/shurlinet/groupwire/internal/group"
	"github.com/shurlinet/groupwire/internal/group/sharedstate"
	"github.com/shurlinet/groupwire/internal/wire"
)

// BuildBroadcast wraps a sub-type payload in the BROADCAST envelope with
// the current wall-clock timestamp (§6).
func BuildBroadcast(kind wire.BroadcastType, payload []byte, now time.Time) []byte {
	return wire.EncodeBroadcast(&wire.BroadcastHeader{
		Type:      kind,
		Timestamp: now.UnixNano(),
		Payload:   payload,
	})
}

// isUserMessage reports whether a broadcast sub-type is a user-authored
// message subject to the ignore filter, as opposed to moderation/exit/
// state-update traffic that must always be processed (§4.5 P7).
func isUserMessage(kind wire.BroadcastType) bool {
	switch kind {
	case wire.BroadcastPlainMessage, wire.BroadcastActionMessage, wire.BroadcastPrivateMessage:
		return true
	default:
		return false
	}
}

// ShouldDeliver applies the ignore filter (§4.5, §8 P7): when the sending
// peer is ignored, user messages are dropped silently while moderation,
// exit, and state-update broadcasts are still delivered to handlers.
// Custom packets sent outside the broadcast envelope are also user
// messages and should use ShouldDeliverCustomPacket below.
func ShouldDeliver(rec *group.PeerRecord, kind wire.BroadcastType) bool {
	if !rec.Ignored {
		return true
	}
	return !isUserMessage(kind)
}

// ShouldDeliverCustomPacket applies the same ignore filter to
// CUSTOM_PACKET traffic (§4.5, §8 P7: "custom" packets are user messages).
func ShouldDeliverCustomPacket(rec *group.PeerRecord) bool {
	return !rec.Ignored
}

// BuildVersionVector captures the local version numbers for a
// SYNC_REQUEST (§4.5).
func BuildVersionVector(a *sharedstate.Authority, topicVersion uint32) *wire.VersionVector {
	modVersion := uint32(0)
	if a.Mods != nil {
		modVersion = a.Mods.Version
	}
	return &wire.VersionVector{
		SharedStateVersion: a.State.Version,
		ModListVersion:     modVersion,
		TopicVersion:       topicVersion,
	}
}

// BuildSyncResponse compares the requester's version vector against local
// state and includes only the pieces that are strictly newer locally
// (§4.5: "the recipient replies with the newer pieces it has").
func BuildSyncResponse(a *sharedstate.Authority, localTopic *wire.TopicInfo, remote *wire.VersionVector) *wire.SyncResponse {
	resp := &wire.SyncResponse{}
	if a.State.Version > remote.SharedStateVersion {
		resp.SharedState = a.State.EncodeSigned()
	}
	if a.Mods != nil && a.Mods.Version > remote.ModListVersion {
		resp.ModList = a.Mods.EncodeSigned()
	}
	if localTopic != nil && localTopic.Version > remote.TopicVersion {
		resp.Topic = localTopic.EncodeSigned()
	}
	return resp
}
