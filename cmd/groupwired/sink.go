package main

import (
	"log/slog"

	"github.com/shurlinet/groupwire/internal/group"
	"github.com/shurlinet/groupwire/internal/group/sharedstate"
)

// slogSink logs every group event at Info/Warn level, the demo binary's
// stand-in for a real chat UI - the same role internal/audit.Logger plays
// for security events, but for the full EventSink surface.
type slogSink struct {
	logger *slog.Logger
}

func (s slogSink) OnPeerJoined(h group.PeerHandle, rec *group.PeerRecord) {
	s.logger.Info("peer_joined", "peer_id", rec.PeerID, "nickname", rec.Nickname)
}

func (s slogSink) OnPeerLeft(h group.PeerHandle, rec *group.PeerRecord, reason string) {
	s.logger.Info("peer_left", "peer_id", rec.PeerID, "reason", reason)
}

func (s slogSink) OnPlainMessage(h group.PeerHandle, rec *group.PeerRecord, body []byte) {
	s.logger.Info("message", "peer_id", rec.PeerID, "nickname", rec.Nickname, "body", string(body))
}

func (s slogSink) OnActionMessage(h group.PeerHandle, rec *group.PeerRecord, body []byte) {
	s.logger.Info("action", "peer_id", rec.PeerID, "nickname", rec.Nickname, "body", string(body))
}

func (s slogSink) OnPrivateMessage(h group.PeerHandle, rec *group.PeerRecord, body []byte) {
	s.logger.Info("private_message", "peer_id", rec.PeerID, "nickname", rec.Nickname, "body", string(body))
}

func (s slogSink) OnCustomPacket(h group.PeerHandle, rec *group.PeerRecord, lossless bool, body []byte) {
	s.logger.Info("custom_packet", "peer_id", rec.PeerID, "lossless", lossless, "bytes", len(body))
}

func (s slogSink) OnRoleChanged(h group.PeerHandle, rec *group.PeerRecord, oldRole, newRole sharedstate.Role) {
	s.logger.Info("role_changed", "peer_id", rec.PeerID, "old", oldRole, "new", newRole)
}

func (s slogSink) OnTopicChanged(topic string, setterPeerID uint32) {
	s.logger.Info("topic_changed", "topic", topic, "setter_peer_id", setterPeerID)
}

func (s slogSink) OnSharedStateChanged(field string) {
	s.logger.Info("shared_state_changed", "field", field)
}

func (s slogSink) OnConnectionStateChanged(old, new group.ConnectionState) {
	s.logger.Info("connection_state_changed", "old", old.String(), "new", new.String())
}

var _ group.EventSink = slogSink{}
