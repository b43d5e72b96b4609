// Package audit provides structured logging of security-relevant group
// session events, grounded on pkg/p2pnet/audit.go's nil-safe
// *AuditLogger pattern: every method tolerates a nil receiver so callers
// never need a conditional around a log call.
package audit

import "log/slog"

// Logger writes structured audit events under the "audit" slog group.
type Logger struct {
	logger *slog.Logger
}

// New creates a Logger writing through handler.
func New(handler slog.Handler) *Logger {
	return &Logger{logger: slog.New(handler).WithGroup("audit")}
}

// SignatureRejected logs a payload that failed signature verification.
func (l *Logger) SignatureRejected(chatID, peerID, payloadType string) {
	if l == nil {
		return
	}
	l.logger.Warn("signature_rejected",
		"chat_id", chatID,
		"peer", peerID,
		"payload_type", payloadType,
	)
}

// HandshakeFailed logs a failed or abandoned peer handshake.
func (l *Logger) HandshakeFailed(chatID, peerID, reason string) {
	if l == nil {
		return
	}
	l.logger.Warn("handshake_failed",
		"chat_id", chatID,
		"peer", peerID,
		"reason", reason,
	)
}

// PeerKicked logs a moderation action that removed a peer.
func (l *Logger) PeerKicked(chatID, actorPeerID, targetPeerID string) {
	if l == nil {
		return
	}
	l.logger.Info("peer_kicked",
		"chat_id", chatID,
		"actor", actorPeerID,
		"target", targetPeerID,
	)
}

// PasswordRejected logs a join attempt with an incorrect password.
func (l *Logger) PasswordRejected(chatID, peerID string) {
	if l == nil {
		return
	}
	l.logger.Warn("password_rejected",
		"chat_id", chatID,
		"peer", peerID,
	)
}

// GroupFull logs a rejected join due to the group's peer limit.
func (l *Logger) GroupFull(chatID, peerID string) {
	if l == nil {
		return
	}
	l.logger.Warn("group_full",
		"chat_id", chatID,
		"peer", peerID,
	)
}

// AnnounceRateLimited logs a ping-id issuance or announce request dropped
// by the responder's rate limiter.
func (l *Logger) AnnounceRateLimited(sourceAddr string) {
	if l == nil {
		return
	}
	l.logger.Warn("announce_rate_limited",
		"source", sourceAddr,
	)
}
