// Package conn implements the per-peer connection and handshake state
// machine (§4.2): the INVITE_REQUEST/INVITE_RESPONSE/HS_RESPONSE_ACK
// exchange that derives a shared session key, plus the direct-vs-relay
// transport bookkeeping each confirmed peer needs (§3 "connection").
// It is deliberately transport- and crypto-agnostic: callers hand it the
// key material already derived by gwcrypto and the packets already framed
// by wire, the same separation pkg/p2pnet/peermanager.go draws between
// connection bookkeeping and the actual socket/crypto work.
package conn

import (
	"fmt"
	"time"
)

// HandshakeState is the per-peer handshake progress (§4.2).
type HandshakeState int

const (
	// HSNone: no handshake packets exchanged yet.
	HSNone HandshakeState = iota
	// HSRequestSent: we sent INVITE_REQUEST, awaiting INVITE_RESPONSE.
	HSRequestSent
	// HSResponding: we received INVITE_REQUEST and sent INVITE_RESPONSE,
	// awaiting HS_RESPONSE_ACK.
	HSResponding
	// HSReceived: we received INVITE_RESPONSE; HS_RESPONSE_ACK has not
	// been sent yet (OnAckSent moves on to HSConfirmed).
	HSReceived
	// HSConfirmed: session key confirmed by either HS_RESPONSE_ACK receipt
	// or any subsequent authenticated packet (§4.2).
	HSConfirmed
)

func (s HandshakeState) String() string {
	switch s {
	case HSNone:
		return "none"
	case HSRequestSent:
		return "request_sent"
	case HSResponding:
		return "responding"
	case HSReceived:
		return "received"
	case HSConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("HandshakeState(%d)", int(s))
	}
}

// Transport identifies which path a peer's traffic currently prefers
// (§3 "connection": direct UDP, or TCP relay fallback).
type Transport int

const (
	TransportNone Transport = iota
	TransportDirect
	TransportRelay
)

func (t Transport) String() string {
	switch t {
	case TransportNone:
		return "none"
	case TransportDirect:
		return "direct"
	case TransportRelay:
		return "relay"
	default:
		return fmt.Sprintf("Transport(%d)", int(t))
	}
}

// ErrInvalidTransition reports a handshake event that makes no sense in
// the peer's current state (stale or duplicate packet, or protocol abuse).
var ErrInvalidTransition = fmt.Errorf("conn: invalid handshake transition")

// State tracks one peer's handshake and live-transport status.
type State struct {
	Handshake    HandshakeState
	Transport    Transport
	DirectLastRecv time.Time
	RelayLastRecv  time.Time
}

// OnRequestSent records that we initiated the handshake.
func (s *State) OnRequestSent() error {
	if s.Handshake != HSNone {
		return ErrInvalidTransition
	}
	s.Handshake = HSRequestSent
	return nil
}

// OnRequestReceived records that a peer initiated the handshake with us.
// A peer may legally be in HSNone (fresh) or HSRequestSent (simultaneous
// open, resolved by chat_id-independent public key comparison at the
// caller) when this happens.
func (s *State) OnRequestReceived() error {
	if s.Handshake != HSNone && s.Handshake != HSRequestSent {
		return ErrInvalidTransition
	}
	s.Handshake = HSResponding
	return nil
}

// OnResponseReceived records that our INVITE_REQUEST was answered.
func (s *State) OnResponseReceived() error {
	if s.Handshake != HSRequestSent {
		return ErrInvalidTransition
	}
	s.Handshake = HSReceived
	return nil
}

// OnResponseAckReceived completes the handshake from the responder's side.
func (s *State) OnResponseAckReceived() error {
	if s.Handshake != HSResponding {
		return ErrInvalidTransition
	}
	s.Handshake = HSConfirmed
	return nil
}

// OnAckSent completes the handshake from the initiator's side at the
// moment we send HS_RESPONSE_ACK (§4.2 state table: received -> confirmed
// "on sending HS_RESPONSE_ACK"), rather than waiting on some later inbound
// packet to trigger OnAnyAuthenticatedPacket.
func (s *State) OnAckSent() error {
	if s.Handshake != HSReceived {
		return ErrInvalidTransition
	}
	s.Handshake = HSConfirmed
	return nil
}

// OnAnyAuthenticatedPacket completes the handshake from the initiator's
// side: per §4.2, confirmation also happens implicitly on receipt of any
// further authenticated packet, covering a packet that arrives while still
// in HSReceived, before OnAckSent has run.
func (s *State) OnAnyAuthenticatedPacket() {
	if s.Handshake == HSReceived {
		s.Handshake = HSConfirmed
	}
}

// Confirmed reports whether the handshake has completed.
func (s *State) Confirmed() bool { return s.Handshake == HSConfirmed }

// RecordDirectRecv marks a packet as having arrived over the direct UDP
// path and prefers it over relay (§3: "direct is always preferred when
// recently alive").
func (s *State) RecordDirectRecv(now time.Time) {
	s.DirectLastRecv = now
	s.Transport = TransportDirect
}

// RecordRelayRecv marks a packet as having arrived over a TCP relay. It
// only takes over the active transport if direct has gone stale.
func (s *State) RecordRelayRecv(now time.Time, directTimeout time.Duration) {
	s.RelayLastRecv = now
	if s.Transport != TransportDirect || now.Sub(s.DirectLastRecv) > directTimeout {
		s.Transport = TransportRelay
	}
}

// ActiveTransport reports which path should be used to send to this peer
// right now, demoting a stale direct path to relay.
func (s *State) ActiveTransport(now time.Time, directTimeout time.Duration) Transport {
	if s.Transport == TransportDirect && now.Sub(s.DirectLastRecv) <= directTimeout {
		return TransportDirect
	}
	if !s.RelayLastRecv.IsZero() {
		return TransportRelay
	}
	return s.Transport
}

// TimedOut reports whether neither path has produced traffic within
// timeout, meaning the peer should be dropped (§4.2 "peer timeout").
func (s *State) TimedOut(now time.Time, timeout time.Duration) bool {
	last := s.DirectLastRecv
	if s.RelayLastRecv.After(last) {
		last = s.RelayLastRecv
	}
	if last.IsZero() {
		return false
	}
	return now.Sub(last) > timeout
}
