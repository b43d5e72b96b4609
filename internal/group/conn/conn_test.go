package conn

import (
	"testing"
	"time"
)

func TestHandshakeInitiatorFlow(t *testing.T) {
	var s State
	if err := s.OnRequestSent(); err != nil {
		t.Fatalf("OnRequestSent: %v", err)
	}
	if err := s.OnResponseReceived(); err != nil {
		t.Fatalf("OnResponseReceived: %v", err)
	}
	if s.Confirmed() {
		t.Fatal("should not be confirmed until ack or traffic")
	}
	s.OnAnyAuthenticatedPacket()
	if !s.Confirmed() {
		t.Fatal("expected confirmed after authenticated packet")
	}
}

func TestHandshakeResponderFlow(t *testing.T) {
	var s State
	if err := s.OnRequestReceived(); err != nil {
		t.Fatalf("OnRequestReceived: %v", err)
	}
	if err := s.OnResponseAckReceived(); err != nil {
		t.Fatalf("OnResponseAckReceived: %v", err)
	}
	if !s.Confirmed() {
		t.Fatal("expected confirmed")
	}
}

func TestHandshakeRejectsOutOfOrderTransition(t *testing.T) {
	var s State
	if err := s.OnResponseReceived(); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTransportPrefersDirectWhileFresh(t *testing.T) {
	var s State
	now := time.Unix(0, 0)
	s.RecordDirectRecv(now)
	s.RecordRelayRecv(now.Add(time.Second), 10*time.Second)
	if got := s.ActiveTransport(now.Add(2*time.Second), 10*time.Second); got != TransportDirect {
		t.Fatalf("expected direct to remain preferred, got %v", got)
	}
}

func TestTransportFallsBackToRelayWhenDirectStale(t *testing.T) {
	var s State
	now := time.Unix(0, 0)
	s.RecordDirectRecv(now)
	later := now.Add(time.Minute)
	s.RecordRelayRecv(later, 10*time.Second)
	if got := s.ActiveTransport(later, 10*time.Second); got != TransportRelay {
		t.Fatalf("expected relay fallback, got %v", got)
	}
}

func TestTimedOut(t *testing.T) {
	var s State
	now := time.Unix(0, 0)
	s.RecordDirectRecv(now)
	if s.TimedOut(now.Add(5*time.Second), 10*time.Second) {
		t.Fatal("should not be timed out yet")
	}
	if !s.TimedOut(now.Add(20*time.Second), 10*time.Second) {
		t.Fatal("expected timeout")
	}
}

func TestTimedOutNeverRecordedIsNotTimedOut(t *testing.T) {
	var s State
	if s.TimedOut(time.Unix(100, 0), time.Second) {
		t.Fatal("a peer with no recorded traffic yet should not be considered timed out")
	}
}
