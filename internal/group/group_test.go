package group

import (
	"testing"

	"github.com/shurlinet/groupwire/internal/gwcrypto"
	"github.com/shurlinet/groupwire/internal/wire"
)

func newTestKeyPair(t *testing.T) *gwcrypto.ExtendedKeyPair {
	t.Helper()
	kp, err := gwcrypto.GenerateExtendedKeyPair()
	if err != nil {
		t.Fatalf("GenerateExtendedKeyPair: %v", err)
	}
	return kp
}

func TestNewFoundedChatIDIsFounderSignKey(t *testing.T) {
	self := newTestKeyPair(t)
	g, err := NewFounded(self, "my group", 0, wire.PrivacyPublic)
	if err != nil {
		t.Fatalf("NewFounded: %v", err)
	}
	var want [wire.ChatIDSize]byte
	copy(want[:], self.SignPub)
	if g.ChatID != want {
		t.Fatalf("expected chat_id to equal founder sign pk")
	}
	if g.SelfRole().String() != "founder" {
		t.Fatalf("expected founder role, got %v", g.SelfRole())
	}
}

func TestGroupLifecycleTransitions(t *testing.T) {
	g, _ := NewFounded(newTestKeyPair(t), "g", 0, wire.PrivacyPublic)
	if err := g.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := g.Connect(); err != ErrInvalidStateTransition {
		t.Fatalf("expected invalid transition on double Connect, got %v", err)
	}
	if err := g.MarkConnected(); err != nil {
		t.Fatalf("MarkConnected: %v", err)
	}
	if g.State() != StateConnected {
		t.Fatalf("expected connected state, got %v", g.State())
	}
	g.Disconnect()
	if g.State() != StateDisconnected {
		t.Fatalf("expected disconnected after Disconnect, got %v", g.State())
	}
}

func TestRosterAddGetRemove(t *testing.T) {
	r := NewRoster(2)
	var pk1, sign1 [wire.PublicKeySize]byte
	pk1[0] = 1
	sign1[0] = 1
	h1, rec1, err := r.Add(pk1, sign1)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if rec1.PeerID != 1 {
		t.Fatalf("expected first peer id 1, got %d", rec1.PeerID)
	}

	var pk2, sign2 [wire.PublicKeySize]byte
	pk2[0] = 2
	sign2[0] = 2
	if _, _, err := r.Add(pk2, sign2); err != nil {
		t.Fatalf("Add second peer: %v", err)
	}

	var pk3, sign3 [wire.PublicKeySize]byte
	pk3[0] = 3
	sign3[0] = 3
	if _, _, err := r.Add(pk3, sign3); err != ErrGroupFull {
		t.Fatalf("expected ErrGroupFull at peer limit, got %v", err)
	}

	if err := r.Remove(h1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.Get(h1); err != ErrStaleHandle {
		t.Fatalf("expected ErrStaleHandle after remove, got %v", err)
	}

	// Slot reuse: adding again should succeed (freed a slot) and issue a
	// handle with a bumped generation at the same index.
	h3, _, err := r.Add(pk3, sign3)
	if err != nil {
		t.Fatalf("Add after remove: %v", err)
	}
	if _, err := r.Get(h3); err != nil {
		t.Fatalf("Get new handle: %v", err)
	}
}

func TestRosterRejectsDuplicateMember(t *testing.T) {
	r := NewRoster(0)
	var pk, sign [wire.PublicKeySize]byte
	pk[0] = 1
	if _, _, err := r.Add(pk, sign); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, _, err := r.Add(pk, sign); err != ErrAlreadyMember {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestRosterRangeOrder(t *testing.T) {
	r := NewRoster(0)
	var order []uint32
	for i := byte(1); i <= 3; i++ {
		var pk [wire.PublicKeySize]byte
		pk[0] = i
		r.Add(pk, pk)
	}
	r.Range(func(_ PeerHandle, rec *PeerRecord) bool {
		order = append(order, rec.PeerID)
		return true
	})
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("expected insertion order 1,2,3, got %v", order)
	}
}
