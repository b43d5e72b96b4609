package sharedstate

import (
	"crypto/ed25519"
	"testing"

	"github.com/shurlinet/groupwire/internal/wire"
)

func newFounderAuthority(t *testing.T) (*Authority, ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)
	a := NewAuthority(founderPK, founderPK) // chat_id == founder sign pk
	return a, pub, priv
}

func TestAdoptSharedStateAcceptsNewerSignedVersion(t *testing.T) {
	a, pub, priv := newFounderAuthority(t)
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)

	s := &wire.SharedState{
		Version:       1,
		FounderSignPK: founderPK,
		ChatID:        a.ChatID,
		GroupName:     "test group",
	}
	s.Signature = [wire.SignatureSize]byte{}
	sig := ed25519.Sign(priv, s.SignTarget())
	copy(s.Signature[:], sig)

	if err := a.AdoptSharedState(s); err != nil {
		t.Fatalf("AdoptSharedState: %v", err)
	}
	if a.State.GroupName != "test group" {
		t.Fatalf("expected adopted state, got %+v", a.State)
	}
}

func TestAdoptSharedStateRejectsStaleVersion(t *testing.T) {
	a, pub, priv := newFounderAuthority(t)
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)
	a.State.Version = 5

	s := &wire.SharedState{Version: 5, FounderSignPK: founderPK, ChatID: a.ChatID}
	sig := ed25519.Sign(priv, s.SignTarget())
	copy(s.Signature[:], sig)

	if err := a.AdoptSharedState(s); err != ErrStaleVersion {
		t.Fatalf("expected ErrStaleVersion, got %v", err)
	}
}

func TestAdoptSharedStateRejectsBadSignature(t *testing.T) {
	a, pub, _ := newFounderAuthority(t)
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)

	s := &wire.SharedState{Version: 1, FounderSignPK: founderPK, ChatID: a.ChatID}
	// Signature left zeroed - should not verify.
	if err := a.AdoptSharedState(s); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestDeriveRoleFounderAndModerator(t *testing.T) {
	a, pub, priv := newFounderAuthority(t)
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)

	modPub, _, _ := ed25519.GenerateKey(nil)
	var modPK [wire.PublicKeySize]byte
	copy(modPK[:], modPub)

	ml := &wire.ModList{Version: 1, Moderators: [][wire.PublicKeySize]byte{modPK}}
	sig := ed25519.Sign(priv, ml.SignTarget())
	copy(ml.Signature[:], sig)
	if err := a.AdoptModList(ml); err != nil {
		t.Fatalf("AdoptModList: %v", err)
	}

	if role := a.DeriveRole(founderPK); role != RoleFounder {
		t.Fatalf("expected founder role, got %v", role)
	}
	if role := a.DeriveRole(modPK); role != RoleModerator {
		t.Fatalf("expected moderator role, got %v", role)
	}
	var strangerPK [wire.PublicKeySize]byte
	strangerPK[0] = 0xFF
	if role := a.DeriveRole(strangerPK); role != RoleUser {
		t.Fatalf("expected default user role, got %v", role)
	}
}

func TestAdoptSharedStateAcceptsIdempotentEqualVersion(t *testing.T) {
	a, pub, priv := newFounderAuthority(t)
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)

	s := &wire.SharedState{Version: 3, FounderSignPK: founderPK, ChatID: a.ChatID, GroupName: "same"}
	sig := ed25519.Sign(priv, s.SignTarget())
	copy(s.Signature[:], sig)
	a.State = s

	redelivered := &wire.SharedState{Version: 3, FounderSignPK: founderPK, ChatID: a.ChatID, GroupName: "same"}
	copy(redelivered.Signature[:], sig)
	if err := a.AdoptSharedState(redelivered); err != nil {
		t.Fatalf("expected idempotent accept of byte-equal same-version state, got %v", err)
	}

	diverged := &wire.SharedState{Version: 3, FounderSignPK: founderPK, ChatID: a.ChatID, GroupName: "different"}
	diffSig := ed25519.Sign(priv, diverged.SignTarget())
	copy(diverged.Signature[:], diffSig)
	if err := a.AdoptSharedState(diverged); err != ErrStaleVersion {
		t.Fatalf("expected ErrStaleVersion for non-identical same-version state, got %v", err)
	}
}

func TestDeriveRoleModeratorPrecedesObserverSanction(t *testing.T) {
	a, pub, priv := newFounderAuthority(t)
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)

	modPub, _, _ := ed25519.GenerateKey(nil)
	var modPK [wire.PublicKeySize]byte
	copy(modPK[:], modPub)

	ml := &wire.ModList{Version: 1, Moderators: [][wire.PublicKeySize]byte{modPK}}
	sig := ed25519.Sign(priv, ml.SignTarget())
	copy(ml.Signature[:], sig)
	if err := a.AdoptModList(ml); err != nil {
		t.Fatalf("AdoptModList: %v", err)
	}

	entry := wire.SanctionEntry{Version: 1, TargetPK: modPK, Event: wire.ModEventSetObserver, IssuerPK: founderPK}
	sig2 := ed25519.Sign(priv, entry.SignTarget())
	copy(entry.Signature[:], sig2)
	cred := ed25519.Sign(priv, wire.CredentialSignTarget(1, founderPK))
	list := &wire.SanctionsList{Version: 1, Entries: []wire.SanctionEntry{entry}, IssuerPK: founderPK}
	copy(list.Credential[:], cred)
	if _, err := a.AdoptSanctionsList(list); err != nil {
		t.Fatalf("AdoptSanctionsList: %v", err)
	}

	if role := a.DeriveRole(modPK); role != RoleModerator {
		t.Fatalf("expected moderator standing to take precedence over an observer sanction, got %v", role)
	}
}

func TestDeriveRoleObserverSanctionOverridesUser(t *testing.T) {
	a, pub, priv := newFounderAuthority(t)
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)

	targetPub, _, _ := ed25519.GenerateKey(nil)
	var targetPK [wire.PublicKeySize]byte
	copy(targetPK[:], targetPub)

	entry := wire.SanctionEntry{Version: 1, TargetPK: targetPK, Event: wire.ModEventSetObserver, IssuerPK: founderPK}
	entry.Signature = [wire.SignatureSize]byte{}
	sig := ed25519.Sign(priv, entry.SignTarget())
	copy(entry.Signature[:], sig)

	cred := ed25519.Sign(priv, wire.CredentialSignTarget(1, founderPK))
	list := &wire.SanctionsList{Version: 1, Entries: []wire.SanctionEntry{entry}, IssuerPK: founderPK}
	copy(list.Credential[:], cred)

	adopted, err := a.AdoptSanctionsList(list)
	if err != nil {
		t.Fatalf("AdoptSanctionsList: %v", err)
	}
	if adopted != 1 {
		t.Fatalf("expected 1 entry adopted, got %d", adopted)
	}
	if role := a.DeriveRole(targetPK); role != RoleObserver {
		t.Fatalf("expected observer role, got %v", role)
	}
}

func TestAdoptSanctionsListRejectsBadCredential(t *testing.T) {
	a, _, _ := newFounderAuthority(t)
	otherPub, otherPriv, _ := ed25519.GenerateKey(nil)
	var otherPK [wire.PublicKeySize]byte
	copy(otherPK[:], otherPub)

	badCred := ed25519.Sign(otherPriv, wire.CredentialSignTarget(1, otherPK))
	list := &wire.SanctionsList{Version: 1, IssuerPK: otherPK}
	copy(list.Credential[:], badCred)

	if _, err := a.AdoptSanctionsList(list); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature for credential not signed by founder, got %v", err)
	}
}

func TestCanSetTopicRespectsLock(t *testing.T) {
	a, pub, _ := newFounderAuthority(t)
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)
	a.State.TopicLock = wire.TopicLockEnabled

	var strangerPK [wire.PublicKeySize]byte
	strangerPK[0] = 1
	if a.CanSetTopic(strangerPK) {
		t.Fatal("expected stranger to be denied when topic is locked")
	}
	if !a.CanSetTopic(founderPK) {
		t.Fatal("expected founder to always be able to set topic")
	}
}

func TestRequireFounder(t *testing.T) {
	a, pub, _ := newFounderAuthority(t)
	var founderPK [wire.PublicKeySize]byte
	copy(founderPK[:], pub)
	if err := a.RequireFounder(founderPK); err != nil {
		t.Fatalf("expected founder check to pass: %v", err)
	}
	var strangerPK [wire.PublicKeySize]byte
	strangerPK[0] = 1
	if err := a.RequireFounder(strangerPK); err != ErrNotFounder {
		t.Fatalf("expected ErrNotFounder, got %v", err)
	}
}
