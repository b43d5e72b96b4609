// Package sharedstate implements the founder-authored group configuration
// and moderation business logic (§4.4): monotonic-version adoption of
// SharedState/ModList/SanctionsList, signature verification against the
// chat's founder key, and the pure role-derivation function every peer
// runs locally to agree on who is founder, moderator, user, or observer.
//
// This package owns verification and acceptance policy; internal/wire
// owns only the byte layout. The split mirrors how
// internal/invite/pake.go keeps wire framing (code.go) separate from
// session/handshake policy.
package sharedstate

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"github.com/shurlinet/groupwire/internal/wire"
)

// Role is a peer's derived standing within a group (§3, §4.4).
type Role int

const (
	RoleObserver Role = iota
	RoleUser
	RoleModerator
	RoleFounder
)

func (r Role) String() string {
	switch r {
	case RoleObserver:
		return "observer"
	case RoleUser:
		return "user"
	case RoleModerator:
		return "moderator"
	case RoleFounder:
		return "founder"
	default:
		return "unknown"
	}
}

// ErrStaleVersion is returned when an incoming signed payload is not newer
// than the currently adopted one: for shared state, an older version or the
// same version with different contents (a byte-identical re-send of the
// current version is accepted as a no-op); for the moderator list, any
// version not strictly greater.
var ErrStaleVersion = fmt.Errorf("sharedstate: version not newer than current")

// ErrBadSignature is returned when a payload's signature does not verify
// against the expected signer key. Deliberately generic: callers must not
// leak which check failed to the network (§7).
var ErrBadSignature = fmt.Errorf("sharedstate: signature verification failed")

// ErrWrongChatID is returned when a SharedState's embedded chat_id does not
// match the authority's chat_id.
var ErrWrongChatID = fmt.Errorf("sharedstate: chat_id mismatch")

// ErrNotFounder is returned when an operation that only the founder may
// perform is attempted by anyone else.
var ErrNotFounder = fmt.Errorf("sharedstate: operation requires founder role")

// Authority holds one group's current adopted configuration and
// moderation lists, plus the logic to validate and adopt updates (§4.4).
type Authority struct {
	ChatID [wire.ChatIDSize]byte
	State  *wire.SharedState
	Mods   *wire.ModList
	Sanctions map[[wire.PublicKeySize]byte]wire.SanctionEntry // by target pk, latest version wins
}

// NewAuthority seeds an Authority from the founder-created genesis shared
// state (version 0, empty mod list).
func NewAuthority(founderSignPK [wire.PublicKeySize]byte, chatID [wire.ChatIDSize]byte) *Authority {
	return &Authority{
		ChatID: chatID,
		State: &wire.SharedState{
			FounderSignPK: founderSignPK,
			ChatID:        chatID,
		},
		Mods:      &wire.ModList{},
		Sanctions: make(map[[wire.PublicKeySize]byte]wire.SanctionEntry),
	}
}

// AdoptSharedState validates and, if valid, adopts an incoming SharedState
// update. An equal version is accepted only if byte-identical to the
// currently held state (idempotent re-delivery); anything older is stale;
// anything newer is adopted once its signature and chat_id check out
// (§4.4 points 2-4).
func (a *Authority) AdoptSharedState(s *wire.SharedState) error {
	if s.ChatID != a.ChatID {
		return ErrWrongChatID
	}
	if s.Version == a.State.Version {
		if bytes.Equal(s.EncodeSigned(), a.State.EncodeSigned()) {
			return nil
		}
		return ErrStaleVersion
	}
	if s.Version < a.State.Version {
		return ErrStaleVersion
	}
	if !ed25519.Verify(ed25519.PublicKey(a.State.FounderSignPK[:]), s.SignTarget(), s.Signature[:]) {
		return ErrBadSignature
	}
	a.State = s
	return nil
}

// AdoptModList validates and adopts an incoming founder-signed moderator
// list.
func (a *Authority) AdoptModList(m *wire.ModList) error {
	if a.Mods != nil && m.Version <= a.Mods.Version {
		return ErrStaleVersion
	}
	if !ed25519.Verify(ed25519.PublicKey(a.State.FounderSignPK[:]), m.SignTarget(), m.Signature[:]) {
		return ErrBadSignature
	}
	a.Mods = m
	return nil
}

// AdoptSanctionsList validates each entry in an incoming sanctions list
// independently, per §4.4: "sanctions entries are individually verifiable
// ... a single bad entry does not invalidate the rest of the list". It
// requires the list's credential to prove the issuer held moderator-or-
// founder standing, verified against the founder key, and adopts only
// entries whose own signature checks out and whose version is newer than
// any currently held entry for that target.
//
// It returns the number of entries adopted and does not return an error
// for partial application - only for a structurally invalid credential.
func (a *Authority) AdoptSanctionsList(l *wire.SanctionsList) (int, error) {
	credentialTarget := wire.CredentialSignTarget(l.Version, l.IssuerPK)
	if !ed25519.Verify(ed25519.PublicKey(a.State.FounderSignPK[:]), credentialTarget, l.Credential[:]) {
		return 0, ErrBadSignature
	}
	adopted := 0
	for i := range l.Entries {
		e := l.Entries[i]
		if e.IssuerPK != l.IssuerPK {
			continue
		}
		if existing, ok := a.Sanctions[e.TargetPK]; ok && e.Version <= existing.Version {
			continue
		}
		if !ed25519.Verify(ed25519.PublicKey(e.IssuerPK[:]), e.SignTarget(), e.Signature[:]) {
			continue
		}
		a.Sanctions[e.TargetPK] = e
		adopted++
	}
	return adopted, nil
}

// IsModerator reports whether signPK appears in the current moderator list.
func (a *Authority) IsModerator(signPK [wire.PublicKeySize]byte) bool {
	if a.Mods == nil {
		return false
	}
	for _, pk := range a.Mods.Moderators {
		if pk == signPK {
			return true
		}
	}
	return false
}

// IsFounder reports whether signPK is the group's founder (§3: chat_id is
// the founder's own signing public key).
func (a *Authority) IsFounder(signPK [wire.PublicKeySize]byte) bool {
	return signPK == a.ChatID
}

// DeriveRole computes role(peer) = f(sign_pk, moderator_list,
// sanctions_list, chat_id) as a pure function of currently adopted state
// (§4.4): founder by chat_id, else moderator by moderator_list membership,
// else observer by sanctions_list membership, else user.
func (a *Authority) DeriveRole(signPK [wire.PublicKeySize]byte) Role {
	if a.IsFounder(signPK) {
		return RoleFounder
	}
	if a.IsModerator(signPK) {
		return RoleModerator
	}
	if entry, ok := a.Sanctions[signPK]; ok && entry.Event == wire.ModEventSetObserver {
		return RoleObserver
	}
	return RoleUser
}

// RequireFounder is a guard for founder-only operations (§4.4:
// set_password, set_privacy_state, set_peer_limit, set_topic_lock, set_mod).
func (a *Authority) RequireFounder(signPK [wire.PublicKeySize]byte) error {
	if !a.IsFounder(signPK) {
		return ErrNotFounder
	}
	return nil
}

// CanSetTopic reports whether signPK may set the topic given the current
// topic-lock setting (§4.4: topic lock restricts to founder/moderators).
func (a *Authority) CanSetTopic(signPK [wire.PublicKeySize]byte) bool {
	if a.State.TopicLock == wire.TopicLockDisabled {
		return true
	}
	role := a.DeriveRole(signPK)
	return role == RoleFounder || role == RoleModerator
}
