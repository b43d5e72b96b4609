// Package group implements the core group domain model (§3): the peer
// roster, group-level connection state machine, and the membership
// invariants that sit above the wire format, crypto primitives, and
// per-peer handshake/reliability layers. Peer identities are held in an
// arena addressed by a generation-checked handle rather than a raw pointer
// or slice index, per the Design Notes in spec.md §9: once a peer slot is
// freed and reused, any handle issued before the reuse becomes
// detectably stale instead of silently aliasing the new occupant - the
// same hazard pkg/p2pnet/peermanager.go avoids by keying everything off a
// stable node ID instead of a slice position.
package group

import (
	"fmt"
	"time"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/groupwire/internal/group/conn"
	"github.com/shurlinet/groupwire/internal/group/lossless"
	"github.com/shurlinet/groupwire/internal/group/sharedstate"
	"github.com/shurlinet/groupwire/internal/wire"
)

// PeerHandle is a stable, generation-checked reference to a roster slot.
// A handle obtained before a slot is freed and reused compares unequal in
// effect: Roster.Get returns ErrStaleHandle for it.
type PeerHandle struct {
	index      int
	generation uint32
}

// IsZero reports whether h is the zero handle (never assigned).
func (h PeerHandle) IsZero() bool { return h.generation == 0 && h.index == 0 }

// ErrStaleHandle is returned by Roster lookups for a handle whose slot has
// since been freed and reused.
var ErrStaleHandle = fmt.Errorf("group: stale peer handle")

// ErrPeerNotFound is returned when no roster entry matches the lookup key.
var ErrPeerNotFound = fmt.Errorf("group: peer not found")

// ErrGroupFull is returned when adding a peer would exceed the configured
// peer limit (§3 "peer_limit", §5 edge case).
var ErrGroupFull = fmt.Errorf("group: peer limit reached")

// ErrAlreadyMember is returned when a peer with the same encryption public
// key is already present in the roster.
var ErrAlreadyMember = fmt.Errorf("group: peer already a member")

// PeerRecord holds everything the engine tracks about one other group
// member (§3 "peer record").
type PeerRecord struct {
	PeerID   uint32 // group-local identifier, stable for the life of the membership
	EncPK    [wire.PublicKeySize]byte
	SignPK   [wire.PublicKeySize]byte
	Nickname string
	Status   byte // application-defined presence status (e.g. none/away/busy)
	Ignored  bool
	Role     sharedstate.Role

	SessionKey []byte // derived once, zeroed on peer removal

	DirectAddr ma.Multiaddr // last known direct UDP address, if any
	RelayAddr  ma.Multiaddr // TCP relay address currently used to reach this peer, if any

	Conn conn.State
	Send *lossless.SendQueue
	Recv *lossless.RecvQueue
	AckLimiter *lossless.AckRequestLimiter

	PendingSync bool // set on a new entry; cleared when the peer is first confirmed and the initial SYNC_REQUEST goes out
	LastPingAt  time.Time
}

type slot struct {
	record     *PeerRecord
	generation uint32
	occupied   bool
}

// Roster is the arena-backed peer table for one group (§3).
type Roster struct {
	arena    []slot
	free     []int
	byEncPK  map[[wire.PublicKeySize]byte]PeerHandle
	byPeerID map[uint32]PeerHandle
	nextPeerID uint32
	peerLimit  uint32
}

// NewRoster creates an empty roster bounded by peerLimit (0 means
// unbounded, matching wire.SharedState.PeerLimit's "0 = no limit").
func NewRoster(peerLimit uint32) *Roster {
	return &Roster{
		byEncPK:  make(map[[wire.PublicKeySize]byte]PeerHandle),
		byPeerID: make(map[uint32]PeerHandle),
		nextPeerID: 1,
		peerLimit:  peerLimit,
	}
}

// SetPeerLimit updates the enforced membership cap (founder-only operation
// at the session layer; the roster itself just enforces the number).
func (r *Roster) SetPeerLimit(limit uint32) { r.peerLimit = limit }

// Len reports the current member count, excluding freed slots.
func (r *Roster) Len() int {
	n := 0
	for _, s := range r.arena {
		if s.occupied {
			n++
		}
	}
	return n
}

// Add inserts a new peer record and returns its stable handle.
func (r *Roster) Add(encPK [wire.PublicKeySize]byte, signPK [wire.PublicKeySize]byte) (PeerHandle, *PeerRecord, error) {
	if _, exists := r.byEncPK[encPK]; exists {
		return PeerHandle{}, nil, ErrAlreadyMember
	}
	if r.peerLimit > 0 && uint32(r.Len()) >= r.peerLimit {
		return PeerHandle{}, nil, ErrGroupFull
	}
	rec := &PeerRecord{
		PeerID: r.nextPeerID,
		EncPK:  encPK,
		SignPK: signPK,
	}
	r.nextPeerID++

	var h PeerHandle
	if len(r.free) > 0 {
		idx := r.free[len(r.free)-1]
		r.free = r.free[:len(r.free)-1]
		r.arena[idx].record = rec
		r.arena[idx].occupied = true
		r.arena[idx].generation++
		h = PeerHandle{index: idx, generation: r.arena[idx].generation}
	} else {
		r.arena = append(r.arena, slot{record: rec, occupied: true, generation: 1})
		h = PeerHandle{index: len(r.arena) - 1, generation: 1}
	}

	r.byEncPK[encPK] = h
	r.byPeerID[rec.PeerID] = h
	return h, rec, nil
}

// Get resolves a handle to its record, rejecting stale handles.
func (r *Roster) Get(h PeerHandle) (*PeerRecord, error) {
	if h.index < 0 || h.index >= len(r.arena) {
		return nil, ErrStaleHandle
	}
	s := r.arena[h.index]
	if !s.occupied || s.generation != h.generation {
		return nil, ErrStaleHandle
	}
	return s.record, nil
}

// ByEncPK resolves a peer by its X25519 public key.
func (r *Roster) ByEncPK(encPK [wire.PublicKeySize]byte) (PeerHandle, *PeerRecord, error) {
	h, ok := r.byEncPK[encPK]
	if !ok {
		return PeerHandle{}, nil, ErrPeerNotFound
	}
	rec, err := r.Get(h)
	return h, rec, err
}

// ByPeerID resolves a peer by its group-local numeric id.
func (r *Roster) ByPeerID(peerID uint32) (PeerHandle, *PeerRecord, error) {
	h, ok := r.byPeerID[peerID]
	if !ok {
		return PeerHandle{}, nil, ErrPeerNotFound
	}
	rec, err := r.Get(h)
	return h, rec, err
}

// Remove frees a peer's slot, invalidating its handle, and scrubs its
// session key (§7: key material is zeroed when no longer needed).
func (r *Roster) Remove(h PeerHandle) error {
	rec, err := r.Get(h)
	if err != nil {
		return err
	}
	for i := range rec.SessionKey {
		rec.SessionKey[i] = 0
	}
	delete(r.byEncPK, rec.EncPK)
	delete(r.byPeerID, rec.PeerID)
	r.arena[h.index].record = nil
	r.arena[h.index].occupied = false
	r.free = append(r.free, h.index)
	return nil
}

// UpdateEncPK re-keys a peer's roster index after a KEY_ROTATION exchange
// (§6 KEY_ROTATION), leaving its handle and peer_id unchanged.
func (r *Roster) UpdateEncPK(h PeerHandle, newEncPK [wire.PublicKeySize]byte) error {
	rec, err := r.Get(h)
	if err != nil {
		return err
	}
	delete(r.byEncPK, rec.EncPK)
	rec.EncPK = newEncPK
	r.byEncPK[newEncPK] = h
	return nil
}

// BySignPK linearly scans for a peer by signing key, used for the
// infrequent topic-setter lookup (§3) where no dedicated index is worth
// maintaining.
func (r *Roster) BySignPK(signPK [wire.PublicKeySize]byte) (PeerHandle, *PeerRecord, error) {
	var found PeerHandle
	var rec *PeerRecord
	r.Range(func(h PeerHandle, rc *PeerRecord) bool {
		if rc.SignPK == signPK {
			found, rec = h, rc
			return false
		}
		return true
	})
	if rec == nil {
		return PeerHandle{}, nil, ErrPeerNotFound
	}
	return found, rec, nil
}

// Range iterates every live peer in roster order (arena index order,
// which is insertion order modulo slot reuse). Broadcast fan-out iterates
// in this same order (§4.5: "no cross-peer sequencing guarantee" beyond a
// single, consistent local iteration order).
func (r *Roster) Range(fn func(PeerHandle, *PeerRecord) bool) {
	for i, s := range r.arena {
		if !s.occupied {
			continue
		}
		if !fn(PeerHandle{index: i, generation: s.generation}, s.record) {
			return
		}
	}
}
