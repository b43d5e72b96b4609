package onion

import (
	"time"

	"github.com/shurlinet/groupwire/internal/wire"
)

// xorDistance computes the bytewise XOR distance between two 32-byte keys
// as a big-endian magnitude for comparison (§4.6: "entries are kept sorted
// by XOR distance to self-pk").
func xorDistance(a, b [32]byte) [32]byte {
	var d [32]byte
	for i := range a {
		d[i] = a[i] ^ b[i]
	}
	return d
}

// less reports whether distance x is strictly smaller than y, compared as
// a big-endian unsigned integer.
func less(x, y [32]byte) bool {
	for i := range x {
		if x[i] != y[i] {
			return x[i] < y[i]
		}
	}
	return false
}

// entry is one stored announce record in the responder's table.
type entry struct {
	Blob       wire.GroupAnnounceBlob
	storedAt   time.Time
	distance   [32]byte
}

// Table is the responder's bounded, distance-sorted announce table
// (§4.6): "a bounded table entries[0..ONION_ANNOUNCE_MAX_ENTRIES)
// ... eviction: replace only if the new key is closer to the responder's
// own DHT key than the current furthest entry ... sorted by XOR distance
// to self-pk; ties broken by position (stable)". Grounded in shape on
// pkg/p2pnet/peermanager.go's background-loop-maintained bounded map, but
// specialized to an ordered slice since eviction needs "furthest" lookups
// rather than key-based access.
type Table struct {
	selfKey [32]byte
	maxSize int
	timeout time.Duration
	entries []entry
}

// NewTable creates an empty table.
func NewTable(selfKey [32]byte, maxSize int, timeout time.Duration) *Table {
	return &Table{selfKey: selfKey, maxSize: maxSize, timeout: timeout}
}

// Len reports the current entry count.
func (t *Table) Len() int { return len(t.entries) }

// expire drops entries older than timeout (§4.6: "entries time out after
// ONION_ANNOUNCE_TIMEOUT").
func (t *Table) expire(now time.Time) {
	if t.timeout <= 0 {
		return
	}
	live := t.entries[:0]
	for _, e := range t.entries {
		if now.Sub(e.storedAt) <= t.timeout {
			live = append(live, e)
		}
	}
	t.entries = live
}

// Insert stores or refreshes a group announce record, evicting the
// furthest entry if the table is full and the new key is closer than it
// (§4.6). Returns whether the record was stored.
func (t *Table) Insert(now time.Time, blob wire.GroupAnnounceBlob) bool {
	t.expire(now)

	dist := xorDistance(t.selfKey, blob.PeerPublicKey)

	for i := range t.entries {
		if t.entries[i].Blob.PeerPublicKey == blob.PeerPublicKey {
			t.entries[i].Blob = blob
			t.entries[i].storedAt = now
			t.entries[i].distance = dist
			t.resort()
			return true
		}
	}

	newEntry := entry{Blob: blob, storedAt: now, distance: dist}

	if len(t.entries) < t.maxSize {
		t.entries = append(t.entries, newEntry)
		t.resort()
		return true
	}

	furthestIdx := 0
	for i := 1; i < len(t.entries); i++ {
		if less(t.entries[furthestIdx].distance, t.entries[i].distance) {
			furthestIdx = i
		}
	}
	if !less(dist, t.entries[furthestIdx].distance) {
		return false
	}
	t.entries[furthestIdx] = newEntry
	t.resort()
	return true
}

// resort performs a stable sort by ascending distance (ties keep their
// relative position, per §4.6 "ties broken by position (stable)").
func (t *Table) resort() {
	// Insertion sort: stable, and the table size is small (<= a few dozen
	// entries), so this stays cheap without pulling in sort.Slice's
	// interface-based comparator overhead for a hot responder path.
	for i := 1; i < len(t.entries); i++ {
		j := i
		for j > 0 && less(t.entries[j].distance, t.entries[j-1].distance) {
			t.entries[j], t.entries[j-1] = t.entries[j-1], t.entries[j]
			j--
		}
	}
}

// Closest returns up to n of the entries closest to self, in sorted order
// (§4.6: "up to GCA_MAX_SENT_ANNOUNCES known group-peer announces").
func (t *Table) Closest(n int) []wire.GroupAnnounceBlob {
	if n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]wire.GroupAnnounceBlob, n)
	for i := 0; i < n; i++ {
		out[i] = t.entries[i].Blob
	}
	return out
}
