// Package lossless implements the per-peer reliable delivery layer (§4.3):
// in-order, exactly-once message_id-tagged packets with ACK-driven
// retransmission and bounded send-queue flow control. It has no knowledge
// of groups, peers, or transports - it operates purely on message ids and
// opaque payloads, the way a teacher-style leaf component would, so it can
// be unit tested without any network or crypto collaborator.
package lossless

import (
	"fmt"
	"time"
)

// AckKind distinguishes the two ACK semantics (§4.3).
type AckKind byte

const (
	// AckRecv confirms a packet was delivered in order (or is a duplicate).
	AckRecv AckKind = iota
	// AckRequest asks the sender to retransmit a specific missing id.
	AckRequest
)

// Default tuning. Retransmit backoff answers spec.md §9 Open Question (b):
// exponential, floor 300ms, doubling, ceiling 4s - a bounded curve with a
// floor of a few hundred ms and a ceiling of a few seconds, matching the
// shape of pkg/p2pnet/peermanager.go's reconnect backoff without copying
// its specific constants.
const (
	DefaultMaxQueueDepth   = 256
	RetransmitFloor        = 300 * time.Millisecond
	RetransmitCeiling      = 4 * time.Second
	DefaultRecvWindow      = 256
	AckRequestRateInterval = time.Second
)

// ErrQueueFull is returned by SendQueue.Enqueue when the queue has reached
// its configured depth (§4.3 "sendq").
var ErrQueueFull = fmt.Errorf("lossless: send queue full")

// outEntry is one in-flight lossless packet awaiting acknowledgement.
type outEntry struct {
	ID          uint64
	Type        byte
	Payload     []byte
	FirstSentAt time.Time
	LastSentAt  time.Time
	Attempts    int
}

// SendQueue is the per-peer ordered outbound lossless queue (§3 "send_queue").
type SendQueue struct {
	maxDepth  int
	nextID    uint64
	entries   []*outEntry
}

// NewSendQueue creates a send queue. The first enqueued message gets id 1
// (§3 "starting at 1 on handshake completion").
func NewSendQueue(maxDepth int) *SendQueue {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxQueueDepth
	}
	return &SendQueue{maxDepth: maxDepth, nextID: 1}
}

// Enqueue appends a new outbound packet and returns its assigned message id.
func (q *SendQueue) Enqueue(packetType byte, payload []byte, now time.Time) (uint64, error) {
	if len(q.entries) >= q.maxDepth {
		return 0, ErrQueueFull
	}
	id := q.nextID
	q.nextID++
	q.entries = append(q.entries, &outEntry{
		ID:          id,
		Type:        packetType,
		Payload:     payload,
		FirstSentAt: now,
		LastSentAt:  now,
		Attempts:    1,
	})
	return id, nil
}

// Ack drops the queue entry matching id, per AckRecv semantics (§4.3:
// "recv: drop matching entry from send_queue"). Reports whether an entry
// was found.
func (q *SendQueue) Ack(id uint64) bool {
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// RetransmitEntry is a send-queue entry due for retransmission.
type RetransmitEntry struct {
	ID      uint64
	Type    byte
	Payload []byte
}

// DueForRetransmit scans the queue for entries whose backoff window has
// elapsed and marks them resent, returning what to put back on the wire.
// Entries never expire (§4.3: "as long as the connection is alive they are
// retried") - only peer timeout (handled by the caller) discards them.
func (q *SendQueue) DueForRetransmit(now time.Time) []RetransmitEntry {
	var due []RetransmitEntry
	for _, e := range q.entries {
		if now.Sub(e.LastSentAt) < backoffFor(e.Attempts) {
			continue
		}
		e.LastSentAt = now
		e.Attempts++
		due = append(due, RetransmitEntry{ID: e.ID, Type: e.Type, Payload: e.Payload})
	}
	return due
}

// ForceRetransmit immediately marks the entry for id as due, per the
// AckRequest semantics (§4.3: "request: force retransmit of that entry now").
func (q *SendQueue) ForceRetransmit(id uint64) *RetransmitEntry {
	for _, e := range q.entries {
		if e.ID == id {
			e.LastSentAt = time.Time{}
			return &RetransmitEntry{ID: e.ID, Type: e.Type, Payload: e.Payload}
		}
	}
	return nil
}

// Len reports the current queue depth.
func (q *SendQueue) Len() int { return len(q.entries) }

// backoffFor returns the retransmit interval after the given number of
// prior attempts: exponential with a floor and ceiling (§9 Open Question b).
func backoffFor(attempts int) time.Duration {
	d := RetransmitFloor
	for i := 1; i < attempts && d < RetransmitCeiling; i++ {
		d *= 2
	}
	if d > RetransmitCeiling {
		d = RetransmitCeiling
	}
	return d
}
