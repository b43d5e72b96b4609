package lossless

import "time"

// inEntry is a buffered out-of-order arrival awaiting delivery.
type inEntry struct {
	Type    byte
	Payload []byte
}

// RecvQueue reorders inbound lossless packets into strict message_id order
// (§4.3 P2: "lossless packets are delivered to the application in strict
// message_id order, with no gaps"). Packets that arrive ahead of the
// expected id are buffered up to a bounded window; packets below the
// expected id are duplicates and are dropped.
type RecvQueue struct {
	window       int
	nextExpected uint64
	buffered     map[uint64]inEntry
}

// NewRecvQueue creates a receive queue. The first expected id is 1,
// matching SendQueue's first-assigned id.
func NewRecvQueue(window int) *RecvQueue {
	if window <= 0 {
		window = DefaultRecvWindow
	}
	return &RecvQueue{
		window:       window,
		nextExpected: 1,
		buffered:     make(map[uint64]inEntry),
	}
}

// Delivery is one packet released to the application in order.
type Delivery struct {
	ID      uint64
	Type    byte
	Payload []byte
}

// Outcome describes what Receive did with an arriving packet, so the
// caller knows which ACK kind to send (§4.3).
type Outcome int

const (
	// OutcomeDuplicate: id < next_expected, already delivered. Caller
	// should still ack (recv) so the sender can retire its queue entry.
	OutcomeDuplicate Outcome = iota
	// OutcomeBuffered: id > next_expected, held pending earlier arrivals.
	OutcomeBuffered
	// OutcomeDelivered: id == next_expected (or filled a gap), packets
	// were released in order.
	OutcomeDelivered
	// OutcomeWindowExceeded: id is too far ahead to buffer; caller should
	// send an AckRequest for next_expected to prompt retransmission.
	OutcomeWindowExceeded
)

// Receive processes one arriving lossless packet, returning what happened
// and any packets (possibly more than one, if this arrival filled a gap)
// now ready for delivery to the application in order.
func (q *RecvQueue) Receive(id uint64, packetType byte, payload []byte) (Outcome, []Delivery) {
	if id < q.nextExpected {
		return OutcomeDuplicate, nil
	}
	if id == q.nextExpected {
		deliveries := []Delivery{{ID: id, Type: packetType, Payload: payload}}
		q.nextExpected++
		for {
			e, ok := q.buffered[q.nextExpected]
			if !ok {
				break
			}
			deliveries = append(deliveries, Delivery{ID: q.nextExpected, Type: e.Type, Payload: e.Payload})
			delete(q.buffered, q.nextExpected)
			q.nextExpected++
		}
		return OutcomeDelivered, deliveries
	}
	if id-q.nextExpected >= uint64(q.window) {
		return OutcomeWindowExceeded, nil
	}
	q.buffered[id] = inEntry{Type: packetType, Payload: payload}
	return OutcomeBuffered, nil
}

// NextExpected reports the next message_id the queue is waiting on, for
// constructing an AckRequest.
func (q *RecvQueue) NextExpected() uint64 { return q.nextExpected }

// AckRequestLimiter bounds outgoing AckRequest packets to at most one per
// peer per AckRequestRateInterval (§4.3: "request ACKs are themselves
// rate-limited to avoid ACK storms on lossy links").
type AckRequestLimiter struct {
	last time.Time
}

// Allow reports whether an AckRequest may be sent now, and if so records
// the time so the next call within the interval is denied.
func (l *AckRequestLimiter) Allow(now time.Time) bool {
	if now.Sub(l.last) < AckRequestRateInterval {
		return false
	}
	l.last = now
	return true
}
