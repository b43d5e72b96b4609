package lossless

import (
	"testing"
	"time"
)

func TestSendQueueEnqueueAckOrder(t *testing.T) {
	q := NewSendQueue(4)
	now := time.Unix(0, 0)
	id1, err := q.Enqueue(1, []byte("a"), now)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	id2, _ := q.Enqueue(1, []byte("b"), now)
	if id1 != 1 || id2 != 2 {
		t.Fatalf("expected ids 1,2, got %d,%d", id1, id2)
	}
	if !q.Ack(id1) {
		t.Fatal("expected ack to find entry")
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 entry remaining, got %d", q.Len())
	}
	if q.Ack(id1) {
		t.Fatal("expected second ack of same id to miss")
	}
}

func TestSendQueueFullReturnsError(t *testing.T) {
	q := NewSendQueue(1)
	now := time.Unix(0, 0)
	if _, err := q.Enqueue(1, []byte("a"), now); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := q.Enqueue(1, []byte("b"), now); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestSendQueueRetransmitBackoff(t *testing.T) {
	q := NewSendQueue(4)
	start := time.Unix(0, 0)
	q.Enqueue(1, []byte("a"), start)

	if due := q.DueForRetransmit(start); len(due) != 0 {
		t.Fatalf("expected no retransmit immediately, got %d", len(due))
	}
	afterFloor := start.Add(RetransmitFloor + time.Millisecond)
	due := q.DueForRetransmit(afterFloor)
	if len(due) != 1 {
		t.Fatalf("expected 1 retransmit after floor elapsed, got %d", len(due))
	}
	// Second attempt backs off to 2x floor; immediately re-checking should
	// not fire again.
	if due2 := q.DueForRetransmit(afterFloor.Add(time.Millisecond)); len(due2) != 0 {
		t.Fatalf("expected no immediate re-fire after backoff, got %d", len(due2))
	}
}

func TestSendQueueForceRetransmit(t *testing.T) {
	q := NewSendQueue(4)
	now := time.Unix(0, 0)
	id, _ := q.Enqueue(1, []byte("a"), now)
	entry := q.ForceRetransmit(id)
	if entry == nil || entry.ID != id {
		t.Fatalf("expected forced entry for id %d", id)
	}
	if entry := q.ForceRetransmit(999); entry != nil {
		t.Fatal("expected nil for unknown id")
	}
}

func TestRecvQueueInOrderDelivery(t *testing.T) {
	q := NewRecvQueue(8)
	outcome, deliveries := q.Receive(1, 1, []byte("a"))
	if outcome != OutcomeDelivered || len(deliveries) != 1 {
		t.Fatalf("expected immediate delivery, got %v %v", outcome, deliveries)
	}
	if q.NextExpected() != 2 {
		t.Fatalf("expected next expected 2, got %d", q.NextExpected())
	}
}

func TestRecvQueueBuffersOutOfOrderAndFillsGap(t *testing.T) {
	q := NewRecvQueue(8)
	outcome, deliveries := q.Receive(3, 1, []byte("c"))
	if outcome != OutcomeBuffered || deliveries != nil {
		t.Fatalf("expected buffered, got %v %v", outcome, deliveries)
	}
	outcome, deliveries = q.Receive(2, 1, []byte("b"))
	if outcome != OutcomeBuffered {
		t.Fatalf("expected buffered for id 2, got %v", outcome)
	}
	outcome, deliveries = q.Receive(1, 1, []byte("a"))
	if outcome != OutcomeDelivered {
		t.Fatalf("expected delivered, got %v", outcome)
	}
	if len(deliveries) != 3 {
		t.Fatalf("expected gap-fill to release 3 packets, got %d", len(deliveries))
	}
	for i, d := range deliveries {
		if d.ID != uint64(i+1) {
			t.Fatalf("delivery %d out of order: %+v", i, d)
		}
	}
}

func TestRecvQueueDropsDuplicate(t *testing.T) {
	q := NewRecvQueue(8)
	q.Receive(1, 1, []byte("a"))
	outcome, deliveries := q.Receive(1, 1, []byte("a-dup"))
	if outcome != OutcomeDuplicate || deliveries != nil {
		t.Fatalf("expected duplicate outcome, got %v %v", outcome, deliveries)
	}
}

func TestRecvQueueWindowExceeded(t *testing.T) {
	q := NewRecvQueue(4)
	outcome, _ := q.Receive(100, 1, []byte("far"))
	if outcome != OutcomeWindowExceeded {
		t.Fatalf("expected window exceeded, got %v", outcome)
	}
}

func TestAckRequestLimiterRateLimits(t *testing.T) {
	var l AckRequestLimiter
	now := time.Unix(0, 0)
	if !l.Allow(now) {
		t.Fatal("expected first call to be allowed")
	}
	if l.Allow(now.Add(100 * time.Millisecond)) {
		t.Fatal("expected rapid second call to be denied")
	}
	if !l.Allow(now.Add(AckRequestRateInterval + time.Millisecond)) {
		t.Fatal("expected call after interval to be allowed")
	}
}
