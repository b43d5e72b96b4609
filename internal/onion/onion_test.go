package onion

import (
	"testing"
	"time"

	"github.com/shurlinet/groupwire/internal/wire"
)

func TestPingIDValidAcrossBucketBoundary(t *testing.T) {
	var secret [32]byte
	secret[0] = 7
	g := NewPingIDGenerator(secret, 20)
	var clientPK [32]byte
	clientPK[0] = 1

	id := g.IssueAt(1000, clientPK, "1.2.3.4:5678")
	if !g.ValidAt(1000, id, clientPK, "1.2.3.4:5678") {
		t.Fatal("expected ping-id valid in same bucket")
	}
	if !g.ValidAt(1019, id, clientPK, "1.2.3.4:5678") {
		t.Fatal("expected ping-id valid up to bucket boundary")
	}
	// One full bucket later (still within the 2-bucket grace window since
	// ValidAt checks current and immediately preceding bucket).
	if !g.ValidAt(1020, id, clientPK, "1.2.3.4:5678") {
		t.Fatal("expected ping-id still valid one bucket later")
	}
	if g.ValidAt(1041, id, clientPK, "1.2.3.4:5678") {
		t.Fatal("expected ping-id expired two buckets later")
	}
}

func TestPingIDRejectsWrongClientOrAddr(t *testing.T) {
	var secret [32]byte
	g := NewPingIDGenerator(secret, 20)
	var pk1, pk2 [32]byte
	pk1[0], pk2[0] = 1, 2
	id := g.IssueAt(1000, pk1, "1.2.3.4:1")
	if g.ValidAt(1000, id, pk2, "1.2.3.4:1") {
		t.Fatal("expected mismatch for different client key")
	}
	if g.ValidAt(1000, id, pk1, "9.9.9.9:1") {
		t.Fatal("expected mismatch for different source address")
	}
}

func TestTableInsertAndClosest(t *testing.T) {
	var self [32]byte
	tbl := NewTable(self, 2, time.Minute)
	now := time.Unix(0, 0)

	near := blobWithKey([32]byte{0x01})
	far := blobWithKey([32]byte{0xFF})

	if !tbl.Insert(now, near) {
		t.Fatal("expected insert to succeed into empty table")
	}
	if !tbl.Insert(now, far) {
		t.Fatal("expected insert to succeed while under capacity")
	}
	if tbl.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", tbl.Len())
	}

	closest := tbl.Closest(2)
	if closest[0].PeerPublicKey != near.PeerPublicKey {
		t.Fatalf("expected nearer key first, got %+v", closest)
	}
}

func TestTableEvictsOnlyIfCloser(t *testing.T) {
	var self [32]byte
	tbl := NewTable(self, 1, time.Minute)
	now := time.Unix(0, 0)

	far := blobWithKey([32]byte{0xFF})
	tbl.Insert(now, far)

	evenFarther := blobWithKey([32]byte{0xFE})
	if tbl.Insert(now, evenFarther) {
		t.Fatal("expected insert of a farther key to be rejected when full")
	}

	near := blobWithKey([32]byte{0x01})
	if !tbl.Insert(now, near) {
		t.Fatal("expected insert of a closer key to evict the furthest entry")
	}
	if tbl.Closest(1)[0].PeerPublicKey != near.PeerPublicKey {
		t.Fatal("expected the closer key to have replaced the furthest entry")
	}
}

func TestTableExpiresStaleEntries(t *testing.T) {
	var self [32]byte
	tbl := NewTable(self, 4, 10*time.Second)
	now := time.Unix(0, 0)
	tbl.Insert(now, blobWithKey([32]byte{0x01}))
	tbl.Insert(now.Add(20*time.Second), blobWithKey([32]byte{0x02}))
	if tbl.Len() != 1 {
		t.Fatalf("expected stale entry expired, got %d entries", tbl.Len())
	}
}

func TestResponderHandleStoresValidRequest(t *testing.T) {
	var self [32]byte
	r, err := NewResponder(self, 32, time.Minute, 100, 4, 4)
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}

	var searchPK [32]byte
	searchPK[0] = 9
	unix := time.Now().Unix()
	pingID := r.pingIDs.IssueAt(unix, searchPK, "1.1.1.1:1")

	req := &wire.AnnounceRequest{
		PingID:   pingID,
		SearchPK: searchPK,
		Blob:     wire.GroupAnnounceBlob{PeerPublicKey: searchPK},
	}
	resp, ok := r.Handle(time.Unix(unix, 0), req, "1.1.1.1:1", nil)
	if !ok {
		t.Fatal("expected request to be handled (not rate limited)")
	}
	if resp.Status != wire.AnnounceStoredWithPingID {
		t.Fatalf("expected stored-with-ping-id status, got %v", resp.Status)
	}
}

func TestResponderHandleRejectsBadPingID(t *testing.T) {
	var self [32]byte
	r, err := NewResponder(self, 32, time.Minute, 100, 4, 4)
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	req := &wire.AnnounceRequest{}
	resp, ok := r.Handle(time.Now(), req, "1.1.1.1:1", nil)
	if !ok {
		t.Fatal("expected handled")
	}
	if resp.Status != wire.AnnounceNotStored {
		t.Fatalf("expected not-stored for bad ping-id, got %v", resp.Status)
	}
}

func blobWithKey(pk [32]byte) wire.GroupAnnounceBlob {
	return wire.GroupAnnounceBlob{PeerPublicKey: pk}
}
