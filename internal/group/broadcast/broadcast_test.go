package broadcast

import (
	"testing"
	"time"

	"github.com/shurlinet/groupwire/internal/group"
	"github.com/shurlinet/groupwire/internal/group/sharedstate"
	"github.com/shurlinet/groupwire/internal/wire"
)

func TestShouldDeliverFiltersUserMessagesWhenIgnored(t *testing.T) {
	rec := &group.PeerRecord{Ignored: true}
	if ShouldDeliver(rec, wire.BroadcastPlainMessage) {
		t.Fatal("expected plain message to be filtered for ignored peer")
	}
	if ShouldDeliver(rec, wire.BroadcastActionMessage) {
		t.Fatal("expected action message to be filtered for ignored peer")
	}
	if !ShouldDeliver(rec, wire.BroadcastPeerExit) {
		t.Fatal("expected exit broadcast to still be delivered for ignored peer")
	}
	if !ShouldDeliver(rec, wire.BroadcastSetMod) {
		t.Fatal("expected moderation broadcast to still be delivered for ignored peer")
	}
}

func TestShouldDeliverAllowsEverythingWhenNotIgnored(t *testing.T) {
	rec := &group.PeerRecord{Ignored: false}
	if !ShouldDeliver(rec, wire.BroadcastPlainMessage) {
		t.Fatal("expected delivery when not ignored")
	}
}

func TestShouldDeliverCustomPacket(t *testing.T) {
	if ShouldDeliverCustomPacket(&group.PeerRecord{Ignored: true}) {
		t.Fatal("expected custom packet to be filtered for ignored peer")
	}
	if !ShouldDeliverCustomPacket(&group.PeerRecord{Ignored: false}) {
		t.Fatal("expected custom packet delivery when not ignored")
	}
}

func TestBuildSyncResponseIncludesOnlyNewerPieces(t *testing.T) {
	var founderPK [wire.PublicKeySize]byte
	founderPK[0] = 1
	a := sharedstate.NewAuthority(founderPK, founderPK)
	a.State.Version = 5

	remote := &wire.VersionVector{SharedStateVersion: 3, ModListVersion: 0, TopicVersion: 0}
	resp := BuildSyncResponse(a, nil, remote)
	if resp.SharedState == nil {
		t.Fatal("expected shared state to be included (5 > 3)")
	}
	if resp.ModList != nil {
		t.Fatal("expected no mod list (none set locally)")
	}

	remoteUpToDate := &wire.VersionVector{SharedStateVersion: 5}
	resp2 := BuildSyncResponse(a, nil, remoteUpToDate)
	if resp2.SharedState != nil {
		t.Fatal("expected no shared state when remote already up to date")
	}
}

func TestBuildBroadcastRoundTrips(t *testing.T) {
	now := time.Unix(1000, 0)
	raw := BuildBroadcast(wire.BroadcastNick, []byte("new-nick"), now)
	got, err := wire.DecodeBroadcast(raw)
	if err != nil {
		t.Fatalf("DecodeBroadcast: %v", err)
	}
	if got.Type != wire.BroadcastNick || string(got.Payload) != "new-nick" {
		t.Fatalf("broadcast mismatch: %+v", got)
	}
}
