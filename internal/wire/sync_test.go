package wire

import "testing"

func TestPeerInfoRoundTrip(t *testing.T) {
	p := &PeerInfo{Nickname: "alice", Status: 2}
	raw := EncodePeerInfo(p)
	got, err := DecodePeerInfo(raw)
	if err != nil {
		t.Fatalf("DecodePeerInfo: %v", err)
	}
	if got.Nickname != p.Nickname || got.Status != p.Status {
		t.Fatalf("peer info mismatch: %+v", got)
	}
}

func TestVersionVectorRoundTrip(t *testing.T) {
	v := &VersionVector{SharedStateVersion: 3, ModListVersion: 1, SanctionsVersion: 7, TopicVersion: 2}
	raw := EncodeVersionVector(v)
	got, err := DecodeVersionVector(raw)
	if err != nil {
		t.Fatalf("DecodeVersionVector: %v", err)
	}
	if *got != *v {
		t.Fatalf("version vector mismatch: %+v", got)
	}
}

func TestSyncResponseRoundTripPartial(t *testing.T) {
	s := &SyncResponse{SharedState: []byte("shared-state-bytes"), Topic: []byte("topic-bytes")}
	raw := EncodeSyncResponse(s)
	got, err := DecodeSyncResponse(raw)
	if err != nil {
		t.Fatalf("DecodeSyncResponse: %v", err)
	}
	if string(got.SharedState) != "shared-state-bytes" || got.ModList != nil || string(got.Topic) != "topic-bytes" || got.SanctionsList != nil {
		t.Fatalf("sync response mismatch: %+v", got)
	}
}

func TestSyncResponseRoundTripEmpty(t *testing.T) {
	raw := EncodeSyncResponse(&SyncResponse{})
	got, err := DecodeSyncResponse(raw)
	if err != nil {
		t.Fatalf("DecodeSyncResponse: %v", err)
	}
	if got.SharedState != nil || got.ModList != nil || got.SanctionsList != nil || got.Topic != nil {
		t.Fatalf("expected all fields nil, got %+v", got)
	}
}
