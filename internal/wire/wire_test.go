package wire

import (
	"bytes"
	"testing"

	ma "github.com/multiformats/go-multiaddr"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	e := &Envelope{NetType: NetTypeUDP, Ciphertext: []byte("sealed-bytes")}
	for i := range e.SenderPK {
		e.SenderPK[i] = byte(i)
	}
	for i := range e.Nonce {
		e.Nonce[i] = byte(i + 1)
	}
	raw := e.Encode()
	got, err := DecodeEnvelope(raw)
	if err != nil {
		t.Fatalf("DecodeEnvelope: %v", err)
	}
	if got.NetType != e.NetType || got.SenderPK != e.SenderPK || got.Nonce != e.Nonce {
		t.Fatalf("envelope header mismatch")
	}
	if !bytes.Equal(got.Ciphertext, e.Ciphertext) {
		t.Fatalf("ciphertext mismatch: got %q", got.Ciphertext)
	}
}

func TestPlaintextLosslessRoundTrip(t *testing.T) {
	p := &Plaintext{Type: PacketBroadcast, MessageID: 42, Body: []byte("payload")}
	raw := EncodePlaintext(p)
	got, err := DecodePlaintext(raw)
	if err != nil {
		t.Fatalf("DecodePlaintext: %v", err)
	}
	if got.Type != p.Type || got.MessageID != p.MessageID || !bytes.Equal(got.Body, p.Body) {
		t.Fatalf("plaintext mismatch: %+v", got)
	}
}

func TestPlaintextLossyRoundTrip(t *testing.T) {
	p := &Plaintext{Type: PacketPing, Body: []byte("ping-body")}
	raw := EncodePlaintext(p)
	got, err := DecodePlaintext(raw)
	if err != nil {
		t.Fatalf("DecodePlaintext: %v", err)
	}
	if got.Type != p.Type || got.MessageID != 0 || !bytes.Equal(got.Body, p.Body) {
		t.Fatalf("plaintext mismatch: %+v", got)
	}
}

func TestSharedStateRoundTrip(t *testing.T) {
	s := &SharedState{
		Version:   3,
		Privacy:   PrivacyPrivate,
		PeerLimit: 50,
		GroupName: "Utah Data Center",
		TopicLock: TopicLockEnabled,
	}
	for i := range s.FounderSignPK {
		s.FounderSignPK[i] = byte(i)
	}
	raw := s.EncodeSigned()
	got, err := DecodeSharedState(raw)
	if err != nil {
		t.Fatalf("DecodeSharedState: %v", err)
	}
	if got.Version != s.Version || got.GroupName != s.GroupName || got.Privacy != s.Privacy {
		t.Fatalf("shared state mismatch: %+v", got)
	}
	if !bytes.Equal(got.SignTarget(), s.SignTarget()) {
		t.Fatalf("sign target mismatch")
	}
}

func TestSharedStateRejectsOverlongName(t *testing.T) {
	s := &SharedState{GroupName: string(make([]byte, MaxGroupNameLen+1))}
	raw := s.EncodeSigned()
	if _, err := DecodeSharedState(raw); err == nil {
		t.Fatal("expected error for oversized group name")
	}
}

func TestModListRoundTrip(t *testing.T) {
	m := &ModList{Version: 2, Moderators: make([][PublicKeySize]byte, 3)}
	for i := range m.Moderators {
		for j := range m.Moderators[i] {
			m.Moderators[i][j] = byte(i*32 + j)
		}
	}
	raw := m.EncodeSigned()
	got, err := DecodeModList(raw)
	if err != nil {
		t.Fatalf("DecodeModList: %v", err)
	}
	if got.Version != m.Version || len(got.Moderators) != len(m.Moderators) {
		t.Fatalf("mod list mismatch: %+v", got)
	}
	for i := range m.Moderators {
		if got.Moderators[i] != m.Moderators[i] {
			t.Fatalf("moderator %d mismatch", i)
		}
	}
}

func TestSanctionsListRoundTrip(t *testing.T) {
	l := &SanctionsList{
		Version: 1,
		Entries: []SanctionEntry{
			{Version: 1, Event: ModEventSetObserver},
			{Version: 1, Event: ModEventUnsetObserver},
		},
	}
	raw := l.EncodeSigned()
	got, err := DecodeSanctionsList(raw)
	if err != nil {
		t.Fatalf("DecodeSanctionsList: %v", err)
	}
	if len(got.Entries) != 2 || got.Entries[0].Event != ModEventSetObserver {
		t.Fatalf("sanctions list mismatch: %+v", got)
	}
}

func TestTCPRelaysRoundTrip(t *testing.T) {
	a1, err := ma.NewMultiaddr("/ip4/203.0.113.5/tcp/33445")
	if err != nil {
		t.Fatalf("NewMultiaddr: %v", err)
	}
	a2, err := ma.NewMultiaddr("/ip4/198.51.100.9/tcp/443")
	if err != nil {
		t.Fatalf("NewMultiaddr: %v", err)
	}
	raw, err := EncodeTCPRelays([]ma.Multiaddr{a1, a2})
	if err != nil {
		t.Fatalf("EncodeTCPRelays: %v", err)
	}
	got, err := DecodeTCPRelays(raw)
	if err != nil {
		t.Fatalf("DecodeTCPRelays: %v", err)
	}
	if len(got) != 2 || !got[0].Equal(a1) || !got[1].Equal(a2) {
		t.Fatalf("tcp relays mismatch: %+v", got)
	}
}

func TestGroupAnnounceBlobRoundTrip(t *testing.T) {
	relay, _ := ma.NewMultiaddr("/ip4/203.0.113.5/tcp/33445")
	b := &GroupAnnounceBlob{
		HasIPPort: true,
		IP:        [4]byte{127, 0, 0, 1},
		Port:      4242,
		TCPRelays: []ma.Multiaddr{relay},
	}
	raw, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, n, err := DecodeGroupAnnounceBlob(raw)
	if err != nil {
		t.Fatalf("DecodeGroupAnnounceBlob: %v", err)
	}
	if n != len(raw) {
		t.Fatalf("decoded %d of %d bytes", n, len(raw))
	}
	if got.Port != b.Port || !got.HasIPPort || len(got.TCPRelays) != 1 {
		t.Fatalf("blob mismatch: %+v", got)
	}
}

func TestAnnounceRequestResponseRoundTrip(t *testing.T) {
	req := &AnnounceRequest{}
	for i := range req.PingID {
		req.PingID[i] = byte(i)
	}
	raw, err := req.Encode()
	if err != nil {
		t.Fatalf("Encode request: %v", err)
	}
	got, err := DecodeAnnounceRequest(raw)
	if err != nil {
		t.Fatalf("DecodeAnnounceRequest: %v", err)
	}
	if got.PingID != req.PingID {
		t.Fatalf("ping id mismatch")
	}

	resp := &AnnounceResponse{Status: AnnounceStoredWithPingID}
	rawResp, err := resp.Encode()
	if err != nil {
		t.Fatalf("Encode response: %v", err)
	}
	gotResp, err := DecodeAnnounceResponse(rawResp)
	if err != nil {
		t.Fatalf("DecodeAnnounceResponse: %v", err)
	}
	if gotResp.Status != resp.Status {
		t.Fatalf("status mismatch")
	}
}
