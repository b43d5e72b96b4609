package session_test

import (
	"context"
	"sync"

	ma "github.com/multiformats/go-multiaddr"

	"github.com/shurlinet/groupwire/internal/group"
	"github.com/shurlinet/groupwire/internal/group/sharedstate"
)

// fabricUDP wires together any number of *session.Manager instances over
// plain function calls instead of a real socket, the in-process analogue
// of pkg/p2pnet/integration_test.go's newTestHost pair - each peer's
// SendUDP hands the envelope straight to the addressed peer's
// OnUDPPacket, skipping the network entirely.
type fabricUDP struct {
	mu     sync.Mutex
	byAddr map[string]transportReceiver
}

// transportReceiver is the subset of transport.Receiver this harness
// drives directly.
type transportReceiver interface {
	OnUDPPacket(sourceAddr ma.Multiaddr, envelope []byte)
}

func newFabricUDP() *fabricUDP {
	return &fabricUDP{byAddr: make(map[string]transportReceiver)}
}

func (f *fabricUDP) register(addr ma.Multiaddr, recv transportReceiver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byAddr[addr.String()] = recv
}

// endpoint returns a view of the fabric addressed as if sent from
// selfAddr, so the receiving side's OnUDPPacket sees the sender's own
// multiaddr.
func (f *fabricUDP) endpoint(selfAddr ma.Multiaddr) *fabricEndpoint {
	return &fabricEndpoint{fabric: f, self: selfAddr}
}

type fabricEndpoint struct {
	fabric *fabricUDP
	self   ma.Multiaddr
}

func (e *fabricEndpoint) SendUDP(ctx context.Context, addr ma.Multiaddr, envelope []byte) error {
	e.fabric.mu.Lock()
	recv, ok := e.fabric.byAddr[addr.String()]
	e.fabric.mu.Unlock()
	if !ok {
		return nil
	}
	recv.OnUDPPacket(e.self, envelope)
	return nil
}

// mustAddr parses a loopback multiaddr or panics - only ever called with
// literal, known-good strings in tests.
func mustAddr(s string) ma.Multiaddr {
	a, err := ma.NewMultiaddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

// recordingSink captures every event call it receives so tests can assert
// on delivery without a real chat UI, mirroring the *_test.go mock pattern
// in pkg/p2pnet (e.g. mockServiceConn in integration_test.go).
type recordingSink struct {
	mu sync.Mutex

	joined   []*group.PeerRecord
	left     []string
	plain    [][]byte
	action   [][]byte
	private  [][]byte
	custom   []customDelivery
	roleChg  []roleChange
	topic    []string
}

type customDelivery struct {
	lossless bool
	body     []byte
}

type roleChange struct {
	old, new sharedstate.Role
}

func (s *recordingSink) OnPeerJoined(h group.PeerHandle, rec *group.PeerRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, rec)
}

func (s *recordingSink) OnPeerLeft(h group.PeerHandle, rec *group.PeerRecord, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, reason)
}

func (s *recordingSink) OnPlainMessage(h group.PeerHandle, rec *group.PeerRecord, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plain = append(s.plain, body)
}

func (s *recordingSink) OnActionMessage(h group.PeerHandle, rec *group.PeerRecord, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.action = append(s.action, body)
}

func (s *recordingSink) OnPrivateMessage(h group.PeerHandle, rec *group.PeerRecord, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.private = append(s.private, body)
}

func (s *recordingSink) OnCustomPacket(h group.PeerHandle, rec *group.PeerRecord, lossless bool, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.custom = append(s.custom, customDelivery{lossless: lossless, body: body})
}

func (s *recordingSink) OnRoleChanged(h group.PeerHandle, rec *group.PeerRecord, oldRole, newRole sharedstate.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roleChg = append(s.roleChg, roleChange{old: oldRole, new: newRole})
}

func (s *recordingSink) OnTopicChanged(topic string, setterPeerID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topic = append(s.topic, topic)
}

func (s *recordingSink) OnSharedStateChanged(field string) {}

func (s *recordingSink) OnConnectionStateChanged(old, new group.ConnectionState) {}

var _ group.EventSink = (*recordingSink)(nil)

func (s *recordingSink) plainCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plain)
}

func (s *recordingSink) lastPlain() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.plain) == 0 {
		return nil
	}
	return s.plain[len(s.plain)-1]
}

func (s *recordingSink) customCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.custom)
}
