package onion

import (
	"crypto/rand"
	"time"

	"github.com/shurlinet/groupwire/internal/wire"
)

// Sender delivers an AnnounceRequest to a close node and is handed any
// response that arrives later out of band (the real round trip happens
// over the onion-routed transport, an external collaborator per spec.md
// §1; this package only needs to be told where to send).
type Sender interface {
	SendAnnounceRequest(node wire.CloseNode, req *wire.AnnounceRequest) error
}

// Client drives the periodic publish loop for a public group (§4.6:
// "a joined peer periodically publishes an announce record to nodes whose
// DHT key is close to chat_id").
type Client struct {
	chatID     [wire.ChatIDSize]byte
	searchPK   [wire.PublicKeySize]byte
	dataPK     [wire.PublicKeySize]byte
	peerSignPK [wire.PublicKeySize]byte

	interval   time.Duration
	lastPublish time.Time

	knownPingID [32]byte
}

// NewClient creates a Client publishing the given group-scoped identity
// on the given interval.
func NewClient(chatID, searchPK, dataPK, peerSignPK [wire.PublicKeySize]byte, interval time.Duration) *Client {
	return &Client{
		chatID:     chatID,
		searchPK:   searchPK,
		dataPK:     dataPK,
		peerSignPK: peerSignPK,
		interval:   interval,
	}
}

// SetPingID records the most recently received ping-id, to attach to the
// next outgoing request so the responder can recognize an already-known
// searcher (§4.6).
func (c *Client) SetPingID(id [32]byte) { c.knownPingID = id }

// Tick publishes a fresh announce request to the given close nodes if the
// publish interval has elapsed. hasIPPort/ip/port/relays describe how
// this peer can be reached directly.
func (c *Client) Tick(now time.Time, nodes []wire.CloseNode, sender Sender, hasIPPort bool, ip [4]byte, port uint16, relays []wire.CloseNode) error {
	if now.Sub(c.lastPublish) < c.interval {
		return nil
	}
	c.lastPublish = now

	var sendback [wire.SendbackSize]byte
	if _, err := rand.Read(sendback[:]); err != nil {
		return err
	}

	req := &wire.AnnounceRequest{
		PingID:   c.knownPingID,
		SearchPK: c.searchPK,
		DataPK:   c.dataPK,
		Sendback: sendback,
		Blob: wire.GroupAnnounceBlob{
			ChatID:            c.chatID,
			PeerPublicKey:     c.searchPK,
			PeerSignPublicKey: c.peerSignPK,
			HasIPPort:         hasIPPort,
			IP:                ip,
			Port:              port,
		},
	}
	for _, r := range relays {
		if r.Addr != nil {
			req.Blob.TCPRelays = append(req.Blob.TCPRelays, r.Addr)
		}
	}

	for _, n := range nodes {
		if err := sender.SendAnnounceRequest(n, req); err != nil {
			return err
		}
	}
	return nil
}

// DiscoveredPeer is a group-scoped announce record returned by a query,
// ready for the invite handshake to target (§4.6: "gather returned group
// announces, then initiate an invite handshake").
type DiscoveredPeer struct {
	EncPK     [wire.PublicKeySize]byte
	SignPK    [wire.PublicKeySize]byte
	HasIPPort bool
	IP        [4]byte
	Port      uint16
}

// ExtractDiscoveredPeers filters an AnnounceResponse's announces down to
// the ones matching this client's chat_id and excluding self.
func (c *Client) ExtractDiscoveredPeers(resp *wire.AnnounceResponse) []DiscoveredPeer {
	var out []DiscoveredPeer
	for _, blob := range resp.Announces {
		if blob.ChatID != c.chatID {
			continue
		}
		if blob.PeerPublicKey == c.searchPK {
			continue
		}
		out = append(out, DiscoveredPeer{
			EncPK:     blob.PeerPublicKey,
			SignPK:    blob.PeerSignPublicKey,
			HasIPPort: blob.HasIPPort,
			IP:        blob.IP,
			Port:      blob.Port,
		})
	}
	return out
}
