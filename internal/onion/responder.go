package onion

import (
	"crypto/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/shurlinet/groupwire/internal/wire"
)

// Responder answers onion announce requests for one local DHT key
// (§4.6). It is rate-limited the way a real onion_announce responder must
// be, to avoid becoming a ping-id oracle or amplification vector under
// load: golang.org/x/time/rate is the same token-bucket package
// pkg/p2pnet uses for its own request throttling.
type Responder struct {
	pingIDs *PingIDGenerator
	table   *Table
	limiter *rate.Limiter

	maxSentNodes     int
	maxSentAnnounces int
}

// NewResponder creates a Responder for selfKey, issuing at most
// requestsPerSecond responses (burst of requestsPerSecond+1).
func NewResponder(selfKey [32]byte, maxEntries int, entryTimeout time.Duration, requestsPerSecond float64, maxSentNodes, maxSentAnnounces int) (*Responder, error) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, err
	}
	return &Responder{
		pingIDs:          NewPingIDGenerator(secret, 20),
		table:            NewTable(selfKey, maxEntries, entryTimeout),
		limiter:          rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1),
		maxSentNodes:     maxSentNodes,
		maxSentAnnounces: maxSentAnnounces,
	}, nil
}

// CloseNodeSource supplies DHT-close candidates to return alongside a
// stored/not-stored verdict (§4.6: "up to MAX_SENT_NODES DHT-close
// candidates"). The DHT itself is an external collaborator; this is its
// minimal consumed surface.
type CloseNodeSource interface {
	ClosestNodes(target [32]byte, n int) []wire.CloseNode
}

// Handle processes one AnnounceRequest arriving from sourceAddr at now,
// returning the response to send back. If the request is rate-limited,
// Handle returns (nil, false).
func (r *Responder) Handle(now time.Time, req *wire.AnnounceRequest, sourceAddr string, nodes CloseNodeSource) (*wire.AnnounceResponse, bool) {
	if !r.limiter.Allow() {
		return nil, false
	}

	unix := now.Unix()
	resp := &wire.AnnounceResponse{}

	validPing := r.pingIDs.ValidAt(unix, req.PingID, req.SearchPK, sourceAddr)
	if validPing {
		stored := r.table.Insert(now, req.Blob)
		if stored {
			resp.Status = wire.AnnounceStoredWithPingID
		} else {
			resp.Status = wire.AnnounceNotStored
		}
	} else {
		resp.Status = wire.AnnounceNotStored
	}

	newPingID := r.pingIDs.IssueAt(unix, req.SearchPK, sourceAddr)
	resp.PingIDOrDataPK = newPingID

	if nodes != nil {
		resp.Nodes = nodes.ClosestNodes(req.SearchPK, r.maxSentNodes)
	}
	resp.Announces = r.table.Closest(r.maxSentAnnounces)

	return resp, true
}

// EntryCount reports the current responder table size, for metrics.
func (r *Responder) EntryCount() int { return r.table.Len() }
