// Package onion implements the onion announce/rendezvous responder and
// searcher logic (§4.6). The actual onion-routed transport and Kademlia
// DHT are external collaborators (spec.md §1 Non-goals); this package
// only implements the announce protocol's own state: ping-id issuance and
// validation, the bounded closest-entries table, and the announcing
// client's periodic publish and filtering of returned announces. It keeps
// no state for iterative searches.
package onion

import (
	"crypto/sha256"
	"encoding/binary"
)

// PingIDGenerator issues and validates the responder's anti-replay
// challenge: SHA-256(secret || bucket_time || client_pk || source_ip_port)
// (§4.6), grounded on original_source/toxcore/onion_announce.c's
// generate_ping_id/check_ping_id. A ping-id is valid for up to two
// consecutive time buckets so a request straddling a bucket boundary
// still verifies.
type PingIDGenerator struct {
	secret     [32]byte
	bucketSize int64 // seconds per bucket
}

// NewPingIDGenerator creates a generator with the given secret and bucket
// width in seconds (20 when bucketSeconds is not positive).
func NewPingIDGenerator(secret [32]byte, bucketSeconds int64) *PingIDGenerator {
	if bucketSeconds <= 0 {
		bucketSeconds = 20
	}
	return &PingIDGenerator{secret: secret, bucketSize: bucketSeconds}
}

func (g *PingIDGenerator) bucket(unixSeconds int64) int64 {
	return unixSeconds / g.bucketSize
}

// Generate computes the ping-id for the given bucket, client public key,
// and source address string (e.g. "ip:port").
func (g *PingIDGenerator) Generate(bucket int64, clientPK [32]byte, sourceAddr string) [32]byte {
	h := sha256.New()
	h.Write(g.secret[:])
	var bucketBuf [8]byte
	binary.BigEndian.PutUint64(bucketBuf[:], uint64(bucket))
	h.Write(bucketBuf[:])
	h.Write(clientPK[:])
	h.Write([]byte(sourceAddr))
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// IssueAt returns the current ping-id for unixSeconds, to attach to an
// announce response.
func (g *PingIDGenerator) IssueAt(unixSeconds int64, clientPK [32]byte, sourceAddr string) [32]byte {
	return g.Generate(g.bucket(unixSeconds), clientPK, sourceAddr)
}

// ValidAt reports whether candidate matches the current or immediately
// preceding bucket (§4.6: "valid for at most 2×PING_ID_TIMEOUT buckets").
func (g *PingIDGenerator) ValidAt(unixSeconds int64, candidate [32]byte, clientPK [32]byte, sourceAddr string) bool {
	cur := g.bucket(unixSeconds)
	if g.Generate(cur, clientPK, sourceAddr) == candidate {
		return true
	}
	if g.Generate(cur-1, clientPK, sourceAddr) == candidate {
		return true
	}
	return false
}
