// Package graph implements the append-only gossip-graph DAG of spec
// §4.1: Event, Cause, and the Graph container with O(1) hash/index
// lookup, ancestor iteration, and fork bookkeeping.
package graph

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/observation"
)

// Hash is a content hash identifying an event globally (spec §3).
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:8]) }

// IsZero reports whether h is the zero hash, used to mark "no
// parent" for Initial events.
func (h Hash) IsZero() bool { return h == Hash{} }

// Kind discriminates the Cause variants of spec §3.
type Kind int

const (
	Initial Kind = iota
	Request
	Response
	Observation
	CoinShares
)

func (k Kind) String() string {
	switch k {
	case Initial:
		return "Initial"
	case Request:
		return "Request"
	case Response:
		return "Response"
	case Observation:
		return "Observation"
	case CoinShares:
		return "CoinShares"
	default:
		return "Unknown"
	}
}

// Vote is an Observation together with its creator's signature over
// its canonical serialization (spec §3).
type Vote struct {
	Observation observation.Observation `json:"observation"`
	Signature   consensus.Signature     `json:"signature"`
}

// CoinShareEntry pairs a round hash with the creator's partial
// signature over it, carried inside a CoinShares cause.
type CoinShareEntry struct {
	Round consensus.RoundHash    `json:"round"`
	Share consensus.SignatureShare `json:"share"`
}

// Cause is the tagged union of spec §3's `cause` field. Exactly the
// fields relevant to Kind are meaningful; others are zero.
type Cause struct {
	Kind Kind `json:"kind"`

	// Request / Response
	SelfParent  Hash `json:"self_parent,omitempty"`
	OtherParent Hash `json:"other_parent,omitempty"`

	// Observation
	Vote *Vote `json:"vote,omitempty"`

	// CoinShares
	Shares []CoinShareEntry `json:"shares,omitempty"`
}

// NewInitial builds the single Initial cause every peer's first event
// carries.
func NewInitial() Cause { return Cause{Kind: Initial} }

// NewRequest builds a Request cause.
func NewRequest(selfParent, otherParent Hash) Cause {
	return Cause{Kind: Request, SelfParent: selfParent, OtherParent: otherParent}
}

// NewResponse builds a Response cause.
func NewResponse(selfParent, otherParent Hash) Cause {
	return Cause{Kind: Response, SelfParent: selfParent, OtherParent: otherParent}
}

// NewObservation builds an Observation cause carrying vote.
func NewObservation(selfParent Hash, vote Vote) Cause {
	return Cause{Kind: Observation, SelfParent: selfParent, Vote: &vote}
}

// SignVote produces a Vote for obs, signed independently of the event
// envelope that will carry it: a Proof (spec GLOSSARY "(PublicId,
// Signature) attesting a specific payload") must be verifiable on its
// own, without the rest of the event, so the signature covers only
// the observation's content hash.
func SignVote(secretID consensus.SecretId, obs observation.Observation) Vote {
	h := obs.Hash()
	return Vote{Observation: obs, Signature: secretID.Sign(h[:])}
}

// VerifyVote checks a Proof's signature against its claimed creator.
func VerifyVote(creatorID consensus.PublicId, vote Vote) bool {
	h := vote.Observation.Hash()
	return creatorID.Verify(vote.Signature, h[:])
}

// NewCoinShares builds a CoinShares cause. shares is sorted by round
// hash so the serialization (and therefore the event hash) is
// deterministic regardless of map iteration order upstream.
func NewCoinShares(selfParent Hash, shares map[consensus.RoundHash]consensus.SignatureShare) Cause {
	entries := make([]CoinShareEntry, 0, len(shares))
	for r, s := range shares {
		entries = append(entries, CoinShareEntry{Round: r, Share: s})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytesLess(entries[i].Round[:], entries[j].Round[:])
	})
	return Cause{Kind: CoinShares, SelfParent: selfParent, Shares: entries}
}

func bytesLess(a, b []byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// HasOtherParent reports whether this cause kind carries an
// other_parent (spec §3: only Request/Response do).
func (k Kind) HasOtherParent() bool { return k == Request || k == Response }

// canonicalBytes deterministically serializes (creatorBytes, cause)
// for hashing and signing. It never uses encoding/json's map
// iteration, only ordered structs/slices, so the result is identical
// across processes regardless of Go map randomization.
func canonicalBytes(creatorBytes []byte, c Cause) []byte {
	buf := make([]byte, 0, 256)
	buf = appendLenPrefixed(buf, creatorBytes)
	buf = appendUint32(buf, uint32(c.Kind))
	buf = appendLenPrefixed(buf, c.SelfParent[:])
	buf = appendLenPrefixed(buf, c.OtherParent[:])
	if c.Vote != nil {
		voteBytes, err := observationCanonicalBytes(c.Vote.Observation)
		if err != nil {
			panic(fmt.Sprintf("graph: canonicalize vote: %v", err))
		}
		buf = appendLenPrefixed(buf, voteBytes)
		buf = appendLenPrefixed(buf, c.Vote.Signature)
	} else {
		buf = appendLenPrefixed(buf, nil)
		buf = appendLenPrefixed(buf, nil)
	}
	buf = appendUint32(buf, uint32(len(c.Shares)))
	for _, entry := range c.Shares {
		buf = appendLenPrefixed(buf, entry.Round[:])
		buf = appendLenPrefixed(buf, entry.Share)
	}
	return buf
}

func appendLenPrefixed(buf, data []byte) []byte {
	buf = appendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

// observationCanonicalBytes serializes an Observation deterministically.
// Observation's own fields are already an ordered struct so JSON
// marshaling of it alone is stable.
func observationCanonicalBytes(o observation.Observation) ([]byte, error) {
	return json.Marshal(o)
}

// HashOf computes the content hash of (creator, cause) per spec §3.
func HashOf(creator consensus.PublicId, c Cause) Hash {
	creatorBytes, err := creator.MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("graph: marshal creator: %v", err))
	}
	return sha256.Sum256(canonicalBytes(creatorBytes, c))
}

// SignOf produces the creator's signature over (creator, cause)'s
// canonical serialization.
func SignOf(creator consensus.SecretId, c Cause) consensus.Signature {
	creatorBytes, err := creator.PublicId().MarshalBinary()
	if err != nil {
		panic(fmt.Sprintf("graph: marshal creator: %v", err))
	}
	return creator.Sign(canonicalBytes(creatorBytes, c))
}

// VerifyOf checks sig against (creator, cause)'s canonical
// serialization.
func VerifyOf(creator consensus.PublicId, c Cause, sig consensus.Signature) bool {
	creatorBytes, err := creator.MarshalBinary()
	if err != nil {
		return false
	}
	return creator.Verify(sig, canonicalBytes(creatorBytes, c))
}
