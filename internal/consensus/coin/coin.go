// Package coin implements the per-(voter, round) common coin of spec
// §4.10: a RoundHash rotated on demand and resolved once a threshold
// of signature shares over it have been combined.
package coin

import (
	"crypto/sha256"
	"sync"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/crypto/threshold"
)

// NextRoundHash derives the round hash that follows prev, the
// rotation the teacher's term/timeout advance-on-demand pattern
// inspired (spec §4.10 increment_round).
func NextRoundHash(prev consensus.RoundHash) consensus.RoundHash {
	return sha256.Sum256(prev[:])
}

// SeedRoundHash derives round 0's hash from the last consensused
// observation key, so every honest node starts a fresh election's
// coin sequence from the same seed.
func SeedRoundHash(lastConsensusedKeyHash [32]byte) consensus.RoundHash {
	return sha256.Sum256(lastConsensusedKeyHash[:])
}

// Coin is the common-coin collaborator for one meta-election: it owns
// the threshold public key set, this node's secret share (if any),
// and the round hashes and collected shares accumulated so far.
type Coin struct {
	mu sync.Mutex

	public *threshold.PublicKeySet
	secret *threshold.SecretKeyShare // nil for non-members
	ourIdx int

	roundHashes map[consensus.PeerIndex][]consensus.RoundHash
	shares      map[consensus.PeerIndex]map[int]map[int]consensus.SignatureShare // voter -> round -> sharer idx -> share
	resolved    map[consensus.PeerIndex]map[int]bool
}

// New builds a Coin bound to a PublicKeySet (and optionally this
// node's SecretKeyShare), seeded with round 0 for every voter.
func New(public *threshold.PublicKeySet, secret *threshold.SecretKeyShare, ourIdx int, voters []consensus.PeerIndex, seed consensus.RoundHash) *Coin {
	c := &Coin{
		public:      public,
		secret:      secret,
		ourIdx:      ourIdx,
		roundHashes: make(map[consensus.PeerIndex][]consensus.RoundHash),
		shares:      make(map[consensus.PeerIndex]map[int]map[int]consensus.SignatureShare),
		resolved:    make(map[consensus.PeerIndex]map[int]bool),
	}
	for _, p := range voters {
		c.roundHashes[p] = []consensus.RoundHash{seed}
		c.shares[p] = make(map[int]map[int]consensus.SignatureShare)
		c.resolved[p] = make(map[int]bool)
	}
	return c
}

// RoundHash returns the round hash for (voter, round), extending the
// sequence by rotation if this round hasn't been reached yet.
func (c *Coin) RoundHash(voter consensus.PeerIndex, round int) consensus.RoundHash {
	c.mu.Lock()
	defer c.mu.Unlock()
	hashes := c.roundHashes[voter]
	for len(hashes) <= round {
		hashes = append(hashes, NextRoundHash(hashes[len(hashes)-1]))
	}
	c.roundHashes[voter] = hashes
	return hashes[round]
}

// SignRoundHash produces this node's signature share over (voter,
// round)'s hash, or ok=false if we hold no secret share or signing
// fails.
func (c *Coin) SignRoundHash(voter consensus.PeerIndex, round int) (consensus.SignatureShare, bool) {
	if c.secret == nil {
		return nil, false
	}
	rh := c.RoundHash(voter, round)
	sig, err := c.secret.Sign(rh[:])
	if err != nil {
		return nil, false
	}
	return consensus.SignatureShare(sig), true
}

// VerifyShare checks author's share against its position-indexed
// public key share.
func (c *Coin) VerifyShare(voter consensus.PeerIndex, round int, author int, share consensus.SignatureShare) bool {
	rh := c.RoundHash(voter, round)
	pub := c.public.PublicKeyShare(author)
	return pub.Verify(share, rh[:])
}

// AddShare records author's verified share for (voter, round).
func (c *Coin) AddShare(voter consensus.PeerIndex, round int, author int, share consensus.SignatureShare) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shares[voter] == nil {
		c.shares[voter] = make(map[int]map[int]consensus.SignatureShare)
	}
	if c.shares[voter][round] == nil {
		c.shares[voter][round] = make(map[int]consensus.SignatureShare)
	}
	c.shares[voter][round][author] = share
}

// GetValue returns the coin's parity for (voter, round) once more
// than 1/3 of voters' shares have been collected and combine
// succeeds; ok is false until then.
func (c *Coin) GetValue(voter consensus.PeerIndex, round int, voterCount int) (parity bool, ok bool) {
	c.mu.Lock()
	byAuthor := c.shares[voter][round]
	c.mu.Unlock()

	if !consensus.IsMoreThanOneThird(len(byAuthor), voterCount) {
		return false, false
	}
	rh := c.RoundHash(voter, round)
	raw := make(map[int][]byte, len(byAuthor))
	for author, share := range byAuthor {
		raw[author] = share
	}
	combined, err := c.public.CombineSignatures(rh[:], raw)
	if err != nil {
		return false, false
	}
	return parityOf(combined), true
}

func parityOf(sig []byte) bool {
	if len(sig) == 0 {
		return false
	}
	return sig[len(sig)-1]&1 == 1
}
