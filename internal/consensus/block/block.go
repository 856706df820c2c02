// Package block implements spec §4.9: once an election decides a
// payload key, assemble the Block that carries it together with the
// Proofs (creator + signature) of every voting event that cast it,
// and classify the membership effect (if any) the engine must react
// to once the block is finalized.
//
// Proof collection mirrors the teacher's PBFT proof logs
// (internal/consensus/bft/pbft.go's prepareLog/commitLog: a digest
// keyed map of per-node signed messages, with a message released once
// 2f+1 distinct nodes are present) — here keyed by the decided
// observation hash instead of a request digest, and the threshold is
// spec §4.9's Single/Supermajority rule rather than a fixed 2f+1.
package block

import (
	"sort"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/observation"
)

// Proof attests that Creator's signed vote selected the block's
// payload.
type Proof struct {
	Creator   consensus.PeerIndex
	CreatorID consensus.PublicId
	Signature consensus.Signature
}

// Block is the unit of finalized consensus output (spec §4.9 and
// GLOSSARY: "(payload, set<Proof>)").
type Block struct {
	Number  uint64
	Payload observation.Observation
	Proofs  []Proof
}

// MembershipKind classifies the section-membership effect a decided
// payload carries, if any.
type MembershipKind int

const (
	NoMembershipChange MembershipKind = iota
	MembershipAdd
	MembershipRemove
)

// MembershipEffect reports the membership change o causes: Add opens
// a session for the new peer; Remove and Accusation(offender) both
// strip voting rights once DKG completes (spec §4.9).
func MembershipEffect(o observation.Observation) (kind MembershipKind, peerID string) {
	switch o.Kind {
	case observation.KindAdd:
		return MembershipAdd, o.PeerID
	case observation.KindRemove:
		return MembershipRemove, o.PeerID
	case observation.KindAccusation:
		return MembershipRemove, o.Offender
	default:
		return NoMembershipChange, ""
	}
}

// CollectProofs walks every event currently in g and returns the
// Proof of each distinct creator whose vote hashes to key (the first
// such vote per creator, in creator-index order), ready to meet
// either consensus mode's threshold in Assemble.
func CollectProofs(g *graph.Graph, key observation.Key) []Proof {
	seen := make(map[consensus.PeerIndex]bool)
	var proofs []Proof
	for i := 0; i < g.Len(); i++ {
		e, ok := g.ByIndex(consensus.EventIndex(i))
		if !ok || e.Cause.Vote == nil {
			continue
		}
		vote := e.Cause.Vote
		if vote.Observation.Hash() != key.Hash {
			continue
		}
		if key.Mode == observation.Single && e.Creator != key.CreatorIdx {
			continue
		}
		if seen[e.Creator] {
			continue
		}
		seen[e.Creator] = true
		proofs = append(proofs, Proof{Creator: e.Creator, CreatorID: e.CreatorID, Signature: vote.Signature})
	}
	sort.Slice(proofs, func(i, j int) bool { return proofs[i].Creator < proofs[j].Creator })
	return proofs
}

// Assemble builds the Block for a decided key once its consensus
// mode's proof threshold is met (spec §4.9: Single requires >= 1
// proof; Supermajority requires > 2/3 of voterCount). It returns
// ok=false if the payload is unknown or the threshold isn't met yet —
// the latter should not happen for a key an Election has actually
// decided, but Assemble doesn't trust its caller blindly.
func Assemble(g *graph.Graph, store *observation.Store, blockNumber uint64, key observation.Key, voterCount int) (*Block, bool) {
	entry, ok := store.Get(key.Hash)
	if !ok {
		return nil, false
	}
	proofs := CollectProofs(g, key)
	if key.Mode == observation.Single {
		if len(proofs) < 1 {
			return nil, false
		}
	} else if !consensus.IsMoreThanTwoThirds(len(proofs), voterCount) {
		return nil, false
	}
	return &Block{Number: blockNumber, Payload: entry.Observation, Proofs: proofs}, true
}
