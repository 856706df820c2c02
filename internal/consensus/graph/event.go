package graph

import (
	"github.com/ruvnet/parsec/internal/consensus"
)

// Event is a signed, content-addressed node of the gossip DAG,
// immutable after creation (spec §3).
type Event struct {
	Creator   consensus.PeerIndex
	CreatorID consensus.PublicId
	Cause     Cause
	Signature consensus.Signature
	Hash      Hash

	// IndexByCreator is 0 for Initial; otherwise self_parent's + 1.
	IndexByCreator int

	// LastAncestors[p] is the largest index_by_creator of any event by
	// peer p that is an ancestor of this event, including itself.
	LastAncestors map[consensus.PeerIndex]int

	// ForkingPeers is the set of peers for which this event sees two
	// incomparable events.
	ForkingPeers map[consensus.PeerIndex]bool

	// TopologicalIndex is assigned by the Graph on insertion: it is
	// the event's position in insertion (= topological) order.
	TopologicalIndex consensus.EventIndex
}

// SelfParentHash returns the self-parent's hash, or the zero hash for
// an Initial event.
func (e *Event) SelfParentHash() Hash { return e.Cause.SelfParent }

// OtherParentHash returns the other-parent's hash and whether this
// cause kind carries one.
func (e *Event) OtherParentHash() (Hash, bool) {
	if !e.Cause.Kind.HasOtherParent() {
		return Hash{}, false
	}
	return e.Cause.OtherParent, true
}

// SeesForkOn reports whether this event sees two incomparable events
// by creator p (spec GLOSSARY "sees").
func (e *Event) SeesForkOn(p consensus.PeerIndex) bool {
	return e.ForkingPeers[p]
}

// Verify checks the event's signature over (creator, cause) and
// recomputes its hash, returning false if either check fails.
func (e *Event) Verify() bool {
	if !VerifyOf(e.CreatorID, e.Cause, e.Signature) {
		return false
	}
	return HashOf(e.CreatorID, e.Cause) == e.Hash
}

// NewEvent builds and signs a fresh event authored by secretID with
// the given cause, deriving IndexByCreator from selfParentIndex (-1
// for Initial).
func NewEvent(secretID consensus.SecretId, creatorIdx consensus.PeerIndex, cause Cause, selfParentIndexByCreator int) *Event {
	pub := secretID.PublicId()
	sig := SignOf(secretID, cause)
	hash := HashOf(pub, cause)

	indexByCreator := 0
	if cause.Kind != Initial {
		indexByCreator = selfParentIndexByCreator + 1
	}

	return &Event{
		Creator:        creatorIdx,
		CreatorID:      pub,
		Cause:          cause,
		Signature:      sig,
		Hash:           hash,
		IndexByCreator: indexByCreator,
	}
}
