package engine

import (
	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/consensus/peerlist"
	parsecerrors "github.com/ruvnet/parsec/internal/errors"
)

// VoteFor casts our vote for obs (spec §6 vote_for): appends a new
// Observation event to our own chain carrying a freshly-signed Proof,
// provided we hold voting rights and have not already voted for this
// exact payload.
func (e *Engine) VoteFor(obs observation.Observation) error {
	us, ok := e.peers.ByIndex(e.ourIdx)
	if !ok || !us.State.Has(peerlist.Vote) {
		return parsecerrors.New(parsecerrors.InvalidSelfState, "vote_for: this node does not hold voting rights")
	}
	return e.voteForLocked(obs)
}

// voteForLocked is VoteFor without the voting-rights precondition,
// used internally for the genesis vote (cast before the peer list
// necessarily reflects outside observers) and for DKG message
// auto-authoring.
func (e *Engine) voteForLocked(obs observation.Observation) error {
	h := obs.Hash()
	if e.haveVoted[h] {
		return parsecerrors.New(parsecerrors.DuplicateVote, "vote_for: already voted for this observation").
			WithField("observation_hash", h.String())
	}

	e.store.Insert(obs, true)

	selfParent, hasSelfParent := e.latestOwnEvent()
	if !hasSelfParent {
		return parsecerrors.New(parsecerrors.Logic, "vote_for: no self-parent event found for our own chain")
	}

	vote := graph.SignVote(e.secretID, obs)
	ev := graph.NewEvent(e.secretID, e.ourIdx, graph.NewObservation(selfParent.Hash, vote), selfParent.IndexByCreator)
	if err := e.insertOwn(ev); err != nil {
		return err
	}
	e.haveVoted[h] = true
	return nil
}

// VoteToAdd casts a vote to add id to the section, bundling id's raw
// key bytes and its long-term DKG point (if we already know it, e.g.
// learned out of band when id asked to join) into the Add vote's
// PeerInfo so every other node can resolve both without a side
// channel (spec §4.9/§4.11).
func (e *Engine) VoteToAdd(id consensus.PublicId) error {
	info, err := encodeAddInfo(id, e.dkgPoints[id.String()])
	if err != nil {
		return err
	}
	return e.VoteFor(observation.Add(id.String(), info))
}

// VoteToRemove casts a vote to strip id's voting rights (spec §4.9).
func (e *Engine) VoteToRemove(id consensus.PublicId) error {
	return e.VoteFor(observation.Remove(id.String(), nil))
}

func (e *Engine) latestOwnEvent() (*graph.Event, bool) {
	us, ok := e.peers.ByIndex(e.ourIdx)
	if !ok {
		return nil, false
	}
	idx, ok := us.LatestEvent()
	if !ok {
		return nil, false
	}
	return e.graph.ByIndex(idx)
}
