package engine

import (
	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/meta/bba"
)

// emitCoinSharesIfNeeded authors a CoinShares event carrying a
// threshold signature share for every (voter, round) our latest
// MetaVote has reached GenuineFlip on and not yet signed (spec §4.7:
// a genuine coin flip is only resolvable once enough peers have
// published their share of that round's signature).
func (e *Engine) emitCoinSharesIfNeeded() {
	if e.coinState == nil {
		return
	}
	ev, ok := e.latestOwnEvent()
	if !ok {
		return
	}
	mev, ok := e.election.MetaEvents[ev.Hash]
	if !ok {
		return
	}

	shares := make(map[consensus.RoundHash]consensus.SignatureShare)
	for voter, mv := range mev.MetaVotes {
		if mv.Step != bba.GenuineFlip || mv.Decision != nil {
			continue
		}
		if e.signedCoinRounds[voter] == nil {
			e.signedCoinRounds[voter] = make(map[int]bool)
		}
		if e.signedCoinRounds[voter][mv.Round] {
			continue
		}
		share, ok := e.coinState.SignRoundHash(voter, mv.Round)
		if !ok {
			continue
		}
		round := e.coinState.RoundHash(voter, mv.Round)
		shares[round] = share
		e.signedCoinRounds[voter][mv.Round] = true
	}
	if len(shares) == 0 {
		return
	}

	selfParent, hasSelfParent := e.latestOwnEvent()
	if !hasSelfParent {
		return
	}
	cause := graph.NewCoinShares(selfParent.Hash, shares)
	newEv := graph.NewEvent(e.secretID, e.ourIdx, cause, selfParent.IndexByCreator)
	_ = e.insertOwn(newEv)
}
