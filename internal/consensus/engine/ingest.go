package engine

import (
	"crypto/sha256"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/block"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/malice"
	"github.com/ruvnet/parsec/internal/consensus/observation"
)

func dkgPayloadHash(payload []byte) [32]byte { return sha256.Sum256(payload) }

// processEvent runs the full per-event pipeline shared by our own
// newly-authored events and every event ingested from a peer (spec
// §4.4): DKG message dispatch, malice detection, meta-election
// update, decision check, and any resulting block/membership/DKG
// effects.
func (e *Engine) processEvent(ev *graph.Event, forkDetected bool) {
	e.metrics.EventIngested()

	if vote := ev.Cause.Vote; vote != nil && vote.Observation.Kind == observation.KindDkgMessage {
		payload := vote.Observation.DkgMessage
		ok, isPart := e.dispatchDkgMessage(ev.Creator, payload)
		h := dkgPayloadHash(payload)
		e.pendingDkgOutcome[h] = dkgOutcome{isPart: isPart, ok: ok}
		defer delete(e.pendingDkgOutcome, h)
		if ok && isPart {
			e.drainPendingAcks(e.sessions[envelopeBlockNumber(payload)])
		}
		if ok {
			e.checkDkgReadiness()
		}
	}

	for _, a := range e.checker.Run(e.graph, ev, forkDetected) {
		e.queueAccusation(a)
	}
	for _, a := range e.checker.AccompliceCheck(e.graph, e.peers, ev) {
		e.queueAccusation(a)
	}

	e.feedElection(ev)
	e.emitCoinSharesIfNeeded()
}

func (e *Engine) queueAccusation(a malice.Accusation) {
	e.queuedAccusations = append(e.queuedAccusations, a)
	e.metrics.AccusationRaised(string(a.Malice.Kind))
}

func (e *Engine) feedElection(ev *graph.Event) {
	selfParent, hasSelfParent := e.graph.SelfParent(ev)
	e.election.AddMetaEvent(e.graph, ev, selfParent, hasSelfParent, e.store.IsConsensused, e.coinFunc)
	if key, ok := e.election.Decide(ev); ok {
		e.onDecided(key)
	}
}

// replayElection rebuilds MetaEvents for every event already in the
// graph under the just-opened election: a fresh meta-election starts
// its binary-agreement state from round 0 for every voter, so an
// event's chained meta-vote state must be rebuilt from its own
// self-parent's MetaEvent under THIS election, not inherited from
// whichever election last touched it (spec §4.4: one election is
// open at a time, replaced wholesale on decision).
func (e *Engine) replayElection() {
	for i := 0; i < e.graph.Len(); i++ {
		ev, ok := e.graph.ByIndex(consensus.EventIndex(i))
		if !ok {
			continue
		}
		selfParent, hasSelfParent := e.graph.SelfParent(ev)
		e.election.AddMetaEvent(e.graph, ev, selfParent, hasSelfParent, e.store.IsConsensused, e.coinFunc)
	}
}

func (e *Engine) onDecided(key observation.Key) {
	voterCount := e.election.VoterCount
	blk, ok := block.Assemble(e.graph, e.store, e.nextBlockNumber, key, voterCount)
	if !ok {
		return
	}

	e.store.MarkConsensused(key.Hash)
	e.lastConsensusedKeyHash = key.Hash
	e.metrics.BlockEmitted()
	e.metrics.ElectionDecided(int(e.graph.Len()) - int(e.electionOpenedAt))
	e.nextBlockNumber++

	e.absorbGenesisDKGInfo(blk.Payload)

	wasGating := e.openDKG != 0
	e.applyMembership(blk.Number, blk.Payload)

	if wasGating || e.openDKG != 0 {
		e.pendingBlocks = append(e.pendingBlocks, blk)
	} else {
		e.readyBlocks = append(e.readyBlocks, blk)
	}

	e.openElection()
}
