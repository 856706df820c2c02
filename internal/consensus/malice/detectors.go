package malice

import (
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/observation"
)

// evidenceOf builds the Evidence map every detector attaches: the
// triggering event's hash, so accusationsCastBy and the Accomplice
// sweep can recognize that this creator has already answered for it.
func evidenceOf(e *graph.Event, extra map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{"event_hash": fullHex(e.Hash)}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// detectMissingGenesis flags a genesis member whose first non-Initial
// event fails to carry a Genesis vote.
func (c *Checker) detectMissingGenesis(g *graph.Graph, e *graph.Event, forkDetected bool) []observation.Malice {
	if e.Cause.Kind == graph.Initial {
		return nil
	}
	if !c.genesisGroup[e.CreatorID.String()] {
		return nil
	}
	if c.firstNonInitialSeen[e.Creator] {
		return nil
	}
	if e.Cause.Vote != nil && e.Cause.Vote.Observation.Kind == observation.KindGenesis {
		return nil
	}
	return []observation.Malice{{
		Kind:     observation.MaliceMissingGenesis,
		Evidence: evidenceOf(e, nil),
	}}
}

// detectUnexpectedGenesis flags a Genesis vote cast by a peer outside
// the genesis group, or whose self-parent isn't Initial.
func (c *Checker) detectUnexpectedGenesis(g *graph.Graph, e *graph.Event, forkDetected bool) []observation.Malice {
	if e.Cause.Vote == nil || e.Cause.Vote.Observation.Kind != observation.KindGenesis {
		return nil
	}
	inGroup := c.genesisGroup[e.CreatorID.String()]
	sp, hasSelfParent := g.SelfParent(e)
	selfParentIsInitial := hasSelfParent && sp.Cause.Kind == graph.Initial
	if inGroup && selfParentIsInitial {
		return nil
	}
	return []observation.Malice{{
		Kind:     observation.MaliceUnexpectedGenesis,
		Evidence: evidenceOf(e, nil),
	}}
}

// detectDuplicateVote flags a creator re-voting a payload it has
// already cast, raised only once per creator (spec §4.12 example 5).
func (c *Checker) detectDuplicateVote(g *graph.Graph, e *graph.Event, forkDetected bool) []observation.Malice {
	if e.Cause.Vote == nil || c.duplicateRaised[e.Creator] {
		return nil
	}
	seen := c.votedHashes[e.Creator]
	if seen == nil {
		return nil
	}
	h := e.Cause.Vote.Observation.Hash()
	if !seen[h] {
		return nil
	}
	c.duplicateRaised[e.Creator] = true
	return []observation.Malice{{
		Kind:     observation.MaliceDuplicateVote,
		Evidence: evidenceOf(e, nil),
	}}
}

// detectFork reports the Fork forkDetected already identified during
// Graph.Insert (spec §4.12: "creator.last_event != event.self_parent").
func (c *Checker) detectFork(g *graph.Graph, e *graph.Event, forkDetected bool) []observation.Malice {
	if !forkDetected {
		return nil
	}
	return []observation.Malice{{
		Kind:     observation.MaliceFork,
		Evidence: evidenceOf(e, map[string]interface{}{"self_parent": fullHex(e.SelfParentHash())}),
	}}
}

// detectInvalidAccusation flags an Accusation vote for which we hold
// no confirmed evidence of our own.
func (c *Checker) detectInvalidAccusation(g *graph.Graph, e *graph.Event, forkDetected bool) []observation.Malice {
	if e.Cause.Vote == nil || e.Cause.Vote.Observation.Kind != observation.KindAccusation {
		return nil
	}
	o := e.Cause.Vote.Observation
	if o.Malice == nil {
		return []observation.Malice{{Kind: observation.MaliceInvalidAccusation, Evidence: evidenceOf(e, nil)}}
	}
	raw, ok := o.Malice.Evidence["event_hash"]
	if !ok {
		return []observation.Malice{{Kind: observation.MaliceInvalidAccusation, Evidence: evidenceOf(e, nil)}}
	}
	s, ok := raw.(string)
	if !ok {
		return []observation.Malice{{Kind: observation.MaliceInvalidAccusation, Evidence: evidenceOf(e, nil)}}
	}
	evidenceHash, err := hashFromHex(s)
	if err != nil {
		return []observation.Malice{{Kind: observation.MaliceInvalidAccusation, Evidence: evidenceOf(e, nil)}}
	}
	if kind, ok := c.evidence[evidenceHash]; ok && kind == o.Malice.Kind {
		return nil
	}
	return []observation.Malice{{
		Kind:     observation.MaliceInvalidAccusation,
		Evidence: evidenceOf(e, map[string]interface{}{"accused_kind": string(o.Malice.Kind)}),
	}}
}

// detectInvalidCoinShare verifies every signature share a CoinShares
// event carries.
func (c *Checker) detectInvalidCoinShare(g *graph.Graph, e *graph.Event, forkDetected bool) []observation.Malice {
	if e.Cause.Kind != graph.CoinShares || c.verifyCoinShare == nil {
		return nil
	}
	for _, entry := range e.Cause.Shares {
		if !c.verifyCoinShare(entry.Round, e.Creator, entry.Share) {
			return []observation.Malice{{
				Kind:     observation.MaliceInvalidCoinShare,
				Evidence: evidenceOf(e, map[string]interface{}{"round": entry.Round.String()}),
			}}
		}
	}
	return nil
}

// detectInvalidDkgMessage verifies a DkgMessage vote's Part/Ack
// against the relevant session, raising InvalidDkgPart or
// InvalidDkgAck depending on which kind it carried.
func (c *Checker) detectInvalidDkgMessage(g *graph.Graph, e *graph.Event, forkDetected bool) []observation.Malice {
	if e.Cause.Vote == nil || e.Cause.Vote.Observation.Kind != observation.KindDkgMessage || c.verifyDkgMessage == nil {
		return nil
	}
	isPart, ok := c.verifyDkgMessage(e.Cause.Vote.Observation.DkgMessage)
	if ok {
		return nil
	}
	kind := observation.MaliceInvalidDkgAck
	if isPart {
		kind = observation.MaliceInvalidDkgPart
	}
	return []observation.Malice{{
		Kind:     kind,
		Evidence: evidenceOf(e, nil),
	}}
}
