package meta

import (
	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/observation"
)

// candidates is e's ancestry summarized by payload key: which
// creators cast a vote for each key, the earliest such ancestor (used
// for the "creator's own vote order" tie-break), and the full set of
// creators represented anywhere in e's ancestry (the Single-mode
// maturity gate of spec §4.5(b)).
type candidates struct {
	votersByKey      map[observation.Key]map[consensus.PeerIndex]bool
	firstByKey       map[observation.Key]*graph.Event
	representedPeers map[consensus.PeerIndex]bool
}

func collectCandidates(g *graph.Graph, e *graph.Event, opaqueMode observation.ConsensusMode, isConsensused func(observation.Hash) bool) candidates {
	out := candidates{
		votersByKey:      make(map[observation.Key]map[consensus.PeerIndex]bool),
		firstByKey:       make(map[observation.Key]*graph.Event),
		representedPeers: make(map[consensus.PeerIndex]bool),
	}
	for _, a := range g.Ancestors(e) {
		out.representedPeers[a.Creator] = true
		if a.Cause.Kind != graph.Observation || a.Cause.Vote == nil {
			continue
		}
		obs := a.Cause.Vote.Observation
		if isConsensused(obs.Hash()) {
			continue
		}
		mode := observation.ModeFor(obs, opaqueMode)
		var key observation.Key
		if mode == observation.Single {
			key = observation.SingleKey(obs.Hash(), a.Creator)
		} else {
			key = observation.SupermajorityKey(obs.Hash())
		}
		if out.votersByKey[key] == nil {
			out.votersByKey[key] = make(map[consensus.PeerIndex]bool)
		}
		out.votersByKey[key][a.Creator] = true
		if cur, ok := out.firstByKey[key]; !ok || a.TopologicalIndex < cur.TopologicalIndex {
			out.firstByKey[key] = a
		}
	}
	return out
}

// qualifies applies spec §4.5's three qualification rules to key
// given e's candidate summary and (for rule c) the already-decided
// interesting content of e's ancestors.
func (el *Election) qualifies(g *graph.Graph, e *graph.Event, key observation.Key, c candidates) bool {
	voters := c.votersByKey[key]
	switch key.Mode {
	case observation.Supermajority:
		if consensus.IsMoreThanTwoThirds(len(voters), el.VoterCount) {
			return true
		}
	case observation.Single:
		if len(voters) >= 1 && consensus.IsMoreThanTwoThirds(len(c.representedPeers), el.VoterCount) {
			return true
		}
	}
	if len(e.ForkingPeers) == 0 {
		return false
	}
	for _, a := range g.Ancestors(e) {
		if a.Hash == e.Hash {
			continue
		}
		ame, ok := el.MetaEvents[a.Hash]
		if !ok {
			continue
		}
		for _, k := range ame.InterestingContent {
			if k == key {
				return true
			}
		}
	}
	return false
}
