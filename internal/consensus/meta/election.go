package meta

import (
	"sort"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/meta/bba"
	"github.com/ruvnet/parsec/internal/consensus/meta/observer"
	"github.com/ruvnet/parsec/internal/consensus/observation"
)

// CoinFunc returns the common-coin parity for (voter, round), and
// whether it has been combined yet.
type CoinFunc func(voter consensus.PeerIndex, round int) (bool, bool)

// Election is the meta-election state for a section (spec §4.4-§4.8):
// one Election is open at a time, and a new one replaces it whenever
// a payload is decided.
type Election struct {
	Voters     []consensus.PeerIndex
	VoterCount int
	OpaqueMode observation.ConsensusMode

	MetaEvents map[graph.Hash]*MetaEvent

	interestingOrderByCreator map[consensus.PeerIndex][]observation.Key
	interestingSetByCreator   map[consensus.PeerIndex]map[observation.Key]bool
	latestInterestingByPeer   map[consensus.PeerIndex]*graph.Event
}

// New opens a fresh election over voters.
func New(voters []consensus.PeerIndex, opaqueMode observation.ConsensusMode) *Election {
	sorted := append([]consensus.PeerIndex(nil), voters...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return &Election{
		Voters:                    sorted,
		VoterCount:                len(sorted),
		OpaqueMode:                opaqueMode,
		MetaEvents:                make(map[graph.Hash]*MetaEvent),
		interestingOrderByCreator: make(map[consensus.PeerIndex][]observation.Key),
		interestingSetByCreator:   make(map[consensus.PeerIndex]map[observation.Key]bool),
		latestInterestingByPeer:   make(map[consensus.PeerIndex]*graph.Event),
	}
}

func (el *Election) markInteresting(creator consensus.PeerIndex, key observation.Key) {
	if el.interestingSetByCreator[creator] == nil {
		el.interestingSetByCreator[creator] = make(map[observation.Key]bool)
	}
	if el.interestingSetByCreator[creator][key] {
		return
	}
	el.interestingSetByCreator[creator][key] = true
	el.interestingOrderByCreator[creator] = append(el.interestingOrderByCreator[creator], key)
}

func (el *Election) firstInterestingKey(creator consensus.PeerIndex) (observation.Key, bool) {
	keys := el.interestingOrderByCreator[creator]
	if len(keys) == 0 {
		return observation.Key{}, false
	}
	return keys[0], true
}

func (el *Election) latestInteresting(p consensus.PeerIndex) (*graph.Event, bool) {
	e, ok := el.latestInterestingByPeer[p]
	return e, ok
}

// AddMetaEvent derives e's MetaEvent: interesting content (§4.5),
// observer status (§4.6), and one binary-agreement step per voter
// (§4.7). selfParent and hasSelfParent describe e's self-parent;
// isConsensused reports whether an observation hash has already been
// decided in a prior election; coin supplies common-coin tosses.
func (el *Election) AddMetaEvent(g *graph.Graph, e *graph.Event, selfParent *graph.Event, hasSelfParent bool, isConsensused func(observation.Hash) bool, coin CoinFunc) *MetaEvent {
	cands := collectCandidates(g, e, el.OpaqueMode, isConsensused)

	already := el.interestingSetByCreator[e.Creator]
	var qualifying []observation.Key
	for key := range cands.votersByKey {
		if already[key] {
			continue
		}
		if el.qualifies(g, e, key, cands) {
			qualifying = append(qualifying, key)
		}
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		iOwn := cands.votersByKey[qualifying[i]][e.Creator]
		jOwn := cands.votersByKey[qualifying[j]][e.Creator]
		if iOwn != jOwn {
			return iOwn
		}
		if iOwn && jOwn {
			return cands.firstByKey[qualifying[i]].IndexByCreator < cands.firstByKey[qualifying[j]].IndexByCreator
		}
		return qualifying[i].Hash.Less(qualifying[j].Hash)
	})

	for _, key := range qualifying {
		el.markInteresting(e.Creator, key)
	}
	if len(qualifying) > 0 {
		el.latestInterestingByPeer[e.Creator] = e
	}

	metaVotes := make(map[consensus.PeerIndex]bba.MetaVote, el.VoterCount)
	var selfParentME *MetaEvent
	if hasSelfParent {
		selfParentME = el.MetaEvents[selfParent.Hash]
	}
	for _, p := range el.Voters {
		prior, ok := bbaPrior(selfParentME, p)
		if !ok {
			_, observes := e.LastAncestors[p]
			prior = bba.Initial(observes)
		}

		var otherEstimates, otherAux []bool
		for _, c := range el.Voters {
			if c == e.Creator {
				continue
			}
			idx, ok := e.LastAncestors[c]
			if !ok || e.SeesForkOn(c) {
				continue
			}
			ev, ok := g.EventByCreatorIndex(c, idx)
			if !ok {
				continue
			}
			ome, ok := el.MetaEvents[ev.Hash]
			if !ok {
				continue
			}
			v, ok := ome.MetaVotes[p]
			if !ok {
				continue
			}
			for est := range v.Estimates {
				otherEstimates = append(otherEstimates, est)
			}
			if v.Aux != nil {
				otherAux = append(otherAux, *v.Aux)
			}
			if v.Decision != nil {
				otherAux = append(otherAux, *v.Decision)
			}
		}

		coinFn := func(round int) (bool, bool) { return coin(p, round) }
		metaVotes[p] = bba.Advance(prior, otherEstimates, otherAux, coinFn, el.VoterCount)
	}

	isObs := observer.IsObserver(g, e, selfParent, hasSelfParent, el.latestInteresting, el.Voters)

	me := &MetaEvent{InterestingContent: qualifying, IsObserver: isObs, MetaVotes: metaVotes}
	el.MetaEvents[e.Hash] = me
	return me
}

func bbaPrior(selfParentME *MetaEvent, p consensus.PeerIndex) (bba.MetaVote, bool) {
	if selfParentME == nil {
		return bba.MetaVote{}, false
	}
	v, ok := selfParentME.MetaVotes[p]
	return v, ok
}

// Decide reports the decided payload key once every voter's
// meta-votes on e reach a terminal decision (spec §4.8).
func (el *Election) Decide(e *graph.Event) (observation.Key, bool) {
	me, ok := el.MetaEvents[e.Hash]
	if !ok {
		return observation.Key{}, false
	}
	for _, p := range el.Voters {
		v, ok := me.MetaVotes[p]
		if !ok || v.Decision == nil {
			return observation.Key{}, false
		}
	}

	counts := make(map[observation.Key]int)
	for _, p := range el.Voters {
		v := me.MetaVotes[p]
		if !*v.Decision {
			continue
		}
		key, ok := el.firstInterestingKey(p)
		if !ok {
			continue
		}
		counts[key]++
	}
	if len(counts) == 0 {
		return observation.Key{}, false
	}

	keys := make([]observation.Key, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Hash.Less(keys[j].Hash) })

	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}
