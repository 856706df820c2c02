// Package observer implements observer detection (spec §4.6): an
// event is an observer once it strongly-sees a supermajority of
// voters' latest interesting events and its self-parent does not.
package observer

import (
	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
)

// LatestInteresting looks up the latest event by voter p that carries
// non-empty interesting content, as tracked by the meta-election.
type LatestInteresting func(p consensus.PeerIndex) (*graph.Event, bool)

// CountObservees counts how many of voters have their latest
// interesting event strongly-seen by e.
func CountObservees(g *graph.Graph, e *graph.Event, latest LatestInteresting, voters []consensus.PeerIndex) int {
	count := 0
	for _, p := range voters {
		y, ok := latest(p)
		if !ok {
			continue
		}
		if g.StronglySees(e, y, len(voters)) {
			count++
		}
	}
	return count
}

// IsObserver reports whether e is an observer: it strongly-sees a
// supermajority of voters' latest interesting events while its
// self-parent does not. An Initial (missing) self-parent never
// qualifies as an observer itself, satisfying the "self-parent does
// not" half of the rule automatically.
func IsObserver(g *graph.Graph, e *graph.Event, selfParent *graph.Event, hasSelfParent bool, latest LatestInteresting, voters []consensus.PeerIndex) bool {
	if !consensus.IsMoreThanTwoThirds(CountObservees(g, e, latest, voters), len(voters)) {
		return false
	}
	if !hasSelfParent || selfParent.Cause.Kind == graph.Initial {
		return true
	}
	return !consensus.IsMoreThanTwoThirds(CountObservees(g, selfParent, latest, voters), len(voters))
}
