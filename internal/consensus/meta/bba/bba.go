// Package bba implements the binary Byzantine agreement round machine
// that advances a single voter's meta-vote sequence one step at a
// time as an event's self-parent and gossiped peers supply enough
// estimates, aux values, and common-coin tosses (spec §4.7).
package bba

import (
	"sort"

	"github.com/ruvnet/parsec/internal/consensus"
)

// Step is one of the three steps a round advances through before
// incrementing to the next round.
type Step int

const (
	ForcedTrue Step = iota
	ForcedFalse
	GenuineFlip
)

func (s Step) String() string {
	switch s {
	case ForcedTrue:
		return "forced_true"
	case ForcedFalse:
		return "forced_false"
	default:
		return "genuine_flip"
	}
}

// Forced returns the value this step forces a decision toward, and
// whether this step has one (GenuineFlip does not).
func (s Step) Forced() (bool, bool) {
	switch s {
	case ForcedTrue:
		return true, true
	case ForcedFalse:
		return false, true
	default:
		return false, false
	}
}

func (s Step) next() Step {
	if s == GenuineFlip {
		return ForcedTrue
	}
	return s + 1
}

// MetaVote is one voter's running state in the round machine, as
// carried by a single event (spec §4.7).
type MetaVote struct {
	Round     int
	Step      Step
	Estimates map[bool]bool
	BinValues map[bool]bool
	Aux       *bool
	Decision  *bool
}

// Initial builds round 0's ForcedTrue vote from this event's own
// observation of whether it observes the target voter.
func Initial(estimate bool) MetaVote {
	return MetaVote{Round: 0, Step: ForcedTrue, Estimates: map[bool]bool{estimate: true}}
}

func tally(values []bool) map[bool]int {
	counts := map[bool]int{}
	for _, v := range values {
		counts[v]++
	}
	return counts
}

func countEqual(values []bool, want bool) int {
	n := 0
	for _, v := range values {
		if v == want {
			n++
		}
	}
	return n
}

func pickAux(binValues map[bool]bool, preferred bool) *bool {
	if binValues[preferred] {
		v := preferred
		return &v
	}
	for v := range binValues {
		vv := v
		return &vv
	}
	return nil
}

// boolSetValues returns the set's members in deterministic order
// (false before true) so results never depend on map iteration order.
func boolSetValues(s map[bool]bool) []bool {
	var out []bool
	if s[false] {
		out = append(out, false)
	}
	if s[true] {
		out = append(out, true)
	}
	sort.SliceStable(out, func(i, j int) bool { return !out[i] && out[j] })
	return out
}

// Advance computes the successor of mv given the estimates and aux
// values gathered from the self-parent's round-mates and from the
// latest relevant events by every other voter reachable through this
// event's last_ancestors (spec §4.7 collect_other_meta_votes), plus a
// common-coin lookup for the current round. coinFn returns (value,
// ok); ok is false when the coin has not yet been combined.
//
// Advance never skips a step within one call: an event carries at
// most one step of progress per voter per self-parent link, matching
// how each gossip exchange yields one round of new information.
func Advance(mv MetaVote, otherEstimates, otherAux []bool, coinFn func(round int) (bool, bool), voterCount int) MetaVote {
	if mv.Decision != nil {
		return mv
	}

	switch mv.Step {
	case ForcedTrue, ForcedFalse:
		if mv.BinValues == nil {
			own := boolSetValues(mv.Estimates)
			counts := tally(append(append([]bool{}, otherEstimates...), own...))
			bin := map[bool]bool{}
			for v, n := range counts {
				if consensus.IsMoreThanTwoThirds(n, voterCount) {
					bin[v] = true
				}
			}
			if len(bin) == 0 {
				// Not enough agreement yet; widen this event's own
				// estimate set with whatever it has observed so the
				// next call has more to work with.
				widened := map[bool]bool{}
				for v := range mv.Estimates {
					widened[v] = true
				}
				for _, v := range otherEstimates {
					widened[v] = true
				}
				mv.Estimates = widened
				return mv
			}
			mv.BinValues = bin
			forced, _ := mv.Step.Forced()
			mv.Aux = pickAux(bin, forced)
		}

		forced, _ := mv.Step.Forced()
		n := countEqual(otherAux, forced)
		if mv.Aux != nil && *mv.Aux == forced {
			n++
		}
		if consensus.IsMoreThanTwoThirds(n, voterCount) {
			decided := forced
			mv.Decision = &decided
			return mv
		}

		mv.Step = mv.Step.next()
		return mv

	default: // GenuineFlip
		if mv.Aux == nil {
			vals := boolSetValues(mv.BinValues)
			switch len(vals) {
			case 1:
				v := vals[0]
				mv.Aux = &v
			case 2:
				parity, ok := coinFn(mv.Round)
				if !ok {
					return mv
				}
				mv.Aux = &parity
			default:
				return mv
			}
		}
		next := MetaVote{
			Round:     mv.Round + 1,
			Step:      ForcedTrue,
			Estimates: map[bool]bool{*mv.Aux: true},
		}
		return next
	}
}
