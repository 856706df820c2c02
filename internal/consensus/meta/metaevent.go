// Package meta ties together interesting-content selection, observer
// detection, and the binary-agreement round machine into a per-event
// MetaEvent and a per-section MetaElection, and decides the payload
// once every voter's meta-votes reach a terminal decision (spec
// §4.5-§4.8).
package meta

import (
	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/meta/bba"
	"github.com/ruvnet/parsec/internal/consensus/observation"
)

// MetaEvent is the per-event derived state of a meta-election: which
// payload keys this event found interesting, whether it is an
// observer, and the current binary-agreement state for every voter.
type MetaEvent struct {
	InterestingContent []observation.Key
	IsObserver         bool
	MetaVotes          map[consensus.PeerIndex]bba.MetaVote
}
