// Package malice implements the Byzantine-behaviour detector suite of
// spec §4.12: a fixed list of checks runs over every newly-ingested
// event, the same composite-and-collect shape the teacher's analyzer
// pipeline runs over incoming time series, except here the findings
// are accusations against a peer rather than scored anomalies.
package malice

import (
	"encoding/hex"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/consensus/peerlist"
	parsecerrors "github.com/ruvnet/parsec/internal/errors"
)

// Accusation pairs an offending peer with the malice finding raised
// against them.
type Accusation struct {
	Offender consensus.PeerIndex
	Malice   observation.Malice
}

// VerifyCoinShare checks one signature share carried in a CoinShares
// event, used by the InvalidCoinShare detector.
type VerifyCoinShare func(round consensus.RoundHash, author consensus.PeerIndex, share consensus.SignatureShare) bool

// VerifyDkgMessage checks a DkgMessage payload against the relevant
// session, used by the InvalidDkgPart/InvalidDkgAck detectors. ok is
// false when the message is cryptographically faulty; isPart
// distinguishes which malice kind to raise.
type VerifyDkgMessage func(payload []byte) (isPart bool, ok bool)

type checkFunc func(c *Checker, g *graph.Graph, e *graph.Event, forkDetected bool) []observation.Malice

// Checker runs the detector suite against newly-ingested events and
// carries the cross-event bookkeeping single-event inspection can't
// see on its own: duplicate-vote history, genesis membership, our own
// confirmed evidence, and the per-creator watermark the accomplice
// sweep advances.
type Checker struct {
	genesisGroup map[string]bool

	votedHashes         map[consensus.PeerIndex]map[observation.Hash]bool
	duplicateRaised     map[consensus.PeerIndex]bool
	firstNonInitialSeen map[consensus.PeerIndex]bool

	// evidence records, for every malice finding this node has itself
	// raised, which event hash carries the evidence and which kind it
	// is — the Accomplice sweep consults it to know what a silent peer
	// should have accused.
	evidence map[graph.Hash]observation.MaliceKind

	spamCount map[consensus.PeerIndex]int

	verifyCoinShare  VerifyCoinShare
	verifyDkgMessage VerifyDkgMessage

	detectors []checkFunc
}

// NewChecker builds a Checker bound to the section's expected founding
// membership (the peer-id strings supplied to the Genesis
// observation) and the crypto-verification collaborators the coin and
// DKG detectors need.
func NewChecker(genesisGroup []string, verifyCoinShare VerifyCoinShare, verifyDkgMessage VerifyDkgMessage) *Checker {
	c := &Checker{
		genesisGroup:        make(map[string]bool, len(genesisGroup)),
		votedHashes:         make(map[consensus.PeerIndex]map[observation.Hash]bool),
		duplicateRaised:     make(map[consensus.PeerIndex]bool),
		firstNonInitialSeen: make(map[consensus.PeerIndex]bool),
		evidence:            make(map[graph.Hash]observation.MaliceKind),
		spamCount:           make(map[consensus.PeerIndex]int),
		verifyCoinShare:     verifyCoinShare,
		verifyDkgMessage:    verifyDkgMessage,
	}
	c.detectors = []checkFunc{
		(*Checker).detectMissingGenesis,
		(*Checker).detectUnexpectedGenesis,
		(*Checker).detectDuplicateVote,
		(*Checker).detectFork,
		(*Checker).detectInvalidAccusation,
		(*Checker).detectInvalidCoinShare,
		(*Checker).detectInvalidDkgMessage,
	}
	return c
}

// PreInsertCheck runs the three detectors whose trigger must refuse
// the event outright rather than queue an accusation (spec §4.12):
// IncorrectGenesis, OtherParentBySameCreator, SelfParentByDifferentCreator.
// On a hit it returns an InvalidEvent error tagged with the malice
// kind; the caller must not insert e into the graph, and should emit
// the tagged accusation immediately.
func (c *Checker) PreInsertCheck(g *graph.Graph, e *graph.Event) error {
	if vote := e.Cause.Vote; vote != nil && vote.Observation.Kind == observation.KindGenesis {
		if !c.matchesGenesisGroup(vote.Observation.GenesisGroup) {
			return invalidEvent(observation.MaliceIncorrectGenesis,
				"genesis group does not match our expected founding set")
		}
	}
	if e.Cause.Kind.HasOtherParent() {
		if other, ok := g.OtherParent(e); ok && other.Creator == e.Creator {
			return invalidEvent(observation.MaliceOtherParentBySameCreator,
				"other_parent authored by the same creator as this event")
		}
	}
	if sp, ok := g.SelfParent(e); ok && sp.Creator != e.Creator {
		return invalidEvent(observation.MaliceSelfParentByDifferentCreator,
			"self_parent authored by a different creator")
	}
	return nil
}

// Run runs every post-insert detector against e (already inserted
// into g, with forkDetected as reported by Graph.Insert) and returns
// the accusations to queue as this node's next Accusation
// observations. It also records e's own bookkeeping (vote history,
// confirmed evidence) for future calls.
func (c *Checker) Run(g *graph.Graph, e *graph.Event, forkDetected bool) []Accusation {
	var out []Accusation
	for _, detect := range c.detectors {
		for _, m := range detect(c, g, e, forkDetected) {
			out = append(out, Accusation{Offender: e.Creator, Malice: m})
			c.recordEvidence(e.Hash, m.Kind)
		}
	}
	c.recordVote(e)
	return out
}

// AccompliceCheck implements spec §4.12's sweep: for newly-ingested
// event e by creator C, find the malicious ancestor events e
// transitively sees whose evidence we've confirmed but C has not
// accused since its accompliceCheckpoint, and accuse C of Accomplice
// for each.
func (c *Checker) AccompliceCheck(g *graph.Graph, peers *peerlist.List, e *graph.Event) []Accusation {
	creator := e.Creator
	checkpoint := peers.AccompliceCheckpoint(creator)

	accusedByCreator := c.accusationsCastBy(g, peers, creator)

	var out []Accusation
	highest := checkpoint
	for _, a := range g.Ancestors(e) {
		if a.TopologicalIndex <= checkpoint {
			continue
		}
		if a.TopologicalIndex > highest {
			highest = a.TopologicalIndex
		}
		kind, isEvidence := c.evidence[a.Hash]
		if !isEvidence {
			continue
		}
		if accusedByCreator[a.Hash] {
			continue
		}
		if a.Creator == creator {
			// C need not accuse itself.
			continue
		}
		out = append(out, Accusation{
			Offender: creator,
			Malice: observation.Malice{
				Kind: observation.MaliceAccomplice,
				Evidence: map[string]interface{}{
					"event_hash":    fullHex(e.Hash),
					"missing_event": fullHex(a.Hash),
					"missing_kind":  string(kind),
				},
			},
		})
	}
	peers.SetAccompliceCheckpoint(creator, highest)
	return out
}

// accusationsCastBy scans creator's own event chain for Accusation
// votes and returns the set of evidence-event hashes they've already
// accused, by the "event_hash" field recorded when we raise our own
// accusations (spec §4.12 stores the same convention).
func (c *Checker) accusationsCastBy(g *graph.Graph, peers *peerlist.List, creator consensus.PeerIndex) map[graph.Hash]bool {
	out := make(map[graph.Hash]bool)
	peer, ok := peers.ByIndex(creator)
	if !ok {
		return out
	}
	for i := 0; i < peer.EventCount(); i++ {
		idx, ok := peer.EventAt(i)
		if !ok {
			continue
		}
		ev, ok := g.ByIndex(idx)
		if !ok || ev.Cause.Vote == nil {
			continue
		}
		o := ev.Cause.Vote.Observation
		if o.Kind != observation.KindAccusation || o.Malice == nil {
			continue
		}
		if raw, ok := o.Malice.Evidence["event_hash"]; ok {
			if s, ok := raw.(string); ok {
				if h, err := hashFromHex(s); err == nil {
					out[h] = true
				}
			}
		}
	}
	return out
}

func (c *Checker) recordEvidence(eventHash graph.Hash, kind observation.MaliceKind) {
	if _, ok := c.evidence[eventHash]; !ok {
		c.evidence[eventHash] = kind
	}
}

func (c *Checker) recordVote(e *graph.Event) {
	if e.Cause.Kind != graph.Initial {
		c.firstNonInitialSeen[e.Creator] = true
	}
	vote := e.Cause.Vote
	if vote == nil {
		return
	}
	h := vote.Observation.Hash()
	seen := c.votedHashes[e.Creator]
	if seen == nil {
		seen = make(map[observation.Hash]bool)
		c.votedHashes[e.Creator] = seen
	}
	seen[h] = true
}

func (c *Checker) matchesGenesisGroup(group []string) bool {
	if len(group) != len(c.genesisGroup) {
		return false
	}
	for _, id := range group {
		if !c.genesisGroup[id] {
			return false
		}
	}
	return true
}

func invalidEvent(kind observation.MaliceKind, msg string) error {
	return parsecerrors.New(parsecerrors.InvalidEvent, msg).WithField("malice_kind", string(kind))
}

func hashFromHex(s string) (graph.Hash, error) {
	var h graph.Hash
	// The hash's String() method only prints the first 8 bytes, so
	// round-tripping through it is lossy; accusations instead store the
	// full hex encoding directly via fullHex below.
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	copy(h[:], b)
	return h, nil
}

func fullHex(h graph.Hash) string {
	return hex.EncodeToString(h[:])
}
