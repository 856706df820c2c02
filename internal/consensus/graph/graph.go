package graph

import (
	"github.com/ruvnet/parsec/internal/consensus"
	"go.uber.org/zap"
)

// Graph is the append-only gossip-graph DAG of spec §4.1. It owns
// every Event exclusively; callers only ever receive read-only
// references.
type Graph struct {
	logger *zap.Logger

	byHash  map[Hash]*Event
	byIndex []*Event // TopologicalIndex -> Event

	// creatorEventAt[p][i] is the first event seen at
	// (creator=p, index_by_creator=i); a second, different hash
	// inserted at the same (p, i) is a Fork.
	creatorEventAt map[consensus.PeerIndex]map[int]Hash

	// forkedCreators is the set of peers for which a Fork has ever
	// been observed in this graph.
	forkedCreators map[consensus.PeerIndex]bool
}

// New builds an empty Graph.
func New(logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{
		logger:         logger,
		byHash:         make(map[Hash]*Event),
		creatorEventAt: make(map[consensus.PeerIndex]map[int]Hash),
		forkedCreators: make(map[consensus.PeerIndex]bool),
	}
}

// Len returns the number of events currently in the graph.
func (g *Graph) Len() int { return len(g.byIndex) }

// ByHash looks up an event by its content hash.
func (g *Graph) ByHash(h Hash) (*Event, bool) {
	e, ok := g.byHash[h]
	return e, ok
}

// ByIndex looks up an event by its topological index.
func (g *Graph) ByIndex(idx consensus.EventIndex) (*Event, bool) {
	if int(idx) < 0 || int(idx) >= len(g.byIndex) {
		return nil, false
	}
	return g.byIndex[idx], true
}

// SelfParent returns e's self-parent event, if any (false only for
// Initial events whose self_parent hash is zero).
func (g *Graph) SelfParent(e *Event) (*Event, bool) {
	if e.Cause.SelfParent.IsZero() {
		return nil, false
	}
	return g.ByHash(e.Cause.SelfParent)
}

// OtherParent returns e's other-parent event, if its cause kind
// carries one and it is known.
func (g *Graph) OtherParent(e *Event) (*Event, bool) {
	h, ok := e.OtherParentHash()
	if !ok {
		return nil, false
	}
	return g.ByHash(h)
}

// HasForked reports whether a Fork has ever been observed for
// creator p in this graph.
func (g *Graph) HasForked(p consensus.PeerIndex) bool { return g.forkedCreators[p] }

// EventByCreatorIndex looks up the (first-seen) event authored by
// creator at index_by_creator idx, used to walk a specific peer's
// chain by position rather than by hash.
func (g *Graph) EventByCreatorIndex(creator consensus.PeerIndex, idx int) (*Event, bool) {
	perCreator, ok := g.creatorEventAt[creator]
	if !ok {
		return nil, false
	}
	h, ok := perCreator[idx]
	if !ok {
		return nil, false
	}
	return g.ByHash(h)
}

// Insert appends event into the graph. It is idempotent by hash:
// inserting the same event twice returns the existing index and
// forkDetected=false the second time. It returns forkDetected=true
// when this insertion revealed a Fork by the event's creator (spec
// §4.12 Fork detector: "creator.last_event != event.self_parent").
func (g *Graph) Insert(e *Event) (idx consensus.EventIndex, forkDetected bool, err error) {
	if existing, ok := g.byHash[e.Hash]; ok {
		return existing.TopologicalIndex, false, nil
	}

	selfParent, hasSelfParent := g.SelfParent(e)
	if e.Cause.Kind != Initial && !hasSelfParent {
		return 0, false, errUnknownSelfParent
	}
	if e.Cause.Kind.HasOtherParent() {
		if _, ok := g.OtherParent(e); !ok {
			return 0, false, errUnknownOtherParent
		}
	}

	e.LastAncestors = make(map[consensus.PeerIndex]int)
	e.ForkingPeers = make(map[consensus.PeerIndex]bool)
	if hasSelfParent {
		for p, i := range selfParent.LastAncestors {
			e.LastAncestors[p] = i
		}
		for p := range selfParent.ForkingPeers {
			e.ForkingPeers[p] = true
		}
	}
	e.LastAncestors[e.Creator] = e.IndexByCreator
	if otherParent, ok := g.OtherParent(e); ok {
		for p, i := range otherParent.LastAncestors {
			if cur, ok := e.LastAncestors[p]; !ok || i > cur {
				e.LastAncestors[p] = i
			}
		}
		for p := range otherParent.ForkingPeers {
			e.ForkingPeers[p] = true
		}
	}

	if perCreator, ok := g.creatorEventAt[e.Creator]; ok {
		if prior, ok := perCreator[e.IndexByCreator]; ok && prior != e.Hash {
			forkDetected = true
			g.forkedCreators[e.Creator] = true
			e.ForkingPeers[e.Creator] = true
		}
	} else {
		g.creatorEventAt[e.Creator] = make(map[int]Hash)
	}
	g.creatorEventAt[e.Creator][e.IndexByCreator] = e.Hash

	e.TopologicalIndex = consensus.EventIndex(len(g.byIndex))
	g.byIndex = append(g.byIndex, e)
	g.byHash[e.Hash] = e

	return e.TopologicalIndex, forkDetected, nil
}

// Ancestors returns e and every ancestor of e, in reverse-topological
// order (e first), sorted by this graph's topological index. Indices
// are unique, so there are no ties; the order follows local insertion
// order and is not compared across nodes.
func (g *Graph) Ancestors(e *Event) []*Event {
	visited := make(map[Hash]bool)
	var out []*Event
	var walk func(*Event)
	walk = func(cur *Event) {
		if visited[cur.Hash] {
			return
		}
		visited[cur.Hash] = true
		out = append(out, cur)
		if sp, ok := g.SelfParent(cur); ok {
			walk(sp)
		}
		if op, ok := g.OtherParent(cur); ok {
			walk(op)
		}
	}
	walk(e)
	sortEventsReverseTopological(out)
	return out
}

func sortEventsReverseTopological(events []*Event) {
	// Stable sort by topological index descending; the DAG walk above
	// already guarantees parent-before-child discovery order is
	// impossible to violate causally, so a stable sort by index alone
	// suffices for a deterministic total order.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j-1].TopologicalIndex < events[j].TopologicalIndex; j-- {
			events[j-1], events[j] = events[j], events[j-1]
		}
	}
}

// isAncestorWalk checks whether y is an ancestor of x (including
// x == y) by walking x's ancestry exactly, used whenever the
// last_ancestors fast path is unsafe due to an observed fork.
func (g *Graph) isAncestorWalk(x, y *Event) bool {
	if x.Hash == y.Hash {
		return true
	}
	visited := make(map[Hash]bool)
	var walk func(*Event) bool
	walk = func(cur *Event) bool {
		if cur.Hash == y.Hash {
			return true
		}
		if visited[cur.Hash] {
			return false
		}
		visited[cur.Hash] = true
		if sp, ok := g.SelfParent(cur); ok && walk(sp) {
			return true
		}
		if op, ok := g.OtherParent(cur); ok && walk(op) {
			return true
		}
		return false
	}
	return walk(x)
}

// IsDescendant reports whether x is a descendant of y (y is an
// ancestor of x, including x == y). It uses the O(1) last_ancestors
// shortcut unless x has observed a fork on y's creator, in which case
// it falls back to an exact ancestor walk (spec §4.1).
func (g *Graph) IsDescendant(x, y *Event) bool {
	if !x.SeesForkOn(y.Creator) {
		if last, ok := x.LastAncestors[y.Creator]; ok {
			return last >= y.IndexByCreator
		}
		return false
	}
	return g.isAncestorWalk(x, y)
}

// Sees reports whether x sees y (GLOSSARY): y is an ancestor of x and
// x does not observe a fork on y's creator.
func (g *Graph) Sees(x, y *Event) bool {
	if x.SeesForkOn(y.Creator) {
		return false
	}
	return g.IsDescendant(x, y)
}

// StronglySees reports whether x strongly-sees y: more than 2/3 of
// voterCount voters created an event that is both an ancestor of x
// and a descendant of y (GLOSSARY, spec §4.6).
func (g *Graph) StronglySees(x, y *Event, voterCount int) bool {
	seenBy := make(map[consensus.PeerIndex]bool)
	for _, a := range g.Ancestors(x) {
		if seenBy[a.Creator] {
			continue
		}
		if g.Sees(a, y) {
			seenBy[a.Creator] = true
		}
	}
	return consensus.IsMoreThanTwoThirds(len(seenBy), voterCount)
}
