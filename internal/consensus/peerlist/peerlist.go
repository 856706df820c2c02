// Package peerlist tracks section membership: order-stable peer
// indices, per-peer voting-rights flags, and the creator-ordered event
// index used by the gossip graph and malice detection (spec §4.3).
package peerlist

import (
	"sync"

	"github.com/ruvnet/parsec/internal/consensus"
)

// State is the per-peer capability bitmask of spec §3/§4.3.
type State uint8

const (
	Vote State = 1 << iota
	Send
	Recv
)

// Has reports whether every flag in want is set in s.
func (s State) Has(want State) bool { return s&want == want }

// String renders s as its set flag names joined with "|", or "none".
func (s State) String() string {
	if s == 0 {
		return "none"
	}
	var parts []string
	if s.Has(Vote) {
		parts = append(parts, "vote")
	}
	if s.Has(Send) {
		parts = append(parts, "send")
	}
	if s.Has(Recv) {
		parts = append(parts, "recv")
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "|" + p
	}
	return out
}

// Peer is one section member's mutable bookkeeping.
type Peer struct {
	ID    consensus.PublicId
	Index consensus.PeerIndex
	State State

	// events holds this peer's own events in creator order (their
	// index_by_creator is the slice index).
	events []consensus.EventIndex

	// lastGossipedEvent is the graph topological index one past the
	// last event (of any creator) already sent to this peer; the next
	// outgoing Request starts from it.
	lastGossipedEvent consensus.EventIndex

	// accompliceCheckpoint is the watermark up to which we've already
	// checked this peer raised every accusation it should have.
	accompliceCheckpoint consensus.EventIndex
}

// IsActive reports whether the peer currently holds voting rights.
func (p *Peer) IsActive() bool { return p.State.Has(Vote) }

// EventAt returns the event index this peer created at
// index_by_creator == idx, if any.
func (p *Peer) EventAt(idx int) (consensus.EventIndex, bool) {
	if idx < 0 || idx >= len(p.events) {
		return 0, false
	}
	return p.events[idx], true
}

// LatestEvent returns the last event this peer is known to have
// created.
func (p *Peer) LatestEvent() (consensus.EventIndex, bool) {
	if len(p.events) == 0 {
		return 0, false
	}
	return p.events[len(p.events)-1], true
}

// EventCount returns how many events this peer has created.
func (p *Peer) EventCount() int { return len(p.events) }

// List is the ordered, index-stable peer registry for one section.
type List struct {
	mu      sync.RWMutex
	order   []*Peer
	byIndex map[consensus.PeerIndex]*Peer
	byID    map[string]*Peer
	us      consensus.PeerIndex
}

// New builds a List containing only ourID at index OUR (0), per §4.3.
func New(ourID consensus.PublicId) *List {
	l := &List{
		byIndex: make(map[consensus.PeerIndex]*Peer),
		byID:    make(map[string]*Peer),
	}
	l.addLocked(ourID, Vote|Send|Recv)
	return l
}

// Us returns our own stable peer index, always 0.
func (l *List) Us() consensus.PeerIndex { return l.us }

// idKey is the stable map key for a PublicId: its raw binary
// encoding, never its String() form. String() may carry an optional
// display name (as idkeys.PublicId does) that a wire-reconstructed
// identity for the same key won't have, so keying by String() would
// make ByID miss on every identity the local node didn't mint itself.
func idKey(id consensus.PublicId) string {
	if raw, err := id.MarshalBinary(); err == nil {
		return string(raw)
	}
	return id.String()
}

func (l *List) addLocked(id consensus.PublicId, state State) *Peer {
	idx := consensus.PeerIndex(len(l.order))
	p := &Peer{ID: id, Index: idx, State: state}
	l.order = append(l.order, p)
	l.byIndex[idx] = p
	l.byID[idKey(id)] = p
	return p
}

// AddPeer registers a brand new peer with the given initial state.
// It is the only mutator that grows the registry; peer indices are
// never reused or reordered afterward.
func (l *List) AddPeer(id consensus.PublicId, state State) consensus.PeerIndex {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.addLocked(id, state)
	return p.Index
}

// ChangePeerState updates an existing peer's capability bitmask.
func (l *List) ChangePeerState(idx consensus.PeerIndex, state State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.byIndex[idx]; ok {
		p.State = state
	}
}

// RemovePeer strips voting rights from idx. Peers are never deleted
// from the index space — spec §4.3 requires stable indices — so this
// clears State to 0 rather than removing the entry.
func (l *List) RemovePeer(idx consensus.PeerIndex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.byIndex[idx]; ok {
		p.State = 0
	}
}

// ByIndex looks up a peer by its stable index.
func (l *List) ByIndex(idx consensus.PeerIndex) (*Peer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.byIndex[idx]
	return p, ok
}

// ByID looks up a peer by its PublicId's raw binary encoding (idKey).
func (l *List) ByID(id consensus.PublicId) (*Peer, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.byID[idKey(id)]
	return p, ok
}

// All returns every peer in stable index order. The returned slice
// must not be mutated.
func (l *List) All() []*Peer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Peer, len(l.order))
	copy(out, l.order)
	return out
}

// Voters returns the peers currently holding voting rights, in index
// order. This is the "voter set" spec §9's Open Question pins
// election arithmetic to a snapshot of.
func (l *List) Voters() []*Peer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Peer, 0, len(l.order))
	for _, p := range l.order {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

// VoterCount returns len(Voters()).
func (l *List) VoterCount() int {
	return len(l.Voters())
}

// GossipRecipients returns peers we may gossip to: every peer with
// Vote|Recv set, provided we hold Send ourselves (spec §4.3).
func (l *List) GossipRecipients() []*Peer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	us := l.order[l.us]
	if !us.State.Has(Send) {
		return nil
	}
	out := make([]*Peer, 0, len(l.order))
	for i, p := range l.order {
		if consensus.PeerIndex(i) == l.us {
			continue
		}
		if p.State.Has(Vote | Recv) {
			out = append(out, p)
		}
	}
	return out
}

// AddOwnEvent appends idx as the next event_index_by_creator for the
// peer at creator. Must be called in creation order.
func (l *List) AddOwnEvent(creator consensus.PeerIndex, idx consensus.EventIndex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.byIndex[creator]; ok {
		p.events = append(p.events, idx)
	}
}

// SetLastGossipedEvent records that every graph event below
// topological index event has been sent to peer idx.
func (l *List) SetLastGossipedEvent(idx consensus.PeerIndex, event consensus.EventIndex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.byIndex[idx]; ok {
		p.lastGossipedEvent = event
	}
}

// LastGossipedEvent returns the last known gossiped-event checkpoint
// for peer idx.
func (l *List) LastGossipedEvent(idx consensus.PeerIndex) consensus.EventIndex {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.byIndex[idx]; ok {
		return p.lastGossipedEvent
	}
	return 0
}

// AccompliceCheckpoint returns the malice-detection watermark for
// peer idx.
func (l *List) AccompliceCheckpoint(idx consensus.PeerIndex) consensus.EventIndex {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.byIndex[idx]; ok {
		return p.accompliceCheckpoint
	}
	return 0
}

// SetAccompliceCheckpoint advances the malice-detection watermark for
// peer idx. The checkpoint only ever moves forward.
func (l *List) SetAccompliceCheckpoint(idx consensus.PeerIndex, checkpoint consensus.EventIndex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.byIndex[idx]; ok && checkpoint > p.accompliceCheckpoint {
		p.accompliceCheckpoint = checkpoint
	}
}
