package engine

import "github.com/ruvnet/parsec/internal/consensus"

// PeerStatus is a read-only snapshot of one section member, for the
// ops surface (spec §6 exposes no mutation beyond VoteFor/VoteToAdd/
// VoteToRemove; this is query-only).
type PeerStatus struct {
	Index consensus.PeerIndex `json:"index"`
	ID    string              `json:"id"`
	State string              `json:"state"`
}

// Status is a read-only snapshot of this node's consensus core.
type Status struct {
	OurIndex    consensus.PeerIndex `json:"our_index"`
	OurID       string              `json:"our_id"`
	GraphLen    int                 `json:"graph_len"`
	VoterCount  int                 `json:"voter_count"`
	OpenDKG     uint64              `json:"open_dkg_session,omitempty"`
	NextBlock   uint64              `json:"next_block_number"`
	PendingVote int                 `json:"pending_blocks"`
	ReadyBlocks int                 `json:"ready_blocks"`
}

// Status reports a snapshot of the engine's membership and graph
// size, for health/inspection endpoints.
func (e *Engine) Status() Status {
	us, _ := e.peers.ByIndex(e.ourIdx)
	id := ""
	if us != nil {
		id = us.ID.String()
	}
	return Status{
		OurIndex:    e.ourIdx,
		OurID:       id,
		GraphLen:    e.graph.Len(),
		VoterCount:  e.peers.VoterCount(),
		OpenDKG:     e.openDKG,
		NextBlock:   e.nextBlockNumber,
		PendingVote: len(e.pendingBlocks),
		ReadyBlocks: len(e.readyBlocks),
	}
}

// Peers lists every known section member, voting or not.
func (e *Engine) Peers() []PeerStatus {
	all := e.peers.All()
	out := make([]PeerStatus, 0, len(all))
	for _, p := range all {
		out = append(out, PeerStatus{Index: p.Index, ID: p.ID.String(), State: p.State.String()})
	}
	return out
}
