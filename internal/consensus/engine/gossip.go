package engine

import (
	"encoding/hex"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/malice"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/consensus/wire"
	parsecerrors "github.com/ruvnet/parsec/internal/errors"
)

// GossipRecipients returns the peers we are currently allowed to
// gossip to (spec §4.3: every Vote|Recv peer, provided we hold Send
// ourselves).
func (e *Engine) GossipRecipients() []consensus.PublicId {
	peers := e.peers.GossipRecipients()
	out := make([]consensus.PublicId, 0, len(peers))
	for _, p := range peers {
		out = append(out, p.ID)
	}
	return out
}

// CreateGossip builds the Request we should send to peerIdx: every
// event we've created or learned of since the last checkpoint we have
// for that peer, oldest first (spec §6 create_gossip).
func (e *Engine) CreateGossip(peerIdx consensus.PeerIndex) (wire.Request, error) {
	checkpoint := e.peers.LastGossipedEvent(peerIdx)
	var packed []wire.PackedEvent
	for i := int(checkpoint); i < e.graph.Len(); i++ {
		ev, ok := e.graph.ByIndex(consensus.EventIndex(i))
		if !ok {
			continue
		}
		pe, err := wire.Pack(ev)
		if err != nil {
			return wire.Request{}, err
		}
		packed = append(packed, pe)
	}
	if e.graph.Len() > 0 {
		e.peers.SetLastGossipedEvent(peerIdx, consensus.EventIndex(e.graph.Len()))
	}
	return wire.Request{PackedEvents: packed}, nil
}

// HandleRequest ingests a peer's Request and answers with everything
// we believe that peer is still missing (spec §6 handle_request).
func (e *Engine) HandleRequest(src consensus.PublicId, req wire.Request) (wire.Response, error) {
	if err := e.ingestPacked(req.PackedEvents); err != nil {
		return wire.Response{}, err
	}
	srcPeer, ok := e.peers.ByID(src)
	if !ok {
		return wire.Response{}, parsecerrors.New(parsecerrors.UnknownPeer, "gossip: request from unknown peer").
			WithField("peer", src.String())
	}
	resp, err := e.CreateGossip(srcPeer.Index)
	return wire.Response{PackedEvents: resp.PackedEvents}, err
}

// HandleResponse ingests a peer's answer to our Request (spec §6
// handle_response): unlike HandleRequest, nothing is returned.
func (e *Engine) HandleResponse(src consensus.PublicId, resp wire.Response) error {
	return e.ingestPacked(resp.PackedEvents)
}

// ingestPacked unpacks and inserts a batch of wire events, oldest
// first, running each through the same pipeline a locally authored
// event goes through. An event whose parents are not yet known (it
// arrived out of order within a batch that skipped an ancestor) is
// dropped rather than failing the whole batch — the next gossip round
// will eventually deliver the missing ancestor.
func (e *Engine) ingestPacked(packed []wire.PackedEvent) error {
	for _, pe := range packed {
		if _, ok := e.graph.ByHash(pe.Hash); ok {
			continue
		}
		unpacked, err := wire.Unpack(pe, e.identityOf)
		if err != nil {
			return parsecerrors.Wrap(parsecerrors.InvalidMessage, "gossip: unpack event", err)
		}
		peer, ok := e.peers.ByID(unpacked.CreatorID)
		if !ok {
			continue
		}

		indexByCreator := 0
		if unpacked.Cause.Kind != graph.Initial {
			sp, ok := e.graph.ByHash(unpacked.Cause.SelfParent)
			if !ok {
				continue
			}
			indexByCreator = sp.IndexByCreator + 1
		}

		ev := &graph.Event{
			Creator:        peer.Index,
			CreatorID:      unpacked.CreatorID,
			Cause:          unpacked.Cause,
			Signature:      unpacked.Signature,
			Hash:           unpacked.Hash,
			IndexByCreator: indexByCreator,
		}

		if err := e.checker.PreInsertCheck(e.graph, ev); err != nil {
			e.queueRefusalAccusation(peer.Index, ev, err)
			continue
		}

		idx, forkDetected, err := e.graph.Insert(ev)
		if err != nil {
			continue
		}
		e.peers.AddOwnEvent(peer.Index, idx)
		e.processEvent(ev, forkDetected)
	}
	return nil
}

// queueRefusalAccusation turns a PreInsertCheck rejection into the
// Accusation spec §4.12 requires the refuse-and-accuse detectors
// (IncorrectGenesis, OtherParentBySameCreator, SelfParentByDifferentCreator)
// to emit immediately: since the offending event is never inserted,
// checker.Run never runs over it, so this is the only place such an
// accusation can be raised.
func (e *Engine) queueRefusalAccusation(offender consensus.PeerIndex, ev *graph.Event, cause error) {
	pe, ok := cause.(*parsecerrors.Error)
	if !ok {
		return
	}
	kind, ok := pe.Fields["malice_kind"].(string)
	if !ok {
		return
	}
	e.queueAccusation(malice.Accusation{
		Offender: offender,
		Malice: observation.Malice{
			Kind: observation.MaliceKind(kind),
			Evidence: map[string]interface{}{
				"event_hash": hex.EncodeToString(ev.Hash[:]),
			},
		},
	})
}
