// Package wire implements the on-the-wire gossip messages of spec §6:
// Request/Response carry a topologically-ordered batch of PackedEvent,
// each one content-addressed so parents are referenced by hash rather
// than by an index that is only meaningful to the sender's own graph.
// This mirrors the teacher's transport layer (rpc.go/websocket.go),
// which also moves a thin JSON-tagged envelope rather than a bespoke
// binary frame.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
)

// PackedEvent is one signed gossip-graph event in wire form: the
// creator's raw public-key bytes (so the receiver can reconstruct the
// PublicId without a prior handshake), the Cause carrying parent
// references by content hash, the creator's signature, and the hash
// the receiver must independently recompute and compare.
type PackedEvent struct {
	CreatorKey []byte              `json:"creator_key"`
	Cause      graph.Cause         `json:"cause"`
	Signature  consensus.Signature `json:"signature"`
	Hash       graph.Hash          `json:"hash"`
}

// Request is sent by the gossip initiator: the events it believes the
// recipient is missing, oldest ancestor first.
type Request struct {
	PackedEvents []PackedEvent `json:"packed_events"`
}

// Response answers a Request with the events the responder believes
// the requester is missing, oldest ancestor first.
type Response struct {
	PackedEvents []PackedEvent `json:"packed_events"`
}

// Pack converts a local, already-inserted Event into its wire form.
func Pack(e *graph.Event) (PackedEvent, error) {
	key, err := e.CreatorID.MarshalBinary()
	if err != nil {
		return PackedEvent{}, fmt.Errorf("wire: pack: marshal creator id: %w", err)
	}
	return PackedEvent{
		CreatorKey: key,
		Cause:      e.Cause,
		Signature:  e.Signature,
		Hash:       e.Hash,
	}, nil
}

// Unpacked is a received event that has passed signature and hash
// verification but has not yet been resolved against any particular
// node's peer list or graph (it carries no PeerIndex, index_by_creator,
// or ancestry bookkeeping — those are local to the receiving engine).
type Unpacked struct {
	CreatorID consensus.PublicId
	Cause     graph.Cause
	Signature consensus.Signature
	Hash      graph.Hash
}

// Unpack verifies a PackedEvent's signature and hash and reconstructs
// its identity. It does not check the event against any graph; callers
// still owe it a PreInsertCheck and Graph.Insert once Creator and
// IndexByCreator have been resolved locally.
func Unpack(pe PackedEvent, identityOf func([]byte) (consensus.PublicId, error)) (Unpacked, error) {
	id, err := identityOf(pe.CreatorKey)
	if err != nil {
		return Unpacked{}, fmt.Errorf("wire: unpack: %w", err)
	}
	if !graph.VerifyOf(id, pe.Cause, pe.Signature) {
		return Unpacked{}, fmt.Errorf("wire: unpack: signature verification failed")
	}
	if graph.HashOf(id, pe.Cause) != pe.Hash {
		return Unpacked{}, fmt.Errorf("wire: unpack: hash mismatch")
	}
	return Unpacked{CreatorID: id, Cause: pe.Cause, Signature: pe.Signature, Hash: pe.Hash}, nil
}

// MarshalRequest/UnmarshalRequest and the Response equivalents give any
// byte transport a stable framing it doesn't need to reimplement; this
// module itself contains no network transport package.
func MarshalRequest(r Request) ([]byte, error)  { return json.Marshal(r) }
func UnmarshalRequest(b []byte) (Request, error) {
	var r Request
	err := json.Unmarshal(b, &r)
	return r, err
}

func MarshalResponse(r Response) ([]byte, error) { return json.Marshal(r) }
func UnmarshalResponse(b []byte) (Response, error) {
	var r Response
	err := json.Unmarshal(b, &r)
	return r, err
}
