// Package dkg drives one threshold key-generation session per block
// number that caused a membership change (spec §4.11), wrapping
// internal/crypto/threshold's Pedersen DKG primitive in the
// Part/Ack/fault vocabulary the observation layer votes on.
package dkg

import (
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/protobuf"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/crypto/threshold"
)

// Envelope is the wire shape of a DkgMessage observation payload: one
// of Part or Ack, tagged and keyed by the block number that opened
// this session. Deal/Response carry abstract kyber.Point/Scalar
// fields, so they're encoded with go.dedis.ch/protobuf (kyber's own
// serialization story) rather than encoding/json.
type Envelope struct {
	BlockNumber uint64
	IsPart      bool
	Part        *threshold.Part
	Ack         *threshold.Ack
}

var protobufConstructors = protobuf.Constructors(threshold.Suite)

// Marshal serializes an Envelope for wrapping in
// observation.DkgMsg.
func (e Envelope) Marshal() ([]byte, error) { return protobuf.Encode(&e) }

// Unmarshal parses a previously marshaled Envelope.
func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	err := protobuf.DecodeWithConstructors(data, &e, protobufConstructors)
	return e, err
}

// Session is the engine's per-block-number KeyGen driver.
type Session struct {
	BlockNumber  uint64
	keygen       *threshold.KeyGen
	participants []consensus.PeerIndex
	ourIdx       int

	acked      map[int]bool
	pendingAck []threshold.Ack
	ready      bool
}

// NewSession starts a fresh DKG session for blockNumber among
// participants, ordered by PeerIndex, with this node's long-term
// scalar `ours` and public points `points` in the same order.
func NewSession(blockNumber uint64, participants []consensus.PeerIndex, ourIdx int, ours kyber.Scalar, points []kyber.Point, thresholdT int) (*Session, error) {
	kg, err := threshold.NewKeyGen(ours, points, thresholdT)
	if err != nil {
		return nil, fmt.Errorf("dkg: start session for block %d: %w", blockNumber, err)
	}
	return &Session{
		BlockNumber:  blockNumber,
		keygen:       kg,
		participants: participants,
		ourIdx:       ourIdx,
		acked:        make(map[int]bool),
	}, nil
}

// OurPart produces the Envelope this node broadcasts at session
// start.
func (s *Session) OurPart() (Envelope, error) {
	part, err := s.keygen.OurPart()
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{BlockNumber: s.BlockNumber, IsPart: true, Part: part}, nil
}

// HandlePart dispatches a consensused Part from participant srcIdx.
// On success it enqueues the resulting Ack for our next outgoing
// event; on failure it returns the fault to drive an
// InvalidDkgPart accusation.
func (s *Session) HandlePart(srcIdx int, part *threshold.Part) error {
	outcome := s.keygen.HandlePart(srcIdx, part)
	if outcome.Fault != nil {
		return outcome.Fault
	}
	if outcome.Valid != nil {
		s.pendingAck = append(s.pendingAck, *outcome.Valid)
	}
	return nil
}

// HandleAck dispatches a consensused Ack from participant srcIdx. On
// failure it returns the fault to drive an InvalidDkgAck accusation.
func (s *Session) HandleAck(srcIdx int, ack *threshold.Ack) error {
	outcome := s.keygen.HandleAck(ack)
	if outcome.Fault != nil {
		return outcome.Fault
	}
	s.acked[srcIdx] = true
	if s.keygen.IsReady() {
		s.ready = true
	}
	return nil
}

// DrainPendingAcks returns and clears the Acks queued by HandlePart
// calls since the last drain, wrapped as outgoing Envelopes.
func (s *Session) DrainPendingAcks() []Envelope {
	out := make([]Envelope, 0, len(s.pendingAck))
	for i := range s.pendingAck {
		ack := s.pendingAck[i]
		out = append(out, Envelope{BlockNumber: s.BlockNumber, IsPart: false, Ack: &ack})
	}
	s.pendingAck = nil
	return out
}

// IsReady reports whether this session has certified and a key set
// can be derived.
func (s *Session) IsReady() bool { return s.ready || s.keygen.IsReady() }

// Generate derives the fresh section PublicKeySet and, if we are a
// participant, our SecretKeyShare.
func (s *Session) Generate() (threshold.PublicKeySet, *threshold.SecretKeyShare, error) {
	return s.keygen.Generate()
}
