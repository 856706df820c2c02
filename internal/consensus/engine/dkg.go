package engine

import (
	"go.dedis.ch/kyber/v4"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/block"
	"github.com/ruvnet/parsec/internal/consensus/dkg"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/consensus/peerlist"
)

func envelopeBlockNumber(payload []byte) uint64 {
	env, err := dkg.Unmarshal(payload)
	if err != nil {
		return 0
	}
	return env.BlockNumber
}

// drainPendingAcks votes for every Ack a just-processed Part queued
// up inside sess (spec §4.11: every locally produced Part/Ack is
// wrapped as a DkgMessage observation and voted for).
func (e *Engine) drainPendingAcks(sess *dkgSession) {
	if sess == nil {
		return
	}
	for _, env := range sess.sess.DrainPendingAcks() {
		e.authorDkgVote(env)
	}
}

func (e *Engine) authorDkgVote(env dkg.Envelope) {
	payload, err := env.Marshal()
	if err != nil {
		return
	}
	_ = e.voteForLocked(observation.DkgMsg(payload))
}

// absorbGenesisDKGInfo populates dkgPoints from a decided Genesis
// vote's GenesisInfo, the only way a founding peer's long-term DKG
// key becomes known to the rest of the section.
func (e *Engine) absorbGenesisDKGInfo(payload observation.Observation) {
	if payload.Kind != observation.KindGenesis {
		return
	}
	for id, pt := range decodeDKGInfo(payload.GenesisInfo) {
		e.dkgPoints[id] = pt
	}
}

// applyMembership reacts to a just-decided block's membership effect
// (spec §4.9): Add grows the peer list and opens a DKG session over
// the new total membership; Remove/Accusation strip voting rights and
// open a session over the reduced membership.
func (e *Engine) applyMembership(blockNumber uint64, payload observation.Observation) {
	kind, peerID := block.MembershipEffect(payload)
	switch kind {
	case block.MembershipAdd:
		e.applyAdd(blockNumber, peerID, payload.PeerInfo)
	case block.MembershipRemove:
		e.applyRemove(blockNumber, peerID)
	}
}

func (e *Engine) applyAdd(blockNumber uint64, peerID string, peerInfo interface{}) {
	rawKey, dkgPoint, ok := decodeAddInfo(peerInfo)
	if !ok || e.identityOf == nil {
		return
	}
	id, err := e.identityOf(rawKey)
	if err != nil {
		return
	}
	if _, exists := e.peers.ByID(id); !exists {
		e.peers.AddPeer(id, peerlist.Vote|peerlist.Send|peerlist.Recv)
	}
	if dkgPoint != nil {
		e.dkgPoints[peerID] = dkgPoint
	}
	e.openDkgSessionForCurrentVoters(blockNumber)
}

func (e *Engine) applyRemove(blockNumber uint64, peerID string) {
	if p, ok := e.peerByStringID(peerID); ok {
		e.peers.RemovePeer(p.Index)
	}
	e.openDkgSessionForCurrentVoters(blockNumber)
}

func (e *Engine) peerByStringID(peerID string) (*peerlist.Peer, bool) {
	for _, p := range e.peers.All() {
		if p.ID.String() == peerID {
			return p, true
		}
	}
	return nil, false
}

func (e *Engine) openDkgSessionForCurrentVoters(blockNumber uint64) {
	voters := e.peers.Voters()
	participants := make([]consensus.PeerIndex, 0, len(voters))
	points := make([]kyber.Point, 0, len(voters))
	for _, p := range voters {
		pt, ok := e.dkgPoints[p.ID.String()]
		if !ok {
			// We're missing DKG key material for a current voter (it
			// never published one, or we haven't absorbed its Add
			// vote yet); skip running this session locally rather
			// than guess — the coin simply keeps its prior key set.
			return
		}
		participants = append(participants, p.Index)
		points = append(points, pt)
	}
	if e.dkgScalar == nil {
		return
	}

	localIdx := -1
	for i, idx := range participants {
		if idx == e.ourIdx {
			localIdx = i
			break
		}
	}
	if localIdx < 0 {
		// We are not ourselves a current voter (e.g. we were just
		// removed); no session to run.
		return
	}

	if e.openDKG != 0 {
		delete(e.sessions, e.openDKG)
	}

	thresholdT := e.dkgThresh(len(participants))
	sess, err := dkg.NewSession(blockNumber, participants, localIdx, e.dkgScalar, points, thresholdT)
	if err != nil {
		return
	}
	e.sessions[blockNumber] = &dkgSession{sess: sess, participants: participants}
	e.openDKG = blockNumber
	e.metrics.DKGSessionOpened()

	if part, err := sess.OurPart(); err == nil {
		e.authorDkgVote(part)
	}
}

// checkDkgReadiness releases every pending block once the currently
// open session reaches is_ready (spec §4.9/§4.11: "pending blocks
// between the previous and current DKG are applied atomically").
func (e *Engine) checkDkgReadiness() {
	if e.openDKG == 0 {
		return
	}
	sess, ok := e.sessions[e.openDKG]
	if !ok || !sess.sess.IsReady() {
		return
	}
	pub, secret, err := sess.sess.Generate()
	if err == nil {
		e.coinPublic = &pub
		e.coinSecret = secret
		e.initCoin()
	}
	e.metrics.DKGSessionCompleted()
	e.readyBlocks = append(e.readyBlocks, e.pendingBlocks...)
	e.pendingBlocks = nil
	e.openDKG = 0
}
