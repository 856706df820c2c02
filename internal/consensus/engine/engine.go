// Package engine assembles the gossip graph, meta-election, common
// coin, malice detector, and DKG driver into the single-threaded
// consensus core of spec §4.4/§5/§6: four entry points
// (VoteFor/HandleRequest/HandleResponse/Poll), no suspension or
// internal timeouts, one fixed-point sweep of newly-known events per
// call.
//
// The lifecycle shape (config struct + injected logger, explicit
// constructor returning (*Engine, error)) follows the teacher's
// internal/core/coordinator.go, generalized from a pub/sub message
// coordinator to a consensus core — but, unlike the coordinator, this
// type never spawns a goroutine of its own: every entry point runs to
// completion on the caller's goroutine, per spec §5's "no internal
// concurrency" rule.
package engine

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"go.dedis.ch/kyber/v4"
	"go.uber.org/zap"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/block"
	"github.com/ruvnet/parsec/internal/consensus/coin"
	"github.com/ruvnet/parsec/internal/consensus/dkg"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/malice"
	"github.com/ruvnet/parsec/internal/consensus/meta"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/consensus/peerlist"
	"github.com/ruvnet/parsec/internal/crypto/threshold"
	parsecerrors "github.com/ruvnet/parsec/internal/errors"
	"github.com/ruvnet/parsec/pkg/dump"
	"github.com/ruvnet/parsec/pkg/metrics"
)

// Config bundles the collaborators and tuning knobs every Engine
// needs beyond its identity and membership (spec §6).
type Config struct {
	OpaqueMode observation.ConsensusMode
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	DumpHook   dump.Hook

	// DKGScalar/DKGPoints bootstrap the long-term Pedersen DKG
	// keypair this node uses for every membership-triggered session
	// (spec §4.11); DKGPoints maps each genesis peer's PublicId
	// string to its long-term public point, agreed out of band the
	// same way the genesis PublicKeySet/SecretKeySet pair is.
	DKGScalar kyber.Scalar
	DKGPoints map[string]kyber.Point

	// CoinPublic/CoinSecret bootstrap the genesis common coin (spec
	// §6: "SecretKeySet, for initial genesis only"). CoinSecret is
	// nil for a joining peer with no initial share.
	CoinPublic *threshold.PublicKeySet
	CoinSecret *threshold.SecretKeyShare

	// IdentityOf reconstructs a consensus.PublicId from the raw key
	// bytes carried in an Add vote's PeerInfo or a wire PackedEvent's
	// creator field; the engine core stays decoupled from any concrete
	// identity scheme, the same way wire.Unpack does.
	IdentityOf func([]byte) (consensus.PublicId, error)
}

// Engine is one node's consensus core: the gossip graph, section
// membership, observation dictionary, malice detector, open
// meta-election, common coin, and any in-flight DKG sessions, all
// confined to single-threaded access through its four entry points.
type Engine struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	dump    dump.Hook

	secretID consensus.SecretId
	ourIdx   consensus.PeerIndex

	graph   *graph.Graph
	peers   *peerlist.List
	store   *observation.Store
	checker *malice.Checker

	opaqueMode observation.ConsensusMode

	election         *meta.Election
	electionOpenedAt consensus.EventIndex

	nextBlockNumber        uint64
	lastConsensusedKeyHash [32]byte

	coinPublic *threshold.PublicKeySet
	coinSecret *threshold.SecretKeyShare
	coinState  *coin.Coin

	signedCoinRounds map[consensus.PeerIndex]map[int]bool

	dkgScalar kyber.Scalar
	dkgPoints map[string]kyber.Point
	dkgThresh func(voterCount int) int
	sessions  map[uint64]*dkgSession
	openDKG   uint64

	pendingDkgOutcome map[[32]byte]dkgOutcome

	pendingBlocks []*block.Block
	readyBlocks   []*block.Block

	haveVoted map[observation.Hash]bool

	queuedAccusations []malice.Accusation

	identityOf func([]byte) (consensus.PublicId, error)
}

type dkgSession struct {
	sess         *dkg.Session
	participants []consensus.PeerIndex
	newPeerID    string // "" for a Remove/Accusation-triggered session
}

type dkgOutcome struct {
	isPart bool
	ok     bool
}

// defaultThreshold is spec §4.11's default: floor(voterCount/3), the
// bound the threshold signature scheme itself requires (T+1 of N to
// combine).
func defaultThreshold(voterCount int) int {
	return voterCount / 3
}

func newEngine(cfg Config, secretID consensus.SecretId, ourIdx consensus.PeerIndex, peers *peerlist.List, genesisGroup []string) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewMetrics()
	}
	dh := cfg.DumpHook
	if dh == nil {
		dh = dump.NopHook{}
	}
	points := cfg.DKGPoints
	if points == nil {
		points = make(map[string]kyber.Point)
	}

	e := &Engine{
		logger:            logger,
		metrics:           m,
		dump:              dh,
		secretID:          secretID,
		ourIdx:            ourIdx,
		graph:             graph.New(logger),
		peers:             peers,
		store:             observation.NewStore(),
		opaqueMode:        cfg.OpaqueMode,
		nextBlockNumber:   1,
		coinPublic:        cfg.CoinPublic,
		coinSecret:        cfg.CoinSecret,
		signedCoinRounds:  make(map[consensus.PeerIndex]map[int]bool),
		dkgScalar:         cfg.DKGScalar,
		dkgPoints:         points,
		dkgThresh:         defaultThreshold,
		sessions:          make(map[uint64]*dkgSession),
		pendingDkgOutcome: make(map[[32]byte]dkgOutcome),
		haveVoted:         make(map[observation.Hash]bool),
		identityOf:        cfg.IdentityOf,
	}
	e.checker = malice.NewChecker(genesisGroup, e.verifyCoinShare, e.verifyDkgMessage)
	e.openElection()
	return e
}

func (e *Engine) initCoin() {
	if e.coinPublic == nil {
		return
	}
	e.coinState = coin.New(e.coinPublic, e.coinSecret, int(e.ourIdx), e.election.Voters, coin.SeedRoundHash(e.lastConsensusedKeyHash))
}

// FromGenesis builds a fresh Engine as a founding member of
// genesisGroup (spec §6 from_genesis): our own Initial event is
// inserted and a Genesis vote is cast immediately.
func FromGenesis(secretID consensus.SecretId, genesisGroup []consensus.PublicId, cfg Config) (*Engine, error) {
	ourID := secretID.PublicId()
	if !containsID(genesisGroup, ourID) {
		return nil, parsecerrors.New(parsecerrors.InvalidSelfState, "from_genesis: our id is not a member of genesis_group")
	}

	peers := peerlist.New(ourID)
	groupIDs := make([]string, 0, len(genesisGroup))
	for _, id := range genesisGroup {
		groupIDs = append(groupIDs, id.String())
		if id.Equal(ourID) {
			continue
		}
		peers.AddPeer(id, peerlist.Vote|peerlist.Send|peerlist.Recv)
	}
	sort.Strings(groupIDs)

	e := newEngine(cfg, secretID, peers.Us(), peers, groupIDs)

	init := graph.NewEvent(secretID, e.ourIdx, graph.NewInitial(), -1)
	if err := e.insertOwn(init); err != nil {
		return nil, err
	}

	info := e.genesisDKGInfo(groupIDs)
	genesisObs := observation.Genesis(groupIDs, info)
	if err := e.voteForLocked(genesisObs); err != nil {
		return nil, err
	}
	return e, nil
}

// FromExisting builds a fresh Engine joining a section whose genesis
// group was genesisGroup and whose current membership is section
// (spec §6 from_existing): only an Initial event is inserted, since a
// joining peer is not itself part of the genesis vote.
func FromExisting(secretID consensus.SecretId, genesisGroup []consensus.PublicId, section []consensus.PublicId, cfg Config) (*Engine, error) {
	ourID := secretID.PublicId()
	if !containsID(section, ourID) {
		return nil, parsecerrors.New(parsecerrors.InvalidSelfState, "from_existing: our id is not a member of section")
	}

	peers := peerlist.New(ourID)
	for _, id := range section {
		if id.Equal(ourID) {
			continue
		}
		peers.AddPeer(id, peerlist.Vote|peerlist.Send|peerlist.Recv)
	}

	groupIDs := make([]string, 0, len(genesisGroup))
	for _, id := range genesisGroup {
		groupIDs = append(groupIDs, id.String())
	}
	sort.Strings(groupIDs)

	e := newEngine(cfg, secretID, peers.Us(), peers, groupIDs)

	init := graph.NewEvent(secretID, e.ourIdx, graph.NewInitial(), -1)
	if err := e.insertOwn(init); err != nil {
		return nil, err
	}
	return e, nil
}

func containsID(ids []consensus.PublicId, want consensus.PublicId) bool {
	for _, id := range ids {
		if id.Equal(want) {
			return true
		}
	}
	return false
}

// openElection starts a fresh meta-election over the current voter
// snapshot, per spec §9's Open Question: election arithmetic is
// always pinned to voters-at-open, never re-read live.
func (e *Engine) openElection() {
	voters := make([]consensus.PeerIndex, 0)
	for _, p := range e.peers.Voters() {
		voters = append(voters, p.Index)
	}
	e.election = meta.New(voters, e.opaqueMode)
	e.electionOpenedAt = consensus.EventIndex(e.graph.Len())
	e.metrics.ElectionOpened()
	e.dump.Dump("election_opened", map[string]interface{}{
		"voters": voters,
		"at":     e.electionOpenedAt,
	})
	e.initCoin()
	e.replayElection()
}

func (e *Engine) coinFunc(voter consensus.PeerIndex, round int) (bool, bool) {
	if e.coinState == nil {
		return false, false
	}
	parity, ok := e.coinState.GetValue(voter, round, e.election.VoterCount)
	if ok {
		e.metrics.CoinTossed()
	}
	return parity, ok
}

func (e *Engine) verifyCoinShare(round consensus.RoundHash, author consensus.PeerIndex, share consensus.SignatureShare) bool {
	if e.coinState == nil {
		return false
	}
	for _, p := range e.election.Voters {
		for r := 0; r < maxRoundScan; r++ {
			if e.coinState.RoundHash(p, r) == round {
				return e.coinState.VerifyShare(p, r, int(author), share)
			}
		}
	}
	return false
}

// maxRoundScan bounds how many rounds verifyCoinShare will generate
// per voter while hunting for the (voter, round) pair a bare RoundHash
// corresponds to; a live meta-election practically never needs more
// than a handful of binary-agreement rounds to decide.
const maxRoundScan = 64

func (e *Engine) verifyDkgMessage(payload []byte) (isPart bool, ok bool) {
	h := sha256.Sum256(payload)
	out, found := e.pendingDkgOutcome[h]
	if !found {
		return false, false
	}
	return out.isPart, out.ok
}

// dispatchDkgMessage runs payload through the relevant open session
// (if any) on behalf of creator, returning whether it was
// cryptographically valid and whether it was a Part (vs. an Ack). It
// is called exactly once per DkgMessage vote, at the moment the event
// carrying it is ingested, and its outcome is cached so the
// malice.Checker's verifyDkgMessage hook (fired moments later by
// checker.Run on the same event) can consult it without re-processing
// the deal/response a second time — Pedersen DKG processing is not
// idempotent.
func (e *Engine) dispatchDkgMessage(creator consensus.PeerIndex, payload []byte) (ok, isPart bool) {
	env, err := dkg.Unmarshal(payload)
	if err != nil {
		return false, false
	}
	sess, exists := e.sessions[env.BlockNumber]
	if !exists {
		// The session isn't open locally yet (its opening block
		// hasn't been processed here); defer judgment rather than
		// accuse a peer we can't yet check.
		return true, env.IsPart
	}
	if env.IsPart {
		if err := sess.sess.HandlePart(int(creator), env.Part); err != nil {
			return false, true
		}
		return true, true
	}
	if err := sess.sess.HandleAck(int(creator), env.Ack); err != nil {
		return false, false
	}
	return true, false
}

func (e *Engine) insertOwn(ev *graph.Event) error {
	idx, forkDetected, err := e.graph.Insert(ev)
	if err != nil {
		return fmt.Errorf("engine: insert own event: %w", err)
	}
	if forkDetected {
		return parsecerrors.New(parsecerrors.Logic, "engine: our own event forked against our own history")
	}
	e.peers.AddOwnEvent(ev.Creator, idx)
	e.processEvent(ev, false)
	return nil
}
