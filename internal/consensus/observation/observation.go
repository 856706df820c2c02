// Package observation implements the content-addressed payload
// dictionary of spec §4.2: every Observation ever voted for is stored
// once, keyed by an ObservationKey that also encodes how many votes
// are required before it can be decided.
package observation

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ruvnet/parsec/internal/consensus"
)

// Hash is a content hash of a serialized Observation.
type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:8]) }

// Less gives the deterministic tie-break order used at decision time
// (spec §4.8 step 2: "sort by hash").
func (h Hash) Less(other Hash) bool {
	for i := range h {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

// Kind discriminates the Observation payload variants of spec §3.
type Kind int

const (
	KindGenesis Kind = iota
	KindAdd
	KindRemove
	KindAccusation
	KindOpaquePayload
	KindDkgMessage
)

// MaliceKind enumerates the provable/unprovable accusation kinds of
// spec §4.12.
type MaliceKind string

const (
	MaliceIncorrectGenesis          MaliceKind = "incorrect_genesis"
	MaliceUnexpectedGenesis         MaliceKind = "unexpected_genesis"
	MaliceMissingGenesis            MaliceKind = "missing_genesis"
	MaliceDuplicateVote             MaliceKind = "duplicate_vote"
	MaliceFork                      MaliceKind = "fork"
	MaliceInvalidAccusation         MaliceKind = "invalid_accusation"
	MaliceOtherParentBySameCreator  MaliceKind = "other_parent_by_same_creator"
	MaliceSelfParentByDifferentCreator MaliceKind = "self_parent_by_different_creator"
	MaliceInvalidCoinShare          MaliceKind = "invalid_coin_share"
	MaliceInvalidDkgPart            MaliceKind = "invalid_dkg_part"
	MaliceInvalidDkgAck             MaliceKind = "invalid_dkg_ack"
	MaliceAccomplice                MaliceKind = "accomplice"
	MaliceSpam                      MaliceKind = "spam"
)

// Malice describes a single accusation payload (spec §3 Observation
// variant Accusation carries one of these).
type Malice struct {
	Kind     MaliceKind             `json:"kind"`
	Evidence map[string]interface{} `json:"evidence,omitempty"`
}

// Observation is the payload voted on (spec §3).
type Observation struct {
	Kind Kind `json:"kind"`

	// Genesis
	GenesisGroup []string    `json:"genesis_group,omitempty"`
	GenesisInfo  interface{} `json:"genesis_info,omitempty"`

	// Add / Remove
	PeerID   string      `json:"peer_id,omitempty"`
	PeerInfo interface{} `json:"peer_info,omitempty"`

	// Accusation
	Offender string  `json:"offender,omitempty"`
	Malice   *Malice `json:"malice,omitempty"`

	// OpaquePayload
	Payload json.RawMessage `json:"payload,omitempty"`

	// DkgMessage
	DkgMessage json.RawMessage `json:"dkg_message,omitempty"`
}

// Genesis builds a Genesis observation over a sorted, de-duplicated
// peer-id set.
func Genesis(group []string, info interface{}) Observation {
	sorted := append([]string(nil), group...)
	sort.Strings(sorted)
	deduped := sorted[:0]
	for _, id := range sorted {
		if len(deduped) == 0 || deduped[len(deduped)-1] != id {
			deduped = append(deduped, id)
		}
	}
	return Observation{Kind: KindGenesis, GenesisGroup: deduped, GenesisInfo: info}
}

// Add builds an Add observation.
func Add(peerID string, info interface{}) Observation {
	return Observation{Kind: KindAdd, PeerID: peerID, PeerInfo: info}
}

// Remove builds a Remove observation.
func Remove(peerID string, info interface{}) Observation {
	return Observation{Kind: KindRemove, PeerID: peerID, PeerInfo: info}
}

// Accuse builds an Accusation observation.
func Accuse(offender string, malice Malice) Observation {
	return Observation{Kind: KindAccusation, Offender: offender, Malice: &malice}
}

// Opaque builds an OpaquePayload observation around an arbitrary
// application payload.
func Opaque(payload []byte) Observation {
	return Observation{Kind: KindOpaquePayload, Payload: append(json.RawMessage(nil), payload...)}
}

// DkgMsg builds a DkgMessage observation wrapping a Part/Ack envelope
// already serialized by internal/consensus/dkg.
func DkgMsg(msg []byte) Observation {
	return Observation{Kind: KindDkgMessage, DkgMessage: append(json.RawMessage(nil), msg...)}
}

// Hash computes the canonical content hash of o.
func (o Observation) Hash() Hash {
	data, err := json.Marshal(o)
	if err != nil {
		panic(fmt.Sprintf("observation: marshal for hash: %v", err))
	}
	return sha256.Sum256(data)
}

// ConsensusMode selects how many votes an ObservationKey requires
// before it can be decided (spec §4.2).
type ConsensusMode int

const (
	// Supermajority requires more than 2/3 of current voters.
	Supermajority ConsensusMode = iota
	// Single requires exactly one vote (opaque-in-Single-mode and DKG
	// messages).
	Single
)

// RequiresSupermajority reports whether kind always demands
// Supermajority mode regardless of the section's configured
// ConsensusMode for opaque payloads (spec §4.9: "non-opaque and
// non-DKG observations always require supermajority").
func (k Kind) RequiresSupermajority() bool {
	switch k {
	case KindOpaquePayload, KindDkgMessage:
		return false
	default:
		return true
	}
}

// Key selects an observation by payload hash plus (for Single mode)
// the creator that cast it, per spec §3.
type Key struct {
	Mode        ConsensusMode
	Hash        Hash
	CreatorIdx  consensus.PeerIndex // only meaningful when Mode == Single
}

func (k Key) String() string {
	if k.Mode == Single {
		return fmt.Sprintf("single(%s,%d)", k.Hash, k.CreatorIdx)
	}
	return fmt.Sprintf("supermajority(%s)", k.Hash)
}

// SupermajorityKey builds a Supermajority-mode key for hash.
func SupermajorityKey(hash Hash) Key { return Key{Mode: Supermajority, Hash: hash} }

// SingleKey builds a Single-mode key for (hash, creator).
func SingleKey(hash Hash, creator consensus.PeerIndex) Key {
	return Key{Mode: Single, Hash: hash, CreatorIdx: creator}
}

// ModeFor picks Supermajority or Single for a freshly-cast vote,
// honoring spec §4.9's "non-opaque and non-DKG always supermajority"
// rule and the section's configured opaque ConsensusMode otherwise.
func ModeFor(o Observation, opaqueMode ConsensusMode) ConsensusMode {
	if o.Kind.RequiresSupermajority() {
		return Supermajority
	}
	if o.Kind == KindDkgMessage {
		return Single
	}
	return opaqueMode
}

// Entry is the stored record for one observation (spec §4.2).
type Entry struct {
	Observation Observation
	Consensused bool
	CreatedByUs bool
}

// Store is the content-addressed observation dictionary.
type Store struct {
	byHash map[Hash]*Entry
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{byHash: make(map[Hash]*Entry)}
}

// Insert records o if its hash hasn't been seen before; returns the
// (possibly pre-existing) Entry and whether this call inserted it.
func (s *Store) Insert(o Observation, createdByUs bool) (*Entry, bool) {
	h := o.Hash()
	if e, ok := s.byHash[h]; ok {
		if createdByUs {
			e.CreatedByUs = true
		}
		return e, false
	}
	e := &Entry{Observation: o, CreatedByUs: createdByUs}
	s.byHash[h] = e
	return e, true
}

// Get looks up the entry for hash, if any.
func (s *Store) Get(hash Hash) (*Entry, bool) {
	e, ok := s.byHash[hash]
	return e, ok
}

// MarkConsensused flags hash's entry as consensused. It is a logic
// error to call this for a hash that was never inserted.
func (s *Store) MarkConsensused(hash Hash) {
	if e, ok := s.byHash[hash]; ok {
		e.Consensused = true
	}
}

// IsConsensused reports whether hash's observation has already been
// decided. Unknown hashes are not consensused.
func (s *Store) IsConsensused(hash Hash) bool {
	e, ok := s.byHash[hash]
	return ok && e.Consensused
}
