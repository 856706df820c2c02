package block

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/crypto/idkeys"
)

func secretID(t *testing.T, name string) consensus.SecretId {
	t.Helper()
	id, err := idkeys.GenerateSecretId(name)
	require.NoError(t, err)
	return id
}

func TestAssemble_SupermajorityRequiresMoreThanTwoThirds(t *testing.T) {
	g := graph.New(nil)
	store := observation.NewStore()

	payload := observation.Opaque([]byte("x"))
	store.Insert(payload, false)
	key := observation.SupermajorityKey(payload.Hash())

	names := []string{"a", "b", "c", "d"}
	for i, name := range names[:2] {
		id := secretID(t, name)
		init := graph.NewEvent(id, consensus.PeerIndex(i), graph.NewInitial(), -1)
		_, _, err := g.Insert(init)
		require.NoError(t, err)
		vote := graph.NewEvent(id, consensus.PeerIndex(i), graph.NewObservation(init.Hash, graph.Vote{Observation: payload}), init.IndexByCreator)
		_, _, err = g.Insert(vote)
		require.NoError(t, err)
	}

	// Only 2 of 4 voted: not yet > 2/3 of 4.
	_, ok := Assemble(g, store, 1, key, 4)
	require.False(t, ok)

	for i, name := range names[2:] {
		id := secretID(t, name)
		creatorIdx := consensus.PeerIndex(i + 2)
		init := graph.NewEvent(id, creatorIdx, graph.NewInitial(), -1)
		_, _, err := g.Insert(init)
		require.NoError(t, err)
		vote := graph.NewEvent(id, creatorIdx, graph.NewObservation(init.Hash, graph.Vote{Observation: payload}), init.IndexByCreator)
		_, _, err = g.Insert(vote)
		require.NoError(t, err)
	}

	blk, ok := Assemble(g, store, 1, key, 4)
	require.True(t, ok)
	require.Equal(t, uint64(1), blk.Number)
	require.Len(t, blk.Proofs, 4)
	require.Equal(t, payload.Payload, blk.Payload.Payload)
}

func TestAssemble_SingleModeRequiresOneProof(t *testing.T) {
	g := graph.New(nil)
	store := observation.NewStore()

	dkgMsg := observation.DkgMsg([]byte("part-bytes"))
	store.Insert(dkgMsg, false)
	key := observation.SingleKey(dkgMsg.Hash(), 0)

	alice := secretID(t, "alice")
	init := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	_, _, err := g.Insert(init)
	require.NoError(t, err)

	_, ok := Assemble(g, store, 2, key, 4)
	require.False(t, ok)

	vote := graph.NewEvent(alice, 0, graph.NewObservation(init.Hash, graph.Vote{Observation: dkgMsg}), init.IndexByCreator)
	_, _, err = g.Insert(vote)
	require.NoError(t, err)

	blk, ok := Assemble(g, store, 2, key, 4)
	require.True(t, ok)
	require.Len(t, blk.Proofs, 1)
	require.Equal(t, consensus.PeerIndex(0), blk.Proofs[0].Creator)
}

func TestAssemble_SingleModeIgnoresOtherCreatorsVotingSamePayload(t *testing.T) {
	g := graph.New(nil)
	store := observation.NewStore()

	dkgMsg := observation.DkgMsg([]byte("part-bytes"))
	store.Insert(dkgMsg, false)
	key := observation.SingleKey(dkgMsg.Hash(), 0)

	alice := secretID(t, "alice")
	bob := secretID(t, "bob")

	aInit := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	insertOK(t, g, aInit)
	aVote := graph.NewEvent(alice, 0, graph.NewObservation(aInit.Hash, graph.Vote{Observation: dkgMsg}), aInit.IndexByCreator)
	insertOK(t, g, aVote)

	bInit := graph.NewEvent(bob, 1, graph.NewInitial(), -1)
	insertOK(t, g, bInit)
	bVote := graph.NewEvent(bob, 1, graph.NewObservation(bInit.Hash, graph.Vote{Observation: dkgMsg}), bInit.IndexByCreator)
	insertOK(t, g, bVote)

	blk, ok := Assemble(g, store, 3, key, 4)
	require.True(t, ok)
	require.Len(t, blk.Proofs, 1)
	require.Equal(t, consensus.PeerIndex(0), blk.Proofs[0].Creator)
}

func insertOK(t *testing.T, g *graph.Graph, e *graph.Event) {
	t.Helper()
	_, _, err := g.Insert(e)
	require.NoError(t, err)
}

func TestMembershipEffect(t *testing.T) {
	kind, id := MembershipEffect(observation.Add("E", nil))
	require.Equal(t, MembershipAdd, kind)
	require.Equal(t, "E", id)

	kind, id = MembershipEffect(observation.Remove("E", nil))
	require.Equal(t, MembershipRemove, kind)
	require.Equal(t, "E", id)

	kind, id = MembershipEffect(observation.Accuse("B", observation.Malice{Kind: observation.MaliceFork}))
	require.Equal(t, MembershipRemove, kind)
	require.Equal(t, "B", id)

	kind, _ = MembershipEffect(observation.Opaque([]byte("x")))
	require.Equal(t, NoMembershipChange, kind)
}
