package malice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/consensus/peerlist"
	"github.com/ruvnet/parsec/internal/crypto/idkeys"
	parsecerrors "github.com/ruvnet/parsec/internal/errors"
)

func mustSecretID(t *testing.T, name string) consensus.SecretId {
	t.Helper()
	id, err := idkeys.GenerateSecretId(name)
	require.NoError(t, err)
	return id
}

func insert(t *testing.T, g *graph.Graph, e *graph.Event) consensus.EventIndex {
	t.Helper()
	idx, _, err := g.Insert(e)
	require.NoError(t, err)
	return idx
}

func voteOpaque(payload string) graph.Vote {
	return graph.Vote{Observation: observation.Opaque([]byte(payload))}
}

func TestChecker_PreInsertCheck_RejectsSelfParentByDifferentCreator(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	bob := mustSecretID(t, "bob")
	c := NewChecker(nil, nil, nil)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	insert(t, g, a0)

	forged := graph.NewEvent(bob, 1, graph.NewObservation(a0.Hash, voteOpaque("x")), 0)

	err := c.PreInsertCheck(g, forged)
	require.Error(t, err)
	require.True(t, parsecerrors.Is(err, parsecerrors.InvalidEvent))
}

func TestChecker_PreInsertCheck_RejectsOtherParentBySameCreator(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	c := NewChecker(nil, nil, nil)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	insert(t, g, a0)

	forged := graph.NewEvent(alice, 0, graph.NewRequest(a0.Hash, a0.Hash), a0.IndexByCreator)
	err := c.PreInsertCheck(g, forged)
	require.Error(t, err)
	require.True(t, parsecerrors.Is(err, parsecerrors.InvalidEvent))
}

func TestChecker_PreInsertCheck_AllowsOrdinaryEvent(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	c := NewChecker(nil, nil, nil)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	insert(t, g, a0)
	a1 := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, voteOpaque("x")), a0.IndexByCreator)
	require.NoError(t, c.PreInsertCheck(g, a1))
}

func TestChecker_Run_DetectsForkOnlyWhenForkDetectedTrue(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	c := NewChecker(nil, nil, nil)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	insert(t, g, a0)

	a1 := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, voteOpaque("x")), a0.IndexByCreator)
	_, fork1, err := g.Insert(a1)
	require.NoError(t, err)
	require.False(t, fork1)
	require.Empty(t, c.Run(g, a1, fork1))

	a1fork := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, voteOpaque("y")), a0.IndexByCreator)
	_, fork2, err := g.Insert(a1fork)
	require.NoError(t, err)
	require.True(t, fork2)

	accusations := c.Run(g, a1fork, fork2)
	require.Len(t, accusations, 1)
	require.Equal(t, consensus.PeerIndex(0), accusations[0].Offender)
	require.Equal(t, observation.MaliceFork, accusations[0].Malice.Kind)
}

func TestChecker_Run_DetectsDuplicateVoteOnlyOnce(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	c := NewChecker(nil, nil, nil)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	insert(t, g, a0)

	a1 := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, voteOpaque("p")), a0.IndexByCreator)
	_, fork1, err := g.Insert(a1)
	require.NoError(t, err)
	require.Empty(t, c.Run(g, a1, fork1))

	a2 := graph.NewEvent(alice, 0, graph.NewObservation(a1.Hash, voteOpaque("p")), a1.IndexByCreator)
	_, fork2, err := g.Insert(a2)
	require.NoError(t, err)
	accusations := c.Run(g, a2, fork2)
	require.Len(t, accusations, 1)
	require.Equal(t, observation.MaliceDuplicateVote, accusations[0].Malice.Kind)

	a3 := graph.NewEvent(alice, 0, graph.NewObservation(a2.Hash, voteOpaque("p")), a2.IndexByCreator)
	_, fork3, err := g.Insert(a3)
	require.NoError(t, err)
	require.Empty(t, c.Run(g, a3, fork3))
}

func TestChecker_Run_DetectsInvalidAccusationWithoutConfirmedEvidence(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	c := NewChecker(nil, nil, nil)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	insert(t, g, a0)

	fabricated := observation.Malice{
		Kind:     observation.MaliceFork,
		Evidence: map[string]interface{}{"event_hash": fullHex(graph.Hash{0xAB})},
	}
	a1 := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, graph.Vote{Observation: observation.Accuse("bob", fabricated)}), a0.IndexByCreator)
	_, forkDetected, err := g.Insert(a1)
	require.NoError(t, err)

	accusations := c.Run(g, a1, forkDetected)
	require.Len(t, accusations, 1)
	require.Equal(t, observation.MaliceInvalidAccusation, accusations[0].Malice.Kind)
}

func TestChecker_Run_AllowsAccusationWithConfirmedEvidence(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	bob := mustSecretID(t, "bob")
	c := NewChecker(nil, nil, nil)

	b0 := graph.NewEvent(bob, 1, graph.NewInitial(), -1)
	insert(t, g, b0)
	b1 := graph.NewEvent(bob, 1, graph.NewObservation(b0.Hash, voteOpaque("x")), b0.IndexByCreator)
	_, fork1, err := g.Insert(b1)
	require.NoError(t, err)
	require.Empty(t, c.Run(g, b1, fork1))

	b1fork := graph.NewEvent(bob, 1, graph.NewObservation(b0.Hash, voteOpaque("y")), b0.IndexByCreator)
	_, fork2, err := g.Insert(b1fork)
	require.NoError(t, err)
	require.Len(t, c.Run(g, b1fork, fork2), 1)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	insert(t, g, a0)
	realMalice := observation.Malice{
		Kind:     observation.MaliceFork,
		Evidence: map[string]interface{}{"event_hash": fullHex(b1fork.Hash)},
	}
	a1 := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, graph.Vote{Observation: observation.Accuse("bob", realMalice)}), a0.IndexByCreator)
	_, forkA, err := g.Insert(a1)
	require.NoError(t, err)

	accusations := c.Run(g, a1, forkA)
	require.Empty(t, accusations)
}

func TestChecker_AccompliceCheck_AccusesSilentWitness(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	bob := mustSecretID(t, "bob")
	c := NewChecker(nil, nil, nil)

	peers := peerlist.New(alice.PublicId())
	bobIdx := peers.AddPeer(bob.PublicId(), peerlist.Vote|peerlist.Send|peerlist.Recv)
	require.Equal(t, consensus.PeerIndex(1), bobIdx)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	idx := insert(t, g, a0)
	peers.AddOwnEvent(0, idx)

	a1 := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, voteOpaque("x")), a0.IndexByCreator)
	idx, fork1, err := g.Insert(a1)
	require.NoError(t, err)
	peers.AddOwnEvent(0, idx)
	require.Empty(t, c.Run(g, a1, fork1))

	a1fork := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, voteOpaque("y")), a0.IndexByCreator)
	idx, fork2, err := g.Insert(a1fork)
	require.NoError(t, err)
	peers.AddOwnEvent(0, idx)
	require.True(t, fork2)
	require.Len(t, c.Run(g, a1fork, fork2), 1)

	b0 := graph.NewEvent(bob, 1, graph.NewInitial(), -1)
	idx = insert(t, g, b0)
	peers.AddOwnEvent(1, idx)

	bobReq := graph.NewEvent(bob, 1, graph.NewRequest(b0.Hash, a1fork.Hash), b0.IndexByCreator)
	idx, forkB, err := g.Insert(bobReq)
	require.NoError(t, err)
	peers.AddOwnEvent(1, idx)
	require.Empty(t, c.Run(g, bobReq, forkB))

	accusations := c.AccompliceCheck(g, peers, bobReq)
	require.Len(t, accusations, 1)
	require.Equal(t, consensus.PeerIndex(1), accusations[0].Offender)
	require.Equal(t, observation.MaliceAccomplice, accusations[0].Malice.Kind)

	require.Empty(t, c.AccompliceCheck(g, peers, bobReq))
}
