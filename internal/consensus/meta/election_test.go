package meta

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/crypto/idkeys"
)

func mustSecretID(t *testing.T, name string) consensus.SecretId {
	t.Helper()
	id, err := idkeys.GenerateSecretId(name)
	require.NoError(t, err)
	return id
}

func noCoin(consensus.PeerIndex, int) (bool, bool) { return false, false }

func neverConsensused(observation.Hash) bool { return false }

func TestElection_AddMetaEvent_InterestingContentOnOpaqueVote(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	el := New([]consensus.PeerIndex{0}, observation.Single)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	_, _, err := g.Insert(a0)
	require.NoError(t, err)
	el.AddMetaEvent(g, a0, nil, false, neverConsensused, noCoin)

	vote := graph.Vote{Observation: observation.Opaque([]byte(`{"n":1}`))}
	a1 := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, vote), a0.IndexByCreator)
	_, _, err = g.Insert(a1)
	require.NoError(t, err)

	me := el.AddMetaEvent(g, a1, a0, true, neverConsensused, noCoin)
	require.Len(t, me.InterestingContent, 1)
	assert := require.New(t)
	assert.Equal(observation.Single, me.InterestingContent[0].Mode)

	// A single voter always decides immediately in round 0.
	_, ok := el.Decide(a1)
	assert.True(ok)
}

func TestElection_Decide_FalseUntilEveryVoterHasTerminalDecision(t *testing.T) {
	g := graph.New(nil)
	alice := mustSecretID(t, "alice")
	bob := mustSecretID(t, "bob")
	el := New([]consensus.PeerIndex{0, 1}, observation.Single)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	b0 := graph.NewEvent(bob, 1, graph.NewInitial(), -1)
	_, _, err := g.Insert(a0)
	require.NoError(t, err)
	_, _, err = g.Insert(b0)
	require.NoError(t, err)

	el.AddMetaEvent(g, a0, nil, false, neverConsensused, noCoin)
	me := el.AddMetaEvent(g, b0, nil, false, neverConsensused, noCoin)

	_, ok := el.Decide(b0)
	require.False(t, ok)
	require.Len(t, me.MetaVotes, 2)
}
