package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/crypto/idkeys"
)

func mustSecretID(t *testing.T, name string) consensus.SecretId {
	t.Helper()
	id, err := idkeys.GenerateSecretId(name)
	require.NoError(t, err)
	return id
}

func insertInitial(t *testing.T, g *Graph, id consensus.SecretId, creator consensus.PeerIndex) *Event {
	t.Helper()
	e := NewEvent(id, creator, NewInitial(), -1)
	_, forked, err := g.Insert(e)
	require.NoError(t, err)
	require.False(t, forked)
	return e
}

func TestGraph_InsertIdempotent(t *testing.T) {
	g := New(nil)
	alice := mustSecretID(t, "alice")
	e := insertInitial(t, g, alice, 0)

	idx, forked, err := g.Insert(e)
	require.NoError(t, err)
	assert.False(t, forked)
	assert.Equal(t, e.TopologicalIndex, idx)
	assert.Equal(t, 1, g.Len())
}

func TestGraph_InsertRejectsUnknownSelfParent(t *testing.T) {
	g := New(nil)
	alice := mustSecretID(t, "alice")
	ghost := Hash{0xAA}
	e := NewEvent(alice, 0, NewRequest(ghost, Hash{}), 0)

	_, _, err := g.Insert(e)
	assert.Error(t, err)
}

func TestGraph_SelfParentChainAndAncestors(t *testing.T) {
	g := New(nil)
	alice := mustSecretID(t, "alice")
	e0 := insertInitial(t, g, alice, 0)

	vote := Vote{Observation: observation.Opaque([]byte(`{"hello":"world"}`))}
	e1 := NewEvent(alice, 0, NewObservation(e0.Hash, vote), e0.IndexByCreator)
	_, forked, err := g.Insert(e1)
	require.NoError(t, err)
	assert.False(t, forked)

	sp, ok := g.SelfParent(e1)
	require.True(t, ok)
	assert.Equal(t, e0.Hash, sp.Hash)

	ancestors := g.Ancestors(e1)
	require.Len(t, ancestors, 2)
	assert.Equal(t, e1.Hash, ancestors[0].Hash)
	assert.Equal(t, e0.Hash, ancestors[1].Hash)

	assert.True(t, g.IsDescendant(e1, e0))
	assert.True(t, g.Sees(e1, e0))
	assert.False(t, g.IsDescendant(e0, e1))
}

func TestGraph_GossipExchangeProducesOtherParent(t *testing.T) {
	g := New(nil)
	alice := mustSecretID(t, "alice")
	bob := mustSecretID(t, "bob")

	aliceE0 := insertInitial(t, g, alice, 0)
	bobE0 := insertInitial(t, g, bob, 1)

	// Bob gossips to Alice: Alice creates a Request event citing Bob's tip.
	req := NewEvent(alice, 0, NewRequest(aliceE0.Hash, bobE0.Hash), aliceE0.IndexByCreator)
	_, forked, err := g.Insert(req)
	require.NoError(t, err)
	assert.False(t, forked)

	assert.Equal(t, req.IndexByCreator, req.LastAncestors[0])
	assert.Equal(t, 0, req.LastAncestors[1])
	assert.True(t, g.Sees(req, aliceE0))
	assert.True(t, g.Sees(req, bobE0))
}

func TestGraph_ForkDetection(t *testing.T) {
	g := New(nil)
	alice := mustSecretID(t, "alice")
	e0 := insertInitial(t, g, alice, 0)

	branchA := NewEvent(alice, 0, NewObservation(e0.Hash, Vote{Observation: observation.Opaque([]byte("a"))}), e0.IndexByCreator)
	branchB := NewEvent(alice, 0, NewObservation(e0.Hash, Vote{Observation: observation.Opaque([]byte("b"))}), e0.IndexByCreator)

	_, forkedA, err := g.Insert(branchA)
	require.NoError(t, err)
	assert.False(t, forkedA)

	_, forkedB, err := g.Insert(branchB)
	require.NoError(t, err)
	assert.True(t, forkedB)
	assert.True(t, g.HasForked(0))
	assert.True(t, branchB.SeesForkOn(0))
}

func TestGraph_StronglySeesRequiresSupermajority(t *testing.T) {
	// Strongly-seeing y requires events authored by a supermajority of
	// distinct peers, each independently descending from y - merely
	// citing other peers' tips as other_parents is not enough unless
	// those peers go on to author events of their own that do so.
	g := New(nil)
	a := mustSecretID(t, "a")
	b := mustSecretID(t, "b")
	c := mustSecretID(t, "c")
	d := mustSecretID(t, "d")

	a0 := insertInitial(t, g, a, 0)
	b0 := insertInitial(t, g, b, 1)
	insertInitial(t, g, c, 2)
	d0 := insertInitial(t, g, d, 3)

	a1 := NewEvent(a, 0, NewRequest(a0.Hash, b0.Hash), a0.IndexByCreator)
	_, _, err := g.Insert(a1)
	require.NoError(t, err)

	b1 := NewEvent(b, 1, NewResponse(b0.Hash, a1.Hash), b0.IndexByCreator)
	_, _, err = g.Insert(b1)
	require.NoError(t, err)

	d1 := NewEvent(d, 3, NewResponse(d0.Hash, b1.Hash), d0.IndexByCreator)
	_, _, err = g.Insert(d1)
	require.NoError(t, err)

	a2 := NewEvent(a, 0, NewResponse(a1.Hash, d1.Hash), a1.IndexByCreator)
	_, _, err = g.Insert(a2)
	require.NoError(t, err)

	// a2's ancestry carries independently-authored events from a, b,
	// and d that all descend from a0, but none from c: 3 of 4 peers,
	// a strict supermajority.
	assert.True(t, g.StronglySees(a2, a0, 4))
	assert.False(t, g.StronglySees(a2, a0, 5))
}
