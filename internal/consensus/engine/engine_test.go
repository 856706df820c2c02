package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/crypto/idkeys"
	"github.com/ruvnet/parsec/internal/crypto/threshold"
)

func identityOf(raw []byte) (consensus.PublicId, error) {
	return idkeys.UnmarshalPublicId(raw)
}

// coinKeys builds an (n/3+1)-of-n threshold key set good enough
// to exercise the engine's common-coin wiring in tests without a real
// DKG round.
func coinKeys(t *testing.T, n int) (threshold.PublicKeySet, []threshold.SecretKeyShare) {
	t.Helper()
	thresholdT := n / 3
	sks, err := threshold.NewSecretKeySet(thresholdT, n, nil)
	require.NoError(t, err)
	shares := make([]threshold.SecretKeyShare, n)
	for i := 0; i < n; i++ {
		shares[i] = sks.SecretKeyShare(i)
	}
	return sks.PublicKeys(), shares
}

func newTestSecretID(t *testing.T, name string) consensus.SecretId {
	t.Helper()
	id, err := idkeys.GenerateSecretId(name)
	require.NoError(t, err)
	return id
}

func TestFromGenesisSingleFounder(t *testing.T) {
	secretID := newTestSecretID(t, "alice")
	pub, shares := coinKeys(t, 1)

	e, err := FromGenesis(secretID, []consensus.PublicId{secretID.PublicId()}, Config{
		CoinPublic: &pub,
		CoinSecret: &shares[0],
		IdentityOf: identityOf,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, e.peers.VoterCount())
	// Initial event + our own Genesis vote.
	assert.Equal(t, 2, e.graph.Len())
}

func TestFromGenesisRejectsNonMember(t *testing.T) {
	secretID := newTestSecretID(t, "alice")
	outsider := newTestSecretID(t, "mallory")
	pub, shares := coinKeys(t, 1)

	_, err := FromGenesis(secretID, []consensus.PublicId{outsider.PublicId()}, Config{
		CoinPublic: &pub,
		CoinSecret: &shares[0],
		IdentityOf: identityOf,
	})
	require.Error(t, err)
}

func TestVoteForRejectsDuplicate(t *testing.T) {
	secretID := newTestSecretID(t, "alice")
	pub, shares := coinKeys(t, 1)

	e, err := FromGenesis(secretID, []consensus.PublicId{secretID.PublicId()}, Config{
		CoinPublic: &pub,
		CoinSecret: &shares[0],
		IdentityOf: identityOf,
	})
	require.NoError(t, err)

	obs := observation.Opaque([]byte("hello"))
	require.NoError(t, e.VoteFor(obs))

	err = e.VoteFor(obs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already voted")
}

func TestFromExistingJoinsWithoutCastingGenesisVote(t *testing.T) {
	founder := newTestSecretID(t, "alice")
	joiner := newTestSecretID(t, "bob")
	pub, shares := coinKeys(t, 1)

	section := []consensus.PublicId{founder.PublicId(), joiner.PublicId()}
	e, err := FromExisting(joiner, []consensus.PublicId{founder.PublicId()}, section, Config{
		CoinPublic: &pub,
		CoinSecret: &shares[0],
		IdentityOf: identityOf,
	})
	require.NoError(t, err)

	// Only the Initial event; unlike FromGenesis, a joining peer casts
	// no Genesis vote of its own (spec §6 from_existing).
	assert.Equal(t, 1, e.graph.Len())
}

// TestGossipRoundTrip exercises CreateGossip/HandleRequest/
// HandleResponse between two founding peers, each authoring its own
// Initial + Genesis events locally and then learning the other's
// through a single request/response round.
func TestGossipRoundTrip(t *testing.T) {
	aliceID := newTestSecretID(t, "alice")
	bobID := newTestSecretID(t, "bob")
	group := []consensus.PublicId{aliceID.PublicId(), bobID.PublicId()}
	pub, shares := coinKeys(t, 2)

	alice, err := FromGenesis(aliceID, group, Config{
		CoinPublic: &pub,
		CoinSecret: &shares[0],
		IdentityOf: identityOf,
	})
	require.NoError(t, err)

	bob, err := FromGenesis(bobID, group, Config{
		CoinPublic: &pub,
		CoinSecret: &shares[1],
		IdentityOf: identityOf,
	})
	require.NoError(t, err)

	require.Equal(t, 2, alice.graph.Len())
	require.Equal(t, 2, bob.graph.Len())

	bobIdxOnAlice, ok := alice.peers.ByID(bobID.PublicId())
	require.True(t, ok)

	req, err := alice.CreateGossip(bobIdxOnAlice.Index)
	require.NoError(t, err)
	assert.Len(t, req.PackedEvents, 2)

	resp, err := bob.HandleRequest(aliceID.PublicId(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, bob.graph.Len())

	require.NoError(t, alice.HandleResponse(bobID.PublicId(), resp))
	assert.Equal(t, 4, alice.graph.Len())
}
