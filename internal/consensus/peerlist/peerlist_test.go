package peerlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruvnet/parsec/internal/crypto/idkeys"
)

func TestByIDFindsWireReconstructedIdentity(t *testing.T) {
	us, err := idkeys.GenerateSecretId("us")
	require.NoError(t, err)
	other, err := idkeys.GenerateSecretId("other")
	require.NoError(t, err)

	l := New(us.PublicId())
	l.AddPeer(other.PublicId(), Vote|Send|Recv)

	raw, err := other.PublicId().MarshalBinary()
	require.NoError(t, err)
	reconstructed, err := idkeys.UnmarshalPublicId(raw)
	require.NoError(t, err)

	// A wire-reconstructed identity carries no display name, so its
	// String() differs from the locally-named original's — ByID must
	// still resolve it to the same peer.
	assert.NotEqual(t, other.PublicId().String(), reconstructed.String())

	p, ok := l.ByID(reconstructed)
	require.True(t, ok)
	assert.True(t, p.ID.Equal(other.PublicId()))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "none", State(0).String())
	assert.Equal(t, "vote", Vote.String())
	assert.Equal(t, "vote|send|recv", (Vote | Send | Recv).String())
}
