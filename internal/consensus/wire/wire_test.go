package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/consensus/graph"
	"github.com/ruvnet/parsec/internal/consensus/observation"
	"github.com/ruvnet/parsec/internal/crypto/idkeys"
)

func identityOf(raw []byte) (consensus.PublicId, error) {
	return idkeys.UnmarshalPublicId(raw)
}

func TestPackUnpack_RoundTrips(t *testing.T) {
	alice, err := idkeys.GenerateSecretId("alice")
	require.NoError(t, err)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	a1 := graph.NewEvent(alice, 0, graph.NewObservation(a0.Hash, graph.Vote{
		Observation: observation.Opaque([]byte("hello")),
	}), a0.IndexByCreator)

	packed, err := Pack(a1)
	require.NoError(t, err)

	unpacked, err := Unpack(packed, identityOf)
	require.NoError(t, err)
	require.True(t, unpacked.CreatorID.Equal(alice.PublicId()))
	require.Equal(t, a1.Hash, unpacked.Hash)
	require.Equal(t, a1.Cause.Kind, unpacked.Cause.Kind)
	require.Equal(t, a1.Cause.Vote.Observation.Payload, unpacked.Cause.Vote.Observation.Payload)
}

func TestUnpack_RejectsTamperedCause(t *testing.T) {
	alice, err := idkeys.GenerateSecretId("alice")
	require.NoError(t, err)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	packed, err := Pack(a0)
	require.NoError(t, err)

	packed.Cause.SelfParent = graph.Hash{0x01}

	_, err = Unpack(packed, identityOf)
	require.Error(t, err)
}

func TestRequestResponse_MarshalRoundTrips(t *testing.T) {
	alice, err := idkeys.GenerateSecretId("alice")
	require.NoError(t, err)

	a0 := graph.NewEvent(alice, 0, graph.NewInitial(), -1)
	packed, err := Pack(a0)
	require.NoError(t, err)

	req := Request{PackedEvents: []PackedEvent{packed}}
	buf, err := MarshalRequest(req)
	require.NoError(t, err)

	decoded, err := UnmarshalRequest(buf)
	require.NoError(t, err)
	require.Len(t, decoded.PackedEvents, 1)
	require.Equal(t, packed.Hash, decoded.PackedEvents[0].Hash)

	resp := Response{PackedEvents: []PackedEvent{packed}}
	rbuf, err := MarshalResponse(resp)
	require.NoError(t, err)
	rdecoded, err := UnmarshalResponse(rbuf)
	require.NoError(t, err)
	require.Len(t, rdecoded.PackedEvents, 1)
}
