package dkg

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/kyber/v4"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/crypto/threshold"
)

// keyPair returns a fresh longterm scalar/point pair on the section's
// pairing group.
func keyPair() (kyber.Scalar, kyber.Point) {
	sk := threshold.Suite.G2().Scalar().Pick(threshold.Suite.RandomStream())
	pk := threshold.Suite.G2().Point().Mul(sk, nil)
	return sk, pk
}

// TestSession_ThreePartyRoundTripCertifies drives a full 3-participant,
// threshold-1 DKG session to completion: every party broadcasts its
// Part, every recipient (including itself) processes the addressed
// Deal and broadcasts an Ack, every party consumes every Ack, and all
// three end up ready with matching PublicKeySets.
func TestSession_ThreePartyRoundTripCertifies(t *testing.T) {
	n := 3
	scalars := make([]kyber.Scalar, n)
	points := make([]kyber.Point, n)
	for i := 0; i < n; i++ {
		scalars[i], points[i] = keyPair()
	}

	participants := []consensus.PeerIndex{0, 1, 2}
	sessions := make([]*Session, n)
	for i := 0; i < n; i++ {
		s, err := NewSession(7, participants, i, scalars[i], points, 1)
		require.NoError(t, err)
		sessions[i] = s
	}

	// Round 1: every party produces its Part and round-trips it
	// through Marshal/Unmarshal, exercising the protobuf wire codec.
	parts := make([]Envelope, n)
	for i := 0; i < n; i++ {
		env, err := sessions[i].OurPart()
		require.NoError(t, err)
		require.True(t, env.IsPart)
		require.Equal(t, uint64(7), env.BlockNumber)

		buf, err := env.Marshal()
		require.NoError(t, err)
		decoded, err := Unmarshal(buf)
		require.NoError(t, err)
		require.True(t, decoded.IsPart)
		require.NotNil(t, decoded.Part)
		parts[i] = decoded
	}

	// Every party processes every Part, including its own (the
	// dealer's self-addressed deal is part of the standard pedersen
	// round), and collects the Acks it owes in response.
	for recipient := 0; recipient < n; recipient++ {
		for src := 0; src < n; src++ {
			err := sessions[recipient].HandlePart(src, parts[src].Part)
			require.NoErrorf(t, err, "recipient %d processing part from %d", recipient, src)
		}
	}

	// Each session now owes exactly one Ack per Part it processed.
	acksFrom := make([][]Envelope, n)
	for i := 0; i < n; i++ {
		acksFrom[i] = sessions[i].DrainPendingAcks()
		require.Len(t, acksFrom[i], n)
		for _, env := range acksFrom[i] {
			require.False(t, env.IsPart)
			require.NotNil(t, env.Ack)
			require.Equal(t, uint64(7), env.BlockNumber)
		}
		// Draining again yields nothing until more Parts arrive.
		require.Empty(t, sessions[i].DrainPendingAcks())
	}

	// Every party consumes every other party's Acks (self-acks
	// included, mirroring the self-deal above).
	for recipient := 0; recipient < n; recipient++ {
		for src := 0; src < n; src++ {
			for _, env := range acksFrom[src] {
				buf, err := env.Marshal()
				require.NoError(t, err)
				decoded, err := Unmarshal(buf)
				require.NoError(t, err)

				err = sessions[recipient].HandleAck(src, decoded.Ack)
				require.NoErrorf(t, err, "recipient %d processing ack from %d", recipient, src)
			}
		}
	}

	for i := 0; i < n; i++ {
		require.Truef(t, sessions[i].IsReady(), "session %d not ready", i)
	}

	pub0, secret0, err := sessions[0].Generate()
	require.NoError(t, err)
	require.NotNil(t, secret0)

	pub1, secret1, err := sessions[1].Generate()
	require.NoError(t, err)
	require.NotNil(t, secret1)

	// Independently-derived PublicKeySets from a certified round must
	// agree on participant 0's public key share.
	sig, err := secret0.Sign([]byte("dkg-smoke"))
	require.NoError(t, err)
	require.True(t, pub0.PublicKeyShare(0).Verify(sig, []byte("dkg-smoke")))
	require.True(t, pub1.PublicKeyShare(0).Verify(sig, []byte("dkg-smoke")))
}

// TestSession_HandlePartFaultsOnPartWithoutOurDeal feeds an empty Part
// (no deals at all) into a three-party session: the lookup of our own
// recipient index misses and the session reports a fault rather than
// a crash.
func TestSession_HandlePartFaultsOnPartWithoutOurDeal(t *testing.T) {
	aScalars := make([]kyber.Scalar, 3)
	aPoints := make([]kyber.Point, 3)
	for i := range aScalars {
		aScalars[i], aPoints[i] = keyPair()
	}
	session, err := NewSession(1, []consensus.PeerIndex{0, 1, 2}, 0, aScalars[0], aPoints, 1)
	require.NoError(t, err)

	foreign := Envelope{BlockNumber: 1, IsPart: true, Part: &threshold.Part{}}
	err = session.HandlePart(1, foreign.Part)
	require.Error(t, err)
}
