// Package threshold wraps go.dedis.ch/kyber's pairing-based threshold
// BLS signatures and Pedersen DKG behind the PublicKeySet/SecretKeySet
// /DKG collaborator interface spec §6 assumes is available externally.
package threshold

import (
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/pairing/bn256"
	"go.dedis.ch/kyber/v4/share"
	dkgpedersen "go.dedis.ch/kyber/v4/share/dkg/pedersen"
	"go.dedis.ch/kyber/v4/sign/tbls"
)

// Suite is the pairing suite used for every threshold operation in
// the section; all peers must agree on the same suite.
var Suite = bn256.NewSuiteG2()

// PublicKeyShare verifies a single peer's partial signature.
type PublicKeyShare struct {
	share *share.PubShare
}

// Verify checks that sig is author's valid partial signature over msg.
func (s PublicKeyShare) Verify(sig []byte, msg []byte) bool {
	if s.share == nil {
		return false
	}
	poly := share.NewPubPoly(Suite.G2(), Suite.G2().Point().Base(), []*share.PubShare{s.share})
	return tbls.Verify(Suite, poly.Commit(), msg, sig) == nil
}

// SecretKeyShare signs on behalf of a single peer's share of the
// section secret key.
type SecretKeyShare struct {
	share *share.PriShare
}

// Sign produces this peer's partial threshold signature over msg.
func (s SecretKeyShare) Sign(msg []byte) ([]byte, error) {
	if s.share == nil {
		return nil, fmt.Errorf("threshold: no secret share held")
	}
	return tbls.Sign(Suite, s.share, msg)
}

// PublicKeySet is the section-wide public material: the commitment
// polynomial plus per-peer verification shares.
type PublicKeySet struct {
	threshold int
	public    *share.PubPoly
}

// Threshold returns T such that T+1 valid shares are required to
// combine a signature.
func (pks PublicKeySet) Threshold() int { return pks.threshold }

// PublicKeyShare returns the verification key for peer index idx
// (0-based, matching PeerIndex order at DKG time).
func (pks PublicKeySet) PublicKeyShare(idx int) PublicKeyShare {
	return PublicKeyShare{share: pks.public.Eval(idx)}
}

// CombineSignatures combines threshold+1 (or more) verified partial
// signatures, keyed by peer index, into a section signature over msg.
func (pks PublicKeySet) CombineSignatures(msg []byte, sigs map[int][]byte) ([]byte, error) {
	ordered := make([][]byte, 0, len(sigs))
	indices := make([]int, 0, len(sigs))
	for i := range sigs {
		indices = append(indices, i)
	}
	sortInts(indices)
	for _, i := range indices {
		ordered = append(ordered, sigs[i])
	}
	return tbls.Recover(Suite, pks.public, msg, ordered, pks.threshold+1, len(sigs))
}

// SecretKeySet is only used to bootstrap the genesis section before
// any DKG round has completed; every subsequent key set comes from
// KeyGen.Generate.
type SecretKeySet struct {
	threshold int
	priv      *share.PriPoly
	pub       *share.PubPoly
}

// NewSecretKeySet generates a fresh random secret polynomial of the
// given threshold for n genesis participants.
func NewSecretKeySet(thresholdT, n int, rnd kyber.XOFFactory) (SecretKeySet, error) {
	priv := share.NewPriPoly(Suite.G2(), thresholdT+1, nil, Suite.RandomStream())
	pub := priv.Commit(Suite.G2().Point().Base())
	return SecretKeySet{threshold: thresholdT, priv: priv, pub: pub}, nil
}

// PublicKeys returns the public half of this secret key set.
func (sks SecretKeySet) PublicKeys() PublicKeySet {
	return PublicKeySet{threshold: sks.threshold, public: sks.pub}
}

// SecretKeyShare derives the secret share for peer index idx.
func (sks SecretKeySet) SecretKeyShare(idx int) SecretKeyShare {
	shares := sks.priv.Shares(idx + 1)
	return SecretKeyShare{share: shares[idx]}
}

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

// KeyGen drives one Pedersen DKG session producing a fresh
// (PublicKeySet, SecretKeyShare) pair. It wraps
// go.dedis.ch/kyber/v4/share/dkg/pedersen, whose Deal/Response
// terminology maps onto spec §4.11's Part/Ack: a Part is the bundle of
// Deals this participant sends out; an Ack is a Response to a peer's
// Part.
type KeyGen struct {
	inner        *dkgpedersen.DistKeyGenerator
	participants []kyber.Point
	threshold    int
	ourIdx       int
}

// Part is broadcast by a participant at DKG session start: one Deal
// per recipient.
type Part struct {
	Deals map[int]*dkgpedersen.Deal
}

// Ack is a participant's acknowledgement of a received Part.
type Ack struct {
	Response *dkgpedersen.Response
}

// PartOutcome is the result of processing a peer's Part.
type PartOutcome struct {
	// Valid holds the Ack to broadcast in response, if the Part
	// passed verification.
	Valid *Ack
	// Fault is non-nil when the Part was cryptographically invalid
	// and should drive an InvalidDkgPart accusation.
	Fault error
}

// AckOutcome is the result of processing a peer's Ack.
type AckOutcome struct {
	// Fault is non-nil when the Ack was cryptographically invalid
	// and should drive an InvalidDkgAck accusation.
	Fault error
}

// NewKeyGen starts a DKG session for this participant among
// participants (in PeerIndex order) with secret longterm key ours.
func NewKeyGen(ours kyber.Scalar, participants []kyber.Point, thresholdT int) (*KeyGen, error) {
	inner, err := dkgpedersen.NewDistKeyGenerator(Suite, ours, participants, thresholdT+1)
	if err != nil {
		return nil, fmt.Errorf("threshold: start dkg: %w", err)
	}
	ourPub := Suite.G2().Point().Mul(ours, nil)
	ourIdx := -1
	for i, p := range participants {
		if p.Equal(ourPub) {
			ourIdx = i
			break
		}
	}
	if ourIdx < 0 {
		return nil, fmt.Errorf("threshold: start dkg: our public key not found among participants")
	}
	return &KeyGen{inner: inner, participants: participants, threshold: thresholdT, ourIdx: ourIdx}, nil
}

// OurPart produces the Part this participant broadcasts at session
// start: one Deal per recipient, keyed by recipient index.
func (k *KeyGen) OurPart() (*Part, error) {
	deals, err := k.inner.Deals()
	if err != nil {
		return nil, fmt.Errorf("threshold: produce part: %w", err)
	}
	return &Part{Deals: deals}, nil
}

// HandlePart processes the Deal addressed to us within src's Part.
// srcIdx identifies the Part's author for fault reporting; the Deal
// itself is looked up by our own recipient index, since Part.Deals is
// keyed by recipient, not sender.
func (k *KeyGen) HandlePart(srcIdx int, part *Part) PartOutcome {
	deal, ok := part.Deals[k.ourIdx]
	if !ok {
		return PartOutcome{Fault: fmt.Errorf("threshold: part from %d carries no deal addressed to us", srcIdx)}
	}
	resp, err := k.inner.ProcessDeal(deal)
	if err != nil {
		return PartOutcome{Fault: err}
	}
	return PartOutcome{Valid: &Ack{Response: resp}}
}

// HandleAck processes an Ack produced by another participant.
func (k *KeyGen) HandleAck(ack *Ack) AckOutcome {
	justification, err := k.inner.ProcessResponse(ack.Response)
	if err != nil {
		return AckOutcome{Fault: err}
	}
	if justification != nil {
		return AckOutcome{Fault: fmt.Errorf("threshold: ack required justification, treating as fault")}
	}
	return AckOutcome{}
}

// IsReady reports whether this session has certified and a key set
// can be derived.
func (k *KeyGen) IsReady() bool {
	return k.inner.Certified()
}

// Generate derives the fresh section PublicKeySet and, if we are a
// participant, our SecretKeyShare.
func (k *KeyGen) Generate() (PublicKeySet, *SecretKeyShare, error) {
	dks, err := k.inner.DistKeyShare()
	if err != nil {
		return PublicKeySet{}, nil, fmt.Errorf("threshold: derive key share: %w", err)
	}
	pub := share.NewPubPoly(Suite.G2(), Suite.G2().Point().Base(), dks.Commitments())
	pks := PublicKeySet{threshold: k.threshold, public: pub}
	sks := SecretKeyShare{share: dks.PriShare()}
	return pks, &sks, nil
}
