// Package idkeys provides the default PublicId/SecretId identity
// collaborator (spec §6) backed by ed25519 detached signatures.
package idkeys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/ruvnet/parsec/internal/consensus"
)

// PublicId identifies a peer by its ed25519 public key. Peers are
// totally ordered by the raw key bytes so that peer ordering is
// deterministic and identical across honest nodes.
type PublicId struct {
	name string
	key  ed25519.PublicKey
}

// NewPublicId wraps a raw ed25519 public key under a human-readable
// name used only for logging; consensus-relevant comparisons use the
// key bytes, never the name.
func NewPublicId(name string, key ed25519.PublicKey) PublicId {
	k := make(ed25519.PublicKey, len(key))
	copy(k, key)
	return PublicId{name: name, key: k}
}

func (p PublicId) String() string {
	if p.name != "" {
		return p.name
	}
	return hex.EncodeToString(p.key)[:12]
}

// Equal reports whether other names the same ed25519 key.
func (p PublicId) Equal(other consensus.PublicId) bool {
	o, ok := other.(PublicId)
	if !ok {
		return false
	}
	return bytes.Equal(p.key, o.key)
}

// Less gives the total order over PublicIds used for stable peer
// ordering (spec §4.3): lexicographic over the raw key bytes.
func (p PublicId) Less(other consensus.PublicId) bool {
	o, ok := other.(PublicId)
	if !ok {
		return p.String() < other.String()
	}
	return bytes.Compare(p.key, o.key) < 0
}

// Verify checks sig against msg using this identity's public key.
func (p PublicId) Verify(sig consensus.Signature, msg []byte) bool {
	if len(p.key) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(p.key, msg, sig)
}

// Key returns the raw ed25519 public key bytes.
func (p PublicId) Key() ed25519.PublicKey { return p.key }

// UnmarshalPublicId reconstructs a PublicId from the raw key bytes
// produced by MarshalBinary, the inverse used when an identity arrives
// over the wire (spec §6 PeerId) rather than from local key material.
// The reconstructed id carries no name; String() falls back to the
// truncated hex key.
func UnmarshalPublicId(raw []byte) (PublicId, error) {
	if len(raw) != ed25519.PublicKeySize {
		return PublicId{}, fmt.Errorf("idkeys: unmarshal public id: want %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return NewPublicId("", ed25519.PublicKey(raw)), nil
}

// MarshalBinary returns the raw ed25519 public key bytes, the
// canonical encoding used when hashing/signing events that reference
// this identity (spec §6).
func (p PublicId) MarshalBinary() ([]byte, error) {
	out := make([]byte, len(p.key))
	copy(out, p.key)
	return out, nil
}

// SecretId owns an ed25519 private key and signs on behalf of the
// matching PublicId.
type SecretId struct {
	id  PublicId
	key ed25519.PrivateKey
}

// GenerateSecretId generates a fresh ed25519 keypair for name.
func GenerateSecretId(name string) (SecretId, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SecretId{}, fmt.Errorf("idkeys: generate key for %s: %w", name, err)
	}
	return SecretId{id: NewPublicId(name, pub), key: priv}, nil
}

// NewSecretId wraps an existing ed25519 private key.
func NewSecretId(name string, key ed25519.PrivateKey) SecretId {
	return SecretId{id: NewPublicId(name, key.Public().(ed25519.PublicKey)), key: key}
}

// PublicId returns the identity's public half.
func (s SecretId) PublicId() consensus.PublicId { return s.id }

// Sign produces a detached ed25519 signature over msg.
func (s SecretId) Sign(msg []byte) consensus.Signature {
	return consensus.Signature(ed25519.Sign(s.key, msg))
}
