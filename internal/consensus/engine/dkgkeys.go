package engine

import (
	"encoding/base64"
	"fmt"

	"go.dedis.ch/kyber/v4"

	"github.com/ruvnet/parsec/internal/consensus"
	"github.com/ruvnet/parsec/internal/crypto/threshold"
)

// marshalPoint/unmarshalPoint move a long-term DKG public point in
// and out of the base64 strings an Observation's GenesisInfo/PeerInfo
// interface{} field carries over the wire (spec §4.11): kyber points
// don't implement encoding/json directly, so a string goes through
// Observation's existing generic encoding unchanged.
func marshalPoint(p kyber.Point) (string, error) {
	raw, err := p.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("engine: marshal dkg point: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func unmarshalPoint(s string) (kyber.Point, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("engine: unmarshal dkg point: %w", err)
	}
	p := threshold.Suite.G2().Point()
	if err := p.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("engine: unmarshal dkg point: %w", err)
	}
	return p, nil
}

// genesisDKGInfo builds the Genesis observation's GenesisInfo payload:
// one base64-encoded long-term DKG point per founding peer id, in the
// same sorted order as groupIDs, so every founding node can populate
// its dkgPoints table from whichever peer's Genesis vote is decided.
func (e *Engine) genesisDKGInfo(groupIDs []string) map[string]string {
	out := make(map[string]string, len(groupIDs))
	for _, id := range groupIDs {
		if pt, ok := e.dkgPoints[id]; ok {
			if s, err := marshalPoint(pt); err == nil {
				out[id] = s
			}
		}
	}
	return out
}

// decodeDKGInfo parses a GenesisInfo/PeerInfo payload back into a
// PublicId-string-keyed point map. It tolerates absent or malformed
// entries (some peers may not publish DKG material at all, e.g. in a
// deployment that never expects a membership change), skipping them
// rather than failing the whole decode.
func decodeDKGInfo(info interface{}) map[string]kyber.Point {
	out := make(map[string]kyber.Point)
	raw, ok := info.(map[string]interface{})
	if !ok {
		// encoding/json decodes a previously-marshaled map[string]string
		// into map[string]interface{} when the destination field type
		// is interface{}; handle both that and the direct
		// (never-serialized, locally-constructed) map[string]string case.
		if direct, ok2 := info.(map[string]string); ok2 {
			for id, s := range direct {
				if pt, err := unmarshalPoint(s); err == nil {
					out[id] = pt
				}
			}
		}
		return out
	}
	for id, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if pt, err := unmarshalPoint(s); err == nil {
			out[id] = pt
		}
	}
	return out
}

// addInfo is an Add vote's PeerInfo payload: the joining peer's raw
// identity key (so every node can reconstruct its consensus.PublicId
// without depending on a concrete identity package) plus its
// long-term DKG point, if it published one.
type addInfo struct {
	PubKey   string `json:"pub_key"`
	DkgPoint string `json:"dkg_point,omitempty"`
}

func encodeAddInfo(id consensus.PublicId, dkgPoint kyber.Point) (addInfo, error) {
	raw, err := id.MarshalBinary()
	if err != nil {
		return addInfo{}, fmt.Errorf("engine: encode add info: %w", err)
	}
	out := addInfo{PubKey: base64.StdEncoding.EncodeToString(raw)}
	if dkgPoint != nil {
		s, err := marshalPoint(dkgPoint)
		if err != nil {
			return addInfo{}, err
		}
		out.DkgPoint = s
	}
	return out, nil
}

// decodeAddInfo reads PeerInfo back as either the original local
// addInfo value or its post-JSON-round-trip map[string]interface{}
// form, returning the joining peer's raw identity key bytes and
// (if present) decoded DKG point.
func decodeAddInfo(info interface{}) (pubKeyRaw []byte, dkgPoint kyber.Point, ok bool) {
	var pubKeyB64, dkgPointB64 string
	switch v := info.(type) {
	case addInfo:
		pubKeyB64, dkgPointB64 = v.PubKey, v.DkgPoint
	case map[string]interface{}:
		if s, ok := v["pub_key"].(string); ok {
			pubKeyB64 = s
		}
		if s, ok := v["dkg_point"].(string); ok {
			dkgPointB64 = s
		}
	default:
		return nil, nil, false
	}
	if pubKeyB64 == "" {
		return nil, nil, false
	}
	raw, err := base64.StdEncoding.DecodeString(pubKeyB64)
	if err != nil {
		return nil, nil, false
	}
	if dkgPointB64 != "" {
		if pt, err := unmarshalPoint(dkgPointB64); err == nil {
			dkgPoint = pt
		}
	}
	return raw, dkgPoint, true
}
