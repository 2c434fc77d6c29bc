package merkle

import (
	"errors"

	"golang.org/x/crypto/cryptobyte"

	"vaultseal.dev/internal/digest"
)

// ErrMalformedProof is returned by UnmarshalBinary when the input is not a
// validly framed binary proof.
var ErrMalformedProof = errors.New("merkle: malformed binary proof")

// sideLeft and sideRight are the byte tags for Step.Side in the binary
// proof encoding produced by MarshalBinary.
const (
	sideLeft  byte = 0
	sideRight byte = 1
)

// MarshalBinary encodes p as:
//
//	struct {
//	    uint8 leaf_hash_len;
//	    opaque leaf_hash[leaf_hash_len];
//	    uint16 step_count;
//	    struct {
//	        uint8 side;
//	        opaque digest[32];
//	    } steps[step_count];
//	} Proof;
func (p InclusionProof) MarshalBinary() ([]byte, error) {
	var b cryptobyte.Builder
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte(p.LeafHex))
	})
	b.AddUint16(uint16(len(p.Steps)))
	for _, step := range p.Steps {
		tag := sideRight
		if step.Side == Left {
			tag = sideLeft
		}
		b.AddUint8(tag)
		b.AddBytes(step.Digest[:])
	}
	return b.Bytes()
}

// UnmarshalBinary decodes a buffer produced by MarshalBinary.
func (p *InclusionProof) UnmarshalBinary(data []byte) error {
	s := cryptobyte.String(data)

	var leafHash cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&leafHash) {
		return ErrMalformedProof
	}

	var stepCount uint16
	if !s.ReadUint16(&stepCount) {
		return ErrMalformedProof
	}

	steps := make([]Step, 0, stepCount)
	for i := 0; i < int(stepCount); i++ {
		var tag uint8
		var raw cryptobyte.String
		if !s.ReadUint8(&tag) || !s.ReadBytes((*[]byte)(&raw), 32) {
			return ErrMalformedProof
		}
		side := Right
		if tag == sideLeft {
			side = Left
		}
		var d digest.Digest32
		copy(d[:], raw)
		steps = append(steps, Step{Side: side, Digest: d})
	}

	if !s.Empty() {
		return ErrMalformedProof
	}

	p.LeafHex = string(leafHash)
	p.Steps = steps
	return nil
}
