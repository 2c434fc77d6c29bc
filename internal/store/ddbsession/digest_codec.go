package ddbsession

import (
	"fmt"

	"vaultseal.dev/internal/digest"
)

type digestHex string

func decodeDigest(h string) (digest.Digest32, error) {
	d, err := digest.FromHex(h)
	if err != nil {
		return digest.Digest32{}, fmt.Errorf("ddbsession: decode digest %q: %w", h, err)
	}
	return d, nil
}

func decodeDigests(hs []digestHex) ([]digest.Digest32, error) {
	out := make([]digest.Digest32, len(hs))
	for i, h := range hs {
		d, err := decodeDigest(string(h))
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
