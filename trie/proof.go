package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// EncodeProof packs the node encodings, root first, into a proof
func EncodeProof(nodes [][]byte) ([]byte, error) {
	return rlp.EncodeToBytes(nodes)
}

// DecodeProof unpacks a proof into its node encodings. An empty input is an
// empty proof.
func DecodeProof(proof []byte) ([][]byte, error) {
	var nodes [][]byte
	if len(proof) == 0 {
		return nodes, nil
	}
	if err := rlp.DecodeBytes(proof, &nodes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}
	return nodes, nil
}
