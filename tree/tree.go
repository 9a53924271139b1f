package tree

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/0xPolygon/ctc/tree/types"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// maxHeight is enough for any tree whose size fits in a uint64
const maxHeight = 64

var (
	ErrEmptyInput   = errors.New("at least one leaf hash must be provided")
	ErrInvalidProof = errors.New("invalid merkle proof")
	ErrOutOfBounds  = errors.New("leaf index out of bounds")

	// DefaultLeaf pads the leaves up to the next power of two: keccak256 of 32 zero bytes
	DefaultLeaf = hash(common.Hash{}.Bytes())

	zeroHashes = generateZeroHashes(maxHeight)
)

func hash(data ...[]byte) common.Hash {
	var h common.Hash
	hasher := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hasher.Write(d)
	}
	copy(h[:], hasher.Sum(nil))
	return h
}

func hashNode(left, right common.Hash) common.Hash {
	return hash(left[:], right[:])
}

// generateZeroHashes returns the root of a fully padded subtree for every height
func generateZeroHashes(height uint8) []common.Hash {
	var zeroHashes = []common.Hash{
		DefaultLeaf,
	}
	// This generates a leaf = HashZero in position 0. In the rest of the positions that are
	// equivalent to the ascending levels, we set the hashes of the nodes.
	// So all nodes from level i=5 will have the same value and same children nodes.
	for i := 1; i <= int(height); i++ {
		zeroHashes = append(zeroHashes, hashNode(zeroHashes[i-1], zeroHashes[i-1]))
	}
	return zeroHashes
}

// Height returns ceil(log2(totalLeaves)), the number of siblings of any proof
// in a tree of totalLeaves leaves
func Height(totalLeaves uint64) int {
	if totalLeaves <= 1 {
		return 0
	}
	return bits.Len64(totalLeaves - 1)
}

// GetRoot computes the root of leaves. A single leaf is its own root; otherwise
// the leaves are padded with DefaultLeaf to the next power of two and hashed
// pairwise bottom-up.
func GetRoot(leaves []common.Hash) (common.Hash, error) {
	if len(leaves) == 0 {
		return common.Hash{}, ErrEmptyInput
	}
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	for h := 0; len(level) > 1; h++ {
		level = nextLevel(level, h)
	}
	return level[0], nil
}

// nextLevel hashes the nodes of height h in pairs. Padding nodes are never
// materialised, the zero hash of that height is used instead.
func nextLevel(level []common.Hash, h int) []common.Hash {
	next := make([]common.Hash, (len(level)+1)/2) //nolint:mnd
	for i := range next {
		left := level[2*i]
		right := zeroHashes[h]
		if 2*i+1 < len(level) {
			right = level[2*i+1]
		}
		next[i] = hashNode(left, right)
	}
	return next
}

// GetProof returns the siblings, bottom-up, of the leaf at index
func GetProof(leaves []common.Hash, index uint64) (types.Proof, error) {
	if len(leaves) == 0 {
		return types.Proof{}, ErrEmptyInput
	}
	if index >= uint64(len(leaves)) {
		return types.Proof{}, fmt.Errorf("%w: index %d, %d leaves", ErrOutOfBounds, index, len(leaves))
	}
	siblings := make([]common.Hash, 0, Height(uint64(len(leaves))))
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	pos := index
	for h := 0; len(level) > 1; h++ {
		sibling := zeroHashes[h]
		if s := pos ^ 1; s < uint64(len(level)) {
			sibling = level[s]
		}
		siblings = append(siblings, sibling)
		level = nextLevel(level, h)
		pos >>= 1
	}
	return types.Proof{Index: index, Siblings: siblings}, nil
}

// Verify checks that leaf sits at index of a tree of totalLeaves leaves with the
// given root. A malformed proof (no leaves, index out of range or a siblings count
// different from ceil(log2(totalLeaves))) returns false and ErrInvalidProof. A
// well-formed proof that does not rebuild root returns false and no error.
func Verify(root, leaf common.Hash, index uint64, siblings []common.Hash, totalLeaves uint64) (bool, error) {
	if totalLeaves == 0 {
		return false, fmt.Errorf("%w: total leaves must be greater than zero", ErrInvalidProof)
	}
	if index >= totalLeaves {
		return false, fmt.Errorf("%w: index %d out of bounds for %d leaves", ErrInvalidProof, index, totalLeaves)
	}
	if len(siblings) != Height(totalLeaves) {
		return false, fmt.Errorf("%w: %d siblings do not correspond to %d leaves",
			ErrInvalidProof, len(siblings), totalLeaves)
	}

	computed := leaf
	for _, sibling := range siblings {
		if index&1 == 0 {
			computed = hashNode(computed, sibling)
		} else {
			computed = hashNode(sibling, computed)
		}
		index >>= 1
	}
	return computed == root, nil
}

// VerifyProof is Verify for a types.Proof
func VerifyProof(root, leaf common.Hash, proof types.Proof, totalLeaves uint64) (bool, error) {
	return Verify(root, leaf, proof.Index, proof.Siblings, totalLeaves)
}
