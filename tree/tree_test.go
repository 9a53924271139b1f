package tree

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var nodeCounts = []int{2, 3, 7, 9, 13, 63, 64, 123, 128, 129, 255, 1021, 1023, 1024}

func testLeaves(n int) []common.Hash {
	leaves := make([]common.Hash, n)
	for i := range leaves {
		leaves[i] = crypto.Keccak256Hash(big.NewInt(int64(i)).Bytes())
	}
	return leaves
}

// naiveRoot pads with DefaultLeaf up to the next power of two and hashes pairwise
func naiveRoot(leaves []common.Hash) common.Hash {
	size := 1
	for size < len(leaves) {
		size *= 2
	}
	level := make([]common.Hash, size)
	for i := range level {
		if i < len(leaves) {
			level[i] = leaves[i]
		} else {
			level[i] = crypto.Keccak256Hash(make([]byte, 32))
		}
	}
	for len(level) > 1 {
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = crypto.Keccak256Hash(level[2*i][:], level[2*i+1][:])
		}
		level = next
	}
	return level[0]
}

func TestGetRootEmpty(t *testing.T) {
	_, err := GetRoot(nil)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestGetRootSingleLeaf(t *testing.T) {
	leaf := crypto.Keccak256Hash([]byte{0x12, 0x34})
	root, err := GetRoot([]common.Hash{leaf})
	require.NoError(t, err)
	require.Equal(t, leaf, root)
}

func TestGetRoot(t *testing.T) {
	for _, n := range nodeCounts {
		t.Run(fmt.Sprintf("%d leaves", n), func(t *testing.T) {
			leaves := testLeaves(n)
			root, err := GetRoot(leaves)
			require.NoError(t, err)
			require.Equal(t, naiveRoot(leaves), root)
		})
	}
}

func TestDefaultLeaf(t *testing.T) {
	require.Equal(t, crypto.Keccak256Hash(make([]byte, 32)), DefaultLeaf)
	require.Equal(t, crypto.Keccak256Hash(DefaultLeaf[:], DefaultLeaf[:]), zeroHashes[1])
}

func TestHeight(t *testing.T) {
	tests := map[uint64]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4, 1024: 10, 1025: 11}
	for leaves, expected := range tests {
		require.Equal(t, expected, Height(leaves), "leaves %d", leaves)
	}
}

func TestProofsVerify(t *testing.T) {
	for _, n := range nodeCounts {
		t.Run(fmt.Sprintf("%d leaves", n), func(t *testing.T) {
			leaves := testLeaves(n)
			root, err := GetRoot(leaves)
			require.NoError(t, err)
			for i, leaf := range leaves {
				proof, err := GetProof(leaves, uint64(i))
				require.NoError(t, err)
				require.Len(t, proof.Siblings, Height(uint64(n)))
				ok, err := VerifyProof(root, leaf, proof, uint64(n))
				require.NoError(t, err)
				require.True(t, ok, "leaf %d", i)
			}
		})
	}
}

func TestVerifyFourLeavesSwappedSiblings(t *testing.T) {
	leaves := testLeaves(4)
	root, err := GetRoot(leaves)
	require.NoError(t, err)

	proof, err := GetProof(leaves, 2)
	require.NoError(t, err)
	require.Equal(t, []common.Hash{leaves[3], crypto.Keccak256Hash(leaves[0][:], leaves[1][:])}, proof.Siblings)

	ok, err := Verify(root, leaves[2], 2, proof.Siblings, 4)
	require.NoError(t, err)
	require.True(t, ok)

	swapped := []common.Hash{proof.Siblings[1], proof.Siblings[0]}
	ok, err = Verify(root, leaves[2], 2, swapped, 4)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyBitFlips(t *testing.T) {
	leaves := testLeaves(13)
	root, err := GetRoot(leaves)
	require.NoError(t, err)
	const index = 6
	proof, err := GetProof(leaves, index)
	require.NoError(t, err)

	for bit := 0; bit < common.HashLength*8; bit++ {
		flipped := leaves[index]
		flipped[bit/8] ^= 1 << (bit % 8)
		ok, err := Verify(root, flipped, index, proof.Siblings, 13)
		require.NoError(t, err)
		require.False(t, ok, "leaf bit %d", bit)
	}
	for s := range proof.Siblings {
		for _, bit := range []int{0, 7, 100, 255} {
			siblings := append([]common.Hash{}, proof.Siblings...)
			siblings[s][bit/8] ^= 1 << (bit % 8)
			ok, err := Verify(root, leaves[index], index, siblings, 13)
			require.NoError(t, err)
			require.False(t, ok, "sibling %d bit %d", s, bit)
		}
	}
	// the same proof at another index is not valid either
	ok, err := Verify(root, leaves[index], index+1, proof.Siblings, 13)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyMalformed(t *testing.T) {
	tests := []struct {
		name        string
		index       uint64
		siblings    []common.Hash
		totalLeaves uint64
	}{
		{name: "zero leaves", index: 0, totalLeaves: 0},
		{name: "index out of bounds", index: 2, totalLeaves: 1},
		{name: "too few siblings", index: 0, siblings: make([]common.Hash, 2), totalLeaves: 8},
		{name: "too many siblings", index: 0, siblings: make([]common.Hash, 1), totalLeaves: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Verify(common.Hash{}, common.Hash{}, tt.index, tt.siblings, tt.totalLeaves)
			require.ErrorIs(t, err, ErrInvalidProof)
			require.False(t, ok)
		})
	}
}

func TestGetProofErrors(t *testing.T) {
	_, err := GetProof(nil, 0)
	require.ErrorIs(t, err, ErrEmptyInput)
	_, err = GetProof(testLeaves(3), 3)
	require.ErrorIs(t, err, ErrOutOfBounds)

	proof, err := GetProof(testLeaves(1), 0)
	require.NoError(t, err)
	require.Empty(t, proof.Siblings)
}
