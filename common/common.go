package common

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/keccak256"
)

const (
	uint64ByteSize = 8
	// WordSize is the size of an ABI word
	WordSize = 32
)

// Uint64ToWord returns num as a 32 bytes big-endian word
func Uint64ToWord(num uint64) []byte {
	word := make([]byte, WordSize)
	binary.BigEndian.PutUint64(word[WordSize-uint64ByteSize:], num)
	return word
}

// PutUintN writes the n least significant bytes of num into dst in
// big-endian order. It panics if dst is shorter than n.
func PutUintN(dst []byte, num uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		dst[i] = byte(num)
		num >>= 8
	}
}

// UintN reads a big-endian unsigned integer of len(src) bytes (at most 8)
func UintN(src []byte) uint64 {
	var num uint64
	for _, b := range src {
		num = num<<8 | uint64(b)
	}
	return num
}

// Keccak256 returns the keccak256 hash of the concatenation of data
func Keccak256(data ...[]byte) common.Hash {
	return common.BytesToHash(keccak256.Hash(data...))
}
