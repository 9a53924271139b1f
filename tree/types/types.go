package types

import "github.com/ethereum/go-ethereum/common"

// Leaf is a leaf hash together with its position in the tree
type Leaf struct {
	Index uint64      `meddler:"position"`
	Hash  common.Hash `meddler:"hash,hash"`
}

// Proof is the list of siblings, bottom-up, that authenticates the leaf at Index
type Proof struct {
	Index    uint64        `json:"index"`
	Siblings []common.Hash `json:"siblings"`
}
