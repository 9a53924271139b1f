// Package trie verifies and updates Ethereum Merkle-Patricia trie proofs.
// A proof is the RLP list of the encodings of the nodes on the path to a
// key, root first. Nodes referenced by hash must be present in the proof,
// nodes shorter than 32 bytes are embedded in their parent.
package trie

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	ErrInvalidProof = errors.New("invalid trie proof")
	ErrEmptyValue   = errors.New("empty values are not supported")

	// EmptyRoot is the root of a trie without keys
	EmptyRoot = types.EmptyRootHash
)

type step struct {
	node *trieNode
	// slot followed on a branch node, -1 when the walk stopped on it
	slot int
}

type walkResult struct {
	path []step
	// key nibbles not consumed by the walk
	rest   []byte
	exists bool
	value  []byte
}

// walk follows key from root through the proof nodes, checking every hash
// reference. The walk stops when the key is found or diverges from the trie.
func walk(key []byte, proof [][]byte, root common.Hash) (*walkResult, error) {
	nibbles := keyToNibbles(key)
	res := &walkResult{}
	if len(proof) == 0 {
		if root == EmptyRoot {
			res.rest = nibbles
			return res, nil
		}
		return nil, fmt.Errorf("%w: empty proof for root %s", ErrInvalidProof, root)
	}
	if crypto.Keccak256Hash(proof[0]) != root {
		return nil, fmt.Errorf("%w: invalid root hash", ErrInvalidProof)
	}

	enc, used := proof[0], 1
	for {
		n, err := decodeNode(enc)
		if err != nil {
			return nil, err
		}
		var ref []byte
		switch n.kind {
		case kindBranch:
			if len(nibbles) == 0 {
				res.path = append(res.path, step{node: n, slot: -1})
				res.exists, res.value = len(n.value) > 0, n.value
				return res, checkConsumed(used, proof)
			}
			res.path = append(res.path, step{node: n, slot: int(nibbles[0])})
			ref, nibbles = n.children[nibbles[0]], nibbles[1:]
		case kindExtension:
			res.path = append(res.path, step{node: n, slot: -1})
			if !bytes.HasPrefix(nibbles, n.path) {
				res.rest = nibbles
				return res, checkConsumed(used, proof)
			}
			ref, nibbles = n.child, nibbles[len(n.path):]
		default:
			res.path = append(res.path, step{node: n, slot: -1})
			res.rest = nibbles
			if bytes.Equal(nibbles, n.path) {
				res.exists, res.value = len(n.value) > 0, n.value
			}
			return res, checkConsumed(used, proof)
		}

		kind, content, _, err := rlp.Split(ref)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidProof, err)
		}
		switch {
		case kind == rlp.List:
			enc = ref
		case len(content) == 0:
			// the key diverges at an empty branch slot
			res.rest = nibbles
			return res, checkConsumed(used, proof)
		default:
			if used >= len(proof) {
				return nil, fmt.Errorf("%w: proof exhausted at depth %d", ErrInvalidProof, len(res.path))
			}
			enc = proof[used]
			used++
			if !bytes.Equal(crypto.Keccak256(enc), content) {
				return nil, fmt.Errorf("%w: invalid large internal hash at depth %d", ErrInvalidProof, len(res.path))
			}
		}
	}
}

func checkConsumed(used int, proof [][]byte) error {
	if used != len(proof) {
		return fmt.Errorf("%w: %d unused proof nodes", ErrInvalidProof, len(proof)-used)
	}
	return nil
}

// Get returns whether key holds a value under root, and that value
func Get(key, proof []byte, root common.Hash) (bool, []byte, error) {
	nodes, err := DecodeProof(proof)
	if err != nil {
		return false, nil, err
	}
	res, err := walk(key, nodes, root)
	if err != nil {
		return false, nil, err
	}
	return res.exists, res.value, nil
}

// VerifyInclusionProof checks that key holds exactly value under root
func VerifyInclusionProof(key, value, proof []byte, root common.Hash) (bool, error) {
	exists, current, err := Get(key, proof, root)
	if err != nil {
		return false, err
	}
	return exists && bytes.Equal(value, current), nil
}

// Update sets key to value and returns the new root. Only the nodes on the
// proof path are rewritten, so the cost depends on the depth of the key and
// not on the size of the trie. The proof may be an exclusion proof, in which
// case the key is inserted. Inserting into the empty trie needs no proof.
func Update(key, value, proof []byte, root common.Hash) (common.Hash, error) {
	if len(value) == 0 {
		return common.Hash{}, ErrEmptyValue
	}
	nodes, err := DecodeProof(proof)
	if err != nil {
		return common.Hash{}, err
	}
	res, err := walk(key, nodes, root)
	if err != nil {
		return common.Hash{}, err
	}

	if len(res.path) == 0 {
		enc, err := newLeaf(res.rest, value).encode()
		if err != nil {
			return common.Hash{}, err
		}
		return crypto.Keccak256Hash(enc), nil
	}

	enc, err := replaceTerminal(res.path[len(res.path)-1], res.rest, value)
	if err != nil {
		return common.Hash{}, err
	}
	for i := len(res.path) - 2; i >= 0; i-- {
		ref, err := refFor(enc)
		if err != nil {
			return common.Hash{}, err
		}
		parent := res.path[i].node.copy()
		if parent.kind == kindBranch {
			parent.children[res.path[i].slot] = ref
		} else {
			parent.child = ref
		}
		if enc, err = parent.encode(); err != nil {
			return common.Hash{}, err
		}
	}
	return crypto.Keccak256Hash(enc), nil
}

// replaceTerminal rewrites the node where the walk stopped so that it holds
// value at the remaining nibbles, returning the encoding of the new subtree
func replaceTerminal(last step, rest, value []byte) ([]byte, error) {
	n := last.node.copy()
	switch {
	case n.kind == kindBranch && last.slot < 0:
		n.value = value
		return n.encode()
	case n.kind == kindBranch:
		leaf, err := newLeaf(rest, value).encode()
		if err != nil {
			return nil, err
		}
		if n.children[last.slot], err = refFor(leaf); err != nil {
			return nil, err
		}
		return n.encode()
	case n.kind == kindLeaf && bytes.Equal(n.path, rest):
		n.value = value
		return n.encode()
	default:
		return split(n, rest, value)
	}
}

// split replaces a leaf or extension whose path diverges from rest by a
// branch holding both, behind an extension for their common prefix
func split(n *trieNode, rest, value []byte) ([]byte, error) {
	cp := commonPrefixLength(n.path, rest)
	branch := &trieNode{kind: kindBranch}

	if cp == len(n.path) {
		// only a leaf can end here: an extension fully matching would have been followed
		branch.value = n.value
	} else {
		slot, remainder := n.path[cp], n.path[cp+1:]
		var ref []byte
		switch {
		case n.kind == kindLeaf:
			enc, err := newLeaf(remainder, n.value).encode()
			if err != nil {
				return nil, err
			}
			if ref, err = refFor(enc); err != nil {
				return nil, err
			}
		case len(remainder) > 0:
			enc, err := newExtension(remainder, n.child).encode()
			if err != nil {
				return nil, err
			}
			if ref, err = refFor(enc); err != nil {
				return nil, err
			}
		default:
			ref = n.child
		}
		branch.children[slot] = ref
	}

	if cp == len(rest) {
		branch.value = value
	} else {
		enc, err := newLeaf(rest[cp+1:], value).encode()
		if err != nil {
			return nil, err
		}
		if branch.children[rest[cp]], err = refFor(enc); err != nil {
			return nil, err
		}
	}

	enc, err := branch.encode()
	if err != nil || cp == 0 {
		return enc, err
	}
	ref, err := refFor(enc)
	if err != nil {
		return nil, err
	}
	return newExtension(rest[:cp], ref).encode()
}
