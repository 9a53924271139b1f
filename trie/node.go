package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

const (
	branchNodeLength = 17
	shortNodeLength  = 2
	branchValueSlot  = 16

	// compact encoding flags
	prefixExtensionEven = 0
	prefixExtensionOdd  = 1
	prefixLeafEven      = 2
	prefixLeafOdd       = 3
)

type nodeKind uint8

const (
	kindBranch nodeKind = iota
	kindExtension
	kindLeaf
)

var emptyRef = []byte{rlp.EmptyString[0]}

// trieNode is a decoded node. Child references are kept as raw RLP items:
// an empty string, a 32 bytes hash string or an embedded node list.
type trieNode struct {
	kind     nodeKind
	children [16][]byte
	path     []byte // nibbles, extension and leaf only
	child    []byte // extension only
	value    []byte // leaf value or branch value slot
}

func newLeaf(path, value []byte) *trieNode {
	return &trieNode{kind: kindLeaf, path: path, value: value}
}

func newExtension(path, child []byte) *trieNode {
	return &trieNode{kind: kindExtension, path: path, child: child}
}

func (n *trieNode) copy() *trieNode {
	cpy := *n
	return &cpy
}

func decodeNode(enc []byte) (*trieNode, error) {
	elems, rest, err := rlp.SplitList(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: node is not a list: %w", ErrInvalidProof, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: trailing bytes after node", ErrInvalidProof)
	}
	count, err := rlp.CountValues(elems)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}
	switch count {
	case branchNodeLength:
		return decodeBranch(elems)
	case shortNodeLength:
		return decodeShort(elems)
	default:
		return nil, fmt.Errorf("%w: node with %d items", ErrInvalidProof, count)
	}
}

// splitItem returns the kind, the content and the raw encoding of the first item of b
func splitItem(b []byte) (rlp.Kind, []byte, []byte, []byte, error) {
	kind, content, rest, err := rlp.Split(b)
	if err != nil {
		return 0, nil, nil, nil, fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}
	return kind, content, b[:len(b)-len(rest)], rest, nil
}

func decodeBranch(elems []byte) (*trieNode, error) {
	n := &trieNode{kind: kindBranch}
	for i := 0; i < branchValueSlot; i++ {
		kind, content, raw, rest, err := splitItem(elems)
		if err != nil {
			return nil, err
		}
		if err := checkRef(kind, content); err != nil {
			return nil, fmt.Errorf("branch child %d: %w", i, err)
		}
		n.children[i] = raw
		elems = rest
	}
	kind, content, _, _, err := splitItem(elems)
	if err != nil {
		return nil, err
	}
	if kind == rlp.List {
		return nil, fmt.Errorf("%w: branch value is a list", ErrInvalidProof)
	}
	n.value = content
	return n, nil
}

func decodeShort(elems []byte) (*trieNode, error) {
	kind, key, _, rest, err := splitItem(elems)
	if err != nil {
		return nil, err
	}
	if kind == rlp.List {
		return nil, fmt.Errorf("%w: node path is a list", ErrInvalidProof)
	}
	path, isLeaf, err := compactToNibbles(key)
	if err != nil {
		return nil, err
	}
	kind, content, raw, _, err := splitItem(rest)
	if err != nil {
		return nil, err
	}
	if isLeaf {
		if kind == rlp.List {
			return nil, fmt.Errorf("%w: leaf value is a list", ErrInvalidProof)
		}
		return newLeaf(path, content), nil
	}
	if err := checkRef(kind, content); err != nil {
		return nil, err
	}
	if kind != rlp.List && len(content) == 0 {
		return nil, fmt.Errorf("%w: extension without child", ErrInvalidProof)
	}
	return newExtension(path, raw), nil
}

// checkRef validates a child reference: empty, a hash or an embedded node
func checkRef(kind rlp.Kind, content []byte) error {
	switch {
	case kind == rlp.List:
		return nil
	case kind == rlp.String && (len(content) == 0 || len(content) == 32):
		return nil
	default:
		return fmt.Errorf("%w: invalid child reference of %d bytes", ErrInvalidProof, len(content))
	}
}

func (n *trieNode) encode() ([]byte, error) {
	switch n.kind {
	case kindBranch:
		items := make([]rlp.RawValue, branchNodeLength)
		for i, c := range n.children {
			if len(c) == 0 {
				c = emptyRef
			}
			items[i] = c
		}
		value, err := rlp.EncodeToBytes(n.value)
		if err != nil {
			return nil, err
		}
		items[branchValueSlot] = value
		return rlp.EncodeToBytes(items)
	case kindExtension:
		key, err := rlp.EncodeToBytes(nibblesToCompact(n.path, false))
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes([]rlp.RawValue{key, n.child})
	default:
		key, err := rlp.EncodeToBytes(nibblesToCompact(n.path, true))
		if err != nil {
			return nil, err
		}
		value, err := rlp.EncodeToBytes(n.value)
		if err != nil {
			return nil, err
		}
		return rlp.EncodeToBytes([]rlp.RawValue{key, value})
	}
}

// refFor returns how a parent references a node with encoding enc: nodes
// shorter than 32 bytes are embedded, the rest by hash
func refFor(enc []byte) ([]byte, error) {
	if len(enc) < 32 { //nolint:mnd
		return enc, nil
	}
	return rlp.EncodeToBytes(crypto.Keccak256(enc))
}

func keyToNibbles(key []byte) []byte {
	nibbles := make([]byte, len(key)*2) //nolint:mnd
	for i, b := range key {
		nibbles[2*i] = b >> 4
		nibbles[2*i+1] = b & 0x0f
	}
	return nibbles
}

// compactToNibbles decodes a hex-prefix encoded path
func compactToNibbles(compact []byte) ([]byte, bool, error) {
	if len(compact) == 0 {
		return nil, false, fmt.Errorf("%w: empty node path", ErrInvalidProof)
	}
	nibbles := keyToNibbles(compact)
	switch nibbles[0] {
	case prefixExtensionEven:
		return nibbles[2:], false, nil
	case prefixExtensionOdd:
		return nibbles[1:], false, nil
	case prefixLeafEven:
		return nibbles[2:], true, nil
	case prefixLeafOdd:
		return nibbles[1:], true, nil
	default:
		return nil, false, fmt.Errorf("%w: unknown path prefix %d", ErrInvalidProof, nibbles[0])
	}
}

func nibblesToCompact(nibbles []byte, isLeaf bool) []byte {
	flag := byte(prefixExtensionEven)
	if isLeaf {
		flag = prefixLeafEven
	}
	var buf []byte
	if len(nibbles)%2 == 1 {
		buf = append(buf, (flag+1)<<4|nibbles[0])
		nibbles = nibbles[1:]
	} else {
		buf = append(buf, flag<<4)
	}
	for i := 0; i < len(nibbles); i += 2 {
		buf = append(buf, nibbles[i]<<4|nibbles[i+1])
	}
	return buf
}

func commonPrefixLength(a, b []byte) int {
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	return i
}
