package types

import (
	"errors"
	"fmt"
	"math/big"

	ctccommon "github.com/0xPolygon/ctc/common"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// QueueOrigin tells where a canonical transaction came from
type QueueOrigin uint8

const (
	SequencerQueue QueueOrigin = iota
	L1ToL2Queue
)

func (o QueueOrigin) String() string {
	switch o {
	case SequencerQueue:
		return "sequencer"
	case L1ToL2Queue:
		return "queue"
	default:
		return fmt.Sprintf("QueueOrigin(%d)", uint8(o))
	}
}

// BatchHeader commits to the elements appended by one batch
type BatchHeader struct {
	BatchIndex        uint64      `meddler:"batch_index" json:"batchIndex"`
	BatchRoot         common.Hash `meddler:"batch_root,hash" json:"batchRoot"`
	BatchSize         uint64      `meddler:"batch_size" json:"batchSize"`
	PrevTotalElements uint64      `meddler:"prev_total_elements" json:"prevTotalElements"`
	ExtraData         []byte      `meddler:"extra_data" json:"extraData"`
}

func (b BatchHeader) String() string {
	return fmt.Sprintf("BatchHeader{index: %d, root: %s, size: %d, prevTotal: %d}",
		b.BatchIndex, b.BatchRoot.Hex(), b.BatchSize, b.PrevTotalElements)
}

// Hash is keccak256(abi.encode(batchIndex, batchRoot, batchSize, prevTotalElements, extraData))
func (b BatchHeader) Hash() common.Hash {
	extraData := b.ExtraData
	if extraData == nil {
		extraData = []byte{}
	}
	packed, err := batchHeaderArgs.Pack(
		new(big.Int).SetUint64(b.BatchIndex),
		[32]byte(b.BatchRoot),
		new(big.Int).SetUint64(b.BatchSize),
		new(big.Int).SetUint64(b.PrevTotalElements),
		extraData,
	)
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}

// Element is a stored canonical element
type Element struct {
	Index       uint64 `meddler:"element_index" json:"index"`
	BatchIndex  uint64 `meddler:"batch_index" json:"batchIndex"`
	IsSequenced bool   `meddler:"is_sequenced" json:"isSequenced"`
	// QueueIndex is only meaningful for queue elements
	QueueIndex  uint64      `meddler:"queue_index" json:"queueIndex"`
	Timestamp   uint64      `meddler:"timestamp" json:"timestamp"`
	BlockNumber uint64      `meddler:"block_number" json:"blockNumber"`
	TxData      []byte      `meddler:"tx_data" json:"txData"`
	Leaf        common.Hash `meddler:"leaf,hash" json:"leaf"`
}

// ChainElement returns the element as a verification hint
func (e Element) ChainElement() ChainElement {
	return ChainElement{
		IsSequenced: e.IsSequenced,
		QueueIndex:  e.QueueIndex,
		Timestamp:   e.Timestamp,
		BlockNumber: e.BlockNumber,
		TxData:      e.TxData,
	}
}

// ChainElement is the hint a prover supplies together with a claimed transaction
type ChainElement struct {
	IsSequenced bool   `json:"isSequenced"`
	QueueIndex  uint64 `json:"queueIndex"`
	Timestamp   uint64 `json:"timestamp"`
	BlockNumber uint64 `json:"blockNumber"`
	TxData      []byte `json:"txData"`
}

// Leaf returns the tree leaf the element commits to
func (c ChainElement) Leaf() common.Hash {
	if c.IsSequenced {
		return SequencerLeaf(c.Timestamp, c.BlockNumber, c.TxData)
	}
	return QueueLeaf(c.QueueIndex)
}

// Transaction is a claimed canonical transaction
type Transaction struct {
	Timestamp     uint64         `json:"timestamp"`
	BlockNumber   uint64         `json:"blockNumber"`
	L1QueueOrigin QueueOrigin    `json:"l1QueueOrigin"`
	L1TxOrigin    common.Address `json:"l1TxOrigin"`
	Entrypoint    common.Address `json:"entrypoint"`
	GasLimit      uint64         `json:"gasLimit"`
	Data          []byte         `json:"data"`
}

// ChainInclusionProof authenticates an element inside the batch that appended it
type ChainInclusionProof struct {
	Index    uint64        `json:"index"`
	Siblings []common.Hash `json:"siblings"`
}

// SequencerBatchAppended is published after a batch is stored
type SequencerBatchAppended struct {
	BatchIndex         uint64
	BatchRoot          common.Hash
	BatchSize          uint64
	PrevTotalElements  uint64
	StartingQueueIndex uint64
	NumQueueElements   uint64
	TotalElements      uint64
}

var (
	boolTy, _    = abi.NewType("bool", "", nil)
	uint256Ty, _ = abi.NewType("uint256", "", nil)
	bytes32Ty, _ = abi.NewType("bytes32", "", nil)
	bytesTy, _   = abi.NewType("bytes", "", nil)

	queueLeafArgs   = abi.Arguments{{Type: boolTy}, {Type: uint256Ty}, {Type: uint256Ty}, {Type: uint256Ty}, {Type: bytesTy}}
	batchHeaderArgs = abi.Arguments{{Type: uint256Ty}, {Type: bytes32Ty}, {Type: uint256Ty}, {Type: uint256Ty}, {Type: bytesTy}}
)

// sequencerLeafPrefix marks a sequencer element, queue leaves start with abi-encoded false
const sequencerLeafPrefix = 0x01

// QueueLeaf is keccak256(abi.encode(false, queueIndex, 0, 0, ""))
func QueueLeaf(queueIndex uint64) common.Hash {
	packed, err := queueLeafArgs.Pack(false, new(big.Int).SetUint64(queueIndex), big.NewInt(0), big.NewInt(0), []byte{})
	if err != nil {
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}

// SequencerLeaf is keccak256(0x01 ‖ uint256(timestamp) ‖ uint256(blockNumber) ‖ data)
func SequencerLeaf(timestamp, blockNumber uint64, data []byte) common.Hash {
	return ctccommon.Keccak256(
		[]byte{sequencerLeafPrefix},
		ctccommon.Uint64ToWord(timestamp),
		ctccommon.Uint64ToWord(blockNumber),
		data,
	)
}

// ExtraDataSize is the size of the chain metadata packed in BatchHeader.ExtraData
const ExtraDataSize = 27

const (
	extraDataPadding = 7
	metadataWidth    = 5
	maxMetadataValue = 1<<(8*metadataWidth) - 1
)

var ErrInvalidExtraData = errors.New("invalid extra data")

// ChainMetadata is the chain state after a batch. It travels in BatchHeader.ExtraData.
type ChainMetadata struct {
	TotalElements   uint64 `json:"totalElements"`
	NextQueueIndex  uint64 `json:"nextQueueIndex"`
	LastTimestamp   uint64 `json:"lastTimestamp"`
	LastBlockNumber uint64 `json:"lastBlockNumber"`
}

// Encode packs the metadata as 7 zero bytes followed by 40-bit big-endian
// blockNumber, timestamp, nextQueueIndex and totalElements
func (m ChainMetadata) Encode() ([]byte, error) {
	values := []uint64{m.LastBlockNumber, m.LastTimestamp, m.NextQueueIndex, m.TotalElements}
	out := make([]byte, ExtraDataSize)
	for i, v := range values {
		if v > maxMetadataValue {
			return nil, fmt.Errorf("%w: value %d does not fit in %d bytes", ErrInvalidExtraData, v, metadataWidth)
		}
		offset := extraDataPadding + i*metadataWidth
		ctccommon.PutUintN(out[offset:], v, metadataWidth)
	}
	return out, nil
}

// DecodeChainMetadata is the inverse of ChainMetadata.Encode
func DecodeChainMetadata(extraData []byte) (ChainMetadata, error) {
	if len(extraData) != ExtraDataSize {
		return ChainMetadata{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidExtraData, ExtraDataSize, len(extraData))
	}
	field := func(i int) uint64 {
		offset := extraDataPadding + i*metadataWidth
		return ctccommon.UintN(extraData[offset : offset+metadataWidth])
	}
	return ChainMetadata{
		LastBlockNumber: field(0),
		LastTimestamp:   field(1),
		NextQueueIndex:  field(2),
		TotalElements:   field(3),
	}, nil
}

// ElementProof bundles what a verifier needs to check a stored element
type ElementProof struct {
	Element     Element             `json:"element"`
	BatchHeader BatchHeader         `json:"batchHeader"`
	Proof       ChainInclusionProof `json:"proof"`
}
