package queue

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EnqueueRequest is a transaction submitted to the queue
type EnqueueRequest struct {
	Sender   common.Address
	Target   common.Address
	GasLimit uint64
	Data     []byte
	// GasBudget is the gas the caller is willing to burn for the enqueue
	GasBudget uint64
}

// Element is a queued transaction. Elements are never modified once stored.
type Element struct {
	QueueIndex      uint64         `meddler:"queue_index" json:"queueIndex"`
	TransactionHash common.Hash    `meddler:"tx_hash,hash" json:"transactionHash"`
	Timestamp       uint64         `meddler:"timestamp" json:"timestamp"`
	BlockNumber     uint64         `meddler:"block_number" json:"blockNumber"`
	Sender          common.Address `meddler:"sender,address" json:"sender"`
	Target          common.Address `meddler:"target,address" json:"target"`
	GasLimit        uint64         `meddler:"gas_limit" json:"gasLimit"`
	Data            []byte         `meddler:"data" json:"data"`
}

// TransactionEnqueued is published every time an element is appended to the queue
type TransactionEnqueued struct {
	Sender      common.Address
	Target      common.Address
	GasLimit    uint64
	Data        []byte
	QueueIndex  uint64
	Timestamp   uint64
	BlockNumber uint64
}

var (
	addressTy, _ = abi.NewType("address", "", nil)
	uint256Ty, _ = abi.NewType("uint256", "", nil)
	bytesTy, _   = abi.NewType("bytes", "", nil)

	transactionArgs = abi.Arguments{
		{Type: addressTy},
		{Type: addressTy},
		{Type: uint256Ty},
		{Type: bytesTy},
	}
)

// TransactionHash is keccak256(abi.encode(sender, target, gasLimit, data))
func TransactionHash(sender, target common.Address, gasLimit uint64, data []byte) common.Hash {
	if data == nil {
		data = []byte{}
	}
	packed, err := transactionArgs.Pack(sender, target, new(big.Int).SetUint64(gasLimit), data)
	if err != nil {
		// the argument types are fixed above, Pack can only fail on a type mismatch
		panic(err)
	}
	return crypto.Keccak256Hash(packed)
}
