package registry

import "github.com/ethereum/go-ethereum/common"

// Config holds the addresses and the gas policy served by the static registry
type Config struct {
	// Sequencer is the only address allowed to append sequencer batches
	Sequencer common.Address `mapstructure:"Sequencer"`
	// Addresses maps additional names to addresses
	Addresses map[string]common.Address `mapstructure:"Addresses"`
	// MinRollupTxGas is the lowest gas limit accepted for a queued transaction
	MinRollupTxGas uint64 `mapstructure:"MinRollupTxGas"`
	// MaxRollupTxSize is the maximum payload size of a queued transaction
	MaxRollupTxSize uint64 `mapstructure:"MaxRollupTxSize"`
	// L2GasDiscountDivisor divides the gas limit to compute the gas burned on enqueue
	L2GasDiscountDivisor uint64 `mapstructure:"L2GasDiscountDivisor"`
}
