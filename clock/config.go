package clock

import "github.com/0xPolygon/ctc/config/types"

// Mode selects where the ambient time comes from
type Mode string

const (
	// ModeL1 reads the timestamp and number of an L1 header
	ModeL1 Mode = "l1"
	// ModeLocal uses the wall clock and derives the block number from BlockTime
	ModeLocal Mode = "local"
)

type Config struct {
	Mode Mode `mapstructure:"Mode"`
	// L1URL is the RPC endpoint used on ModeL1
	L1URL string `mapstructure:"L1URL"`
	// Finality is the block tag queried on ModeL1 (latest, safe or finalized)
	Finality string `mapstructure:"Finality"`
	// GenesisTimestamp is the unix time of block 0 on ModeLocal
	GenesisTimestamp uint64 `mapstructure:"GenesisTimestamp"`
	// BlockTime is the block interval on ModeLocal
	BlockTime types.Duration `mapstructure:"BlockTime"`
}
