package clock

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrUnknownMode     = errors.New("unknown clock mode")
	ErrUnknownFinality = errors.New("unknown block finality")
	ErrInvalidConfig   = errors.New("invalid clock config")
)

// Time is a point of the ambient chain: a unix timestamp and a block height
type Time struct {
	Timestamp   uint64 `json:"timestamp"`
	BlockNumber uint64 `json:"blockNumber"`
}

func (t Time) String() string {
	return fmt.Sprintf("{timestamp: %d, blockNumber: %d}", t.Timestamp, t.BlockNumber)
}

// Before reports whether t is strictly lower than o on either axis
func (t Time) Before(o Time) bool {
	return t.Timestamp < o.Timestamp || t.BlockNumber < o.BlockNumber
}

// After reports whether t is strictly greater than o on either axis
func (t Time) After(o Time) bool {
	return t.Timestamp > o.Timestamp || t.BlockNumber > o.BlockNumber
}

// Clock returns the current ambient time
type Clock interface {
	Now(ctx context.Context) (Time, error)
}

// EthClienter is the subset of the L1 client needed by L1Clock
type EthClienter interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// New builds the clock selected by cfg
func New(ctx context.Context, cfg Config) (Clock, error) {
	switch cfg.Mode {
	case ModeL1:
		finality, err := parseFinality(cfg.Finality)
		if err != nil {
			return nil, err
		}
		client, err := ethclient.DialContext(ctx, cfg.L1URL)
		if err != nil {
			return nil, fmt.Errorf("error dialing L1 %s: %w", cfg.L1URL, err)
		}
		return NewL1Clock(client, finality), nil
	case ModeLocal:
		if cfg.BlockTime.Duration < time.Second {
			return nil, fmt.Errorf("%w: BlockTime must be at least 1s, got %s", ErrInvalidConfig, cfg.BlockTime)
		}
		return NewLocalClock(cfg.GenesisTimestamp, cfg.BlockTime.Duration), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, cfg.Mode)
	}
}

func parseFinality(finality string) (*big.Int, error) {
	switch finality {
	case "", "latest":
		return nil, nil
	case "safe":
		return big.NewInt(int64(rpc.SafeBlockNumber)), nil
	case "finalized":
		return big.NewInt(int64(rpc.FinalizedBlockNumber)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFinality, finality)
	}
}

// L1Clock reads the time from an L1 header
type L1Clock struct {
	client   EthClienter
	finality *big.Int
}

// NewL1Clock creates a clock backed by client. A nil finality means the latest header.
func NewL1Clock(client EthClienter, finality *big.Int) *L1Clock {
	return &L1Clock{
		client:   client,
		finality: finality,
	}
}

func (c *L1Clock) Now(ctx context.Context) (Time, error) {
	header, err := c.client.HeaderByNumber(ctx, c.finality)
	if err != nil {
		return Time{}, fmt.Errorf("error getting L1 header: %w", err)
	}
	if header == nil || header.Number == nil {
		return Time{}, errors.New("L1 returned an empty header")
	}
	return Time{
		Timestamp:   header.Time,
		BlockNumber: header.Number.Uint64(),
	}, nil
}

// LocalClock uses the wall clock. The block number is the count of whole
// BlockTime intervals elapsed since the genesis timestamp.
type LocalClock struct {
	genesis   uint64
	blockTime time.Duration
	nowFunc   func() time.Time
}

func NewLocalClock(genesis uint64, blockTime time.Duration) *LocalClock {
	return &LocalClock{
		genesis:   genesis,
		blockTime: blockTime,
		nowFunc:   time.Now,
	}
}

func (c *LocalClock) Now(_ context.Context) (Time, error) {
	now := uint64(c.nowFunc().Unix())
	var block uint64
	if now > c.genesis {
		block = (now - c.genesis) / uint64(c.blockTime/time.Second)
	}
	return Time{Timestamp: now, BlockNumber: block}, nil
}

// ManualClock returns whatever time was last set on it
type ManualClock struct {
	mu  sync.Mutex
	now Time
}

func NewManualClock(timestamp, blockNumber uint64) *ManualClock {
	return &ManualClock{now: Time{Timestamp: timestamp, BlockNumber: blockNumber}}
}

func (c *ManualClock) Now(_ context.Context) (Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now, nil
}

// Set moves the clock to the given values
func (c *ManualClock) Set(timestamp, blockNumber uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Time{Timestamp: timestamp, BlockNumber: blockNumber}
}

// Advance moves the clock forward
func (c *ManualClock) Advance(seconds, blocks uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now.Timestamp += seconds
	c.now.BlockNumber += blocks
}
