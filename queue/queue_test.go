package queue

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/0xPolygon/ctc/clock"
	"github.com/0xPolygon/ctc/log"
	"github.com/0xPolygon/ctc/registry"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	sender = common.HexToAddress("0x1111111111111111111111111111111111111111")
	addrA  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func newTestQueue(t *testing.T) (*Queue, *clock.ManualClock) {
	t.Helper()
	reg, err := registry.NewStatic(registry.Config{
		Sequencer:            common.HexToAddress("0x5e"),
		MinRollupTxGas:       100000,
		MaxRollupTxSize:      50000,
		L2GasDiscountDivisor: 32,
	})
	require.NoError(t, err)
	clk := clock.NewManualClock(1700000000, 100)
	dbPath := path.Join(t.TempDir(), "queue.sqlite")
	q, err := New(log.WithFields("module", "queue-test"), Config{DBPath: dbPath}, reg, clk)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, q.Close()) })
	return q, clk
}

func TestEnqueueAndRead(t *testing.T) {
	ctx := context.Background()
	q, clk := newTestQueue(t)

	length, err := q.GetQueueLength(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), length)

	_, err = q.Enqueue(ctx, EnqueueRequest{Sender: sender, Target: addrA, GasLimit: 500000, Data: common.FromHex("0x1234"), GasBudget: 500000})
	require.NoError(t, err)
	clk.Advance(15, 1)
	second, err := q.Enqueue(ctx, EnqueueRequest{Sender: sender, Target: addrA, GasLimit: 500000, Data: common.FromHex("0x5678"), GasBudget: 500000})
	require.NoError(t, err)
	require.Equal(t, uint64(1), second.QueueIndex)

	length, err = q.GetQueueLength(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), length)

	first, err := q.GetQueueElement(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(0), first.QueueIndex)
	require.Equal(t, TransactionHash(sender, addrA, 500000, common.FromHex("0x1234")), first.TransactionHash)
	require.Equal(t, uint64(1700000000), first.Timestamp)
	require.Equal(t, uint64(100), first.BlockNumber)
	require.Equal(t, sender, first.Sender)
	require.Equal(t, addrA, first.Target)
	require.Equal(t, common.FromHex("0x1234"), first.Data)

	stored, err := q.GetQueueElement(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, second, stored)
	require.Equal(t, uint64(1700000015), stored.Timestamp)
	require.Equal(t, uint64(101), stored.BlockNumber)

	_, err = q.GetQueueElement(ctx, 2)
	require.ErrorIs(t, err, ErrIndexOutOfBounds)

	elements, err := q.GetQueueElements(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, []Element{second}, elements)
	elements, err = q.GetQueueElements(ctx, 5, 10)
	require.NoError(t, err)
	require.Empty(t, elements)
}

func TestTransactionHash(t *testing.T) {
	data := common.FromHex("0x1234")
	// abi.encode(address, address, uint256, bytes) laid out by hand
	encoded := make([]byte, 0, 6*32)
	encoded = append(encoded, common.LeftPadBytes(sender.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(addrA.Bytes(), 32)...)
	encoded = append(encoded, common.LeftPadBytes(common.FromHex("0x07a120"), 32)...)
	encoded = append(encoded, common.LeftPadBytes([]byte{0x80}, 32)...)
	encoded = append(encoded, common.LeftPadBytes([]byte{0x02}, 32)...)
	encoded = append(encoded, common.RightPadBytes(data, 32)...)
	require.Equal(t, crypto.Keccak256Hash(encoded), TransactionHash(sender, addrA, 500000, data))
	require.Equal(t, TransactionHash(sender, addrA, 1, nil), TransactionHash(sender, addrA, 1, []byte{}))
}

func TestEnqueueValidation(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	tests := []struct {
		name        string
		req         EnqueueRequest
		expectedErr error
	}{
		{
			name:        "data too large",
			req:         EnqueueRequest{Target: addrA, GasLimit: 500000, Data: make([]byte, 50001), GasBudget: 500000},
			expectedErr: ErrInvalidInput,
		},
		{
			name:        "gas limit too low",
			req:         EnqueueRequest{Target: addrA, GasLimit: 99999, GasBudget: 500000},
			expectedErr: ErrInvalidInput,
		},
		{
			name:        "not enough gas to burn",
			req:         EnqueueRequest{Target: addrA, GasLimit: 3200000, GasBudget: 99999},
			expectedErr: ErrInsufficientGas,
		},
		{
			name: "limits are inclusive",
			req:  EnqueueRequest{Target: addrA, GasLimit: 100000, Data: make([]byte, 50000), GasBudget: 3125},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := q.GetQueueLength(ctx)
			require.NoError(t, err)
			_, err = q.Enqueue(ctx, tt.req)
			after, errLen := q.GetQueueLength(ctx)
			require.NoError(t, errLen)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				require.Equal(t, before, after)
			} else {
				require.NoError(t, err)
				require.Equal(t, before+1, after)
			}
		})
	}
}

func TestEnqueueEvent(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	ch := make(chan TransactionEnqueued, 1)
	sub := q.SubscribeTransactionEnqueued(ch)
	defer sub.Unsubscribe()

	_, err := q.Enqueue(ctx, EnqueueRequest{Sender: sender, Target: addrA, GasLimit: 500000, Data: []byte{0x01}, GasBudget: 500000})
	require.NoError(t, err)

	select {
	case ev := <-ch:
		require.Equal(t, TransactionEnqueued{
			Sender:      sender,
			Target:      addrA,
			GasLimit:    500000,
			Data:        []byte{0x01},
			QueueIndex:  0,
			Timestamp:   1700000000,
			BlockNumber: 100,
		}, ev)
	case <-time.After(time.Second):
		t.Fatal("TransactionEnqueued not received")
	}
}

func TestConcurrentEnqueue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := q.Enqueue(ctx, EnqueueRequest{Target: addrA, GasLimit: 100000, Data: []byte{byte(i)}, GasBudget: 100000})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	length, err := q.GetQueueLength(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(n), length)
	elements, err := q.GetQueueElements(ctx, 0, n)
	require.NoError(t, err)
	for i, e := range elements {
		require.Equal(t, uint64(i), e.QueueIndex)
	}
}
