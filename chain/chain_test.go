package chain

import (
	"context"
	"path"
	"testing"
	"time"

	"github.com/0xPolygon/ctc/batch"
	"github.com/0xPolygon/ctc/chain/types"
	"github.com/0xPolygon/ctc/clock"
	"github.com/0xPolygon/ctc/log"
	"github.com/0xPolygon/ctc/queue"
	"github.com/0xPolygon/ctc/registry"
	"github.com/0xPolygon/ctc/tree"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	startTimestamp = 1700000000
	startBlock     = 100
)

var (
	sequencer = common.HexToAddress("0x5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e5e")
	sender    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	target    = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

type testData struct {
	ctx    context.Context
	merger *Merger
	queue  *queue.Queue
	clock  *clock.ManualClock
	reg    *registry.Static
}

func newTestData(t *testing.T, cfg Config) *testData {
	t.Helper()
	logger := log.WithFields("module", "chain-test")
	reg, err := registry.NewStatic(registry.Config{
		Sequencer:            sequencer,
		MinRollupTxGas:       100000,
		MaxRollupTxSize:      50000,
		L2GasDiscountDivisor: 32,
	})
	require.NoError(t, err)
	clk := clock.NewManualClock(startTimestamp, startBlock)
	dir := t.TempDir()
	q, err := queue.New(logger, queue.Config{DBPath: path.Join(dir, "queue.sqlite")}, reg, clk)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, q.Close()) })

	cfg.DBPath = path.Join(dir, "chain.sqlite")
	if cfg.ForceInclusionPeriodSeconds == 0 {
		cfg.ForceInclusionPeriodSeconds = 2592000
	}
	if cfg.ForceInclusionPeriodBlocks == 0 {
		cfg.ForceInclusionPeriodBlocks = 172800
	}
	m, err := New(logger, cfg, q, reg, clk)
	require.NoError(t, err)
	return &testData{
		ctx:    context.Background(),
		merger: m,
		queue:  q,
		clock:  clk,
		reg:    reg,
	}
}

func (td *testData) enqueue(t *testing.T, data []byte) queue.Element {
	t.Helper()
	e, err := td.queue.Enqueue(td.ctx, queue.EnqueueRequest{
		Sender:    sender,
		Target:    target,
		GasLimit:  500000,
		Data:      data,
		GasBudget: 500000,
	})
	require.NoError(t, err)
	return e
}

func encode(t *testing.T, b *batch.SequencerBatch) []byte {
	t.Helper()
	encoded, err := batch.Encode(b)
	require.NoError(t, err)
	return encoded
}

func (td *testData) append(t *testing.T, b *batch.SequencerBatch) (types.BatchHeader, error) {
	t.Helper()
	return td.merger.AppendSequencerBatch(td.ctx, sequencer, encode(t, b))
}

// requireUnchanged checks that the chain still has the given totals
func (td *testData) requireUnchanged(t *testing.T, totalElements, totalBatches uint64) {
	t.Helper()
	total, err := td.merger.GetTotalElements(td.ctx)
	require.NoError(t, err)
	require.Equal(t, totalElements, total)
	batches, err := td.merger.GetTotalBatches(td.ctx)
	require.NoError(t, err)
	require.Equal(t, totalBatches, batches)
}

func singleTxBatch(start, timestamp, blockNumber uint64, data []byte) *batch.SequencerBatch {
	return &batch.SequencerBatch{
		ShouldStartAtElement:  start,
		TotalElementsToAppend: 1,
		Contexts: []batch.BatchContext{
			{NumSequencedTransactions: 1, Timestamp: timestamp, BlockNumber: blockNumber},
		},
		Transactions: [][]byte{data},
	}
}

func TestAppendSingleSequencerTransaction(t *testing.T) {
	td := newTestData(t, Config{})
	ch := make(chan types.SequencerBatchAppended, 1)
	sub := td.merger.SubscribeSequencerBatchAppended(ch)
	defer sub.Unsubscribe()

	data := common.FromHex("0x1234")
	header, err := td.append(t, singleTxBatch(0, startTimestamp, startBlock, data))
	require.NoError(t, err)
	require.Equal(t, uint64(0), header.BatchIndex)
	require.Equal(t, uint64(1), header.BatchSize)
	require.Equal(t, uint64(0), header.PrevTotalElements)
	require.Equal(t, types.SequencerLeaf(startTimestamp, startBlock, data), header.BatchRoot)

	td.requireUnchanged(t, 1, 1)
	stored, err := td.merger.GetBatchHeader(td.ctx, 0)
	require.NoError(t, err)
	require.Equal(t, header, stored)

	meta, err := td.merger.GetMetadata(td.ctx)
	require.NoError(t, err)
	require.Equal(t, types.ChainMetadata{
		TotalElements:   1,
		NextQueueIndex:  0,
		LastTimestamp:   startTimestamp,
		LastBlockNumber: startBlock,
	}, meta)
	ts, err := td.merger.GetLastTimestamp(td.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(startTimestamp), ts)
	bn, err := td.merger.GetLastBlockNumber(td.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(startBlock), bn)

	select {
	case ev := <-ch:
		require.Equal(t, types.SequencerBatchAppended{
			BatchIndex:    0,
			BatchRoot:     header.BatchRoot,
			BatchSize:     1,
			TotalElements: 1,
		}, ev)
	case <-time.After(time.Second):
		t.Fatal("SequencerBatchAppended not received")
	}
}

func TestAppendOutOfOrder(t *testing.T) {
	td := newTestData(t, Config{})
	_, err := td.append(t, singleTxBatch(5, startTimestamp, startBlock, common.FromHex("0x1234")))
	require.ErrorIs(t, err, ErrOutOfOrder)
	td.requireUnchanged(t, 0, 0)

	_, err = td.append(t, singleTxBatch(0, startTimestamp, startBlock, common.FromHex("0x1234")))
	require.NoError(t, err)
	_, err = td.append(t, singleTxBatch(0, startTimestamp, startBlock, common.FromHex("0x1234")))
	require.ErrorIs(t, err, ErrOutOfOrder)
	td.requireUnchanged(t, 1, 1)
}

func TestAppendUnauthorized(t *testing.T) {
	td := newTestData(t, Config{})
	encoded := encode(t, singleTxBatch(0, startTimestamp, startBlock, []byte{0x01}))

	_, err := td.merger.AppendSequencerBatch(td.ctx, sender, encoded)
	require.ErrorIs(t, err, ErrUnauthorized)
	td.requireUnchanged(t, 0, 0)

	// rotating the sequencer in the registry is picked up on the next call
	td.reg.SetAddress(registry.SequencerName, sender)
	_, err = td.merger.AppendSequencerBatch(td.ctx, sequencer, encoded)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = td.merger.AppendSequencerBatch(td.ctx, sender, encoded)
	require.NoError(t, err)
}

func TestAppendInvalidEncoding(t *testing.T) {
	td := newTestData(t, Config{})
	encoded := encode(t, singleTxBatch(0, startTimestamp, startBlock, []byte{0x01, 0x02}))

	_, err := td.merger.AppendSequencerBatch(td.ctx, sequencer, encoded[:len(encoded)-1])
	require.ErrorIs(t, err, ErrInvalidEncoding)
	_, err = td.merger.AppendSequencerBatch(td.ctx, sequencer, encoded[:4])
	require.ErrorIs(t, err, ErrInvalidEncoding)
	td.requireUnchanged(t, 0, 0)
}

func TestAppendEmptyBatch(t *testing.T) {
	td := newTestData(t, Config{})
	_, err := td.append(t, &batch.SequencerBatch{})
	require.ErrorIs(t, err, ErrEmptyBatch)

	_, err = td.append(t, &batch.SequencerBatch{
		Contexts: []batch.BatchContext{{Timestamp: startTimestamp, BlockNumber: startBlock}},
	})
	require.ErrorIs(t, err, ErrEmptyBatch)
	td.requireUnchanged(t, 0, 0)
}

func TestAppendMergesQueue(t *testing.T) {
	td := newTestData(t, Config{})
	q0 := td.enqueue(t, common.FromHex("0x1234"))
	td.clock.Advance(12, 1)
	q1 := td.enqueue(t, common.FromHex("0x5678"))
	td.clock.Advance(12, 1)

	pending, err := td.merger.GetNumPendingQueueElements(td.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), pending)

	b := &batch.SequencerBatch{
		ShouldStartAtElement:  0,
		TotalElementsToAppend: 5,
		Contexts: []batch.BatchContext{
			{NumSequencedTransactions: 1, NumSubsequentQueueTransactions: 1, Timestamp: startTimestamp, BlockNumber: startBlock},
			{NumSequencedTransactions: 2, NumSubsequentQueueTransactions: 1, Timestamp: startTimestamp + 12, BlockNumber: startBlock + 1},
			{NumSequencedTransactions: 0, NumSubsequentQueueTransactions: 0, Timestamp: startTimestamp + 24, BlockNumber: startBlock + 2},
		},
		Transactions: [][]byte{{0xa1}, {0xb1}, {0xb2}},
	}
	header, err := td.append(t, b)
	require.NoError(t, err)
	require.Equal(t, uint64(5), header.BatchSize)

	expected := []types.ChainElement{
		{IsSequenced: true, Timestamp: startTimestamp, BlockNumber: startBlock, TxData: []byte{0xa1}},
		{QueueIndex: 0},
		{IsSequenced: true, Timestamp: startTimestamp + 12, BlockNumber: startBlock + 1, TxData: []byte{0xb1}},
		{IsSequenced: true, Timestamp: startTimestamp + 12, BlockNumber: startBlock + 1, TxData: []byte{0xb2}},
		{QueueIndex: 1},
	}
	leaves := make([]common.Hash, len(expected))
	for i, e := range expected {
		leaves[i] = e.Leaf()
	}
	root, err := tree.GetRoot(leaves)
	require.NoError(t, err)
	require.Equal(t, root, header.BatchRoot)

	meta, err := td.merger.GetMetadata(td.ctx)
	require.NoError(t, err)
	require.Equal(t, types.ChainMetadata{
		TotalElements:   5,
		NextQueueIndex:  2,
		LastTimestamp:   startTimestamp + 24,
		LastBlockNumber: startBlock + 2,
	}, meta)
	pending, err = td.merger.GetNumPendingQueueElements(td.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), pending)

	queued := map[uint64]queue.Element{0: q0, 1: q1}
	for i := uint64(0); i < 5; i++ {
		ep, err := td.merger.GetInclusionProof(td.ctx, i)
		require.NoError(t, err)
		require.Equal(t, i, ep.Element.Index)
		require.Equal(t, i, ep.Proof.Index)
		require.Equal(t, header, ep.BatchHeader)
		require.Equal(t, leaves[i], ep.Element.Leaf)

		var tx types.Transaction
		if ep.Element.IsSequenced {
			tx = types.Transaction{
				Timestamp:     ep.Element.Timestamp,
				BlockNumber:   ep.Element.BlockNumber,
				L1QueueOrigin: types.SequencerQueue,
				Data:          ep.Element.TxData,
			}
		} else {
			q := queued[ep.Element.QueueIndex]
			require.Equal(t, q.Timestamp, ep.Element.Timestamp)
			tx = types.Transaction{
				Timestamp:     q.Timestamp,
				BlockNumber:   q.BlockNumber,
				L1QueueOrigin: types.L1ToL2Queue,
				L1TxOrigin:    q.Sender,
				Entrypoint:    q.Target,
				GasLimit:      q.GasLimit,
				Data:          q.Data,
			}
		}
		ok, err := td.merger.VerifyTransaction(td.ctx, tx, ep.Element.ChainElement(), ep.BatchHeader, ep.Proof)
		require.NoError(t, err)
		require.True(t, ok, "element %d", i)
	}
}

func TestAppendMultipleBatches(t *testing.T) {
	td := newTestData(t, Config{})
	var total uint64
	for i := uint64(0); i < 4; i++ {
		size := i + 1
		b := &batch.SequencerBatch{
			ShouldStartAtElement:  total,
			TotalElementsToAppend: size,
			Contexts: []batch.BatchContext{
				{NumSequencedTransactions: size, Timestamp: startTimestamp, BlockNumber: startBlock},
			},
		}
		for j := uint64(0); j < size; j++ {
			b.Transactions = append(b.Transactions, []byte{byte(i), byte(j)})
		}
		header, err := td.append(t, b)
		require.NoError(t, err)
		require.Equal(t, i, header.BatchIndex)
		require.Equal(t, total, header.PrevTotalElements)
		total += size
		td.requireUnchanged(t, total, i+1)
	}

	ep, err := td.merger.GetInclusionProof(td.ctx, 7)
	require.NoError(t, err)
	require.Equal(t, uint64(3), ep.BatchHeader.BatchIndex)
	require.Equal(t, uint64(1), ep.Proof.Index)
	require.Len(t, ep.Proof.Siblings, 2)
	require.Equal(t, []byte{3, 1}, ep.Element.TxData)

	_, err = td.merger.GetInclusionProof(td.ctx, total)
	require.ErrorIs(t, err, ErrIndexOutOfBounds)
	_, err = td.merger.GetBatchHeader(td.ctx, 4)
	require.ErrorIs(t, err, ErrIndexOutOfBounds)
	_, err = td.merger.GetElement(td.ctx, total)
	require.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestAppendRejectsNonMonotonicContexts(t *testing.T) {
	td := newTestData(t, Config{})
	td.clock.Advance(100, 10)
	_, err := td.append(t, singleTxBatch(0, startTimestamp+50, startBlock+5, []byte{0x01}))
	require.NoError(t, err)

	tests := []struct {
		name  string
		batch *batch.SequencerBatch
	}{
		{
			name:  "older timestamp than the chain",
			batch: singleTxBatch(1, startTimestamp+49, startBlock+5, []byte{0x02}),
		},
		{
			name:  "older block number than the chain",
			batch: singleTxBatch(1, startTimestamp+50, startBlock+4, []byte{0x02}),
		},
		{
			name: "contexts going backwards inside the batch",
			batch: &batch.SequencerBatch{
				ShouldStartAtElement:  1,
				TotalElementsToAppend: 2,
				Contexts: []batch.BatchContext{
					{NumSequencedTransactions: 1, Timestamp: startTimestamp + 60, BlockNumber: startBlock + 6},
					{NumSequencedTransactions: 1, Timestamp: startTimestamp + 59, BlockNumber: startBlock + 6},
				},
				Transactions: [][]byte{{0x02}, {0x03}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := td.append(t, tt.batch)
			require.ErrorIs(t, err, ErrNonMonotonic)
			td.requireUnchanged(t, 1, 1)
		})
	}

	// same values as the high-water mark are accepted
	_, err = td.append(t, singleTxBatch(1, startTimestamp+50, startBlock+5, []byte{0x02}))
	require.NoError(t, err)
}

func TestAppendRejectsContextInFuture(t *testing.T) {
	td := newTestData(t, Config{})
	_, err := td.append(t, singleTxBatch(0, startTimestamp+1, startBlock, []byte{0x01}))
	require.ErrorIs(t, err, ErrContextInFuture)
	_, err = td.append(t, singleTxBatch(0, startTimestamp, startBlock+1, []byte{0x01}))
	require.ErrorIs(t, err, ErrContextInFuture)
	td.requireUnchanged(t, 0, 0)
}

func TestAppendCannotSkipPastPendingQueueElement(t *testing.T) {
	td := newTestData(t, Config{})
	td.enqueue(t, []byte{0x01})
	td.clock.Advance(30, 2)

	_, err := td.append(t, singleTxBatch(0, startTimestamp+10, startBlock+1, []byte{0x02}))
	require.ErrorIs(t, err, ErrNonMonotonic)
	td.requireUnchanged(t, 0, 0)

	// a context no newer than the pending element may leave it pending
	_, err = td.append(t, singleTxBatch(0, startTimestamp, startBlock, []byte{0x02}))
	require.NoError(t, err)
	next, err := td.merger.GetNextQueueIndex(td.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), next)
}

func TestAppendRejectsOlderQueueElementsPending(t *testing.T) {
	tests := []struct {
		name           string
		advanceSeconds uint64
		advanceBlocks  uint64
		expectedErr    error
	}{
		{name: "within both periods", advanceSeconds: 99, advanceBlocks: 9},
		{name: "seconds period elapsed", advanceSeconds: 100, advanceBlocks: 1, expectedErr: ErrOlderQueueBatchesPending},
		{name: "blocks period elapsed", advanceSeconds: 1, advanceBlocks: 10, expectedErr: ErrOlderQueueBatchesPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td := newTestData(t, Config{ForceInclusionPeriodSeconds: 100, ForceInclusionPeriodBlocks: 10})
			td.enqueue(t, []byte{0x01})
			td.clock.Advance(tt.advanceSeconds, tt.advanceBlocks)

			_, err := td.append(t, singleTxBatch(0, startTimestamp, startBlock, []byte{0x02}))
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				td.requireUnchanged(t, 0, 0)
				return
			}
			require.NoError(t, err)
		})
	}

	t.Run("including the old element succeeds", func(t *testing.T) {
		td := newTestData(t, Config{ForceInclusionPeriodSeconds: 100, ForceInclusionPeriodBlocks: 10})
		td.enqueue(t, []byte{0x01})
		td.clock.Advance(1000, 100)
		_, err := td.append(t, &batch.SequencerBatch{
			ShouldStartAtElement:  0,
			TotalElementsToAppend: 2,
			Contexts: []batch.BatchContext{
				{NumSequencedTransactions: 1, NumSubsequentQueueTransactions: 1, Timestamp: startTimestamp, BlockNumber: startBlock},
			},
			Transactions: [][]byte{{0x02}},
		})
		require.NoError(t, err)
	})
}

func TestAppendCountMismatch(t *testing.T) {
	td := newTestData(t, Config{})
	tests := []struct {
		name        string
		batch       *batch.SequencerBatch
		expectedErr error
	}{
		{
			name: "missing sequencer transactions",
			batch: &batch.SequencerBatch{
				TotalElementsToAppend: 2,
				Contexts:              []batch.BatchContext{{NumSequencedTransactions: 2, Timestamp: startTimestamp, BlockNumber: startBlock}},
				Transactions:          [][]byte{{0x01}},
			},
			expectedErr: ErrCountMismatch,
		},
		{
			name: "missing queue elements",
			batch: &batch.SequencerBatch{
				TotalElementsToAppend: 1,
				Contexts:              []batch.BatchContext{{NumSubsequentQueueTransactions: 1, Timestamp: startTimestamp, BlockNumber: startBlock}},
			},
			expectedErr: ErrCountMismatch,
		},
		{
			name: "declared total too high",
			batch: &batch.SequencerBatch{
				TotalElementsToAppend: 2,
				Contexts:              []batch.BatchContext{{NumSequencedTransactions: 1, Timestamp: startTimestamp, BlockNumber: startBlock}},
				Transactions:          [][]byte{{0x01}},
			},
			expectedErr: ErrCountMismatch,
		},
		{
			name: "unconsumed transactions",
			batch: &batch.SequencerBatch{
				TotalElementsToAppend: 1,
				Contexts:              []batch.BatchContext{{NumSequencedTransactions: 1, Timestamp: startTimestamp, BlockNumber: startBlock}},
				Transactions:          [][]byte{{0x01}, {0x02}},
			},
			expectedErr: ErrUnconsumedInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := td.append(t, tt.batch)
			require.ErrorIs(t, err, tt.expectedErr)
			td.requireUnchanged(t, 0, 0)
		})
	}
}

func TestAppendQueueBatchIsDisabled(t *testing.T) {
	td := newTestData(t, Config{})
	td.enqueue(t, []byte{0x01})
	require.ErrorIs(t, td.merger.AppendQueueBatch(td.ctx, 1), ErrQueueBatchDisabled)
	td.requireUnchanged(t, 0, 0)
}

func TestVerifyTransactionChecksHeaderAndQueue(t *testing.T) {
	td := newTestData(t, Config{})
	q := td.enqueue(t, []byte{0x01})
	header, err := td.append(t, &batch.SequencerBatch{
		TotalElementsToAppend: 1,
		Contexts: []batch.BatchContext{
			{NumSubsequentQueueTransactions: 1, Timestamp: startTimestamp, BlockNumber: startBlock},
		},
	})
	require.NoError(t, err)

	tx := types.Transaction{
		Timestamp:     q.Timestamp,
		BlockNumber:   q.BlockNumber,
		L1QueueOrigin: types.L1ToL2Queue,
		L1TxOrigin:    q.Sender,
		Entrypoint:    q.Target,
		GasLimit:      q.GasLimit,
		Data:          q.Data,
	}
	element := types.ChainElement{QueueIndex: 0}
	proof := types.ChainInclusionProof{Index: 0}

	ok, err := td.merger.VerifyTransaction(td.ctx, tx, element, header, proof)
	require.NoError(t, err)
	require.True(t, ok)

	tampered := header
	tampered.BatchRoot = common.HexToHash("0x01")
	_, err = td.merger.VerifyTransaction(td.ctx, tx, element, tampered, proof)
	require.ErrorIs(t, err, ErrInvalidBatchHeader)

	unknown := header
	unknown.BatchIndex = 1
	_, err = td.merger.VerifyTransaction(td.ctx, tx, element, unknown, proof)
	require.ErrorIs(t, err, ErrInvalidBatchHeader)

	wrongGas := tx
	wrongGas.GasLimit++
	ok, err = td.merger.VerifyTransaction(td.ctx, wrongGas, element, header, proof)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = td.merger.VerifyTransaction(td.ctx, tx, types.ChainElement{QueueIndex: 9}, header, proof)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = td.merger.VerifyTransaction(td.ctx, tx, element, header, types.ChainInclusionProof{Index: 1})
	require.ErrorIs(t, err, tree.ErrInvalidProof)
}
