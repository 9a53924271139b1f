package chain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/0xPolygon/ctc/batch"
	chaindb "github.com/0xPolygon/ctc/chain/db"
	"github.com/0xPolygon/ctc/chain/types"
	"github.com/0xPolygon/ctc/clock"
	"github.com/0xPolygon/ctc/db"
	"github.com/0xPolygon/ctc/log"
	"github.com/0xPolygon/ctc/queue"
	"github.com/0xPolygon/ctc/registry"
	"github.com/0xPolygon/ctc/tree"
	"github.com/0xPolygon/ctc/verifier"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

var (
	ErrUnauthorized             = errors.New("caller is not the sequencer")
	ErrInvalidEncoding          = batch.ErrInvalidEncoding
	ErrOutOfOrder               = errors.New("batch does not start at the end of the chain")
	ErrEmptyBatch               = errors.New("batch is empty")
	ErrNonMonotonic             = errors.New("timestamp or block number goes backwards")
	ErrContextInFuture          = errors.New("context is ahead of the current time")
	ErrOlderQueueBatchesPending = errors.New("older queue batches must be processed before a new sequencer batch")
	ErrUnconsumedInput          = errors.New("not all sequencer transactions were consumed")
	ErrCountMismatch            = errors.New("element count mismatch")
	ErrIndexOutOfBounds         = queue.ErrIndexOutOfBounds
	ErrInvalidBatchHeader       = errors.New("invalid batch header")
	ErrQueueBatchDisabled       = errors.New("appending queue batches is disabled")
)

// Merger merges the queue and the sequencer batches into the canonical chain
type Merger struct {
	logger   *log.Logger
	cfg      Config
	storage  chaindb.ChainStorer
	queue    queue.Storer
	registry registry.Registry
	clock    clock.Clock

	mu           sync.Mutex
	appendedFeed event.Feed
}

// New creates a Merger whose chain is stored at cfg.DBPath
func New(
	logger *log.Logger,
	cfg Config,
	queueStorer queue.Storer,
	reg registry.Registry,
	clk clock.Clock,
) (*Merger, error) {
	storage, err := chaindb.NewChainSQLStorage(logger, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error creating chain storage: %w", err)
	}
	return newMerger(logger, cfg, storage, queueStorer, reg, clk), nil
}

func newMerger(
	logger *log.Logger,
	cfg Config,
	storage chaindb.ChainStorer,
	queueStorer queue.Storer,
	reg registry.Registry,
	clk clock.Clock,
) *Merger {
	return &Merger{
		logger:   logger,
		cfg:      cfg,
		storage:  storage,
		queue:    queueStorer,
		registry: reg,
		clock:    clk,
	}
}

// AppendSequencerBatch decodes encoded, merges it with the pending queue elements and
// appends the result as a new batch. On error nothing is stored.
func (m *Merger) AppendSequencerBatch(
	ctx context.Context, caller common.Address, encoded []byte,
) (types.BatchHeader, error) {
	sequencer, err := registry.ResolveAddress(ctx, m.registry, registry.SequencerName)
	if err != nil {
		return types.BatchHeader{}, fmt.Errorf("error resolving sequencer: %w", err)
	}
	if caller != sequencer {
		return types.BatchHeader{}, fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}

	b, err := batch.Decode(encoded)
	if err != nil {
		return types.BatchHeader{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	meta, err := m.getMetadata(ctx)
	if err != nil {
		return types.BatchHeader{}, err
	}
	if b.ShouldStartAtElement != meta.TotalElements {
		return types.BatchHeader{}, fmt.Errorf("%w: batch starts at %d, chain has %d elements",
			ErrOutOfOrder, b.ShouldStartAtElement, meta.TotalElements)
	}
	if len(b.Contexts) == 0 || b.TotalElementsToAppend == 0 {
		return types.BatchHeader{}, fmt.Errorf("%w: %d contexts, %d elements to append",
			ErrEmptyBatch, len(b.Contexts), b.TotalElementsToAppend)
	}

	now, err := m.clock.Now(ctx)
	if err != nil {
		return types.BatchHeader{}, fmt.Errorf("error getting current time: %w", err)
	}
	pending, err := m.pendingQueueElements(ctx, meta.NextQueueIndex, b.NumQueueTransactions()+1)
	if err != nil {
		return types.BatchHeader{}, err
	}

	totalBatches, err := m.storage.GetTotalBatches(ctx)
	if err != nil {
		return types.BatchHeader{}, err
	}
	w := &walker{
		batchIndex: totalBatches,
		nextIndex:  meta.TotalElements,
		hwm:        clock.Time{Timestamp: meta.LastTimestamp, BlockNumber: meta.LastBlockNumber},
		now:        now,
		pending:    pending,
	}
	if err := w.walk(b); err != nil {
		return types.BatchHeader{}, err
	}
	if err := m.checkForceInclusion(w, now); err != nil {
		return types.BatchHeader{}, err
	}
	if w.txCursor != len(b.Transactions) {
		return types.BatchHeader{}, fmt.Errorf("%w: %d of %d transactions consumed",
			ErrUnconsumedInput, w.txCursor, len(b.Transactions))
	}
	if uint64(len(w.elements)) != b.TotalElementsToAppend {
		return types.BatchHeader{}, fmt.Errorf("%w: contexts describe %d elements, batch declares %d",
			ErrCountMismatch, len(w.elements), b.TotalElementsToAppend)
	}

	leaves := make([]common.Hash, len(w.elements))
	for i, e := range w.elements {
		leaves[i] = e.Leaf
	}
	root, err := tree.GetRoot(leaves)
	if err != nil {
		return types.BatchHeader{}, err
	}

	numQueue := uint64(w.queueCursor)
	newMeta := types.ChainMetadata{
		TotalElements:   meta.TotalElements + uint64(len(w.elements)),
		NextQueueIndex:  meta.NextQueueIndex + numQueue,
		LastTimestamp:   w.hwm.Timestamp,
		LastBlockNumber: w.hwm.BlockNumber,
	}
	extraData, err := newMeta.Encode()
	if err != nil {
		return types.BatchHeader{}, fmt.Errorf("%w: %w", ErrInvalidEncoding, err)
	}
	header := types.BatchHeader{
		BatchIndex:        totalBatches,
		BatchRoot:         root,
		BatchSize:         uint64(len(w.elements)),
		PrevTotalElements: meta.TotalElements,
		ExtraData:         extraData,
	}
	if err := m.storage.AppendBatch(ctx, header, w.elements); err != nil {
		return types.BatchHeader{}, fmt.Errorf("error storing batch %d: %w", header.BatchIndex, err)
	}

	m.logger.Infof("appended sequencer batch %d: root %s, %d elements (%d from queue), total elements %d",
		header.BatchIndex, header.BatchRoot, header.BatchSize, numQueue, newMeta.TotalElements)
	m.appendedFeed.Send(types.SequencerBatchAppended{
		BatchIndex:         header.BatchIndex,
		BatchRoot:          header.BatchRoot,
		BatchSize:          header.BatchSize,
		PrevTotalElements:  header.PrevTotalElements,
		StartingQueueIndex: meta.NextQueueIndex,
		NumQueueElements:   numQueue,
		TotalElements:      newMeta.TotalElements,
	})
	return header, nil
}

// pendingQueueElements returns up to limit queue elements starting at from
func (m *Merger) pendingQueueElements(ctx context.Context, from, limit uint64) ([]queue.Element, error) {
	length, err := m.queue.GetQueueLength(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting queue length: %w", err)
	}
	if from >= length {
		return nil, nil
	}
	if available := length - from; available < limit {
		limit = available
	}
	elements, err := m.queue.GetQueueElements(ctx, from, limit)
	if err != nil {
		return nil, fmt.Errorf("error getting pending queue elements: %w", err)
	}
	return elements, nil
}

func (m *Merger) checkForceInclusion(w *walker, now clock.Time) error {
	next, ok := w.nextPending()
	if !ok {
		return nil
	}
	if now.Timestamp >= next.Timestamp+m.cfg.ForceInclusionPeriodSeconds ||
		now.BlockNumber >= next.BlockNumber+m.cfg.ForceInclusionPeriodBlocks {
		return fmt.Errorf("%w: queue element %d enqueued at %s, now %s",
			ErrOlderQueueBatchesPending, next.QueueIndex, elementTime(next), now)
	}
	return nil
}

// walker expands the contexts of a batch into canonical elements
type walker struct {
	batchIndex uint64
	nextIndex  uint64
	// hwm is the highest timestamp and block number seen so far
	hwm     clock.Time
	now     clock.Time
	pending []queue.Element

	txCursor    int
	queueCursor int
	elements    []types.Element
}

func elementTime(e queue.Element) clock.Time {
	return clock.Time{Timestamp: e.Timestamp, BlockNumber: e.BlockNumber}
}

func (w *walker) nextPending() (queue.Element, bool) {
	if w.queueCursor >= len(w.pending) {
		return queue.Element{}, false
	}
	return w.pending[w.queueCursor], true
}

func (w *walker) walk(b *batch.SequencerBatch) error {
	for i, bc := range b.Contexts {
		if err := w.walkContext(b, bc); err != nil {
			return fmt.Errorf("context %d: %w", i, err)
		}
	}
	return nil
}

func (w *walker) walkContext(b *batch.SequencerBatch, bc batch.BatchContext) error {
	ct := clock.Time{Timestamp: bc.Timestamp, BlockNumber: bc.BlockNumber}
	if ct.Before(w.hwm) {
		return fmt.Errorf("%w: context %s is older than the previous element %s", ErrNonMonotonic, ct, w.hwm)
	}
	if ct.After(w.now) {
		return fmt.Errorf("%w: context %s, now %s", ErrContextInFuture, ct, w.now)
	}
	if next, ok := w.nextPending(); ok && ct.After(elementTime(next)) {
		return fmt.Errorf("%w: context %s is newer than pending queue element %d %s",
			ErrNonMonotonic, ct, next.QueueIndex, elementTime(next))
	}

	for j := uint64(0); j < bc.NumSequencedTransactions; j++ {
		if w.txCursor >= len(b.Transactions) {
			return fmt.Errorf("%w: only %d sequencer transactions provided", ErrCountMismatch, len(b.Transactions))
		}
		data := b.Transactions[w.txCursor]
		w.txCursor++
		w.elements = append(w.elements, types.Element{
			Index:       w.nextIndex,
			BatchIndex:  w.batchIndex,
			IsSequenced: true,
			Timestamp:   ct.Timestamp,
			BlockNumber: ct.BlockNumber,
			TxData:      data,
			Leaf:        types.SequencerLeaf(ct.Timestamp, ct.BlockNumber, data),
		})
		w.nextIndex++
	}
	w.hwm = ct

	for j := uint64(0); j < bc.NumSubsequentQueueTransactions; j++ {
		next, ok := w.nextPending()
		if !ok {
			return fmt.Errorf("%w: not enough pending queue elements", ErrCountMismatch)
		}
		qt := elementTime(next)
		if qt.Before(w.hwm) {
			return fmt.Errorf("%w: queue element %d %s is older than the previous element %s",
				ErrNonMonotonic, next.QueueIndex, qt, w.hwm)
		}
		w.elements = append(w.elements, types.Element{
			Index:       w.nextIndex,
			BatchIndex:  w.batchIndex,
			QueueIndex:  next.QueueIndex,
			Timestamp:   next.Timestamp,
			BlockNumber: next.BlockNumber,
			Leaf:        types.QueueLeaf(next.QueueIndex),
		})
		w.nextIndex++
		w.queueCursor++
		w.hwm = qt
	}
	return nil
}

// AppendQueueBatch would append up to numQueuedTransactions queue elements without a
// sequencer batch. It is disabled and always fails.
func (m *Merger) AppendQueueBatch(_ context.Context, _ uint64) error {
	return ErrQueueBatchDisabled
}

// SubscribeSequencerBatchAppended delivers every subsequently appended batch to ch
func (m *Merger) SubscribeSequencerBatchAppended(ch chan<- types.SequencerBatchAppended) event.Subscription {
	return m.appendedFeed.Subscribe(ch)
}

// GetMetadata returns the chain state after the last batch
func (m *Merger) GetMetadata(ctx context.Context) (types.ChainMetadata, error) {
	return m.getMetadata(ctx)
}

func (m *Merger) getMetadata(ctx context.Context) (types.ChainMetadata, error) {
	last, err := m.storage.GetLastBatchHeader(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return types.ChainMetadata{}, nil
	}
	if err != nil {
		return types.ChainMetadata{}, fmt.Errorf("error getting last batch header: %w", err)
	}
	return types.DecodeChainMetadata(last.ExtraData)
}

func (m *Merger) GetTotalElements(ctx context.Context) (uint64, error) {
	meta, err := m.getMetadata(ctx)
	return meta.TotalElements, err
}

func (m *Merger) GetNextQueueIndex(ctx context.Context) (uint64, error) {
	meta, err := m.getMetadata(ctx)
	return meta.NextQueueIndex, err
}

func (m *Merger) GetLastTimestamp(ctx context.Context) (uint64, error) {
	meta, err := m.getMetadata(ctx)
	return meta.LastTimestamp, err
}

func (m *Merger) GetLastBlockNumber(ctx context.Context) (uint64, error) {
	meta, err := m.getMetadata(ctx)
	return meta.LastBlockNumber, err
}

// GetNumPendingQueueElements returns how many queue elements no batch has consumed yet
func (m *Merger) GetNumPendingQueueElements(ctx context.Context) (uint64, error) {
	meta, err := m.getMetadata(ctx)
	if err != nil {
		return 0, err
	}
	length, err := m.queue.GetQueueLength(ctx)
	if err != nil {
		return 0, err
	}
	return length - meta.NextQueueIndex, nil
}

func (m *Merger) GetTotalBatches(ctx context.Context) (uint64, error) {
	return m.storage.GetTotalBatches(ctx)
}

func (m *Merger) GetBatchHeader(ctx context.Context, index uint64) (types.BatchHeader, error) {
	header, err := m.storage.GetBatchHeader(ctx, index)
	if errors.Is(err, db.ErrNotFound) {
		return types.BatchHeader{}, fmt.Errorf("%w: batch %d", ErrIndexOutOfBounds, index)
	}
	return header, err
}

func (m *Merger) GetElement(ctx context.Context, index uint64) (types.Element, error) {
	element, err := m.storage.GetElement(ctx, index)
	if errors.Is(err, db.ErrNotFound) {
		return types.Element{}, fmt.Errorf("%w: element %d", ErrIndexOutOfBounds, index)
	}
	return element, err
}

// GetInclusionProof returns the element at index together with its batch header and
// the proof that the element belongs to it
func (m *Merger) GetInclusionProof(ctx context.Context, index uint64) (types.ElementProof, error) {
	element, err := m.GetElement(ctx, index)
	if err != nil {
		return types.ElementProof{}, err
	}
	header, err := m.GetBatchHeader(ctx, element.BatchIndex)
	if err != nil {
		return types.ElementProof{}, err
	}
	leaves, err := m.storage.GetBatchLeaves(ctx, element.BatchIndex)
	if err != nil {
		return types.ElementProof{}, err
	}
	hashes := make([]common.Hash, len(leaves))
	for i, l := range leaves {
		hashes[i] = l.Hash
	}
	proof, err := tree.GetProof(hashes, element.Index-header.PrevTotalElements)
	if err != nil {
		return types.ElementProof{}, fmt.Errorf("error building proof for element %d: %w", index, err)
	}
	return types.ElementProof{
		Element:     element,
		BatchHeader: header,
		Proof:       types.ChainInclusionProof{Index: proof.Index, Siblings: proof.Siblings},
	}, nil
}

// VerifyTransaction checks that header is a stored batch header and that tx is the
// element at proof.Index of that batch. Queue claims are also checked against the queue.
func (m *Merger) VerifyTransaction(
	ctx context.Context,
	tx types.Transaction,
	element types.ChainElement,
	header types.BatchHeader,
	proof types.ChainInclusionProof,
) (bool, error) {
	stored, err := m.storage.GetBatchHeader(ctx, header.BatchIndex)
	if errors.Is(err, db.ErrNotFound) {
		return false, fmt.Errorf("%w: batch %d does not exist", ErrInvalidBatchHeader, header.BatchIndex)
	}
	if err != nil {
		return false, err
	}
	if stored.Hash() != header.Hash() {
		return false, fmt.Errorf("%w: batch %d hash mismatch", ErrInvalidBatchHeader, header.BatchIndex)
	}

	if !element.IsSequenced {
		queued, err := m.queue.GetQueueElement(ctx, element.QueueIndex)
		if errors.Is(err, queue.ErrIndexOutOfBounds) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if !verifier.MatchesQueueElement(tx, queued) {
			return false, nil
		}
	}
	return verifier.VerifyTransaction(tx, element, header, proof)
}
