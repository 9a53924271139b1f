package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/0xPolygon/ctc/clock"
	"github.com/0xPolygon/ctc/db"
	"github.com/0xPolygon/ctc/log"
	"github.com/0xPolygon/ctc/queue/migrations"
	"github.com/0xPolygon/ctc/registry"
	"github.com/ethereum/go-ethereum/event"
	"github.com/russross/meddler"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInsufficientGas  = errors.New("insufficient gas")
	ErrIndexOutOfBounds = errors.New("index out of bounds")
)

// Storer is the read side of the queue used by the chain merger and the RPC
type Storer interface {
	GetQueueElement(ctx context.Context, index uint64) (Element, error)
	GetQueueElements(ctx context.Context, fromIndex, count uint64) ([]Element, error)
	GetQueueLength(ctx context.Context) (uint64, error)
}

var _ Storer = (*Queue)(nil)

// Queue is the permissionless FIFO of transactions waiting to be merged into the chain
type Queue struct {
	logger   *log.Logger
	db       *sql.DB
	registry registry.Registry
	clock    clock.Clock

	mu           sync.Mutex
	enqueuedFeed event.Feed
}

// New creates a Queue stored at cfg.DBPath, running the migrations if needed
func New(logger *log.Logger, cfg Config, reg registry.Registry, clk clock.Clock) (*Queue, error) {
	if err := migrations.RunMigrations(cfg.DBPath); err != nil {
		return nil, err
	}
	database, err := db.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	return &Queue{
		logger:   logger,
		db:       database,
		registry: reg,
		clock:    clk,
	}, nil
}

// Enqueue validates req against the gas policy and appends it to the queue,
// stamped with the current ambient time
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (Element, error) {
	policy, err := registry.GetGasPolicy(ctx, q.registry)
	if err != nil {
		return Element{}, fmt.Errorf("error getting gas policy: %w", err)
	}
	if uint64(len(req.Data)) > policy.MaxRollupTxSize {
		return Element{}, fmt.Errorf("%w: transaction data size %d exceeds maximum %d",
			ErrInvalidInput, len(req.Data), policy.MaxRollupTxSize)
	}
	if req.GasLimit < policy.MinRollupTxGas {
		return Element{}, fmt.Errorf("%w: gas limit %d is below the minimum %d",
			ErrInvalidInput, req.GasLimit, policy.MinRollupTxGas)
	}
	if toBurn := policy.GasToBurn(req.GasLimit); req.GasBudget < toBurn {
		return Element{}, fmt.Errorf("%w: %d gas provided, %d must be burned",
			ErrInsufficientGas, req.GasBudget, toBurn)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now, err := q.clock.Now(ctx)
	if err != nil {
		return Element{}, err
	}

	tx, err := db.NewTx(ctx, q.db)
	if err != nil {
		return Element{}, err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				q.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	length, err := getQueueLength(tx)
	if err != nil {
		return Element{}, err
	}
	data := req.Data
	if data == nil {
		data = []byte{}
	}
	element := Element{
		QueueIndex:      length,
		TransactionHash: TransactionHash(req.Sender, req.Target, req.GasLimit, data),
		Timestamp:       now.Timestamp,
		BlockNumber:     now.BlockNumber,
		Sender:          req.Sender,
		Target:          req.Target,
		GasLimit:        req.GasLimit,
		Data:            data,
	}
	if err = meddler.Insert(tx, "queue_element", &element); err != nil {
		return Element{}, fmt.Errorf("error inserting queue element: %w", err)
	}
	tx.AddCommitCallback(func() {
		q.enqueuedFeed.Send(TransactionEnqueued{
			Sender:      element.Sender,
			Target:      element.Target,
			GasLimit:    element.GasLimit,
			Data:        element.Data,
			QueueIndex:  element.QueueIndex,
			Timestamp:   element.Timestamp,
			BlockNumber: element.BlockNumber,
		})
	})
	if err = tx.Commit(); err != nil {
		return Element{}, err
	}

	q.logger.Debugf("enqueued transaction %d: hash %s, sender %s, target %s, %s",
		element.QueueIndex, element.TransactionHash, element.Sender, element.Target, now)
	return element, nil
}

// SubscribeTransactionEnqueued delivers every subsequently enqueued transaction to ch
func (q *Queue) SubscribeTransactionEnqueued(ch chan<- TransactionEnqueued) event.Subscription {
	return q.enqueuedFeed.Subscribe(ch)
}

// GetQueueElement returns the element at index
func (q *Queue) GetQueueElement(ctx context.Context, index uint64) (Element, error) {
	var element Element
	err := meddler.QueryRow(q.db, &element, "SELECT * FROM queue_element WHERE queue_index = $1;", index)
	if err != nil {
		if errors.Is(db.ReturnErrNotFound(err), db.ErrNotFound) {
			return Element{}, fmt.Errorf("%w: queue element %d", ErrIndexOutOfBounds, index)
		}
		return Element{}, fmt.Errorf("error getting queue element %d: %w", index, err)
	}
	return element, nil
}

// GetQueueElements returns up to count elements starting at fromIndex
func (q *Queue) GetQueueElements(ctx context.Context, fromIndex, count uint64) ([]Element, error) {
	var elements []*Element
	err := meddler.QueryAll(q.db, &elements,
		"SELECT * FROM queue_element WHERE queue_index >= $1 ORDER BY queue_index ASC LIMIT $2;",
		fromIndex, count)
	if err != nil {
		return nil, fmt.Errorf("error getting queue elements from %d: %w", fromIndex, err)
	}
	return db.SlicePtrsToSlice(elements).([]Element), nil
}

// GetQueueLength returns the number of elements ever enqueued
func (q *Queue) GetQueueLength(ctx context.Context) (uint64, error) {
	return getQueueLength(q.db)
}

func getQueueLength(querier db.Querier) (uint64, error) {
	var length uint64
	if err := querier.QueryRow("SELECT COUNT(*) FROM queue_element;").Scan(&length); err != nil {
		return 0, fmt.Errorf("error counting queue elements: %w", err)
	}
	return length, nil
}

// Close releases the database
func (q *Queue) Close() error {
	return q.db.Close()
}
