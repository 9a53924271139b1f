package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/0xPolygon/ctc/chain/db/migrations"
	"github.com/0xPolygon/ctc/chain/types"
	"github.com/0xPolygon/ctc/db"
	"github.com/0xPolygon/ctc/log"
	treetypes "github.com/0xPolygon/ctc/tree/types"
	"github.com/russross/meddler"
)

const errWhileRollbackFormat = "error while rolling back tx: %w"

var ErrBatchConflict = errors.New("batch does not extend the stored chain")

// ChainStorer is the interface that defines the methods to interact with the chain storage
type ChainStorer interface {
	// GetLastBatchHeader returns the newest header or db.ErrNotFound on an empty chain
	GetLastBatchHeader(ctx context.Context) (types.BatchHeader, error)
	// GetBatchHeader returns the header at index or db.ErrNotFound
	GetBatchHeader(ctx context.Context, index uint64) (types.BatchHeader, error)
	// GetTotalBatches returns the number of stored headers
	GetTotalBatches(ctx context.Context) (uint64, error)
	// GetElement returns the canonical element at index or db.ErrNotFound
	GetElement(ctx context.Context, index uint64) (types.Element, error)
	// GetBatchLeaves returns the leaves of a batch ordered by element index
	GetBatchLeaves(ctx context.Context, batchIndex uint64) ([]treetypes.Leaf, error)
	// AppendBatch stores a header and its elements atomically
	AppendBatch(ctx context.Context, header types.BatchHeader, elements []types.Element) error
}

var _ ChainStorer = (*ChainSQLStorage)(nil)

// ChainSQLStorage is the sqlite implementation of ChainStorer
type ChainSQLStorage struct {
	logger *log.Logger
	db     *sql.DB
}

// NewChainSQLStorage creates a new ChainSQLStorage
func NewChainSQLStorage(logger *log.Logger, dbPath string) (*ChainSQLStorage, error) {
	if err := migrations.RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := db.NewSQLiteDB(dbPath)
	if err != nil {
		return nil, err
	}

	return &ChainSQLStorage{
		db:     db,
		logger: logger,
	}, nil
}

func (c *ChainSQLStorage) GetLastBatchHeader(ctx context.Context) (types.BatchHeader, error) {
	return getLastBatchHeader(c.db)
}

func getLastBatchHeader(querier meddler.DB) (types.BatchHeader, error) {
	var header types.BatchHeader
	if err := meddler.QueryRow(querier, &header,
		"SELECT * FROM batch_header ORDER BY batch_index DESC LIMIT 1;"); err != nil {
		return types.BatchHeader{}, db.ReturnErrNotFound(err)
	}
	return header, nil
}

func (c *ChainSQLStorage) GetBatchHeader(ctx context.Context, index uint64) (types.BatchHeader, error) {
	var header types.BatchHeader
	if err := meddler.QueryRow(c.db, &header,
		"SELECT * FROM batch_header WHERE batch_index = $1;", index); err != nil {
		return types.BatchHeader{}, db.ReturnErrNotFound(err)
	}
	return header, nil
}

func (c *ChainSQLStorage) GetTotalBatches(ctx context.Context) (uint64, error) {
	return getTotalBatches(c.db)
}

func getTotalBatches(querier db.Querier) (uint64, error) {
	var total uint64
	if err := querier.QueryRow("SELECT COUNT(*) FROM batch_header;").Scan(&total); err != nil {
		return 0, fmt.Errorf("error counting batches: %w", err)
	}
	return total, nil
}

func (c *ChainSQLStorage) GetElement(ctx context.Context, index uint64) (types.Element, error) {
	var element types.Element
	if err := meddler.QueryRow(c.db, &element,
		"SELECT * FROM chain_element WHERE element_index = $1;", index); err != nil {
		return types.Element{}, db.ReturnErrNotFound(err)
	}
	return element, nil
}

func (c *ChainSQLStorage) GetBatchLeaves(ctx context.Context, batchIndex uint64) ([]treetypes.Leaf, error) {
	var leaves []*treetypes.Leaf
	if err := meddler.QueryAll(c.db, &leaves, `
		SELECT element_index AS position, leaf AS hash
		FROM chain_element
		WHERE batch_index = $1
		ORDER BY element_index ASC;`, batchIndex); err != nil {
		return nil, fmt.Errorf("error getting leaves of batch %d: %w", batchIndex, err)
	}
	return db.SlicePtrsToSlice(leaves).([]treetypes.Leaf), nil
}

func (c *ChainSQLStorage) AppendBatch(ctx context.Context, header types.BatchHeader, elements []types.Element) error {
	tx, err := db.NewTx(ctx, c.db)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if errRllbck := tx.Rollback(); errRllbck != nil {
				c.logger.Errorf(errWhileRollbackFormat, errRllbck)
			}
		}
	}()

	if err = checkExtends(tx, header, len(elements)); err != nil {
		return err
	}

	if err = meddler.Insert(tx, "batch_header", &header); err != nil {
		return fmt.Errorf("error inserting batch header %d: %w", header.BatchIndex, conflictErr(err))
	}
	for i := range elements {
		if err = meddler.Insert(tx, "chain_element", &elements[i]); err != nil {
			return fmt.Errorf("error inserting chain element %d: %w", elements[i].Index, conflictErr(err))
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}

	c.logger.Debugf("inserted batch %s with %d elements", header, len(elements))
	return nil
}

// conflictErr reports primary key collisions as ErrBatchConflict
func conflictErr(err error) error {
	if db.IsConstraintErr(err) {
		return fmt.Errorf("%w: %s", ErrBatchConflict, err.Error())
	}
	return err
}

func checkExtends(tx *db.Tx, header types.BatchHeader, numElements int) error {
	totalBatches, err := getTotalBatches(tx)
	if err != nil {
		return err
	}
	if header.BatchIndex != totalBatches {
		return fmt.Errorf("%w: batch index %d, %d batches stored", ErrBatchConflict, header.BatchIndex, totalBatches)
	}
	var prevTotal uint64
	last, err := getLastBatchHeader(tx)
	switch {
	case errors.Is(err, db.ErrNotFound):
	case err != nil:
		return err
	default:
		prevTotal = last.PrevTotalElements + last.BatchSize
	}
	if header.PrevTotalElements != prevTotal {
		return fmt.Errorf("%w: batch starts at element %d, chain has %d", ErrBatchConflict, header.PrevTotalElements, prevTotal)
	}
	if header.BatchSize != uint64(numElements) {
		return fmt.Errorf("%w: batch size %d with %d elements", ErrBatchConflict, header.BatchSize, numElements)
	}
	return nil
}

// Close releases the database
func (c *ChainSQLStorage) Close() error {
	return c.db.Close()
}
