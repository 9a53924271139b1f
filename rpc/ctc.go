package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xPolygon/cdk-rpc/rpc"
	"github.com/0xPolygon/ctc/chain"
	"github.com/0xPolygon/ctc/log"
	"github.com/0xPolygon/ctc/rpc/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	// CTC is the namespace of the canonical transaction chain service
	CTC       = "ctc"
	meterName = "github.com/0xPolygon/ctc/rpc"
)

// CTCEndpoints contains implementations for the "ctc" RPC endpoints
type CTCEndpoints struct {
	logger      *log.Logger
	meter       metric.Meter
	readTimeout time.Duration
	chain       ChainReader
	queue       QueueReader
}

// NewCTCEndpoints returns CTCEndpoints
func NewCTCEndpoints(
	logger *log.Logger,
	readTimeout time.Duration,
	chain ChainReader,
	queue QueueReader,
) *CTCEndpoints {
	meter := otel.Meter(meterName)
	return &CTCEndpoints{
		logger:      logger,
		meter:       meter,
		readTimeout: readTimeout,
		chain:       chain,
		queue:       queue,
	}
}

func (c *CTCEndpoints) count(ctx context.Context, name string) {
	counter, err := c.meter.Int64Counter(name)
	if err != nil {
		c.logger.Warnf("failed to create %s counter: %s", name, err)
		return
	}
	counter.Add(ctx, 1)
}

func (c *CTCEndpoints) toRPCError(msg string, err error) rpc.Error {
	if errors.Is(err, chain.ErrIndexOutOfBounds) {
		return rpc.NewRPCError(rpc.NotFoundErrorCode, fmt.Sprintf("%s: %s", msg, err))
	}
	c.logger.Debugf("%s: %s", msg, err)
	return rpc.NewRPCError(rpc.DefaultErrorCode, fmt.Sprintf("%s: %s", msg, err))
}

// GetTotalElements returns the number of canonical elements
// curl -X POST http://localhost:5576/ -H "Content-Type: application/json" \
// -d '{"method":"ctc_getTotalElements", "params":[], "id":1}'
func (c *CTCEndpoints) GetTotalElements() (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()
	c.count(ctx, "get_total_elements")

	total, err := c.chain.GetTotalElements(ctx)
	if err != nil {
		return nil, c.toRPCError("failed to get total elements", err)
	}
	return total, nil
}

// GetTotalBatches returns the number of appended batches
func (c *CTCEndpoints) GetTotalBatches() (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()
	c.count(ctx, "get_total_batches")

	total, err := c.chain.GetTotalBatches(ctx)
	if err != nil {
		return nil, c.toRPCError("failed to get total batches", err)
	}
	return total, nil
}

// GetQueueLength returns the number of elements ever enqueued
func (c *CTCEndpoints) GetQueueLength() (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()
	c.count(ctx, "get_queue_length")

	length, err := c.queue.GetQueueLength(ctx)
	if err != nil {
		return nil, c.toRPCError("failed to get queue length", err)
	}
	return length, nil
}

// GetQueueElement returns the queue element at index
// curl -X POST http://localhost:5576/ -H "Content-Type: application/json" \
// -d '{"method":"ctc_getQueueElement", "params":[0], "id":1}'
func (c *CTCEndpoints) GetQueueElement(index uint64) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()
	c.count(ctx, "get_queue_element")

	element, err := c.queue.GetQueueElement(ctx, index)
	if err != nil {
		return nil, c.toRPCError(fmt.Sprintf("failed to get queue element %d", index), err)
	}
	return element, nil
}

// GetBatchHeader returns the header of the batch at index
func (c *CTCEndpoints) GetBatchHeader(index uint64) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()
	c.count(ctx, "get_batch_header")

	header, err := c.chain.GetBatchHeader(ctx, index)
	if err != nil {
		return nil, c.toRPCError(fmt.Sprintf("failed to get batch header %d", index), err)
	}
	return header, nil
}

// GetInclusionProof returns the canonical element at index, its batch header and the
// proof that links them
func (c *CTCEndpoints) GetInclusionProof(index uint64) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()
	c.count(ctx, "get_inclusion_proof")

	proof, err := c.chain.GetInclusionProof(ctx, index)
	if err != nil {
		return nil, c.toRPCError(fmt.Sprintf("failed to get inclusion proof for element %d", index), err)
	}
	return proof, nil
}

// VerifyTransaction checks a transaction inclusion claim against the stored chain
func (c *CTCEndpoints) VerifyTransaction(req types.VerifyTransactionRequest) (interface{}, rpc.Error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.readTimeout)
	defer cancel()
	c.count(ctx, "verify_transaction")

	ok, err := c.chain.VerifyTransaction(ctx, req.Transaction, req.Element, req.BatchHeader, req.Proof)
	if err != nil {
		return nil, c.toRPCError("failed to verify transaction", err)
	}
	return ok, nil
}
