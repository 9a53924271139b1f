package rpc

import (
	"context"

	"github.com/0xPolygon/ctc/chain/types"
	"github.com/0xPolygon/ctc/queue"
)

type ChainReader interface {
	GetTotalElements(ctx context.Context) (uint64, error)
	GetTotalBatches(ctx context.Context) (uint64, error)
	GetBatchHeader(ctx context.Context, index uint64) (types.BatchHeader, error)
	GetInclusionProof(ctx context.Context, index uint64) (types.ElementProof, error)
	VerifyTransaction(
		ctx context.Context,
		tx types.Transaction,
		element types.ChainElement,
		header types.BatchHeader,
		proof types.ChainInclusionProof,
	) (bool, error)
}

type QueueReader interface {
	GetQueueLength(ctx context.Context) (uint64, error)
	GetQueueElement(ctx context.Context, index uint64) (queue.Element, error)
}
