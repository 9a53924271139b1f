package batch

import "errors"

// Field widths, in bytes, of the sequencer batch wire format
const (
	ShouldStartAtElementWidth = 5
	TotalElementsWidth        = 3
	ContextCountWidth         = 3
	NumSequencedWidth         = 3
	NumSubsequentQueueWidth   = 3
	TimestampWidth            = 5
	BlockNumberWidth          = 5
	TxLengthWidth             = 3

	// HeaderSize is the size of the fixed part that precedes the contexts
	HeaderSize = ShouldStartAtElementWidth + TotalElementsWidth + ContextCountWidth
	// ContextSize is the encoded size of a single BatchContext
	ContextSize = NumSequencedWidth + NumSubsequentQueueWidth + TimestampWidth + BlockNumberWidth
)

var ErrInvalidEncoding = errors.New("invalid batch encoding")

// BatchContext is a run-length descriptor: NumSequencedTransactions sequencer
// transactions stamped with Timestamp and BlockNumber, followed by
// NumSubsequentQueueTransactions elements taken from the queue.
type BatchContext struct {
	NumSequencedTransactions       uint64 `json:"numSequencedTransactions"`
	NumSubsequentQueueTransactions uint64 `json:"numSubsequentQueueTransactions"`
	Timestamp                      uint64 `json:"timestamp"`
	BlockNumber                    uint64 `json:"blockNumber"`
}

// SequencerBatch is the decoded form of a batch submitted by the sequencer.
// It is never persisted as such.
type SequencerBatch struct {
	ShouldStartAtElement  uint64         `json:"shouldStartAtElement"`
	TotalElementsToAppend uint64         `json:"totalElementsToAppend"`
	Contexts              []BatchContext `json:"contexts"`
	Transactions          [][]byte       `json:"transactions"`
}

// NumSequencedTransactions sums the sequencer transactions declared by the contexts
func (b *SequencerBatch) NumSequencedTransactions() uint64 {
	var n uint64
	for _, c := range b.Contexts {
		n += c.NumSequencedTransactions
	}
	return n
}

// NumQueueTransactions sums the queue transactions declared by the contexts
func (b *SequencerBatch) NumQueueTransactions() uint64 {
	var n uint64
	for _, c := range b.Contexts {
		n += c.NumSubsequentQueueTransactions
	}
	return n
}
