package batch

import "fmt"

// Decode parses an encoded sequencer batch:
//
//	[5B shouldStartAtElement][3B totalElementsToAppend][3B contextCount]
//	contextCount x [3B numSequenced][3B numSubsequentQueue][5B timestamp][5B blockNumber]
//	until the end of data: [3B length][length bytes]
//
// The first malformed field aborts decoding, no partial batch is returned.
func Decode(data []byte) (*SequencerBatch, error) {
	c := newCursor(data)

	shouldStartAtElement, err := c.readUint(ShouldStartAtElementWidth, "shouldStartAtElement")
	if err != nil {
		return nil, err
	}
	totalElementsToAppend, err := c.readUint(TotalElementsWidth, "totalElementsToAppend")
	if err != nil {
		return nil, err
	}
	numContexts, err := c.readUint(ContextCountWidth, "contextCount")
	if err != nil {
		return nil, err
	}
	// reject impossible counts before allocating
	if numContexts*ContextSize > uint64(c.remaining()) {
		return nil, fmt.Errorf("%w: %d contexts declared, only %d bytes left",
			ErrInvalidEncoding, numContexts, c.remaining())
	}

	b := &SequencerBatch{
		ShouldStartAtElement:  shouldStartAtElement,
		TotalElementsToAppend: totalElementsToAppend,
		Contexts:              make([]BatchContext, 0, numContexts),
		Transactions:          make([][]byte, 0),
	}
	for i := uint64(0); i < numContexts; i++ {
		ctx, err := decodeContext(c)
		if err != nil {
			return nil, fmt.Errorf("context %d: %w", i, err)
		}
		b.Contexts = append(b.Contexts, ctx)
	}

	for !c.done() {
		length, err := c.readUint(TxLengthWidth, "transaction length")
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", len(b.Transactions), err)
		}
		tx, err := c.readBytes(int(length), "transaction data")
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", len(b.Transactions), err)
		}
		b.Transactions = append(b.Transactions, tx)
	}
	return b, nil
}

func decodeContext(c *cursor) (BatchContext, error) {
	var (
		ctx BatchContext
		err error
	)
	if ctx.NumSequencedTransactions, err = c.readUint(NumSequencedWidth, "numSequencedTransactions"); err != nil {
		return BatchContext{}, err
	}
	if ctx.NumSubsequentQueueTransactions, err = c.readUint(
		NumSubsequentQueueWidth, "numSubsequentQueueTransactions"); err != nil {
		return BatchContext{}, err
	}
	if ctx.Timestamp, err = c.readUint(TimestampWidth, "timestamp"); err != nil {
		return BatchContext{}, err
	}
	if ctx.BlockNumber, err = c.readUint(BlockNumberWidth, "blockNumber"); err != nil {
		return BatchContext{}, err
	}
	return ctx, nil
}

// Encode serialises b. Values that do not fit their field width are an error.
func Encode(b *SequencerBatch) ([]byte, error) {
	size := HeaderSize + len(b.Contexts)*ContextSize
	for _, tx := range b.Transactions {
		size += TxLengthWidth + len(tx)
	}
	w := &writer{buf: make([]byte, 0, size)}

	if err := w.writeUint(b.ShouldStartAtElement, ShouldStartAtElementWidth, "shouldStartAtElement"); err != nil {
		return nil, err
	}
	if err := w.writeUint(b.TotalElementsToAppend, TotalElementsWidth, "totalElementsToAppend"); err != nil {
		return nil, err
	}
	if err := w.writeUint(uint64(len(b.Contexts)), ContextCountWidth, "contextCount"); err != nil {
		return nil, err
	}
	for i, ctx := range b.Contexts {
		if err := encodeContext(w, ctx); err != nil {
			return nil, fmt.Errorf("context %d: %w", i, err)
		}
	}
	for i, tx := range b.Transactions {
		if err := w.writeUint(uint64(len(tx)), TxLengthWidth, "transaction length"); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		w.writeBytes(tx)
	}
	return w.buf, nil
}

func encodeContext(w *writer, ctx BatchContext) error {
	if err := w.writeUint(ctx.NumSequencedTransactions, NumSequencedWidth, "numSequencedTransactions"); err != nil {
		return err
	}
	if err := w.writeUint(ctx.NumSubsequentQueueTransactions,
		NumSubsequentQueueWidth, "numSubsequentQueueTransactions"); err != nil {
		return err
	}
	if err := w.writeUint(ctx.Timestamp, TimestampWidth, "timestamp"); err != nil {
		return err
	}
	return w.writeUint(ctx.BlockNumber, BlockNumberWidth, "blockNumber")
}
