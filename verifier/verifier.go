// Package verifier checks claims that a transaction occupies a position of the canonical chain.
// Every function is pure and safe for concurrent use.
package verifier

import (
	"bytes"

	"github.com/0xPolygon/ctc/chain/types"
	"github.com/0xPolygon/ctc/queue"
	"github.com/0xPolygon/ctc/tree"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidProof is returned when the inclusion proof is malformed for the batch
var ErrInvalidProof = tree.ErrInvalidProof

// VerifyTransaction reports whether tx is the element described by element, included in
// the batch committed by header at proof.Index. A sequencer claim whose fields disagree with
// the element returns false without error, a malformed proof returns ErrInvalidProof.
// header is trusted as given, callers must authenticate it first.
func VerifyTransaction(
	tx types.Transaction,
	element types.ChainElement,
	header types.BatchHeader,
	proof types.ChainInclusionProof,
) (bool, error) {
	if element.IsSequenced {
		if !matchesSequencerElement(tx, element) {
			return false, nil
		}
	} else if tx.L1QueueOrigin != types.L1ToL2Queue {
		return false, nil
	}
	return VerifyElement(element.Leaf(), header, proof)
}

// VerifyElement checks that leaf is at proof.Index of the batch committed by header
func VerifyElement(leaf common.Hash, header types.BatchHeader, proof types.ChainInclusionProof) (bool, error) {
	return tree.Verify(header.BatchRoot, leaf, proof.Index, proof.Siblings, header.BatchSize)
}

func matchesSequencerElement(tx types.Transaction, element types.ChainElement) bool {
	return tx.L1QueueOrigin == types.SequencerQueue &&
		tx.Timestamp == element.Timestamp &&
		tx.BlockNumber == element.BlockNumber &&
		bytes.Equal(tx.Data, element.TxData)
}

// MatchesQueueElement reports whether tx is the queued transaction stored as element
func MatchesQueueElement(tx types.Transaction, element queue.Element) bool {
	return tx.L1QueueOrigin == types.L1ToL2Queue &&
		tx.Timestamp == element.Timestamp &&
		tx.BlockNumber == element.BlockNumber &&
		queue.TransactionHash(tx.L1TxOrigin, tx.Entrypoint, tx.GasLimit, tx.Data) == element.TransactionHash
}
