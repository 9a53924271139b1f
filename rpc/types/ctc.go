package types

import (
	chaintypes "github.com/0xPolygon/ctc/chain/types"
)

// VerifyTransactionRequest is the parameter of ctc_verifyTransaction
type VerifyTransactionRequest struct {
	Transaction chaintypes.Transaction         `json:"transaction"`
	Element     chaintypes.ChainElement        `json:"element"`
	BatchHeader chaintypes.BatchHeader         `json:"batchHeader"`
	Proof       chaintypes.ChainInclusionProof `json:"proof"`
}
