package common

const (
	// CHAIN name to identify the chain component (queue store plus chain merger)
	CHAIN = "chain"
	// RPC name to identify the read-only rpc component (implies chain)
	RPC = "rpc"
)
