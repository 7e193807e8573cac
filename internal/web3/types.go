package web3

import "context"

// ChainSnapshot summarises network metadata for health and status output.
type ChainSnapshot struct {
	Name        string `json:"name"`
	ChainID     string `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`
	Notes       string `json:"notes,omitempty"`
}

// Client is the subset of chain access the daemon depends on.
type Client interface {
	FetchChainSnapshot(ctx context.Context) (ChainSnapshot, error)
	LatestHeight(ctx context.Context) (uint64, error)
	Close()
}
