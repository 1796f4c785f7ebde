package rpc

import (
	"context"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EthClient is the narrow view of the chain provider used by the indexer.
// Tests inject a fake implementation instead of patching the go-ethereum client.
type EthClient interface {
	// Close closes the RPC client connection.
	Close()

	// HeadBlockNumber returns the block the indexer syncs up to for the given finality mode.
	HeadBlockNumber(ctx context.Context, finality string, lag uint64) (uint64, error)

	// BlockNumber returns the latest block number known to the node.
	BlockNumber(ctx context.Context) (uint64, error)

	// GetLogs retrieves logs matching the given filter query.
	GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

	// GetBlockHeader retrieves the header for a specific block number.
	GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error)

	// BatchGetBlockHeaders retrieves headers for multiple block numbers in batched calls.
	BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error)

	// SyncProgress returns nil when the node is not syncing.
	SyncProgress(ctx context.Context) (*ethereum.SyncProgress, error)

	// SendRawTransaction submits a signed RLP encoded transaction.
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)
}
