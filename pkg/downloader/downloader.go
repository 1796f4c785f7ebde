package downloader

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/indexer"
)

// Downloader synchronizes watchers range by range up to a head block.
type Downloader interface {
	// Sync indexes every block of w between its checkpoint and head. Each range commits
	// its events, notifications and checkpoint atomically.
	Sync(ctx context.Context, w indexer.Watcher, head uint64) (Result, error)

	// Reset discards the checkpoint of kind on contract, along with any derived state that
	// a replay has to rebuild.
	Reset(ctx context.Context, contract common.Address, kind string) error
}

// Result summarizes one Sync call.
type Result struct {
	// Ranges is the number of committed block ranges.
	Ranges int

	// Logs is the number of fetched logs.
	Logs int

	// Skipped is the number of logs dropped by the decoder.
	Skipped int

	// Checkpoint is the checkpoint after the call, nil when none exists.
	Checkpoint *uint64
}
