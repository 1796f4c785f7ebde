package downloader

import (
	"context"
	"database/sql"

	"github.com/ethereum/go-ethereum/common"
)

// SyncManager tracks the latest fully processed block of every (contract, category) pair.
type SyncManager interface {
	// GetCheckpoint returns the checkpoint, or nil when the pair was never synced.
	GetCheckpoint(ctx context.Context, contract common.Address, category string) (*uint64, error)

	// AdvanceCheckpoint moves the checkpoint to block inside tx. It never lowers it.
	AdvanceCheckpoint(ctx context.Context, tx *sql.Tx, contract common.Address, category string, block uint64) error

	// ListCheckpoints returns every stored checkpoint.
	ListCheckpoints(ctx context.Context) ([]*Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint inside tx so the pair syncs from its start block.
	DeleteCheckpoint(ctx context.Context, tx *sql.Tx, contract common.Address, category string) error
}

// Checkpoint is a stored sync_checkpoint row.
// Uses meddler tags for automatic struct-to-db mapping.
type Checkpoint struct {
	ContractAddress   common.Address `meddler:"contract_address,address" json:"contract_address"`
	EventCategory     string         `meddler:"event_category" json:"event_category"`
	LatestBlockNumber uint64         `meddler:"latest_block_number" json:"latest_block_number"`
	UpdatedAt         int64          `meddler:"updated_at" json:"updated_at"`
}
