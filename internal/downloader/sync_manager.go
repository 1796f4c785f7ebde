package downloader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	internalcommon "github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	pkgdownloader "github.com/goran-ethernal/SecTokenIndexer/pkg/downloader"
	"github.com/russross/meddler"
)

// Compile-time check to ensure SyncManager implements pkgdownloader.SyncManager interface.
var _ pkgdownloader.SyncManager = (*SyncManager)(nil)

const advanceCheckpointSQL = `
INSERT INTO sync_checkpoint (contract_address, event_category, latest_block_number, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (contract_address, event_category) DO UPDATE SET
	latest_block_number = MAX(latest_block_number, excluded.latest_block_number),
	updated_at          = excluded.updated_at`

// Checkpoint is a type alias for the public Checkpoint type.
type Checkpoint = pkgdownloader.Checkpoint

// SyncManager stores checkpoints in the sync_checkpoint table.
// It implements the pkgdownloader.SyncManager interface.
type SyncManager struct {
	db  *sql.DB
	log *logger.Logger
	now func() time.Time
}

// NewSyncManager creates a new SyncManager instance.
func NewSyncManager(db *sql.DB, log *logger.Logger) *SyncManager {
	return &SyncManager{
		db:  db,
		log: log.WithComponent(internalcommon.ComponentSyncManager),
		now: time.Now,
	}
}

// GetCheckpoint returns the latest processed block of the pair, or nil when none is stored.
func (sm *SyncManager) GetCheckpoint(ctx context.Context, contract common.Address, category string) (*uint64, error) {
	var block uint64
	err := sm.db.QueryRowContext(ctx,
		`SELECT latest_block_number FROM sync_checkpoint WHERE contract_address = ? AND event_category = ?`,
		contract.Hex(), category,
	).Scan(&block)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint of %s/%s: %w", contract.Hex(), category, err)
	}

	return &block, nil
}

// AdvanceCheckpoint raises the checkpoint of the pair to block. A lower block leaves the
// stored value in place, so replaying an old range cannot move progress backwards.
func (sm *SyncManager) AdvanceCheckpoint(
	ctx context.Context,
	tx *sql.Tx,
	contract common.Address,
	category string,
	block uint64,
) error {
	if _, err := tx.ExecContext(ctx, advanceCheckpointSQL,
		contract.Hex(), category, block, sm.now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to advance checkpoint of %s/%s to %d: %w", contract.Hex(), category, block, err)
	}

	sm.log.Debugf("checkpoint %s/%s advanced to %d", contract.Hex(), category, block)

	return nil
}

// ListCheckpoints returns every checkpoint ordered by contract and category.
func (sm *SyncManager) ListCheckpoints(ctx context.Context) ([]*Checkpoint, error) {
	var checkpoints []*Checkpoint
	if err := meddler.QueryAll(sm.db, &checkpoints,
		`SELECT * FROM sync_checkpoint ORDER BY contract_address, event_category`,
	); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	return checkpoints, nil
}

// DeleteCheckpoint removes the checkpoint of the pair.
func (sm *SyncManager) DeleteCheckpoint(ctx context.Context, tx *sql.Tx, contract common.Address, category string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sync_checkpoint WHERE contract_address = ? AND event_category = ?`,
		contract.Hex(), category,
	); err != nil {
		return fmt.Errorf("failed to delete checkpoint of %s/%s: %w", contract.Hex(), category, err)
	}

	sm.log.Warnf("checkpoint %s/%s deleted", contract.Hex(), category)

	return nil
}
