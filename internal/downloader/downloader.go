package downloader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/SecTokenIndexer/internal/blockrange"
	internalcommon "github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/events"
	"github.com/goran-ethernal/SecTokenIndexer/internal/fetcher"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/internal/metrics"
	"github.com/goran-ethernal/SecTokenIndexer/internal/notification"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	pkgdownloader "github.com/goran-ethernal/SecTokenIndexer/pkg/downloader"
	pkgfetcher "github.com/goran-ethernal/SecTokenIndexer/pkg/fetcher"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/indexer"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/rpc"
)

// Compile-time check to ensure Downloader implements pkgdownloader.Downloader interface.
var _ pkgdownloader.Downloader = (*Downloader)(nil)

// Result is a type alias for the public Result type.
type Result = pkgdownloader.Result

// Downloader turns the logs of a watcher into indexed rows. Every block range is written
// in one transaction together with its notifications and the checkpoint advance, so a
// failure leaves no partial effect and the range is retried from the old checkpoint.
type Downloader struct {
	window        uint64
	db            *sql.DB
	rpc           rpc.EthClient
	logFetcher    pkgfetcher.LogFetcher
	syncManager   *SyncManager
	registry      *events.Registry
	notifications *notification.Writer
	maintenance   db.Maintenance
	log           *logger.Logger
}

// New creates a new Downloader instance.
func New(
	cfg config.SyncConfig,
	database *sql.DB,
	rpcClient rpc.EthClient,
	logFetcher pkgfetcher.LogFetcher,
	registry *events.Registry,
	maintenance db.Maintenance,
	log *logger.Logger,
) (*Downloader, error) {
	if database == nil {
		return nil, errors.New("database is required")
	}
	if rpcClient == nil {
		return nil, errors.New("RPC client is required")
	}
	if logFetcher == nil {
		return nil, errors.New("log fetcher is required")
	}
	if registry == nil {
		return nil, errors.New("event registry is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if maintenance == nil {
		maintenance = db.NoOpMaintenance{}
	}

	return &Downloader{
		window:        cfg.BlockWindow,
		db:            database,
		rpc:           rpcClient,
		logFetcher:    logFetcher,
		syncManager:   NewSyncManager(database, log),
		registry:      registry,
		notifications: notification.NewWriter(log),
		maintenance:   maintenance,
		log:           log.WithComponent(internalcommon.ComponentDownloader),
	}, nil
}

// SyncManager returns the checkpoint store used by the downloader.
func (d *Downloader) SyncManager() *SyncManager {
	return d.syncManager
}

// Sync indexes w from its checkpoint, or its start block, up to head.
func (d *Downloader) Sync(ctx context.Context, w indexer.Watcher, head uint64) (Result, error) {
	var result Result

	kind, err := events.ParseKind(w.Kind)
	if err != nil {
		return result, err
	}
	handler, ok := d.registry.Handler(kind)
	if !ok {
		return result, fmt.Errorf("no handler for event kind %s", kind)
	}

	checkpoint, err := d.syncManager.GetCheckpoint(ctx, w.Address, w.Kind)
	if err != nil {
		return result, err
	}
	result.Checkpoint = checkpoint

	start := w.StartBlock
	if checkpoint != nil {
		start = max(start, *checkpoint+1)
	}

	for r := range blockrange.Plan(start, head, d.window) {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		d.log.Infof("Syncing from=%d, to=%d", r.From, r.To)

		rangeStart := time.Now()
		logs, skipped, err := d.syncRange(ctx, w, handler, r)
		if err != nil {
			return result, fmt.Errorf("%s range %s: %w", w.Key(), r, err)
		}

		to := r.To
		result.Ranges++
		result.Logs += len(logs)
		result.Skipped += skipped
		result.Checkpoint = &to

		metrics.RangeProcessingTimeLog(w.Kind, time.Since(rangeStart))
		metrics.BlocksProcessedInc(w.Kind, r.Len())
		metrics.LogsIndexedInc(w.Kind, len(logs)-skipped)
		metrics.CheckpointSet(w.Key(), to)
	}

	if result.Ranges == 0 {
		d.log.Debugf("%s: no new blocks up to %d", w.Key(), head)
	} else {
		d.log.Infof("%s: synced %d ranges, %d logs, %d skipped", w.Key(), result.Ranges, result.Logs, result.Skipped)
	}

	return result, nil
}

// syncRange fetches the logs of one range and commits them.
func (d *Downloader) syncRange(
	ctx context.Context,
	w indexer.Watcher,
	handler events.Handler,
	r blockrange.Range,
) ([]types.Log, int, error) {
	logs, err := d.logFetcher.FetchLogs(ctx, w.Address, w.ContractType, w.Kind, r.From, r.To)
	if errors.Is(err, fetcher.ErrABIEventNotFound) {
		d.log.Warnf("%s: %v, treating range as empty", w.Key(), err)
		logs = nil
	} else if err != nil {
		return nil, 0, err
	}

	timestamps, err := d.blockTimestamps(ctx, logs)
	if err != nil {
		return nil, 0, err
	}

	unlock := d.maintenance.AcquireOperationLock()
	defer unlock()

	var skipped int
	err = db.RunInTx(ctx, d.db, d.log, func(tx *sql.Tx) error {
		skipped = 0

		for _, l := range logs {
			ev, err := handler.Decode(l, timestamps[l.BlockNumber])
			if errors.Is(err, events.ErrSkip) {
				d.log.Warnf("%s: skipping log %s/%d: %v", w.Key(), l.TxHash.Hex(), l.Index, err)
				metrics.LogsSkippedInc(w.Kind)
				skipped++
				continue
			}
			if err != nil {
				return err
			}

			if err := handler.Upsert(ctx, tx, ev); err != nil {
				return err
			}

			if err := d.notifications.Write(ctx, tx, ev.Position(), handler.Notifications(ev)); err != nil {
				return err
			}
		}

		return d.syncManager.AdvanceCheckpoint(ctx, tx, w.Address, w.Kind, r.To)
	})
	if err != nil {
		return nil, 0, err
	}

	return logs, skipped, nil
}

// blockTimestamps returns the timestamp of every block holding one of logs.
func (d *Downloader) blockTimestamps(ctx context.Context, logs []types.Log) (map[uint64]uint64, error) {
	if len(logs) == 0 {
		return nil, nil
	}

	blockNums := make([]uint64, 0, len(logs))
	for _, l := range logs {
		blockNums = append(blockNums, l.BlockNumber)
	}
	slices.Sort(blockNums)
	blockNums = slices.Compact(blockNums)

	headers, err := d.rpc.BatchGetBlockHeaders(ctx, blockNums)
	if err != nil {
		return nil, fmt.Errorf("failed to get block headers: %w", err)
	}

	timestamps := make(map[uint64]uint64, len(headers))
	for _, h := range headers {
		timestamps[h.Number.Uint64()] = h.Time
	}

	for _, n := range blockNums {
		if _, ok := timestamps[n]; !ok {
			return nil, fmt.Errorf("missing header of block %d", n)
		}
	}

	return timestamps, nil
}

// Reset deletes the checkpoint of kind on contract. Kinds sharing derived state are reset
// together and their derived rows are dropped, so the next pass replays them from scratch.
func (d *Downloader) Reset(ctx context.Context, contract common.Address, kind string) error {
	k, err := events.ParseKind(kind)
	if err != nil {
		return err
	}

	unlock := d.maintenance.AcquireOperationLock()
	defer unlock()

	return db.RunInTx(ctx, d.db, d.log, func(tx *sql.Tx) error {
		for _, coupled := range events.CoupledKinds(k) {
			if err := d.syncManager.DeleteCheckpoint(ctx, tx, contract, coupled.String()); err != nil {
				return err
			}

			handler, ok := d.registry.Handler(coupled)
			if !ok {
				continue
			}
			if resetter, ok := handler.(events.Resetter); ok {
				if err := resetter.Reset(ctx, tx, contract); err != nil {
					return fmt.Errorf("failed to reset %s state of %s: %w", coupled, contract.Hex(), err)
				}
			}
		}

		return nil
	})
}
