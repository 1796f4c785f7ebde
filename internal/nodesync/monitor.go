package nodesync

import (
	"context"
	"errors"
	"time"

	internalcommon "github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/internal/metrics"
	"github.com/goran-ethernal/SecTokenIndexer/internal/rpc"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	pkgrpc "github.com/goran-ethernal/SecTokenIndexer/pkg/rpc"
)

// Monitor decides whether the node behind the RPC client is in sync. A node is out of sync
// while it reports sync progress, cannot be reached, or has not produced a new block for
// stall threshold consecutive checks.
type Monitor struct {
	store    *Store
	client   pkgrpc.EthClient
	endpoint string
	cfg      config.NodeSyncConfig
	log      *logger.Logger

	lastBlock uint64
	stalled   int
}

// NewMonitor creates a monitor for the node at endpoint.
func NewMonitor(
	store *Store,
	client pkgrpc.EthClient,
	endpoint string,
	cfg config.NodeSyncConfig,
	log *logger.Logger,
) *Monitor {
	return &Monitor{
		store:    store,
		client:   client,
		endpoint: endpoint,
		cfg:      cfg,
		log:      log.WithComponent(internalcommon.ComponentNodeSync),
	}
}

// Run registers the node and checks it on every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.store.UpsertNode(ctx, m.endpoint, 0); err != nil {
		return err
	}

	ticker := time.NewTicker(m.cfg.Interval.Duration)
	defer ticker.Stop()

	for {
		if err := m.Check(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Check probes the node once and stores the result.
func (m *Monitor) Check(ctx context.Context) error {
	synced, err := m.probe(ctx)
	if err != nil {
		return err
	}

	known, err := m.store.SetSynced(ctx, m.endpoint, synced)
	if err != nil {
		return err
	}
	if !known {
		m.log.Warnf("node %s is not registered", m.endpoint)
	}

	_, syncedCount, err := m.store.Count(ctx)
	if err != nil {
		return err
	}
	metrics.SyncedNodesSet(syncedCount)
	metrics.ComponentHealthSet(internalcommon.ComponentNodeSync, synced)

	return nil
}

func (m *Monitor) probe(ctx context.Context) (bool, error) {
	progress, err := m.client.SyncProgress(ctx)
	if err != nil {
		return m.unreachable(err)
	}
	if progress != nil {
		m.log.Infof("node %s is syncing: current=%d, highest=%d",
			m.endpoint, progress.CurrentBlock, progress.HighestBlock)
		return false, nil
	}

	block, err := m.client.BlockNumber(ctx)
	if err != nil {
		return m.unreachable(err)
	}

	if block > m.lastBlock {
		m.lastBlock = block
		m.stalled = 0
		return true, nil
	}

	m.stalled++
	if m.stalled >= m.cfg.StallThreshold {
		m.log.Warnf("node %s stalled at block %d for %d checks", m.endpoint, block, m.stalled)
		return false, nil
	}

	return true, nil
}

func (m *Monitor) unreachable(err error) (bool, error) {
	if errors.Is(err, rpc.ErrServiceUnavailable) {
		m.log.Warnf("node %s: %v", m.endpoint, err)
		return false, nil
	}

	return false, err
}
