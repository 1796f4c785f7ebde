package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/cenkalti/backoff/v4"
	internalcommon "github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/internal/metrics"
	"github.com/goran-ethernal/SecTokenIndexer/internal/rpc"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/downloader"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/indexer"
	pkgrpc "github.com/goran-ethernal/SecTokenIndexer/pkg/rpc"
)

// Compile-time check to ensure Coordinator implements indexer.Coordinator interface.
var _ indexer.Coordinator = (*Coordinator)(nil)

var (
	// ErrNodeNotSynced is returned by a pass skipped because no tracked node is in sync.
	ErrNodeNotSynced = errors.New("block synchronization is down")

	// ErrWriteContention marks watchers whose range transaction lost the SQLite write
	// lock. Their range was rolled back and is retried on the next pass.
	ErrWriteContention = errors.New("database write contention")
)

// NodeChecker reports whether the chain can be relied on.
type NodeChecker interface {
	Available(ctx context.Context) (bool, error)
}

// Coordinator runs synchronization passes. A pass observes the head once and syncs every
// watcher up to it on a bounded worker pool. Watchers fail independently: a provider
// outage on one watcher leaves the others progressing.
type Coordinator struct {
	sync  config.SyncConfig
	chain config.ChainConfig

	rpc        pkgrpc.EthClient
	downloader downloader.Downloader
	source     indexer.WatcherSource
	nodes      NodeChecker

	pool    pond.Pool
	backoff *backoff.ExponentialBackOff
	log     *logger.Logger
}

// NewCoordinator creates a coordinator. nodes may be nil when node tracking is disabled.
func NewCoordinator(
	syncCfg config.SyncConfig,
	chainCfg config.ChainConfig,
	rpcClient pkgrpc.EthClient,
	dl downloader.Downloader,
	source indexer.WatcherSource,
	nodes NodeChecker,
	log *logger.Logger,
) *Coordinator {
	b := backoff.NewExponentialBackOff()
	if syncCfg.OutageBackoff != nil {
		b.InitialInterval = syncCfg.OutageBackoff.InitialInterval.Duration
		b.MaxInterval = syncCfg.OutageBackoff.MaxInterval.Duration
	}
	b.MaxElapsedTime = 0 // outages never end the loop
	b.Reset()

	return &Coordinator{
		sync:       syncCfg,
		chain:      chainCfg,
		rpc:        rpcClient,
		downloader: dl,
		source:     source,
		nodes:      nodes,
		pool:       pond.NewPool(max(syncCfg.Workers, 1)),
		backoff:    b,
		log:        log.WithComponent(internalcommon.ComponentCoordinator),
	}
}

// Run executes a pass immediately and then after every interval until ctx is done. Passes
// hit by a provider outage are retried with an exponential delay, passes that lost the
// database write lock on the next interval. Any other failure stops the loop and is returned.
func (c *Coordinator) Run(ctx context.Context) error {
	defer c.pool.StopAndWait()

	c.log.Infof("starting mainloop: interval=%s, workers=%d", c.sync.Interval, max(c.sync.Workers, 1))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("mainloop stopped")
			return nil
		case <-timer.C:
		}

		wait := c.sync.Interval.Duration
		err := c.RunOnce(ctx)
		switch {
		case err == nil:
			c.backoff.Reset()
			metrics.PassInc("ok")
		case ctx.Err() != nil:
			c.log.Info("mainloop stopped")
			return nil
		case errors.Is(err, ErrNodeNotSynced):
			c.log.Warnf("%v, skipping pass", err)
			metrics.PassInc("skipped")
		case errors.Is(err, rpc.ErrServiceUnavailable):
			wait = c.backoff.NextBackOff()
			c.log.Warnf("service unavailable, next pass in %s", wait)
			metrics.PassInc("degraded")
		case errors.Is(err, ErrWriteContention):
			c.log.Warnf("%v, retrying next pass", err)
			metrics.PassInc("contended")
		default:
			c.log.Errorf("pass failed: %v", err)
			metrics.PassInc("failed")
			return err
		}

		timer.Reset(wait)
	}
}

// RunOnce executes one pass. It returns ErrNodeNotSynced without touching the provider
// when node tracking is required and no node is synced. Watcher failures are joined: the
// result is fatal only when some failure is neither an outage nor write contention.
func (c *Coordinator) RunOnce(ctx context.Context) error {
	if c.nodes != nil && c.sync.NodeRequired() {
		ok, err := c.nodes.Available(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNodeNotSynced
		}
	}

	head, err := c.rpc.HeadBlockNumber(ctx, c.chain.Finality, c.chain.FinalizedLag)
	if err != nil {
		if errors.Is(err, rpc.ErrServiceUnavailable) {
			c.log.Warnf("service unavailable: head block: %v", err)
		}
		return err
	}
	metrics.HeadBlockSet(head)

	watchers, err := c.source.Watchers(ctx)
	if err != nil {
		return err
	}

	c.log.Debugf("pass: head=%d, watchers=%d", head, len(watchers))

	errs := make([]error, len(watchers))
	group := c.pool.NewGroup()
	for i, w := range watchers {
		group.Submit(func() {
			_, errs[i] = c.downloader.Sync(ctx, w, head)
		})
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("watcher task failed: %w", err)
	}

	var retryable, fatal []error
	for i, err := range errs {
		if err == nil {
			continue
		}

		w := watchers[i]
		switch {
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			continue
		case errors.Is(err, rpc.ErrServiceUnavailable):
			c.log.Warnf("service unavailable: watcher %s (%s): %v", w.Name, w.Key(), err)
			metrics.WatcherFailureInc("unavailable")
			retryable = append(retryable, err)
		case db.IsBusy(err):
			c.log.Warnf("database busy: watcher %s (%s): %v", w.Name, w.Key(), err)
			metrics.WatcherFailureInc("busy")
			retryable = append(retryable, fmt.Errorf("%w: watcher %s: %w", ErrWriteContention, w.Key(), err))
		default:
			c.log.Errorf("watcher %s (%s) failed: %v", w.Name, w.Key(), err)
			metrics.WatcherFailureInc("fatal")
			fatal = append(fatal, fmt.Errorf("watcher %s: %w", w.Key(), err))
		}
	}

	if len(fatal) > 0 {
		return errors.Join(fatal...)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return errors.Join(retryable...)
}
