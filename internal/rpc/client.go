package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	internalcommon "github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	pkgrpc "github.com/goran-ethernal/SecTokenIndexer/pkg/rpc"
	"golang.org/x/time/rate"
)

const maxHeaderBatch = 100

// Compile-time check to ensure Client implements pkgrpc.EthClient interface.
var _ pkgrpc.EthClient = (*Client)(nil)

// Client wraps the go-ethereum client. Every call is throttled, bounded by the request
// timeout and retried; failures that remain transient surface as ErrServiceUnavailable.
type Client struct {
	eth *ethclient.Client
	rpc *rpc.Client

	retry   *config.RetryConfig
	timeout time.Duration
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient dials the endpoint of the given chain configuration.
func NewClient(ctx context.Context, cfg config.ChainConfig, log *logger.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.RPCURL, err)
	}

	return newClient(rpcClient, cfg, log), nil
}

func newClient(rpcClient *rpc.Client, cfg config.ChainConfig, log *logger.Logger) *Client {
	c := &Client{
		eth:     ethclient.NewClient(rpcClient),
		rpc:     rpcClient,
		retry:   cfg.Retry,
		timeout: cfg.RequestTimeout.Duration,
		log:     log.WithComponent(internalcommon.ComponentRPC),
	}

	if cfg.RateLimit.IsEnabled() {
		burst := max(cfg.RateLimit.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), burst)
	}

	return c
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.eth.Close()
}

// call runs one provider method with throttling, per attempt timeout, retries and
// error classification.
func (c *Client) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	start := time.Now()
	rpcRequests.WithLabelValues(method).Inc()

	err := retryWithBackoff(ctx, c.retry, method, func() error {
		if c.limiter != nil {
			waitStart := time.Now()
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			rpcThrottleWait.Observe(time.Since(waitStart).Seconds())
		}

		attemptCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		return fn(attemptCtx)
	})
	rpcDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if err == nil {
		return nil
	}

	// shutdown is not an outage
	if ctx.Err() != nil {
		rpcErrors.WithLabelValues(method, "cancelled").Inc()
		return err
	}

	if retryableError(err) {
		rpcErrors.WithLabelValues(method, "unavailable").Inc()
		return fmt.Errorf("%w: %s: %w", ErrServiceUnavailable, method, err)
	}

	rpcErrors.WithLabelValues(method, "fatal").Inc()
	return fmt.Errorf("%s: %w", method, err)
}

// BlockNumber returns the latest block number known to the node.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.call(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		n, err = c.eth.BlockNumber(ctx)
		return err
	})

	return n, err
}

// HeadBlockNumber returns the sync target: latest minus lag, or the safe/finalized tag.
func (c *Client) HeadBlockNumber(ctx context.Context, finality string, lag uint64) (uint64, error) {
	var tag *big.Int
	switch finality {
	case config.FinalitySafe:
		tag = big.NewInt(int64(rpc.SafeBlockNumber))
	case config.FinalityFinalized:
		tag = big.NewInt(int64(rpc.FinalizedBlockNumber))
	case "", config.FinalityLatest:
		n, err := c.BlockNumber(ctx)
		if err != nil {
			return 0, err
		}
		if n < lag {
			return 0, nil
		}
		return n - lag, nil
	default:
		return 0, fmt.Errorf("unknown finality %q", finality)
	}

	var header *types.Header
	err := c.call(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, tag)
		return err
	})
	if err != nil {
		return 0, err
	}

	return header.Number.Uint64(), nil
}

// GetLogs retrieves logs matching the given filter query.
func (c *Client) GetLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.call(ctx, "eth_getLogs", func(ctx context.Context) error {
		var err error
		logs, err = c.eth.FilterLogs(ctx, query)
		return err
	})

	return logs, err
}

// GetBlockHeader retrieves the header for a specific block number.
func (c *Client) GetBlockHeader(ctx context.Context, blockNum uint64) (*types.Header, error) {
	var header *types.Header
	err := c.call(ctx, "eth_getBlockByNumber", func(ctx context.Context) error {
		var err error
		header, err = c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNum))
		return err
	})

	return header, err
}

// BatchGetBlockHeaders retrieves headers for multiple block numbers, at most 100 per batch.
func (c *Client) BatchGetBlockHeaders(ctx context.Context, blockNums []uint64) ([]*types.Header, error) {
	headers := make([]*types.Header, 0, len(blockNums))

	for i := 0; i < len(blockNums); i += maxHeaderBatch {
		chunk := blockNums[i:min(i+maxHeaderBatch, len(blockNums))]
		results := make([]*types.Header, len(chunk))

		err := c.call(ctx, "eth_getBlockByNumber_batch", func(ctx context.Context) error {
			batch := make([]rpc.BatchElem, len(chunk))
			for j, blockNum := range chunk {
				batch[j] = rpc.BatchElem{
					Method: "eth_getBlockByNumber",
					Args:   []any{toBlockNumArg(blockNum), false},
					Result: &results[j],
				}
			}

			if err := c.rpc.BatchCallContext(ctx, batch); err != nil {
				return err
			}

			for j, elem := range batch {
				if elem.Error != nil {
					return elem.Error
				}
				if results[j] == nil {
					return fmt.Errorf("block %d not found", chunk[j])
				}
			}

			return nil
		})
		if err != nil {
			return nil, err
		}

		headers = append(headers, results...)
	}

	return headers, nil
}

// SyncProgress returns nil when the node is not syncing.
func (c *Client) SyncProgress(ctx context.Context) (*ethereum.SyncProgress, error) {
	var progress *ethereum.SyncProgress
	err := c.call(ctx, "eth_syncing", func(ctx context.Context) error {
		var err error
		progress, err = c.eth.SyncProgress(ctx)
		return err
	})

	return progress, err
}

// SendRawTransaction submits a signed RLP encoded transaction. It is not retried:
// resubmitting after an ambiguous failure is left to the caller.
func (c *Client) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(rawTx); err != nil {
		return common.Hash{}, fmt.Errorf("invalid raw transaction: %w", err)
	}

	rpcRequests.WithLabelValues("eth_sendRawTransaction").Inc()

	sendCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.eth.SendTransaction(sendCtx, tx); err != nil {
		if ctx.Err() == nil && retryableError(err) {
			rpcErrors.WithLabelValues("eth_sendRawTransaction", "unavailable").Inc()
			return common.Hash{}, errors.Join(ErrServiceUnavailable, err)
		}
		rpcErrors.WithLabelValues("eth_sendRawTransaction", "fatal").Inc()
		return common.Hash{}, err
	}

	return tx.Hash(), nil
}

// toBlockNumArg converts a block number to hex format.
func toBlockNumArg(blockNum uint64) string {
	return fmt.Sprintf("0x%x", blockNum)
}
