package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/contracts"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	irpc "github.com/goran-ethernal/SecTokenIndexer/internal/rpc"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/fetcher"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/rpc"
)

// Compile-time check to ensure LogFetcher implements fetcher.LogFetcher interface.
var _ fetcher.LogFetcher = (*LogFetcher)(nil)

// ErrABIEventNotFound is returned when the ABI of a contract type does not declare the
// requested event. Callers treat it as zero logs.
var ErrABIEventNotFound = errors.New("abi event not found")

// LogFetcher retrieves the logs of one event of one contract over a block range.
type LogFetcher struct {
	rpc rpc.EthClient
	log *logger.Logger
}

// NewLogFetcher creates a new LogFetcher instance.
func NewLogFetcher(log *logger.Logger, rpcClient rpc.EthClient) *LogFetcher {
	return &LogFetcher{
		rpc: rpcClient,
		log: log.WithComponent(common.ComponentLogFetcher),
	}
}

// FetchLogs returns the logs of eventName emitted by address in [fromBlock, toBlock], ordered
// by block number, transaction index and log index. Logs flagged as removed are dropped.
func (lf *LogFetcher) FetchLogs(
	ctx context.Context,
	address ethcommon.Address,
	contractType, eventName string,
	fromBlock, toBlock uint64,
) ([]types.Log, error) {
	eventID, ok, err := contracts.EventID(contractType, eventName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s contract has no %s event", ErrABIEventNotFound, contractType, eventName)
	}

	lf.log.Debugf("fetching %s logs of %s from %d to %d", eventName, address.Hex(), fromBlock, toBlock)

	logs, err := lf.fetchLogsWithSplit(ctx, address, eventID, fromBlock, toBlock)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s logs of %s from %d to %d: %w",
			eventName, address.Hex(), fromBlock, toBlock, err)
	}

	logs = slices.DeleteFunc(logs, func(l types.Log) bool { return l.Removed })
	slices.SortFunc(logs, compareLogs)

	logsFetched.WithLabelValues(eventName).Add(float64(len(logs)))

	return logs, nil
}

// fetchLogsWithSplit fetches logs and, when the provider refuses the range for returning too
// many results, splits it in two and fetches both halves. A range suggested by the provider
// is used as the first half when it starts at fromBlock.
func (lf *LogFetcher) fetchLogsWithSplit(
	ctx context.Context,
	address ethcommon.Address,
	eventID ethcommon.Hash,
	fromBlock, toBlock uint64,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []ethcommon.Address{address},
		Topics:    [][]ethcommon.Hash{{eventID}},
	}

	logs, err := lf.rpc.GetLogs(ctx, query)
	if err == nil {
		return logs, nil
	}

	tooMany, errData := irpc.IsTooManyResultsError(err)
	if !tooMany {
		return nil, err
	}

	if fromBlock == toBlock {
		return nil, fmt.Errorf("cannot split range further, single block %d has too many logs", fromBlock)
	}

	splitAt := fromBlock + (toBlock-fromBlock)/2 //nolint:mnd
	if suggestedFrom, suggestedTo, ok := irpc.ParseSuggestedBlockRange(errData); ok &&
		suggestedFrom == fromBlock && suggestedTo < toBlock {
		splitAt = suggestedTo
		lf.log.Infof("too many logs, retrying with suggested block range from %d to %d (original range %d to %d)",
			suggestedFrom, suggestedTo, fromBlock, toBlock)
	} else {
		lf.log.Infof("too many logs, splitting range %d to %d at %d", fromBlock, toBlock, splitAt)
	}
	rangeSplits.Inc()

	left, err := lf.fetchLogsWithSplit(ctx, address, eventID, fromBlock, splitAt)
	if err != nil {
		return nil, err
	}

	right, err := lf.fetchLogsWithSplit(ctx, address, eventID, splitAt+1, toBlock)
	if err != nil {
		return nil, err
	}

	return append(left, right...), nil
}

func compareLogs(a, b types.Log) int {
	switch {
	case a.BlockNumber != b.BlockNumber:
		return cmpUint64(a.BlockNumber, b.BlockNumber)
	case a.TxIndex != b.TxIndex:
		return cmpUint64(uint64(a.TxIndex), uint64(b.TxIndex))
	default:
		return cmpUint64(uint64(a.Index), uint64(b.Index))
	}
}

func cmpUint64(a, b uint64) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
