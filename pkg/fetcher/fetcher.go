package fetcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// LogFetcher retrieves event logs from the chain provider.
// This abstraction allows for easier testing and alternative implementations.
type LogFetcher interface {
	// FetchLogs returns the logs of eventName emitted by address in [fromBlock, toBlock].
	// The event is resolved against the ABI of contractType.
	FetchLogs(
		ctx context.Context,
		address common.Address,
		contractType, eventName string,
		fromBlock, toBlock uint64,
	) ([]types.Log, error)
}
