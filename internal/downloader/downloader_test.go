package downloader

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/SecTokenIndexer/internal/blockrange"
	"github.com/goran-ethernal/SecTokenIndexer/internal/contracts"
	"github.com/goran-ethernal/SecTokenIndexer/internal/events"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/internal/rpc"
	rpcmocks "github.com/goran-ethernal/SecTokenIndexer/internal/rpc/mocks"
	"github.com/goran-ethernal/SecTokenIndexer/internal/testutil"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/indexer"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000A11cE")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000B0b")
)

// fakeFetcher serves a fixed set of logs and records the requested ranges.
type fakeFetcher struct {
	mu     sync.Mutex
	logs   []types.Log
	ranges []blockrange.Range

	// failFrom makes every range starting at or after it fail with err
	failFrom uint64
	err      error
}

func (f *fakeFetcher) FetchLogs(
	ctx context.Context,
	address common.Address,
	contractType, eventName string,
	fromBlock, toBlock uint64,
) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ranges = append(f.ranges, blockrange.Range{From: fromBlock, To: toBlock})
	if f.err != nil && fromBlock >= f.failFrom {
		return nil, f.err
	}

	var out []types.Log
	for _, l := range f.logs {
		if l.Address == address && l.BlockNumber >= fromBlock && l.BlockNumber <= toBlock {
			out = append(out, l)
		}
	}

	return out, nil
}

func transferLog(t *testing.T, block uint64, logIndex uint, from, to common.Address, value int64) types.Log {
	t.Helper()

	id, ok, err := contracts.EventID(config.ContractTypeToken, "Transfer")
	require.NoError(t, err)
	require.True(t, ok)

	return types.Log{
		Address:     testContract,
		Topics:      []common.Hash{id, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        common.LeftPadBytes(big.NewInt(value).Bytes(), 32),
		BlockNumber: block,
		Index:       logIndex,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block*1000 + uint64(logIndex))),
	}
}

func headerClient(t *testing.T) *rpcmocks.EthClient {
	t.Helper()

	client := rpcmocks.NewEthClient(t)
	client.EXPECT().BatchGetBlockHeaders(mock.Anything, mock.Anything).RunAndReturn(
		func(_ context.Context, nums []uint64) ([]*types.Header, error) {
			headers := make([]*types.Header, 0, len(nums))
			for _, n := range nums {
				headers = append(headers, &types.Header{Number: new(big.Int).SetUint64(n), Time: 1_700_000_000 + n})
			}
			return headers, nil
		},
	).Maybe()

	return client
}

type testEnv struct {
	downloader *Downloader
	fetcher    *fakeFetcher
	watcher    indexer.Watcher
}

func newTestEnv(t *testing.T, window uint64, logs ...types.Log) *testEnv {
	t.Helper()

	database := testutil.NewTestDB(t, "downloader.db")
	log := logger.NewNopLogger()

	registry, err := events.NewRegistry(log)
	require.NoError(t, err)

	fetcher := &fakeFetcher{logs: logs}
	d, err := New(config.SyncConfig{BlockWindow: window}, database, headerClient(t), fetcher, registry, nil, log)
	require.NoError(t, err)

	return &testEnv{
		downloader: d,
		fetcher:    fetcher,
		watcher: indexer.Watcher{
			Name:         "token",
			Address:      testContract,
			ContractType: config.ContractTypeToken,
			Kind:         events.KindTransfer.String(),
		},
	}
}

func (e *testEnv) checkpoint(t *testing.T) *uint64 {
	t.Helper()

	checkpoint, err := e.downloader.SyncManager().GetCheckpoint(t.Context(), testContract, e.watcher.Kind)
	require.NoError(t, err)

	return checkpoint
}

func TestDownloader_Windows(t *testing.T) {
	env := newTestEnv(t, 1_000_000)

	res, err := env.downloader.Sync(t.Context(), env.watcher, 9_999_999)
	require.NoError(t, err)
	require.Equal(t, 10, res.Ranges)
	require.Len(t, env.fetcher.ranges, 10)
	require.Equal(t, blockrange.Range{From: 0, To: 999_999}, env.fetcher.ranges[0])
	require.Equal(t, blockrange.Range{From: 9_000_000, To: 9_999_999}, env.fetcher.ranges[9])
	require.Equal(t, uint64(9_999_999), *res.Checkpoint)
	require.Equal(t, uint64(9_999_999), *env.checkpoint(t))

	// nothing left
	res, err = env.downloader.Sync(t.Context(), env.watcher, 9_999_999)
	require.NoError(t, err)
	require.Zero(t, res.Ranges)
	require.Len(t, env.fetcher.ranges, 10)
}

func TestDownloader_ResumesAfterCheckpoint(t *testing.T) {
	env := newTestEnv(t, 100)
	env.watcher.StartBlock = 50

	_, err := env.downloader.Sync(t.Context(), env.watcher, 120)
	require.NoError(t, err)
	require.Equal(t, blockrange.Range{From: 50, To: 120}, env.fetcher.ranges[0])

	_, err = env.downloader.Sync(t.Context(), env.watcher, 300)
	require.NoError(t, err)
	require.Equal(t, []blockrange.Range{
		{From: 50, To: 120},
		{From: 121, To: 220},
		{From: 221, To: 300},
	}, env.fetcher.ranges)
}

func TestDownloader_IdempotentReplay(t *testing.T) {
	logs := []types.Log{
		transferLog(t, 5, 0, alice, bob, 10),
		transferLog(t, 5, 1, bob, alice, 3),
		transferLog(t, 150, 0, alice, bob, 7),
	}
	env := newTestEnv(t, 100, logs...)
	database := env.downloader.db

	res, err := env.downloader.Sync(t.Context(), env.watcher, 200)
	require.NoError(t, err)
	require.Equal(t, 3, res.Logs)

	tables := []string{"idx_transfer", "notification"}
	before := make(map[string][][]any, len(tables))
	for _, table := range tables {
		before[table] = testutil.Dump(t, database, table)
	}
	require.Len(t, before["idx_transfer"], 3)
	require.Len(t, before["notification"], 3)

	require.NoError(t, env.downloader.Reset(t.Context(), testContract, env.watcher.Kind))
	require.Nil(t, env.checkpoint(t))

	_, err = env.downloader.Sync(t.Context(), env.watcher, 200)
	require.NoError(t, err)

	for _, table := range tables {
		require.Equal(t, before[table], testutil.Dump(t, database, table), table)
	}
}

func TestDownloader_BlockTimestamps(t *testing.T) {
	env := newTestEnv(t, 100, transferLog(t, 42, 0, alice, bob, 1))

	_, err := env.downloader.Sync(t.Context(), env.watcher, 50)
	require.NoError(t, err)

	var ts uint64
	require.NoError(t, env.downloader.db.QueryRow(`SELECT block_timestamp FROM idx_transfer`).Scan(&ts))
	require.Equal(t, uint64(1_700_000_042), ts)
}

func TestDownloader_MalformedLogRollsBackRange(t *testing.T) {
	bad := transferLog(t, 8, 1, alice, bob, 1)
	bad.Topics[0] = common.HexToHash("0xdead")

	env := newTestEnv(t, 100, transferLog(t, 8, 0, alice, bob, 1), bad)

	_, err := env.downloader.Sync(t.Context(), env.watcher, 50)
	require.ErrorIs(t, err, events.ErrMalformedLog)

	require.Nil(t, env.checkpoint(t))
	require.Empty(t, testutil.Dump(t, env.downloader.db, "idx_transfer"))
	require.Empty(t, testutil.Dump(t, env.downloader.db, "notification"))
}

func TestDownloader_SkipsUndecodableLog(t *testing.T) {
	truncated := transferLog(t, 3, 1, alice, bob, 1)
	truncated.Data = truncated.Data[:10]

	env := newTestEnv(t, 100, transferLog(t, 3, 0, alice, bob, 1), truncated)

	res, err := env.downloader.Sync(t.Context(), env.watcher, 50)
	require.NoError(t, err)
	require.Equal(t, 1, res.Skipped)
	require.Equal(t, uint64(50), *env.checkpoint(t))
	require.Len(t, testutil.Dump(t, env.downloader.db, "idx_transfer"), 1)
}

func TestDownloader_ServiceUnavailableKeepsCommittedRanges(t *testing.T) {
	env := newTestEnv(t, 100, transferLog(t, 10, 0, alice, bob, 1), transferLog(t, 250, 0, alice, bob, 2))
	env.fetcher.failFrom = 200
	env.fetcher.err = fmt.Errorf("%w: eth_getLogs: connection refused", rpc.ErrServiceUnavailable)

	res, err := env.downloader.Sync(t.Context(), env.watcher, 299)
	require.ErrorIs(t, err, rpc.ErrServiceUnavailable)
	require.Equal(t, 2, res.Ranges)
	require.Equal(t, uint64(199), *env.checkpoint(t))
	require.Len(t, testutil.Dump(t, env.downloader.db, "idx_transfer"), 1)

	env.fetcher.err = nil
	_, err = env.downloader.Sync(t.Context(), env.watcher, 299)
	require.NoError(t, err)
	require.Equal(t, uint64(299), *env.checkpoint(t))
	require.Len(t, testutil.Dump(t, env.downloader.db, "idx_transfer"), 2)
	require.Equal(t, blockrange.Range{From: 200, To: 299}, env.fetcher.ranges[len(env.fetcher.ranges)-1])
}

func TestDownloader_ResetCoupledKinds(t *testing.T) {
	env := newTestEnv(t, 100)

	for _, kind := range []events.Kind{events.KindLock, events.KindUnlock, events.KindTransfer} {
		w := env.watcher
		w.Kind = kind.String()
		_, err := env.downloader.Sync(t.Context(), w, 10)
		require.NoError(t, err)
	}

	require.NoError(t, env.downloader.Reset(t.Context(), testContract, "lock"))

	all, err := env.downloader.SyncManager().ListCheckpoints(t.Context())
	require.NoError(t, err)
	categories := make([]string, 0, len(all))
	for _, c := range all {
		categories = append(categories, c.EventCategory)
	}
	require.Equal(t, []string{"Transfer"}, categories)

	require.Error(t, env.downloader.Reset(t.Context(), testContract, "Approval"))
}

func TestNew_RequiresDependencies(t *testing.T) {
	log := logger.NewNopLogger()
	_, err := New(config.SyncConfig{}, nil, nil, nil, nil, nil, log)
	require.ErrorContains(t, err, "database is required")
}

func TestBlockTimestamps_Distinct(t *testing.T) {
	client := rpcmocks.NewEthClient(t)
	client.EXPECT().BatchGetBlockHeaders(mock.Anything, []uint64{3, 9}).Return([]*types.Header{
		{Number: big.NewInt(3), Time: 30},
		{Number: big.NewInt(9), Time: 90},
	}, nil).Once()

	d := &Downloader{rpc: client}
	ts, err := d.blockTimestamps(t.Context(), []types.Log{{BlockNumber: 9}, {BlockNumber: 3}, {BlockNumber: 9}})
	require.NoError(t, err)
	require.Equal(t, map[uint64]uint64{3: 30, 9: 90}, ts)
}
