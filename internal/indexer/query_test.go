package indexer

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/events"
	"github.com/goran-ethernal/SecTokenIndexer/internal/testutil"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/indexer"
	"github.com/stretchr/testify/require"
)

var (
	queryToken = common.HexToAddress("0x00000000000000000000000000000000000000a1").Hex()
	queryAlice = common.HexToAddress("0x00000000000000000000000000000000000000b1").Hex()
	queryBob   = common.HexToAddress("0x00000000000000000000000000000000000000b2").Hex()
)

func insertTransfer(t *testing.T, database *sql.DB, block uint64, from, to string) {
	t.Helper()

	_, err := database.Exec(`
INSERT INTO idx_transfer (transaction_hash, log_index, transaction_index, block_number,
	block_timestamp, token_address, from_address, to_address, value)
VALUES (?, 0, 0, ?, ?, ?, ?, ?, '1')`,
		fmt.Sprintf("0x%064x", block), block, 1_700_000_000+block, queryToken, from, to)
	require.NoError(t, err)
}

func TestEventStore_QueryEvents(t *testing.T) {
	database := testutil.NewTestDB(t, "query.db")
	store := NewEventStore(database)

	insertTransfer(t, database, 10, queryAlice, queryBob)
	insertTransfer(t, database, 20, queryBob, queryAlice)
	insertTransfer(t, database, 30, queryBob, queryBob)

	qp := indexer.NewDefaultQueryParams()
	qp.Kind = "transfer"

	page, total, err := store.QueryEvents(t.Context(), *qp)
	require.NoError(t, err)
	require.Equal(t, 3, total)
	rows := page.([]*TransferRow) //nolint:forcetypeassert
	require.Len(t, rows, 3)
	require.Equal(t, uint64(30), rows[0].BlockNumber)

	qp.Account = queryAlice
	qp.SortOrder = "asc"
	page, total, err = store.QueryEvents(t.Context(), *qp)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	rows = page.([]*TransferRow) //nolint:forcetypeassert
	require.Equal(t, uint64(10), rows[0].BlockNumber)
	require.Equal(t, uint64(20), rows[1].BlockNumber)

	from := uint64(15)
	qp.FromBlock = &from
	qp.Limit = 1
	page, total, err = store.QueryEvents(t.Context(), *qp)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, page, 1)
}

func TestEventStore_QueryEvents_Empty(t *testing.T) {
	database := testutil.NewTestDB(t, "query.db")
	store := NewEventStore(database)

	for _, kind := range events.AllKinds() {
		page, total, err := store.QueryEvents(t.Context(), indexer.QueryParams{Kind: kind.String()})
		require.NoError(t, err, kind)
		require.Zero(t, total, kind)
		require.NotNil(t, page, kind)
	}
}

func TestEventStore_QueryEvents_Invalid(t *testing.T) {
	store := NewEventStore(testutil.NewTestDB(t, "query.db"))

	_, _, err := store.QueryEvents(t.Context(), indexer.QueryParams{Kind: "Mint"})
	require.ErrorIs(t, err, ErrInvalidQuery)

	from := uint64(1)
	_, _, err = store.QueryEvents(t.Context(), indexer.QueryParams{Kind: "Agree", FromBlock: &from})
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, _, err = store.QueryEvents(t.Context(), indexer.QueryParams{Kind: "Transfer", Offset: -1})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestEventStore_SharedTableConditions(t *testing.T) {
	database := testutil.NewTestDB(t, "query.db")
	store := NewEventStore(database)

	_, err := database.Exec(`
INSERT INTO idx_order (exchange_address, order_id, token_address, account_address, is_buy,
	price, amount, agent_address, is_cancelled, order_timestamp, transaction_hash, log_index, block_number)
VALUES (?, 1, ?, ?, 1, '10', '5', ?, 0, 100, '0x01', 0, 7),
       (?, 2, ?, ?, 0, '11', '6', ?, 1, 110, '0x02', 0, 8)`,
		queryBob, queryToken, queryAlice, queryBob,
		queryBob, queryToken, queryAlice, queryBob)
	require.NoError(t, err)

	_, total, err := store.QueryEvents(t.Context(), indexer.QueryParams{Kind: "NewOrder"})
	require.NoError(t, err)
	require.Equal(t, 2, total)

	page, total, err := store.QueryEvents(t.Context(), indexer.QueryParams{Kind: "CancelOrder"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	orders := page.([]*OrderRow) //nolint:forcetypeassert
	require.Equal(t, int64(2), orders[0].OrderID)
	require.True(t, orders[0].IsCancelled)
	require.False(t, orders[0].IsBuy)

	counts, err := store.EventCounts(t.Context())
	require.NoError(t, err)
	require.Equal(t, int64(2), counts["NewOrder"])
	require.Equal(t, int64(1), counts["CancelOrder"])
	require.Zero(t, counts["Transfer"])
}

func TestEventStore_Positions(t *testing.T) {
	database := testutil.NewTestDB(t, "query.db")
	store := NewEventStore(database)

	_, err := database.Exec(`
INSERT INTO idx_locked_position (token_address, lock_address, account_address, value, modified)
VALUES (?, ?, ?, '120', 30), (?, ?, ?, '5', 40)`,
		queryToken, queryBob, queryAlice,
		queryToken, queryAlice, queryBob)
	require.NoError(t, err)

	positions, err := store.Positions(t.Context(), queryAlice, "")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, "120", positions[0].Value)
	require.Equal(t, uint64(30), positions[0].Modified)

	positions, err = store.Positions(t.Context(), queryAlice, queryBob)
	require.NoError(t, err)
	require.Empty(t, positions)
	require.NotNil(t, positions)
}
