package events

import (
	"database/sql"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/stretchr/testify/require"
)

var (
	tokenAddr    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	exchangeAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	listAddr     = common.HexToAddress("0x3333333333333333333333333333333333333333")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000A11cE")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000B0b")
	lockAddr     = common.HexToAddress("0x000000000000000000000000000000000000106b")
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	r, err := NewRegistry(logger.NewNopLogger())
	require.NoError(t, err)

	return r
}

func testHandler(t *testing.T, kind Kind) Handler {
	t.Helper()

	h, ok := newTestRegistry(t).Handler(kind)
	require.True(t, ok)

	return h
}

// forgeLog builds the log a contract emits for kind. Arguments follow the ABI input
// order, indexed ones are hashed into topics.
func forgeLog(t *testing.T, kind Kind, contract common.Address, pos [3]uint64, args ...any) types.Log {
	t.Helper()

	event := testHandler(t, kind).(interface{ abiEvent() abi.Event }).abiEvent()

	topics := []common.Hash{event.ID}
	var data []any
	for _, input := range event.Inputs {
		require.NotEmpty(t, args, "missing argument %s", input.Name)
		value := args[0]
		args = args[1:]

		if !input.Indexed {
			data = append(data, value)
			continue
		}
		hashes, err := abi.MakeTopics([]any{value})
		require.NoError(t, err)
		topics = append(topics, hashes[0][0])
	}
	require.Empty(t, args, "too many arguments")

	packed, err := event.Inputs.NonIndexed().Pack(data...)
	require.NoError(t, err)

	return types.Log{
		Address:     contract,
		Topics:      topics,
		Data:        packed,
		BlockNumber: pos[0],
		TxIndex:     uint(pos[1]),
		Index:       uint(pos[2]),
		TxHash:      common.BigToHash(new(big.Int).SetUint64(pos[0]*1_000_000 + pos[1]*1_000 + pos[2])),
	}
}

// apply decodes and upserts a log in its own transaction.
func apply(t *testing.T, database *sql.DB, r *Registry, kind Kind, l types.Log, blockTimestamp uint64) *Event {
	t.Helper()

	h, ok := r.Handler(kind)
	require.True(t, ok)

	ev, err := h.Decode(l, blockTimestamp)
	require.NoError(t, err)

	require.NoError(t, db.RunInTx(t.Context(), database, logger.NewNopLogger(), func(tx *sql.Tx) error {
		return h.Upsert(t.Context(), tx, ev)
	}))

	return ev
}
