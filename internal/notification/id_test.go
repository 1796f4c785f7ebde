package notification

import (
	"math/rand/v2"
	"slices"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAssignID(t *testing.T) {
	require.Equal(t, "0x00000000000a00000100000200", AssignID(10, 1, 2, 0))
	require.Equal(t, "0x00000000000a00000100000201", AssignID(10, 1, 2, 1))
	require.Equal(t, "0x0000011a88a000000000000000", AssignID(18_516_128, 0, 0, 0))
	require.Len(t, AssignID(0, 0, 0, 0), 2+12+6+6+2)
}

func TestAssignIDChecked(t *testing.T) {
	id, err := AssignIDChecked(maxBlockNumber, maxTxIndex, maxLogIndex, maxOptionType)
	require.NoError(t, err)
	require.Equal(t, "0xffffffffffffffffffffffffff", id)

	_, err = AssignIDChecked(maxBlockNumber+1, 0, 0, 0)
	require.ErrorContains(t, err, "block number")

	_, err = AssignIDChecked(0, maxTxIndex+1, 0, 0)
	require.ErrorContains(t, err, "transaction index")

	_, err = AssignIDChecked(0, 0, maxLogIndex+1, 0)
	require.ErrorContains(t, err, "log index")
}

func TestAssignID_OrderMatchesPosition(t *testing.T) {
	type position struct {
		block, tx, log uint64
		opt            uint8
	}

	rng := rand.New(rand.NewPCG(1, 2))
	positions := make([]position, 2000)
	for i := range positions {
		positions[i] = position{
			block: rng.Uint64N(maxBlockNumber + 1),
			tx:    rng.Uint64N(300),
			log:   rng.Uint64N(maxLogIndex + 1),
			opt:   uint8(rng.UintN(4)),
		}
	}
	// neighbours differing in a single component
	positions = append(positions,
		position{block: 15, tx: 0, log: 0}, position{block: 16, tx: 0, log: 0},
		position{block: 16, tx: 1, log: 0}, position{block: 16, tx: 1, log: 255},
		position{block: 16, tx: 1, log: 256}, position{block: 16, tx: 1, log: 256, opt: 1},
	)

	slices.SortFunc(positions, func(a, b position) int {
		switch {
		case a.block != b.block:
			return cmp(a.block, b.block)
		case a.tx != b.tx:
			return cmp(a.tx, b.tx)
		case a.log != b.log:
			return cmp(a.log, b.log)
		default:
			return cmp(uint64(a.opt), uint64(b.opt))
		}
	})

	ids := make([]string, len(positions))
	for i, p := range positions {
		ids[i] = AssignID(p.block, p.tx, p.log, p.opt)
	}

	require.True(t, sort.StringsAreSorted(ids))
}

func cmp(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
