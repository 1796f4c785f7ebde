package blockrange

import (
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		start    uint64
		current  uint64
		window   uint64
		expected []Range
	}{
		{
			name:     "single block",
			start:    5,
			current:  5,
			window:   10,
			expected: []Range{{From: 5, To: 5}},
		},
		{
			name:     "exact multiple of window",
			start:    0,
			current:  29,
			window:   10,
			expected: []Range{{From: 0, To: 9}, {From: 10, To: 19}, {From: 20, To: 29}},
		},
		{
			name:     "short tail",
			start:    100,
			current:  124,
			window:   10,
			expected: []Range{{From: 100, To: 109}, {From: 110, To: 119}, {From: 120, To: 124}},
		},
		{
			name:     "window larger than interval",
			start:    1,
			current:  3,
			window:   1_000,
			expected: []Range{{From: 1, To: 3}},
		},
		{
			name:    "start after current",
			start:   11,
			current: 10,
			window:  10,
		},
		{
			name:     "window of one",
			start:    7,
			current:  9,
			window:   1,
			expected: []Range{{From: 7, To: 7}, {From: 8, To: 8}, {From: 9, To: 9}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slices.Collect(Plan(tt.start, tt.current, tt.window))
			require.Equal(t, tt.expected, got)
			require.Equal(t, uint64(len(tt.expected)), Count(tt.start, tt.current, tt.window))
		})
	}
}

func TestPlan_TenMillionBlocks(t *testing.T) {
	ranges := slices.Collect(Plan(0, 9_999_999, 1_000_000))
	require.Len(t, ranges, 10)

	for i, r := range ranges {
		require.Equal(t, uint64(i)*1_000_000, r.From)
		require.Equal(t, uint64(i+1)*1_000_000-1, r.To)
		require.Equal(t, uint64(1_000_000), r.Len())
	}
}

func TestPlan_Invariants(t *testing.T) {
	cases := [][3]uint64{
		{0, 0, 1},
		{0, 999, 7},
		{13, 1_000_013, 333},
		{42, 4_200_042, 1_000_000},
	}

	for _, c := range cases {
		start, current, window := c[0], c[1], c[2]

		var prev *Range
		for r := range Plan(start, current, window) {
			require.LessOrEqual(t, r.From, r.To)
			require.LessOrEqual(t, r.Len(), window)
			if prev == nil {
				require.Equal(t, start, r.From)
			} else {
				require.Equal(t, prev.To+1, r.From)
			}
			prev = &r
		}

		require.NotNil(t, prev)
		require.Equal(t, current, prev.To)
	}
}

func TestPlan_DefaultWindow(t *testing.T) {
	ranges := slices.Collect(Plan(0, 2_500_000, 0))
	require.Equal(t, []Range{
		{From: 0, To: 999_999},
		{From: 1_000_000, To: 1_999_999},
		{From: 2_000_000, To: 2_500_000},
	}, ranges)
	require.Equal(t, uint64(3), Count(0, 2_500_000, 0))
}

func TestPlan_NearMaxUint64(t *testing.T) {
	ranges := slices.Collect(Plan(math.MaxUint64-5, math.MaxUint64, 4))
	require.Equal(t, []Range{
		{From: math.MaxUint64 - 5, To: math.MaxUint64 - 2},
		{From: math.MaxUint64 - 1, To: math.MaxUint64},
	}, ranges)
}

func TestPlan_StopsEarly(t *testing.T) {
	var seen int
	for range Plan(0, 100, 10) {
		seen++
		if seen == 3 {
			break
		}
	}
	require.Equal(t, 3, seen)
}
