// Package blockrange splits an inclusive block interval into bounded windows.
package blockrange

import (
	"fmt"
	"iter"
)

// DefaultWindow is the window used when none is configured.
const DefaultWindow uint64 = 1_000_000

// Range is an inclusive block interval.
type Range struct {
	From uint64
	To   uint64
}

// Len returns the number of blocks covered by the range.
func (r Range) Len() uint64 {
	return r.To - r.From + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.From, r.To)
}

// Plan yields contiguous, non-overlapping ranges covering [start, current], each at most
// window blocks long. Nothing is yielded when start > current.
func Plan(start, current, window uint64) iter.Seq[Range] {
	if window == 0 {
		window = DefaultWindow
	}

	return func(yield func(Range) bool) {
		if start > current {
			return
		}

		for from := start; ; {
			to := current
			// from+window-1 may overflow near MaxUint64
			if current-from >= window {
				to = from + window - 1
			}

			if !yield(Range{From: from, To: to}) {
				return
			}

			if to == current {
				return
			}
			from = to + 1
		}
	}
}

// Count returns how many ranges Plan yields for the same arguments.
func Count(start, current, window uint64) uint64 {
	if start > current {
		return 0
	}
	if window == 0 {
		window = DefaultWindow
	}

	span := current - start
	return span/window + 1
}
