package rpc

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/SecTokenIndexer/internal/common"
)

// ErrServiceUnavailable marks provider failures that are expected to heal on their own:
// connectivity, timeouts, rate limiting and gateway errors.
var ErrServiceUnavailable = errors.New("service unavailable")

var (
	tooManyResultsRe = regexp.MustCompile(`(?i)(query returned more than \d+ results|query exceeds max results|log response size exceeded)`)
	blockRangeRe     = regexp.MustCompile(`\[(0x[0-9a-fA-F]+),\s*(0x[0-9a-fA-F]+)\]`)
)

// IsServiceUnavailable reports whether err is a transient provider failure.
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// IsTooManyResultsError checks if the error is an RPC "too many results" error and returns its data.
func IsTooManyResultsError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		errData := fmt.Sprintf("%v", dataErr.ErrorData())
		return tooManyResultsRe.MatchString(errData) || tooManyResultsRe.MatchString(dataErr.Error()), errData
	}

	return tooManyResultsRe.MatchString(err.Error()), ""
}

// ParseSuggestedBlockRange extracts the provider suggested block range.
// Expected format: "Query returned more than 20000 results. Try with this block range [0x7dfd25, 0x7e0fcc]."
func ParseSuggestedBlockRange(msg string) (fromBlock, toBlock uint64, ok bool) {
	matches := blockRangeRe.FindStringSubmatch(msg)
	if len(matches) != 3 { //nolint:mnd
		return 0, 0, false
	}

	from, err1 := common.ParseBlockNumber(matches[1])
	to, err2 := common.ParseBlockNumber(matches[2])
	if err1 != nil || err2 != nil || from > to {
		return 0, 0, false
	}

	return from, to, true
}
