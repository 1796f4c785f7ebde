package notification

import (
	"fmt"
)

const (
	idPrefix = "0x"

	maxBlockNumber = 1<<48 - 1 // 12 hex digits
	maxTxIndex     = 1<<24 - 1 // 6 hex digits
	maxLogIndex    = 1<<24 - 1 // 6 hex digits
	maxOptionType  = 1<<8 - 1  // 2 hex digits
)

// AssignID derives the notification ID of the option-th notification emitted for the log at
// (blockNumber, txIndex, logIndex). IDs compare as strings the way their components compare
// as numbers. Components wider than their field are not truncated, so callers that cannot
// bound them should use AssignIDChecked.
func AssignID(blockNumber, txIndex, logIndex uint64, optionType uint8) string {
	return fmt.Sprintf("%s%012x%06x%06x%02x", idPrefix, blockNumber, txIndex, logIndex, optionType)
}

// AssignIDChecked is AssignID that rejects components overflowing their fixed width.
func AssignIDChecked(blockNumber, txIndex, logIndex uint64, optionType uint8) (string, error) {
	switch {
	case blockNumber > maxBlockNumber:
		return "", fmt.Errorf("block number %d exceeds notification id width", blockNumber)
	case txIndex > maxTxIndex:
		return "", fmt.Errorf("transaction index %d exceeds notification id width", txIndex)
	case logIndex > maxLogIndex:
		return "", fmt.Errorf("log index %d exceeds notification id width", logIndex)
	}

	return AssignID(blockNumber, txIndex, logIndex, optionType), nil
}
