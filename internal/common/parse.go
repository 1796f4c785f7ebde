package common

import (
	"fmt"
	"strconv"
	"strings"
)

const bytesInMB = 1024 * 1024

// ParseBlockNumber parses a block number written in decimal or as 0x-prefixed hex,
// the two forms providers use in error messages and responses.
func ParseBlockNumber(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	base := 10
	digits := s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		digits = s[2:]
	}

	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q: %w", s, err)
	}

	return n, nil
}

// BytesToMB truncates to whole megabytes.
func BytesToMB(bytes uint64) uint64 {
	return bytes / bytesInMB
}

func ToLowerWithTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
