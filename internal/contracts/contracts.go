// Package contracts carries the event ABIs of the platform contracts, keyed by contract type.
package contracts

import (
	"bytes"
	"embed"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
)

//go:embed abi/*.json
var abiFiles embed.FS

var abiFileByType = map[string]string{
	config.ContractTypeToken:     "abi/token.json",
	config.ContractTypeExchange:  "abi/exchange.json",
	config.ContractTypeTokenList: "abi/token_list.json",
}

// KnownTemplates are the token templates the token list is expected to register.
var KnownTemplates = []string{
	"ShareToken",
	"BondToken",
	"MembershipToken",
	"CouponToken",
}

// IsKnownTemplate reports whether name is one of KnownTemplates.
func IsKnownTemplate(name string) bool {
	return slices.Contains(KnownTemplates, name)
}

var loadABIs = sync.OnceValues(func() (map[string]*abi.ABI, error) {
	parsed := make(map[string]*abi.ABI, len(abiFileByType))
	for contractType, file := range abiFileByType {
		raw, err := abiFiles.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}

		contractABI, err := abi.JSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		parsed[contractType] = &contractABI
	}

	return parsed, nil
})

// ABI returns the parsed ABI of the given contract type.
func ABI(contractType string) (*abi.ABI, error) {
	abis, err := loadABIs()
	if err != nil {
		return nil, err
	}

	contractABI, ok := abis[contractType]
	if !ok {
		return nil, fmt.Errorf("unknown contract type %q", contractType)
	}

	return contractABI, nil
}

// Event looks up an event of the contract type by name. The second return value is false
// when the contract type ABI does not declare it.
func Event(contractType, name string) (abi.Event, bool, error) {
	contractABI, err := ABI(contractType)
	if err != nil {
		return abi.Event{}, false, err
	}

	event, ok := contractABI.Events[name]
	return event, ok, nil
}

// EventID returns the topic0 of an event of the contract type.
func EventID(contractType, name string) (common.Hash, bool, error) {
	event, ok, err := Event(contractType, name)
	if err != nil || !ok {
		return common.Hash{}, ok, err
	}

	return event.ID, true, nil
}

// EventNames lists the events the contract type ABI declares, sorted.
func EventNames(contractType string) ([]string, error) {
	contractABI, err := ABI(contractType)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(contractABI.Events))
	for name := range contractABI.Events {
		names = append(names, name)
	}
	slices.Sort(names)

	return names, nil
}
