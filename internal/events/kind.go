// Package events decodes platform contract logs into typed events and writes them to the
// indexed tables. Every event kind has one Handler, resolved through a static Registry.
package events

import (
	"fmt"
	"strings"

	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
)

// Kind names an event stream. It doubles as the event category of sync checkpoints and as
// the ABI event name.
type Kind string

const (
	KindTransfer         Kind = "Transfer"
	KindLock             Kind = "Lock"
	KindUnlock           Kind = "Unlock"
	KindApplyForTransfer Kind = "ApplyForTransfer"
	KindApproveTransfer  Kind = "ApproveTransfer"
	KindCancelTransfer   Kind = "CancelTransfer"

	KindNewOrder     Kind = "NewOrder"
	KindCancelOrder  Kind = "CancelOrder"
	KindAgree        Kind = "Agree"
	KindSettlementOK Kind = "SettlementOK"
	KindSettlementNG Kind = "SettlementNG"

	KindRegister Kind = "Register"
)

var kindsByContractType = map[string][]Kind{
	config.ContractTypeToken: {
		KindTransfer, KindLock, KindUnlock,
		KindApplyForTransfer, KindApproveTransfer, KindCancelTransfer,
	},
	config.ContractTypeExchange: {
		KindNewOrder, KindCancelOrder, KindAgree, KindSettlementOK, KindSettlementNG,
	},
	config.ContractTypeTokenList: {
		KindRegister,
	},
}

func (k Kind) String() string {
	return string(k)
}

// ContractType returns the contract type emitting the kind, or "" for unknown kinds.
func (k Kind) ContractType() string {
	for contractType, kinds := range kindsByContractType {
		for _, kind := range kinds {
			if kind == k {
				return contractType
			}
		}
	}

	return ""
}

// ParseKind resolves a kind name, ignoring case.
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	for _, kinds := range kindsByContractType {
		for _, kind := range kinds {
			if strings.EqualFold(string(kind), s) {
				return kind, nil
			}
		}
	}

	return "", fmt.Errorf("unknown event kind %q", s)
}

// KindsFor returns the kinds emitted by a contract type in a stable order.
func KindsFor(contractType string) []Kind {
	kinds := kindsByContractType[contractType]
	out := make([]Kind, len(kinds))
	copy(out, kinds)

	return out
}

// AllKinds returns every kind grouped by contract type: token, exchange, token list.
func AllKinds() []Kind {
	var out []Kind
	for _, contractType := range []string{
		config.ContractTypeToken, config.ContractTypeExchange, config.ContractTypeTokenList,
	} {
		out = append(out, kindsByContractType[contractType]...)
	}

	return out
}

// CoupledKinds returns the kinds whose checkpoints must move together with k. Lock and
// Unlock feed the same position aggregate, so they are only replayed as a pair.
func CoupledKinds(k Kind) []Kind {
	switch k {
	case KindLock, KindUnlock:
		return []Kind{KindLock, KindUnlock}
	default:
		return []Kind{k}
	}
}
