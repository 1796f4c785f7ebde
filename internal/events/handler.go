package events

import (
	"context"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	internalcommon "github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/contracts"
	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/internal/notification"
)

// Handler decodes and persists one event kind.
type Handler interface {
	// Kind returns the handled event kind.
	Kind() Kind

	// Decode turns a raw log into an event. It returns ErrSkip for payloads that do not
	// match the event shape and ErrMalformedLog for logs that cannot be parsed.
	Decode(l types.Log, blockTimestamp uint64) (*Event, error)

	// Upsert writes the event keyed by its natural key. Writing the same event twice
	// leaves the tables unchanged.
	Upsert(ctx context.Context, q db.Querier, ev *Event) error

	// Notifications derives the user notifications of the event.
	Notifications(ev *Event) []notification.Draft
}

// Resetter is implemented by handlers keeping derived state that has to be discarded
// before their events are replayed.
type Resetter interface {
	Reset(ctx context.Context, q db.Querier, contract common.Address) error
}

// base carries what every handler needs.
type base struct {
	kind  Kind
	event abi.Event
	log   *logger.Logger
}

func (b base) Kind() Kind {
	return b.kind
}

func (b base) abiEvent() abi.Event {
	return b.event
}

func (b base) newEvent(l types.Log, blockTimestamp uint64, payload any) *Event {
	return newEvent(b.kind, l, blockTimestamp, payload)
}

var constructors = map[Kind]func(base) Handler{
	KindTransfer:         func(b base) Handler { return &transferHandler{b} },
	KindLock:             func(b base) Handler { return &lockHandler{b} },
	KindUnlock:           func(b base) Handler { return &unlockHandler{b} },
	KindApplyForTransfer: func(b base) Handler { return &applyForTransferHandler{b} },
	KindApproveTransfer:  func(b base) Handler { return &approveTransferHandler{b} },
	KindCancelTransfer:   func(b base) Handler { return &cancelTransferHandler{b} },
	KindNewOrder:         func(b base) Handler { return &newOrderHandler{b} },
	KindCancelOrder:      func(b base) Handler { return &cancelOrderHandler{b} },
	KindAgree:            func(b base) Handler { return &agreeHandler{b} },
	KindSettlementOK:     func(b base) Handler { return &settlementHandler{base: b, status: AgreementDone} },
	KindSettlementNG:     func(b base) Handler { return &settlementHandler{base: b, status: AgreementCanceled} },
	KindRegister:         func(b base) Handler { return &registerHandler{b} },
}

// Registry maps every kind to its handler.
type Registry struct {
	handlers map[Kind]Handler
}

// NewRegistry builds the handler of every kind against the embedded contract ABIs.
func NewRegistry(log *logger.Logger) (*Registry, error) {
	log = log.WithComponent(internalcommon.ComponentEventDecoder)

	handlers := make(map[Kind]Handler, len(constructors))
	for _, kind := range AllKinds() {
		ctor, ok := constructors[kind]
		if !ok {
			return nil, fmt.Errorf("no handler for event kind %s", kind)
		}

		event, ok, err := contracts.Event(kind.ContractType(), string(kind))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%s ABI has no %s event", kind.ContractType(), kind)
		}

		handlers[kind] = ctor(base{kind: kind, event: event, log: log})
	}

	return &Registry{handlers: handlers}, nil
}

// Handler returns the handler of kind.
func (r *Registry) Handler(kind Kind) (Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds in a stable order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)

	return kinds
}
