package events

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/notification"
	"github.com/shopspring/decimal"
)

// AgreementStatus is the settlement state of an agreement.
type AgreementStatus int

const (
	AgreementPending AgreementStatus = iota
	AgreementDone
	AgreementCanceled
)

// Order is an exchange order as emitted on creation and cancellation.
type Order struct {
	Exchange common.Address
	OrderID  int64
	Token    common.Address
	Account  common.Address
	IsBuy    bool
	Price    decimal.Decimal
	Amount   decimal.Decimal
	Agent    common.Address
}

// Agreement is a matched order between a buyer and a seller.
type Agreement struct {
	Exchange    common.Address
	OrderID     int64
	AgreementID int64
	Token       common.Address
	Buyer       common.Address
	Seller      common.Address
	Price       decimal.Decimal
	Amount      decimal.Decimal
	Agent       common.Address
}

const (
	upsertOrderSQL = `
INSERT INTO idx_order (
	exchange_address, order_id, token_address, account_address, is_buy, price, amount,
	agent_address, is_cancelled, order_timestamp, transaction_hash, log_index, block_number
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?)
ON CONFLICT (exchange_address, order_id) DO UPDATE SET
	token_address    = excluded.token_address,
	account_address  = excluded.account_address,
	is_buy           = excluded.is_buy,
	price            = excluded.price,
	amount           = excluded.amount,
	agent_address    = excluded.agent_address,
	order_timestamp  = excluded.order_timestamp,
	transaction_hash = excluded.transaction_hash,
	log_index        = excluded.log_index,
	block_number     = excluded.block_number`

	// a cancellation seen before its order creates the row, the order fills it in later
	cancelOrderSQL = `
INSERT INTO idx_order (
	exchange_address, order_id, token_address, account_address, is_buy, price, amount,
	agent_address, is_cancelled, order_timestamp, transaction_hash, log_index, block_number
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, NULL, ?, ?, ?)
ON CONFLICT (exchange_address, order_id) DO UPDATE SET
	is_cancelled = 1`

	upsertAgreementSQL = `
INSERT INTO idx_agreement (
	exchange_address, order_id, agreement_id, token_address, buyer_address, seller_address,
	price, amount, agent_address, status, agreement_timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
ON CONFLICT (exchange_address, order_id, agreement_id) DO UPDATE SET
	token_address       = excluded.token_address,
	buyer_address       = excluded.buyer_address,
	seller_address      = excluded.seller_address,
	price               = excluded.price,
	amount              = excluded.amount,
	agent_address       = excluded.agent_address,
	agreement_timestamp = excluded.agreement_timestamp`

	settleAgreementSQL = `
INSERT INTO idx_agreement (
	exchange_address, order_id, agreement_id, token_address, buyer_address, seller_address,
	price, amount, agent_address, status, settlement_timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (exchange_address, order_id, agreement_id) DO UPDATE SET
	status               = excluded.status,
	settlement_timestamp = excluded.settlement_timestamp`
)

// decodeOrder decodes NewOrder and CancelOrder. Orders on the zero token are not
// exchange orders of the platform and are skipped.
func decodeOrder(event abi.Event, l types.Log) (*Order, error) {
	f, err := unpack(event, l)
	if err != nil {
		return nil, err
	}

	p := &Order{Exchange: l.Address}
	if p.Token, err = f.address("tokenAddress"); err != nil {
		return nil, err
	}
	if p.Token == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s without token address", ErrSkip, event.Name)
	}
	if p.OrderID, err = f.id("orderId"); err != nil {
		return nil, err
	}
	if p.Account, err = f.address("accountAddress"); err != nil {
		return nil, err
	}
	if p.IsBuy, err = f.flag("isBuy"); err != nil {
		return nil, err
	}
	if p.Price, err = f.amount("price"); err != nil {
		return nil, err
	}
	if p.Amount, err = f.amount("amount"); err != nil {
		return nil, err
	}
	if p.Agent, err = f.address("agentAddress"); err != nil {
		return nil, err
	}

	return p, nil
}

func orderArgs(p *Order) map[string]any {
	return map[string]any{
		"exchange_address": p.Exchange.Hex(),
		"order_id":         p.OrderID,
		"token_address":    p.Token.Hex(),
		"account_address":  p.Account.Hex(),
		"is_buy":           p.IsBuy,
		"price":            p.Price.String(),
		"amount":           p.Amount.String(),
		"agent_address":    p.Agent.Hex(),
	}
}

type newOrderHandler struct{ base }

func (h *newOrderHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	p, err := decodeOrder(h.event, l)
	if err != nil {
		return nil, err
	}

	return h.newEvent(l, blockTimestamp, p), nil
}

func (h *newOrderHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*Order) //nolint:forcetypeassert

	if _, err := q.ExecContext(ctx, upsertOrderSQL,
		p.Exchange.Hex(), p.OrderID, p.Token.Hex(), p.Account.Hex(), p.IsBuy,
		p.Price.String(), p.Amount.String(), p.Agent.Hex(),
		ev.BlockTimestamp, ev.TxHash.Hex(), ev.LogIndex, ev.BlockNumber,
	); err != nil {
		return fmt.Errorf("failed to upsert order %s/%d: %w", p.Exchange.Hex(), p.OrderID, err)
	}

	return nil
}

func (h *newOrderHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*Order) //nolint:forcetypeassert

	return []notification.Draft{{
		Type:           notification.TypeNewOrder,
		Priority:       notification.PriorityLow,
		Address:        p.Account.Hex(),
		Token:          p.Token.Hex(),
		Args:           orderArgs(p),
		BlockTimestamp: ev.BlockTimestamp,
	}}
}

type cancelOrderHandler struct{ base }

func (h *cancelOrderHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	p, err := decodeOrder(h.event, l)
	if err != nil {
		return nil, err
	}

	return h.newEvent(l, blockTimestamp, p), nil
}

func (h *cancelOrderHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*Order) //nolint:forcetypeassert

	if _, err := q.ExecContext(ctx, cancelOrderSQL,
		p.Exchange.Hex(), p.OrderID, p.Token.Hex(), p.Account.Hex(), p.IsBuy,
		p.Price.String(), p.Amount.String(), p.Agent.Hex(),
		ev.TxHash.Hex(), ev.LogIndex, ev.BlockNumber,
	); err != nil {
		return fmt.Errorf("failed to cancel order %s/%d: %w", p.Exchange.Hex(), p.OrderID, err)
	}

	return nil
}

func (h *cancelOrderHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*Order) //nolint:forcetypeassert

	return []notification.Draft{{
		Type:           notification.TypeCancelOrder,
		Priority:       notification.PriorityLow,
		Address:        p.Account.Hex(),
		Token:          p.Token.Hex(),
		Args:           orderArgs(p),
		BlockTimestamp: ev.BlockTimestamp,
	}}
}

// decodeAgreement decodes Agree, SettlementOK and SettlementNG.
func decodeAgreement(event abi.Event, l types.Log) (*Agreement, error) {
	f, err := unpack(event, l)
	if err != nil {
		return nil, err
	}

	p := &Agreement{Exchange: l.Address}
	if p.Token, err = f.address("tokenAddress"); err != nil {
		return nil, err
	}
	if p.Token == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s without token address", ErrSkip, event.Name)
	}
	if p.OrderID, err = f.id("orderId"); err != nil {
		return nil, err
	}
	if p.AgreementID, err = f.id("agreementId"); err != nil {
		return nil, err
	}
	if p.Buyer, err = f.address("buyAddress"); err != nil {
		return nil, err
	}
	if p.Seller, err = f.address("sellAddress"); err != nil {
		return nil, err
	}
	if p.Price, err = f.amount("price"); err != nil {
		return nil, err
	}
	if p.Amount, err = f.amount("amount"); err != nil {
		return nil, err
	}
	if p.Agent, err = f.address("agentAddress"); err != nil {
		return nil, err
	}

	return p, nil
}

// agreementDrafts notifies the buyer with option type 0 and the seller with option type 1.
func agreementDrafts(
	p *Agreement,
	blockTimestamp uint64,
	buyType, sellType notification.Type,
	priority notification.Priority,
) []notification.Draft {
	args := map[string]any{
		"exchange_address": p.Exchange.Hex(),
		"order_id":         p.OrderID,
		"agreement_id":     p.AgreementID,
		"token_address":    p.Token.Hex(),
		"buyer_address":    p.Buyer.Hex(),
		"seller_address":   p.Seller.Hex(),
		"price":            p.Price.String(),
		"amount":           p.Amount.String(),
		"agent_address":    p.Agent.Hex(),
	}

	return []notification.Draft{
		{
			Type:           buyType,
			Priority:       priority,
			Address:        p.Buyer.Hex(),
			OptionType:     0,
			Token:          p.Token.Hex(),
			Args:           args,
			BlockTimestamp: blockTimestamp,
		},
		{
			Type:           sellType,
			Priority:       priority,
			Address:        p.Seller.Hex(),
			OptionType:     1,
			Token:          p.Token.Hex(),
			Args:           args,
			BlockTimestamp: blockTimestamp,
		},
	}
}

type agreeHandler struct{ base }

func (h *agreeHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	p, err := decodeAgreement(h.event, l)
	if err != nil {
		return nil, err
	}

	return h.newEvent(l, blockTimestamp, p), nil
}

// Upsert records the agreement. A settlement indexed earlier keeps its status.
func (h *agreeHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*Agreement) //nolint:forcetypeassert

	if _, err := q.ExecContext(ctx, upsertAgreementSQL,
		p.Exchange.Hex(), p.OrderID, p.AgreementID, p.Token.Hex(), p.Buyer.Hex(), p.Seller.Hex(),
		p.Price.String(), p.Amount.String(), p.Agent.Hex(), ev.BlockTimestamp,
	); err != nil {
		return fmt.Errorf("failed to upsert agreement %s/%d/%d: %w", p.Exchange.Hex(), p.OrderID, p.AgreementID, err)
	}

	return nil
}

func (h *agreeHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*Agreement) //nolint:forcetypeassert

	return agreementDrafts(p, ev.BlockTimestamp,
		notification.TypeBuyAgreement, notification.TypeSellAgreement, notification.PriorityMedium)
}

type settlementHandler struct {
	base
	status AgreementStatus
}

func (h *settlementHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	p, err := decodeAgreement(h.event, l)
	if err != nil {
		return nil, err
	}

	return h.newEvent(l, blockTimestamp, p), nil
}

func (h *settlementHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*Agreement) //nolint:forcetypeassert

	if _, err := q.ExecContext(ctx, settleAgreementSQL,
		p.Exchange.Hex(), p.OrderID, p.AgreementID, p.Token.Hex(), p.Buyer.Hex(), p.Seller.Hex(),
		p.Price.String(), p.Amount.String(), p.Agent.Hex(), int(h.status), ev.BlockTimestamp,
	); err != nil {
		return fmt.Errorf("failed to settle agreement %s/%d/%d: %w", p.Exchange.Hex(), p.OrderID, p.AgreementID, err)
	}

	return nil
}

func (h *settlementHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*Agreement) //nolint:forcetypeassert

	if h.status == AgreementDone {
		return agreementDrafts(p, ev.BlockTimestamp,
			notification.TypeBuySettlementOK, notification.TypeSellSettlementOK, notification.PriorityMedium)
	}

	return agreementDrafts(p, ev.BlockTimestamp,
		notification.TypeBuySettlementNG, notification.TypeSellSettlementNG, notification.PriorityHigh)
}
