package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/notification"
	"github.com/shopspring/decimal"
)

// Transfer is a token balance movement.
type Transfer struct {
	Token common.Address
	From  common.Address
	To    common.Address
	Value decimal.Decimal
}

// Lock moves an account balance under the control of a lock address.
type Lock struct {
	Token   common.Address
	Lock    common.Address
	Account common.Address
	Value   decimal.Decimal
	// Data is the event data as JSON.
	Data string
}

// Unlock releases a locked balance to a recipient.
type Unlock struct {
	Token     common.Address
	Lock      common.Address
	Account   common.Address
	Recipient common.Address
	Value     decimal.Decimal
	Data      string
}

// TransferApplication is a transfer waiting for approval.
type TransferApplication struct {
	Token         common.Address
	ApplicationID int64
	From          common.Address
	To            common.Address
	Value         decimal.Decimal
	Data          string
}

// TransferDecision approves or cancels a transfer application.
type TransferDecision struct {
	Token         common.Address
	ApplicationID int64
	From          common.Address
	To            common.Address
	Data          string
}

const (
	upsertTransferSQL = `
INSERT INTO idx_transfer (
	transaction_hash, log_index, transaction_index, block_number, block_timestamp,
	token_address, from_address, to_address, value, data
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (transaction_hash, log_index) DO UPDATE SET
	transaction_index = excluded.transaction_index,
	block_number      = excluded.block_number,
	block_timestamp   = excluded.block_timestamp,
	token_address     = excluded.token_address,
	from_address      = excluded.from_address,
	to_address        = excluded.to_address,
	value             = excluded.value,
	data              = excluded.data`

	upsertLockSQL = `
INSERT INTO idx_lock (
	transaction_hash, log_index, transaction_index, block_number, block_timestamp,
	token_address, lock_address, account_address, value, data
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (transaction_hash, log_index) DO UPDATE SET
	transaction_index = excluded.transaction_index,
	block_number      = excluded.block_number,
	block_timestamp   = excluded.block_timestamp,
	token_address     = excluded.token_address,
	lock_address      = excluded.lock_address,
	account_address   = excluded.account_address,
	value             = excluded.value,
	data              = excluded.data`

	upsertUnlockSQL = `
INSERT INTO idx_unlock (
	transaction_hash, log_index, transaction_index, block_number, block_timestamp,
	token_address, lock_address, account_address, recipient_address, value, data
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (transaction_hash, log_index) DO UPDATE SET
	transaction_index = excluded.transaction_index,
	block_number      = excluded.block_number,
	block_timestamp   = excluded.block_timestamp,
	token_address     = excluded.token_address,
	lock_address      = excluded.lock_address,
	account_address   = excluded.account_address,
	recipient_address = excluded.recipient_address,
	value             = excluded.value,
	data              = excluded.data`

	upsertPositionSQL = `
INSERT INTO idx_locked_position (token_address, lock_address, account_address, value, modified)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (token_address, lock_address, account_address) DO UPDATE SET
	value    = excluded.value,
	modified = excluded.modified`

	upsertApplicationSQL = `
INSERT INTO idx_transfer_approval (
	token_address, application_id, from_address, to_address, value,
	application_blocktimestamp, application_data
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (token_address, application_id) DO UPDATE SET
	from_address               = excluded.from_address,
	to_address                 = excluded.to_address,
	value                      = excluded.value,
	application_blocktimestamp = excluded.application_blocktimestamp,
	application_data           = excluded.application_data`

	// approvals and cancellations may be indexed before the application they refer to
	upsertApprovalSQL = `
INSERT INTO idx_transfer_approval (
	token_address, application_id, from_address, to_address,
	approval_blocktimestamp, approval_data, transfer_approved
) VALUES (?, ?, ?, ?, ?, ?, 1)
ON CONFLICT (token_address, application_id) DO UPDATE SET
	approval_blocktimestamp = excluded.approval_blocktimestamp,
	approval_data           = excluded.approval_data,
	transfer_approved       = 1`

	upsertCancellationSQL = `
INSERT INTO idx_transfer_approval (
	token_address, application_id, from_address, to_address,
	cancellation_blocktimestamp, cancelled
) VALUES (?, ?, ?, ?, ?, 1)
ON CONFLICT (token_address, application_id) DO UPDATE SET
	cancellation_blocktimestamp = excluded.cancellation_blocktimestamp,
	cancelled                   = 1`
)

type transferHandler struct{ base }

func (h *transferHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	f, err := unpack(h.event, l)
	if err != nil {
		return nil, err
	}

	p := &Transfer{Token: l.Address}
	if p.From, err = f.address("from"); err != nil {
		return nil, err
	}
	if p.To, err = f.address("to"); err != nil {
		return nil, err
	}
	if p.Value, err = f.amount("value"); err != nil {
		return nil, err
	}

	return h.newEvent(l, blockTimestamp, p), nil
}

func (h *transferHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*Transfer) //nolint:forcetypeassert

	if _, err := q.ExecContext(ctx, upsertTransferSQL,
		ev.TxHash.Hex(), ev.LogIndex, ev.TxIndex, ev.BlockNumber, ev.BlockTimestamp,
		p.Token.Hex(), p.From.Hex(), p.To.Hex(), p.Value.String(), "{}",
	); err != nil {
		return fmt.Errorf("failed to upsert transfer %s/%d: %w", ev.TxHash.Hex(), ev.LogIndex, err)
	}

	return nil
}

func (h *transferHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*Transfer) //nolint:forcetypeassert

	return []notification.Draft{{
		Type:     notification.TypeTransfer,
		Priority: notification.PriorityLow,
		Address:  p.To.Hex(),
		Token:    p.Token.Hex(),
		Args: map[string]any{
			"token_address": p.Token.Hex(),
			"from":          p.From.Hex(),
			"to":            p.To.Hex(),
			"value":         p.Value.String(),
		},
		BlockTimestamp: ev.BlockTimestamp,
	}}
}

type lockHandler struct{ base }

func (h *lockHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	f, err := unpack(h.event, l)
	if err != nil {
		return nil, err
	}

	p := &Lock{Token: l.Address}
	if p.Account, err = f.address("accountAddress"); err != nil {
		return nil, err
	}
	if p.Lock, err = f.address("lockAddress"); err != nil {
		return nil, err
	}
	if p.Value, err = f.amount("value"); err != nil {
		return nil, err
	}
	data, err := f.text("data")
	if err != nil {
		return nil, err
	}
	p.Data = normalizeData(data)

	return h.newEvent(l, blockTimestamp, p), nil
}

// Upsert writes the lock and, the first time it is seen, adds its value to the position.
func (h *lockHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*Lock) //nolint:forcetypeassert

	seen, err := eventExists(ctx, q, "idx_lock", ev)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, upsertLockSQL,
		ev.TxHash.Hex(), ev.LogIndex, ev.TxIndex, ev.BlockNumber, ev.BlockTimestamp,
		p.Token.Hex(), p.Lock.Hex(), p.Account.Hex(), p.Value.String(), p.Data,
	); err != nil {
		return fmt.Errorf("failed to upsert lock %s/%d: %w", ev.TxHash.Hex(), ev.LogIndex, err)
	}

	if seen {
		return nil
	}

	return adjustPosition(ctx, q, p.Token, p.Lock, p.Account, p.Value, ev.BlockTimestamp)
}

func (h *lockHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*Lock) //nolint:forcetypeassert

	return []notification.Draft{{
		Type:     notification.TypeLock,
		Priority: notification.PriorityLow,
		Address:  p.Account.Hex(),
		Token:    p.Token.Hex(),
		Args: map[string]any{
			"token_address":   p.Token.Hex(),
			"lock_address":    p.Lock.Hex(),
			"account_address": p.Account.Hex(),
			"value":           p.Value.String(),
			"data":            decodeData(p.Data),
		},
		BlockTimestamp: ev.BlockTimestamp,
	}}
}

// Reset drops the lock history and positions of a token so a replay rebuilds them.
func (h *lockHandler) Reset(ctx context.Context, q db.Querier, contract common.Address) error {
	return resetPositions(ctx, q, contract)
}

type unlockHandler struct{ base }

func (h *unlockHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	f, err := unpack(h.event, l)
	if err != nil {
		return nil, err
	}

	p := &Unlock{Token: l.Address}
	if p.Account, err = f.address("accountAddress"); err != nil {
		return nil, err
	}
	if p.Lock, err = f.address("lockAddress"); err != nil {
		return nil, err
	}
	if p.Recipient, err = f.address("recipientAddress"); err != nil {
		return nil, err
	}
	if p.Value, err = f.amount("value"); err != nil {
		return nil, err
	}
	data, err := f.text("data")
	if err != nil {
		return nil, err
	}
	p.Data = normalizeData(data)

	return h.newEvent(l, blockTimestamp, p), nil
}

// Upsert writes the unlock and, the first time it is seen, subtracts its value from the
// position. Lock and Unlock progress independently, so a position may be transiently
// negative until the matching locks are indexed.
func (h *unlockHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*Unlock) //nolint:forcetypeassert

	seen, err := eventExists(ctx, q, "idx_unlock", ev)
	if err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, upsertUnlockSQL,
		ev.TxHash.Hex(), ev.LogIndex, ev.TxIndex, ev.BlockNumber, ev.BlockTimestamp,
		p.Token.Hex(), p.Lock.Hex(), p.Account.Hex(), p.Recipient.Hex(), p.Value.String(), p.Data,
	); err != nil {
		return fmt.Errorf("failed to upsert unlock %s/%d: %w", ev.TxHash.Hex(), ev.LogIndex, err)
	}

	if seen {
		return nil
	}

	return adjustPosition(ctx, q, p.Token, p.Lock, p.Account, p.Value.Neg(), ev.BlockTimestamp)
}

func (h *unlockHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*Unlock) //nolint:forcetypeassert

	args := map[string]any{
		"token_address":     p.Token.Hex(),
		"lock_address":      p.Lock.Hex(),
		"account_address":   p.Account.Hex(),
		"recipient_address": p.Recipient.Hex(),
		"value":             p.Value.String(),
		"data":              decodeData(p.Data),
	}

	drafts := []notification.Draft{{
		Type:           notification.TypeUnlock,
		Priority:       notification.PriorityLow,
		Address:        p.Account.Hex(),
		Token:          p.Token.Hex(),
		Args:           args,
		BlockTimestamp: ev.BlockTimestamp,
	}}
	if p.Recipient != p.Account {
		drafts = append(drafts, notification.Draft{
			Type:           notification.TypeUnlock,
			Priority:       notification.PriorityLow,
			Address:        p.Recipient.Hex(),
			OptionType:     1,
			Token:          p.Token.Hex(),
			Args:           args,
			BlockTimestamp: ev.BlockTimestamp,
		})
	}

	return drafts
}

func (h *unlockHandler) Reset(ctx context.Context, q db.Querier, contract common.Address) error {
	return resetPositions(ctx, q, contract)
}

type applyForTransferHandler struct{ base }

func (h *applyForTransferHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	f, err := unpack(h.event, l)
	if err != nil {
		return nil, err
	}

	p := &TransferApplication{Token: l.Address}
	if p.ApplicationID, err = f.id("index"); err != nil {
		return nil, err
	}
	if p.From, err = f.address("from"); err != nil {
		return nil, err
	}
	if p.To, err = f.address("to"); err != nil {
		return nil, err
	}
	if p.Value, err = f.amount("value"); err != nil {
		return nil, err
	}
	data, err := f.text("data")
	if err != nil {
		return nil, err
	}
	p.Data = normalizeData(data)

	return h.newEvent(l, blockTimestamp, p), nil
}

func (h *applyForTransferHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*TransferApplication) //nolint:forcetypeassert

	if _, err := q.ExecContext(ctx, upsertApplicationSQL,
		p.Token.Hex(), p.ApplicationID, p.From.Hex(), p.To.Hex(), p.Value.String(),
		ev.BlockTimestamp, p.Data,
	); err != nil {
		return fmt.Errorf("failed to upsert transfer application %s/%d: %w", p.Token.Hex(), p.ApplicationID, err)
	}

	return nil
}

func (h *applyForTransferHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*TransferApplication) //nolint:forcetypeassert

	return []notification.Draft{{
		Type:     notification.TypeApplyForTransfer,
		Priority: notification.PriorityMedium,
		Address:  p.To.Hex(),
		Token:    p.Token.Hex(),
		Args: map[string]any{
			"token_address":  p.Token.Hex(),
			"application_id": p.ApplicationID,
			"from":           p.From.Hex(),
			"to":             p.To.Hex(),
			"value":          p.Value.String(),
			"data":           decodeData(p.Data),
		},
		BlockTimestamp: ev.BlockTimestamp,
	}}
}

type approveTransferHandler struct{ base }

func (h *approveTransferHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	p, err := decodeDecision(h.event, l)
	if err != nil {
		return nil, err
	}

	return h.newEvent(l, blockTimestamp, p), nil
}

func (h *approveTransferHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*TransferDecision) //nolint:forcetypeassert

	if _, err := q.ExecContext(ctx, upsertApprovalSQL,
		p.Token.Hex(), p.ApplicationID, p.From.Hex(), p.To.Hex(), ev.BlockTimestamp, p.Data,
	); err != nil {
		return fmt.Errorf("failed to upsert transfer approval %s/%d: %w", p.Token.Hex(), p.ApplicationID, err)
	}

	return nil
}

func (h *approveTransferHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*TransferDecision) //nolint:forcetypeassert

	args := decisionArgs(p)
	return []notification.Draft{
		{
			Type:           notification.TypeTransferApproved,
			Priority:       notification.PriorityMedium,
			Address:        p.From.Hex(),
			Token:          p.Token.Hex(),
			Args:           args,
			BlockTimestamp: ev.BlockTimestamp,
		},
		{
			Type:           notification.TypeTransferApproved,
			Priority:       notification.PriorityMedium,
			Address:        p.To.Hex(),
			OptionType:     1,
			Token:          p.Token.Hex(),
			Args:           args,
			BlockTimestamp: ev.BlockTimestamp,
		},
	}
}

type cancelTransferHandler struct{ base }

func (h *cancelTransferHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	p, err := decodeDecision(h.event, l)
	if err != nil {
		return nil, err
	}

	return h.newEvent(l, blockTimestamp, p), nil
}

func (h *cancelTransferHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*TransferDecision) //nolint:forcetypeassert

	if _, err := q.ExecContext(ctx, upsertCancellationSQL,
		p.Token.Hex(), p.ApplicationID, p.From.Hex(), p.To.Hex(), ev.BlockTimestamp,
	); err != nil {
		return fmt.Errorf("failed to upsert transfer cancellation %s/%d: %w", p.Token.Hex(), p.ApplicationID, err)
	}

	return nil
}

func (h *cancelTransferHandler) Notifications(ev *Event) []notification.Draft {
	p := ev.Payload.(*TransferDecision) //nolint:forcetypeassert

	return []notification.Draft{{
		Type:           notification.TypeTransferCancelled,
		Priority:       notification.PriorityMedium,
		Address:        p.From.Hex(),
		Token:          p.Token.Hex(),
		Args:           decisionArgs(p),
		BlockTimestamp: ev.BlockTimestamp,
	}}
}

func decodeDecision(event abi.Event, l types.Log) (*TransferDecision, error) {
	f, err := unpack(event, l)
	if err != nil {
		return nil, err
	}

	p := &TransferDecision{Token: l.Address}
	if p.ApplicationID, err = f.id("index"); err != nil {
		return nil, err
	}
	if p.From, err = f.address("from"); err != nil {
		return nil, err
	}
	if p.To, err = f.address("to"); err != nil {
		return nil, err
	}
	data, err := f.text("data")
	if err != nil {
		return nil, err
	}
	p.Data = normalizeData(data)

	return p, nil
}

func decisionArgs(p *TransferDecision) map[string]any {
	return map[string]any{
		"token_address":  p.Token.Hex(),
		"application_id": p.ApplicationID,
		"from":           p.From.Hex(),
		"to":             p.To.Hex(),
		"data":           decodeData(p.Data),
	}
}

// eventExists reports whether the log of ev is already stored in table.
func eventExists(ctx context.Context, q db.Querier, table string, ev *Event) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM `+table+` WHERE transaction_hash = ? AND log_index = ?`,
		ev.TxHash.Hex(), ev.LogIndex,
	).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("failed to look up %s %s/%d: %w", table, ev.TxHash.Hex(), ev.LogIndex, err)
	}
}

// adjustPosition adds delta to the locked balance of (token, lock, account).
func adjustPosition(
	ctx context.Context,
	q db.Querier,
	token, lock, account common.Address,
	delta decimal.Decimal,
	blockTimestamp uint64,
) error {
	var (
		raw      string
		modified uint64
	)
	err := q.QueryRowContext(ctx,
		`SELECT value, modified FROM idx_locked_position
		 WHERE token_address = ? AND lock_address = ? AND account_address = ?`,
		token.Hex(), lock.Hex(), account.Hex(),
	).Scan(&raw, &modified)

	current := decimal.Zero
	switch {
	case err == nil:
		if current, err = decimal.NewFromString(raw); err != nil {
			return fmt.Errorf("invalid locked position value %q: %w", raw, err)
		}
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to load locked position: %w", err)
	}

	if _, err := q.ExecContext(ctx, upsertPositionSQL,
		token.Hex(), lock.Hex(), account.Hex(), current.Add(delta).String(), max(modified, blockTimestamp),
	); err != nil {
		return fmt.Errorf("failed to upsert locked position: %w", err)
	}

	return nil
}

// resetPositions deletes the lock history and positions of a token.
func resetPositions(ctx context.Context, q db.Querier, token common.Address) error {
	for _, table := range []string{"idx_lock", "idx_unlock", "idx_locked_position"} {
		if _, err := q.ExecContext(ctx, `DELETE FROM `+table+` WHERE token_address = ?`, token.Hex()); err != nil {
			return fmt.Errorf("failed to reset %s of %s: %w", table, token.Hex(), err)
		}
	}

	return nil
}
