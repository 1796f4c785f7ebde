package events

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/SecTokenIndexer/internal/contracts"
	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/notification"
)

// Registration is a token entered into a token list.
type Registration struct {
	List          common.Address
	Token         common.Address
	Owner         common.Address
	Template      string
	KnownTemplate bool
}

// A token registered on more than one list keeps its earliest registration by chain
// position, so the stored row does not depend on the order watchers commit in.
const upsertRegistrationSQL = `
INSERT INTO idx_token_list (
	token_address, token_template, owner_address, is_known_template, list_address,
	block_number, block_timestamp, transaction_hash, log_index
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (token_address) DO UPDATE SET
	token_template    = excluded.token_template,
	owner_address     = excluded.owner_address,
	is_known_template = excluded.is_known_template,
	list_address      = excluded.list_address,
	block_number      = excluded.block_number,
	block_timestamp   = excluded.block_timestamp,
	transaction_hash  = excluded.transaction_hash,
	log_index         = excluded.log_index
WHERE excluded.block_number < idx_token_list.block_number
	OR (excluded.block_number = idx_token_list.block_number AND excluded.log_index <= idx_token_list.log_index)`

type registerHandler struct{ base }

// Decode keeps registrations of unknown templates as degraded entries: the token list is
// a catalog of everything registered.
func (h *registerHandler) Decode(l types.Log, blockTimestamp uint64) (*Event, error) {
	f, err := unpack(h.event, l)
	if err != nil {
		return nil, err
	}

	p := &Registration{List: l.Address}
	if p.Token, err = f.address("token_address"); err != nil {
		return nil, err
	}
	if p.Template, err = f.text("token_template"); err != nil {
		return nil, err
	}
	if p.Owner, err = f.address("owner_address"); err != nil {
		return nil, err
	}

	p.KnownTemplate = contracts.IsKnownTemplate(p.Template)
	if !p.KnownTemplate {
		h.log.Warnf("token %s registered with unknown template %q, recording degraded entry",
			p.Token.Hex(), p.Template)
	}

	return h.newEvent(l, blockTimestamp, p), nil
}

func (h *registerHandler) Upsert(ctx context.Context, q db.Querier, ev *Event) error {
	p := ev.Payload.(*Registration) //nolint:forcetypeassert

	if _, err := q.ExecContext(ctx, upsertRegistrationSQL,
		p.Token.Hex(), p.Template, p.Owner.Hex(), p.KnownTemplate, p.List.Hex(),
		ev.BlockNumber, ev.BlockTimestamp, ev.TxHash.Hex(), ev.LogIndex,
	); err != nil {
		return fmt.Errorf("failed to upsert token list entry %s: %w", p.Token.Hex(), err)
	}

	return nil
}

func (h *registerHandler) Notifications(*Event) []notification.Draft {
	return nil
}
