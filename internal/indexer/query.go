package indexer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/goran-ethernal/SecTokenIndexer/internal/events"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/indexer"
	"github.com/russross/meddler"
)

// ErrInvalidQuery marks a query the caller got wrong, as opposed to a storage failure.
var ErrInvalidQuery = errors.New("invalid query")

// EventMetadata describes where the events of one kind are stored and how they are filtered.
type EventMetadata struct {
	Kind  events.Kind
	Table string
	// Row is the meddler struct a table row scans into.
	Row            reflect.Type
	TokenColumn    string
	AccountColumns []string
	// BlockColumn is empty for merged tables that keep no block number.
	BlockColumn string
	// Condition narrows a table shared by several kinds.
	Condition    string
	OrderColumns []string
}

var eventMetadata = map[events.Kind]*EventMetadata{
	events.KindTransfer: {
		Table:          "idx_transfer",
		Row:            reflect.TypeFor[*TransferRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"from_address", "to_address"},
		BlockColumn:    "block_number",
		OrderColumns:   []string{"block_number", "transaction_index", "log_index"},
	},
	events.KindLock: {
		Table:          "idx_lock",
		Row:            reflect.TypeFor[*LockRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"account_address", "lock_address"},
		BlockColumn:    "block_number",
		OrderColumns:   []string{"block_number", "transaction_index", "log_index"},
	},
	events.KindUnlock: {
		Table:          "idx_unlock",
		Row:            reflect.TypeFor[*UnlockRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"account_address", "lock_address", "recipient_address"},
		BlockColumn:    "block_number",
		OrderColumns:   []string{"block_number", "transaction_index", "log_index"},
	},
	events.KindApplyForTransfer: {
		Table:          "idx_transfer_approval",
		Row:            reflect.TypeFor[*TransferApprovalRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"from_address", "to_address"},
		Condition:      "application_blocktimestamp IS NOT NULL",
		OrderColumns:   []string{"application_blocktimestamp", "application_id"},
	},
	events.KindApproveTransfer: {
		Table:          "idx_transfer_approval",
		Row:            reflect.TypeFor[*TransferApprovalRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"from_address", "to_address"},
		Condition:      "transfer_approved = 1",
		OrderColumns:   []string{"approval_blocktimestamp", "application_id"},
	},
	events.KindCancelTransfer: {
		Table:          "idx_transfer_approval",
		Row:            reflect.TypeFor[*TransferApprovalRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"from_address", "to_address"},
		Condition:      "cancelled = 1",
		OrderColumns:   []string{"cancellation_blocktimestamp", "application_id"},
	},
	events.KindNewOrder: {
		Table:          "idx_order",
		Row:            reflect.TypeFor[*OrderRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"account_address", "agent_address"},
		BlockColumn:    "block_number",
		Condition:      "order_timestamp IS NOT NULL",
		OrderColumns:   []string{"block_number", "order_id"},
	},
	events.KindCancelOrder: {
		Table:          "idx_order",
		Row:            reflect.TypeFor[*OrderRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"account_address", "agent_address"},
		BlockColumn:    "block_number",
		Condition:      "is_cancelled = 1",
		OrderColumns:   []string{"block_number", "order_id"},
	},
	events.KindAgree: {
		Table:          "idx_agreement",
		Row:            reflect.TypeFor[*AgreementRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"buyer_address", "seller_address", "agent_address"},
		Condition:      "agreement_timestamp IS NOT NULL",
		OrderColumns:   []string{"agreement_timestamp", "order_id", "agreement_id"},
	},
	events.KindSettlementOK: {
		Table:          "idx_agreement",
		Row:            reflect.TypeFor[*AgreementRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"buyer_address", "seller_address", "agent_address"},
		Condition:      fmt.Sprintf("status = %d", events.AgreementDone),
		OrderColumns:   []string{"settlement_timestamp", "order_id", "agreement_id"},
	},
	events.KindSettlementNG: {
		Table:          "idx_agreement",
		Row:            reflect.TypeFor[*AgreementRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"buyer_address", "seller_address", "agent_address"},
		Condition:      fmt.Sprintf("status = %d", events.AgreementCanceled),
		OrderColumns:   []string{"settlement_timestamp", "order_id", "agreement_id"},
	},
	events.KindRegister: {
		Table:          "idx_token_list",
		Row:            reflect.TypeFor[*RegistrationRow](),
		TokenColumn:    "token_address",
		AccountColumns: []string{"owner_address"},
		BlockColumn:    "block_number",
		OrderColumns:   []string{"block_number", "log_index"},
	},
}

func init() {
	for kind, meta := range eventMetadata {
		meta.Kind = kind
	}
}

// Metadata returns the storage description of a kind.
func Metadata(kind events.Kind) (*EventMetadata, bool) {
	meta, ok := eventMetadata[kind]
	return meta, ok
}

// EventStore answers read queries over the indexed tables.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates a new EventStore.
func NewEventStore(database *sql.DB) *EventStore {
	return &EventStore{db: database}
}

// QueryEvents returns one page of the events of qp.Kind and the total number of matches.
// The page is a slice of the kind's row type.
func (s *EventStore) QueryEvents(ctx context.Context, qp indexer.QueryParams) (any, int, error) {
	kind, err := events.ParseKind(qp.Kind)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	meta := eventMetadata[kind]

	qp.ClampLimit()
	if qp.Offset < 0 {
		return nil, 0, fmt.Errorf("%w: negative offset", ErrInvalidQuery)
	}

	//nolint:gosec // table and columns come from eventMetadata, not user input
	query := "SELECT * FROM " + meta.Table
	args := []any{}
	var conditions []string

	if meta.Condition != "" {
		conditions = append(conditions, meta.Condition)
	}
	if qp.FromBlock != nil || qp.ToBlock != nil {
		if meta.BlockColumn == "" {
			return nil, 0, fmt.Errorf("%w: %s events cannot be filtered by block", ErrInvalidQuery, kind)
		}
		if qp.FromBlock != nil {
			conditions = append(conditions, meta.BlockColumn+" >= ?")
			args = append(args, *qp.FromBlock)
		}
		if qp.ToBlock != nil {
			conditions = append(conditions, meta.BlockColumn+" <= ?")
			args = append(args, *qp.ToBlock)
		}
	}
	if qp.Token != "" {
		conditions = append(conditions, meta.TokenColumn+" = ?")
		args = append(args, qp.Token)
	}
	if qp.Account != "" {
		accountConditions := make([]string, len(meta.AccountColumns))
		for i, col := range meta.AccountColumns {
			accountConditions[i] = col + " = ?"
			args = append(args, qp.Account)
		}
		conditions = append(conditions, "("+strings.Join(accountConditions, " OR ")+")")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := strings.Replace(query, "SELECT *", "SELECT COUNT(*)", 1)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count %s events: %w", kind, err)
	}

	sortOrder := "DESC"
	if strings.EqualFold(qp.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	order := make([]string, len(meta.OrderColumns))
	for i, col := range meta.OrderColumns {
		order[i] = col + " " + sortOrder
	}

	query += " ORDER BY " + strings.Join(order, ", ") + " LIMIT ? OFFSET ?"
	args = append(args, qp.Limit, qp.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query %s events: %w", kind, err)
	}
	defer rows.Close()

	slicePtr := reflect.New(reflect.SliceOf(meta.Row))
	if err := meddler.ScanAll(rows, slicePtr.Interface()); err != nil {
		return nil, 0, fmt.Errorf("failed to scan %s events: %w", kind, err)
	}
	if slicePtr.Elem().IsNil() {
		slicePtr.Elem().Set(reflect.MakeSlice(reflect.SliceOf(meta.Row), 0, 0))
	}

	return slicePtr.Elem().Interface(), total, nil
}

// Positions returns the locked positions of an account, optionally restricted to one token.
func (s *EventStore) Positions(ctx context.Context, account, token string) ([]*LockedPositionRow, error) {
	query := `SELECT * FROM idx_locked_position WHERE account_address = ?`
	args := []any{account}
	if token != "" {
		query += ` AND token_address = ?`
		args = append(args, token)
	}
	query += ` ORDER BY token_address, lock_address`

	positions := []*LockedPositionRow{}
	if err := meddler.QueryAll(s.db, &positions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query positions of %s: %w", account, err)
	}

	return positions, nil
}

// EventCounts returns the number of stored rows per kind.
func (s *EventStore) EventCounts(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(eventMetadata))
	for kind, meta := range eventMetadata {
		query := "SELECT COUNT(*) FROM " + meta.Table
		if meta.Condition != "" {
			query += " WHERE " + meta.Condition
		}

		var count int64
		if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s events: %w", kind, err)
		}
		counts[kind.String()] = count
	}

	return counts, nil
}
