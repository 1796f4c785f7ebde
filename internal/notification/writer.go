package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goran-ethernal/SecTokenIndexer/internal/common"
	"github.com/goran-ethernal/SecTokenIndexer/internal/db"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
)

const upsertNotificationSQL = `
INSERT INTO notification (
	notification_id, notification_type, priority, address,
	block_timestamp, args, metainfo, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (notification_id) DO UPDATE SET
	notification_type = excluded.notification_type,
	priority          = excluded.priority,
	address           = excluded.address,
	block_timestamp   = excluded.block_timestamp,
	args              = excluded.args,
	metainfo          = excluded.metainfo`

// Writer stores notification drafts inside the caller's transaction.
type Writer struct {
	log *logger.Logger
	now func() time.Time
}

// NewWriter creates a new notification writer.
func NewWriter(log *logger.Logger) *Writer {
	return &Writer{
		log: log.WithComponent(common.ComponentNotification),
		now: time.Now,
	}
}

// Write assigns IDs to the drafts derived from the log at pos and upserts them. Rewriting a
// notification keeps the flags set on it by readers and its creation time.
func (w *Writer) Write(ctx context.Context, q db.Querier, pos Position, drafts []Draft) error {
	if len(drafts) == 0 {
		return nil
	}

	seen := make(map[uint8]Type, len(drafts))
	metainfoByToken := make(map[string]string)

	for _, d := range drafts {
		if prev, ok := seen[d.OptionType]; ok {
			return fmt.Errorf("option type %d used by both %s and %s", d.OptionType, prev, d.Type)
		}
		seen[d.OptionType] = d.Type

		id, err := AssignIDChecked(pos.BlockNumber, pos.TxIndex, pos.LogIndex, d.OptionType)
		if err != nil {
			return err
		}

		args, err := json.Marshal(d.Args)
		if err != nil {
			return fmt.Errorf("failed to encode args of %s: %w", id, err)
		}

		metainfo, ok := metainfoByToken[d.Token]
		if !ok {
			metainfo, err = loadMetainfo(ctx, q, d.Token)
			if err != nil {
				return err
			}
			metainfoByToken[d.Token] = metainfo
		}

		if _, err := q.ExecContext(ctx, upsertNotificationSQL,
			id,
			string(d.Type),
			int(d.Priority),
			d.Address,
			d.BlockTimestamp,
			string(args),
			metainfo,
			w.now().Unix(),
		); err != nil {
			return fmt.Errorf("failed to upsert notification %s: %w", id, err)
		}

		notificationsWritten.WithLabelValues(string(d.Type)).Inc()
		w.log.Debugf("notification %s %s for %s", id, d.Type, d.Address)
	}

	return nil
}

// loadMetainfo describes token from the listed token and token list tables. Unknown tokens
// yield the bare address.
func loadMetainfo(ctx context.Context, q db.Querier, token string) (string, error) {
	if token == "" {
		return "{}", nil
	}

	meta := map[string]any{"token_address": token}

	var name, symbol, owner string
	err := q.QueryRowContext(ctx,
		`SELECT token_name, token_symbol, owner_address FROM listed_token WHERE token_address = ?`, token,
	).Scan(&name, &symbol, &owner)
	switch {
	case err == nil:
		meta["token_name"] = name
		meta["token_symbol"] = symbol
		meta["owner_address"] = owner
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to load listed token %s: %w", token, err)
	}

	var template string
	err = q.QueryRowContext(ctx,
		`SELECT token_template FROM idx_token_list WHERE token_address = ?`, token,
	).Scan(&template)
	switch {
	case err == nil:
		meta["token_template"] = template
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to load token list entry %s: %w", token, err)
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}
