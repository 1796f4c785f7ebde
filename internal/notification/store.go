package notification

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/russross/meddler"
)

// ListQuery filters the notifications of one recipient.
type ListQuery struct {
	Address        string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// List returns the notifications of an address, newest first.
func List(ctx context.Context, database *sql.DB, q ListQuery) ([]*Notification, error) {
	query := `SELECT * FROM notification WHERE address = ?`
	if !q.IncludeDeleted {
		query += ` AND is_deleted = 0`
	}
	query += ` ORDER BY notification_id DESC LIMIT ? OFFSET ?`

	var out []*Notification
	if err := meddler.QueryAll(database, &out, query, q.Address, q.Limit, q.Offset); err != nil {
		return nil, fmt.Errorf("failed to list notifications of %s: %w", q.Address, err)
	}

	return out, nil
}

// MarkRead flags a notification as read. It reports false when no such notification exists.
func MarkRead(ctx context.Context, database *sql.DB, id string, read bool) (bool, error) {
	res, err := database.ExecContext(ctx, `UPDATE notification SET is_read = ? WHERE notification_id = ?`, read, id)
	if err != nil {
		return false, fmt.Errorf("failed to update notification %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// Count returns the number of notifications matching q, ignoring its page bounds.
func Count(ctx context.Context, database *sql.DB, q ListQuery) (int, error) {
	query := `SELECT COUNT(*) FROM notification WHERE address = ?`
	if !q.IncludeDeleted {
		query += ` AND is_deleted = 0`
	}

	var total int
	if err := database.QueryRowContext(ctx, query, q.Address).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count notifications of %s: %w", q.Address, err)
	}

	return total, nil
}
