package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/mattn/go-sqlite3"
)

// IsBusy reports whether err comes from SQLite lock contention (SQLITE_BUSY or
// SQLITE_LOCKED). The transaction it aborted was rolled back and can be retried.
func IsBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// RunInTx executes fn inside a transaction. The transaction commits only when fn
// returns nil, every other outcome rolls it back.
func RunInTx(ctx context.Context, db *sql.DB, log *logger.Logger, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
