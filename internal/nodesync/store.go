// Package nodesync tracks whether the chain nodes behind the indexer are in sync.
package nodesync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/russross/meddler"
)

// Node is a row of the node table.
type Node struct {
	ID          int64  `meddler:"id,pk" json:"id"`
	EndpointURI string `meddler:"endpoint_uri" json:"endpoint_uri"`
	Priority    int    `meddler:"priority" json:"priority"`
	IsSynced    bool   `meddler:"is_synced" json:"is_synced"`
	UpdatedAt   int64  `meddler:"updated_at" json:"updated_at"`
}

// Store reads and writes the node table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store over database.
func NewStore(database *sql.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// UpsertNode registers endpoint with the given priority. An existing node keeps its sync flag.
func (s *Store) UpsertNode(ctx context.Context, endpoint string, priority int) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO node (endpoint_uri, priority, is_synced, updated_at) VALUES (?, ?, 0, ?)
		ON CONFLICT (endpoint_uri) DO UPDATE SET priority = excluded.priority`,
		endpoint, priority, s.now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to upsert node %s: %w", endpoint, err)
	}

	return nil
}

// SetSynced records the sync status of endpoint. It reports false when the node is unknown.
func (s *Store) SetSynced(ctx context.Context, endpoint string, synced bool) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE node SET is_synced = ?, updated_at = ? WHERE endpoint_uri = ?`,
		synced, s.now().Unix(), endpoint,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update node %s: %w", endpoint, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// AnySynced reports whether at least one node is synced.
func (s *Store) AnySynced(ctx context.Context) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM node WHERE is_synced = 1)`,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to query synced nodes: %w", err)
	}

	return exists, nil
}

// Count returns the total and the synced number of nodes.
func (s *Store) Count(ctx context.Context) (total, synced int, err error) {
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_synced), 0) FROM node`,
	).Scan(&total, &synced); err != nil {
		return 0, 0, fmt.Errorf("failed to count nodes: %w", err)
	}

	return total, synced, nil
}

// List returns every node by priority.
func (s *Store) List(ctx context.Context) ([]*Node, error) {
	var nodes []*Node
	if err := meddler.QueryAll(s.db, &nodes, `SELECT * FROM node ORDER BY priority, id`); err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	return nodes, nil
}

// Available reports whether the indexer may rely on the chain. An empty node table means
// node tracking is not in use.
func (s *Store) Available(ctx context.Context) (bool, error) {
	total, synced, err := s.Count(ctx)
	if err != nil {
		return false, err
	}

	return total == 0 || synced > 0, nil
}
