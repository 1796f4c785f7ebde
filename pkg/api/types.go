package api

import (
	"time"

	"github.com/goran-ethernal/SecTokenIndexer/pkg/indexer"
)

// EventResponse is one page of events of a kind.
type EventResponse struct {
	Kind       string           `json:"kind" example:"Transfer"`
	Events     any              `json:"events"`
	Pagination PaginationResult `json:"pagination"`
}

// PaginationResult contains pagination metadata.
type PaginationResult struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status      string           `json:"status" example:"ok"`
	Timestamp   time.Time        `json:"timestamp"`
	Nodes       NodeStatus       `json:"nodes"`
	EventCounts map[string]int64 `json:"event_counts"`
}

// NodeStatus summarizes the node table.
type NodeStatus struct {
	Total  int `json:"total"`
	Synced int `json:"synced"`
}

// CheckpointsResponse lists the progress of every watcher.
type CheckpointsResponse struct {
	Checkpoints []indexer.CheckpointResponse `json:"checkpoints"`
}

// PositionsResponse lists the locked positions of an account.
type PositionsResponse struct {
	Account   string `json:"account" example:"0x5FbDB2315678afecb367f032d93F642f64180aa3"`
	Positions any    `json:"positions"`
}

// NotificationsResponse is one page of notifications of a recipient.
type NotificationsResponse struct {
	Address       string           `json:"address"`
	Notifications any              `json:"notifications"`
	Pagination    PaginationResult `json:"pagination"`
}

// MarkReadRequest sets the read flag of a notification.
type MarkReadRequest struct {
	IsRead *bool `json:"is_read,omitempty"`
}

// SendRawTransactionRequest carries a signed transaction to relay.
type SendRawTransactionRequest struct {
	RawTxHex string `json:"raw_tx_hex" example:"0xf86c..."`
}

// SendRawTransactionResponse reports the hash of a relayed transaction.
type SendRawTransactionResponse struct {
	TransactionHash string `json:"transaction_hash" example:"0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"`
}
