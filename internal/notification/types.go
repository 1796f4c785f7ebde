// Package notification derives user notifications from indexed events and stores them
// under position-derived IDs.
package notification

// Type identifies the kind of a notification.
type Type string

const (
	TypeNewOrder          Type = "NewOrder"
	TypeCancelOrder       Type = "CancelOrder"
	TypeBuyAgreement      Type = "BuyAgreement"
	TypeSellAgreement     Type = "SellAgreement"
	TypeBuySettlementOK   Type = "BuySettlementOK"
	TypeSellSettlementOK  Type = "SellSettlementOK"
	TypeBuySettlementNG   Type = "BuySettlementNG"
	TypeSellSettlementNG  Type = "SellSettlementNG"
	TypeApplyForTransfer  Type = "ApplyForTransfer"
	TypeTransferApproved  Type = "TransferApproved"
	TypeTransferCancelled Type = "TransferCancelled"
	TypeLock              Type = "Lock"
	TypeUnlock            Type = "Unlock"
	TypeTransfer          Type = "Transfer"
)

// Priority of a notification.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// Position locates the log a notification is derived from.
type Position struct {
	BlockNumber uint64
	TxIndex     uint64
	LogIndex    uint64
}

// Draft is a notification before an ID and metainfo are assigned.
type Draft struct {
	Type     Type
	Priority Priority
	// Address is the recipient.
	Address string
	// OptionType tells apart notifications derived from the same log.
	OptionType uint8
	// Token selects the metainfo enrichment. Empty means none.
	Token          string
	Args           map[string]any
	BlockTimestamp uint64
}

// Notification is a stored notification row.
type Notification struct {
	ID             string         `meddler:"notification_id" json:"notification_id"`
	Type           string         `meddler:"notification_type" json:"notification_type"`
	Priority       int            `meddler:"priority" json:"priority"`
	Address        string         `meddler:"address" json:"address"`
	IsRead         bool           `meddler:"is_read" json:"is_read"`
	IsFlagged      bool           `meddler:"is_flagged" json:"is_flagged"`
	IsDeleted      bool           `meddler:"is_deleted" json:"is_deleted"`
	DeletedAt      *int64         `meddler:"deleted_at" json:"deleted_at,omitempty"`
	BlockTimestamp int64          `meddler:"block_timestamp" json:"block_timestamp"`
	Args           map[string]any `meddler:"args,json" json:"args"`
	Metainfo       map[string]any `meddler:"metainfo,json" json:"metainfo"`
	CreatedAt      int64          `meddler:"created_at" json:"created_at"`
}
