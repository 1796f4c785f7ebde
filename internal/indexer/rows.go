package indexer

// TransferRow is a stored Transfer event.
type TransferRow struct {
	TxHash         string `meddler:"transaction_hash" json:"transaction_hash"`
	LogIndex       uint64 `meddler:"log_index" json:"log_index"`
	TxIndex        uint64 `meddler:"transaction_index" json:"transaction_index"`
	BlockNumber    uint64 `meddler:"block_number" json:"block_number"`
	BlockTimestamp uint64 `meddler:"block_timestamp" json:"block_timestamp"`
	Token          string `meddler:"token_address" json:"token_address"`
	From           string `meddler:"from_address" json:"from_address"`
	To             string `meddler:"to_address" json:"to_address"`
	Value          string `meddler:"value" json:"value"`
	Data           string `meddler:"data" json:"data"`
}

// LockRow is a stored Lock event.
type LockRow struct {
	TxHash         string `meddler:"transaction_hash" json:"transaction_hash"`
	LogIndex       uint64 `meddler:"log_index" json:"log_index"`
	TxIndex        uint64 `meddler:"transaction_index" json:"transaction_index"`
	BlockNumber    uint64 `meddler:"block_number" json:"block_number"`
	BlockTimestamp uint64 `meddler:"block_timestamp" json:"block_timestamp"`
	Token          string `meddler:"token_address" json:"token_address"`
	Lock           string `meddler:"lock_address" json:"lock_address"`
	Account        string `meddler:"account_address" json:"account_address"`
	Value          string `meddler:"value" json:"value"`
	Data           string `meddler:"data" json:"data"`
}

// UnlockRow is a stored Unlock event.
type UnlockRow struct {
	TxHash         string `meddler:"transaction_hash" json:"transaction_hash"`
	LogIndex       uint64 `meddler:"log_index" json:"log_index"`
	TxIndex        uint64 `meddler:"transaction_index" json:"transaction_index"`
	BlockNumber    uint64 `meddler:"block_number" json:"block_number"`
	BlockTimestamp uint64 `meddler:"block_timestamp" json:"block_timestamp"`
	Token          string `meddler:"token_address" json:"token_address"`
	Lock           string `meddler:"lock_address" json:"lock_address"`
	Account        string `meddler:"account_address" json:"account_address"`
	Recipient      string `meddler:"recipient_address" json:"recipient_address"`
	Value          string `meddler:"value" json:"value"`
	Data           string `meddler:"data" json:"data"`
}

// TransferApprovalRow is the merged state of a transfer application.
type TransferApprovalRow struct {
	Token                 string  `meddler:"token_address" json:"token_address"`
	ApplicationID         int64   `meddler:"application_id" json:"application_id"`
	From                  string  `meddler:"from_address" json:"from_address"`
	To                    string  `meddler:"to_address" json:"to_address"`
	Value                 *string `meddler:"value" json:"value,omitempty"`
	ApplicationTimestamp  *int64  `meddler:"application_blocktimestamp" json:"application_blocktimestamp,omitempty"`
	ApprovalTimestamp     *int64  `meddler:"approval_blocktimestamp" json:"approval_blocktimestamp,omitempty"`
	CancellationTimestamp *int64  `meddler:"cancellation_blocktimestamp" json:"cancellation_blocktimestamp,omitempty"`
	ApplicationData       *string `meddler:"application_data" json:"application_data,omitempty"`
	ApprovalData          *string `meddler:"approval_data" json:"approval_data,omitempty"`
	Cancelled             bool    `meddler:"cancelled" json:"cancelled"`
	TransferApproved      bool    `meddler:"transfer_approved" json:"transfer_approved"`
}

// OrderRow is the merged state of an exchange order.
type OrderRow struct {
	Exchange       string `meddler:"exchange_address" json:"exchange_address"`
	OrderID        int64  `meddler:"order_id" json:"order_id"`
	Token          string `meddler:"token_address" json:"token_address"`
	Account        string `meddler:"account_address" json:"account_address"`
	IsBuy          bool   `meddler:"is_buy" json:"is_buy"`
	Price          string `meddler:"price" json:"price"`
	Amount         string `meddler:"amount" json:"amount"`
	Agent          string `meddler:"agent_address" json:"agent_address"`
	IsCancelled    bool   `meddler:"is_cancelled" json:"is_cancelled"`
	OrderTimestamp *int64 `meddler:"order_timestamp" json:"order_timestamp,omitempty"`
	TxHash         string `meddler:"transaction_hash" json:"transaction_hash"`
	LogIndex       uint64 `meddler:"log_index" json:"log_index"`
	BlockNumber    uint64 `meddler:"block_number" json:"block_number"`
}

// AgreementRow is the merged state of an exchange agreement.
type AgreementRow struct {
	Exchange            string `meddler:"exchange_address" json:"exchange_address"`
	OrderID             int64  `meddler:"order_id" json:"order_id"`
	AgreementID         int64  `meddler:"agreement_id" json:"agreement_id"`
	Token               string `meddler:"token_address" json:"token_address"`
	Buyer               string `meddler:"buyer_address" json:"buyer_address"`
	Seller              string `meddler:"seller_address" json:"seller_address"`
	Price               string `meddler:"price" json:"price"`
	Amount              string `meddler:"amount" json:"amount"`
	Agent               string `meddler:"agent_address" json:"agent_address"`
	Status              int    `meddler:"status" json:"status"`
	AgreementTimestamp  *int64 `meddler:"agreement_timestamp" json:"agreement_timestamp,omitempty"`
	SettlementTimestamp *int64 `meddler:"settlement_timestamp" json:"settlement_timestamp,omitempty"`
}

// RegistrationRow is a token registered in a token list.
type RegistrationRow struct {
	Token          string `meddler:"token_address" json:"token_address"`
	Template       string `meddler:"token_template" json:"token_template"`
	Owner          string `meddler:"owner_address" json:"owner_address"`
	KnownTemplate  bool   `meddler:"is_known_template" json:"is_known_template"`
	List           string `meddler:"list_address" json:"list_address"`
	BlockNumber    uint64 `meddler:"block_number" json:"block_number"`
	BlockTimestamp uint64 `meddler:"block_timestamp" json:"block_timestamp"`
	TxHash         string `meddler:"transaction_hash" json:"transaction_hash"`
	LogIndex       uint64 `meddler:"log_index" json:"log_index"`
}

// LockedPositionRow is the balance an account has locked under one lock address.
type LockedPositionRow struct {
	Token    string `meddler:"token_address" json:"token_address"`
	Lock     string `meddler:"lock_address" json:"lock_address"`
	Account  string `meddler:"account_address" json:"account_address"`
	Value    string `meddler:"value" json:"value"`
	Modified uint64 `meddler:"modified" json:"modified"`
}
