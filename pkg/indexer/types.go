package indexer

const (
	defaultPageLimit = 100
	maxPageLimit     = 1000
)

// QueryParams represents common query parameters for event retrieval.
type QueryParams struct {
	// Event kind to query (e.g., "Transfer", "NewOrder")
	Kind string

	// Pagination
	Limit  int
	Offset int

	// Block range filtering
	FromBlock *uint64
	ToBlock   *uint64

	// Address filtering
	Token   string
	Account string

	// "asc" or "desc" by block position
	SortOrder string
}

// NewDefaultQueryParams returns the first page in descending order.
func NewDefaultQueryParams() *QueryParams {
	return &QueryParams{
		Limit:     defaultPageLimit,
		Offset:    0,
		SortOrder: "desc",
	}
}

// ClampLimit bounds Limit to the supported page size.
func (q *QueryParams) ClampLimit() {
	switch {
	case q.Limit <= 0:
		q.Limit = defaultPageLimit
	case q.Limit > maxPageLimit:
		q.Limit = maxPageLimit
	}
}

// CheckpointResponse is the progress of one watcher.
// @Description Latest fully processed block of a (contract, event category) pair
type CheckpointResponse struct {
	ContractAddress   string `json:"contract_address" example:"0x5FbDB2315678afecb367f032d93F642f64180aa3"`
	EventCategory     string `json:"event_category" example:"Transfer"`
	LatestBlockNumber uint64 `json:"latest_block_number" example:"19500000"`
	UpdatedAt         int64  `json:"updated_at" example:"1700000000"`
}
