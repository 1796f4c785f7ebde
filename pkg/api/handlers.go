package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/goran-ethernal/SecTokenIndexer/internal/downloader"
	internalindexer "github.com/goran-ethernal/SecTokenIndexer/internal/indexer"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/internal/nodesync"
	"github.com/goran-ethernal/SecTokenIndexer/internal/notification"
	internalrpc "github.com/goran-ethernal/SecTokenIndexer/internal/rpc"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/indexer"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/rpc"
)

// MsgBlockSyncDown is returned by the relay while no node is in sync with the chain.
const MsgBlockSyncDown = "Block synchronization is down"

const maxRelayBody = 128 * 1024

// Handler handles HTTP requests for the API.
type Handler struct {
	db          *sql.DB
	events      *internalindexer.EventStore
	checkpoints *downloader.SyncManager
	nodes       *nodesync.Store
	rpc         rpc.EthClient
	log         *logger.Logger
}

// NewHandler creates a new API handler over the indexer database.
func NewHandler(database *sql.DB, rpcClient rpc.EthClient, log *logger.Logger) *Handler {
	return &Handler{
		db:          database,
		events:      internalindexer.NewEventStore(database),
		checkpoints: downloader.NewSyncManager(database, log),
		nodes:       nodesync.NewStore(database),
		rpc:         rpcClient,
		log:         log,
	}
}

// ListCheckpoints returns the progress of every watcher.
// @Summary List sync checkpoints
// @Description Latest fully processed block of every (contract, event category) pair
// @Tags Sync
// @Produce json
// @Success 200 {object} CheckpointsResponse "Checkpoints"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /checkpoints [get]
func (h *Handler) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := h.checkpoints.ListCheckpoints(r.Context())
	if err != nil {
		h.log.Errorf("Failed to list checkpoints: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list checkpoints")
		return
	}

	resp := CheckpointsResponse{Checkpoints: make([]indexer.CheckpointResponse, 0, len(checkpoints))}
	for _, cp := range checkpoints {
		resp.Checkpoints = append(resp.Checkpoints, indexer.CheckpointResponse{
			ContractAddress:   cp.ContractAddress.Hex(),
			EventCategory:     cp.EventCategory,
			LatestBlockNumber: cp.LatestBlockNumber,
			UpdatedAt:         cp.UpdatedAt,
		})
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetEvents retrieves indexed events of one kind.
// @Summary Get events of a kind
// @Description Retrieve indexed events with optional filtering, pagination, and sorting
// @Tags Events
// @Produce json
// @Param kind path string true "Event kind" Enums(Transfer, Lock, Unlock, ApplyForTransfer, ApproveTransfer, CancelTransfer, NewOrder, CancelOrder, Agree, SettlementOK, SettlementNG, Register)
// @Param limit query int false "Maximum number of events to return" default(100)
// @Param offset query int false "Number of events to skip" default(0)
// @Param from_block query integer false "Filter events from this block number"
// @Param to_block query integer false "Filter events up to this block number"
// @Param token query string false "Filter by token address"
// @Param account query string false "Filter by participant address"
// @Param sort_order query string false "Sort order: asc or desc" Enums(asc, desc)
// @Success 200 {object} EventResponse "List of events with pagination info"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /events/{kind} [get]
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	params, err := parseQueryParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid query parameters: %v", err))
		return
	}
	params.Kind = r.PathValue("kind")

	page, total, err := h.events.QueryEvents(r.Context(), *params)
	if errors.Is(err, internalindexer.ErrInvalidQuery) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Errorf("Failed to query events: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to query events")
		return
	}

	n := reflect.ValueOf(page).Len()
	respondJSON(w, http.StatusOK, EventResponse{
		Kind:   params.Kind,
		Events: page,
		Pagination: PaginationResult{
			Total:   total,
			Limit:   params.Limit,
			Offset:  params.Offset,
			HasMore: params.Offset+n < total,
		},
	})
}

// GetPositions returns the locked positions of an account.
// @Summary Get locked positions
// @Description Balances an account has locked, per token and lock address
// @Tags Positions
// @Produce json
// @Param account path string true "Account address"
// @Param token query string false "Filter by token address"
// @Success 200 {object} PositionsResponse "Locked positions"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /positions/{account} [get]
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress(r.PathValue("account"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid account: %v", err))
		return
	}

	var token string
	if raw := r.URL.Query().Get("token"); raw != "" {
		if token, err = parseAddress(raw); err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid token: %v", err))
			return
		}
	}

	positions, err := h.events.Positions(r.Context(), account, token)
	if err != nil {
		h.log.Errorf("Failed to query positions: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to query positions")
		return
	}

	respondJSON(w, http.StatusOK, PositionsResponse{Account: account, Positions: positions})
}

// GetNotifications returns the notifications of a recipient, newest first.
// @Summary Get notifications
// @Description Notifications derived from indexed events for one recipient address
// @Tags Notifications
// @Produce json
// @Param address path string true "Recipient address"
// @Param limit query int false "Maximum number of notifications to return" default(100)
// @Param offset query int false "Number of notifications to skip" default(0)
// @Param include_deleted query bool false "Include deleted notifications"
// @Success 200 {object} NotificationsResponse "Notifications with pagination info"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /notifications/{address} [get]
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	address, err := parseAddress(r.PathValue("address"))
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid address: %v", err))
		return
	}

	params, err := parseQueryParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid query parameters: %v", err))
		return
	}

	q := notification.ListQuery{Address: address, Limit: params.Limit, Offset: params.Offset}
	if raw := r.URL.Query().Get("include_deleted"); raw != "" {
		if q.IncludeDeleted, err = strconv.ParseBool(raw); err != nil {
			respondError(w, http.StatusBadRequest, "invalid include_deleted")
			return
		}
	}

	total, err := notification.Count(r.Context(), h.db, q)
	if err != nil {
		h.log.Errorf("Failed to count notifications: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to query notifications")
		return
	}

	list, err := notification.List(r.Context(), h.db, q)
	if err != nil {
		h.log.Errorf("Failed to list notifications: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to query notifications")
		return
	}
	if list == nil {
		list = []*notification.Notification{}
	}

	respondJSON(w, http.StatusOK, NotificationsResponse{
		Address:       address,
		Notifications: list,
		Pagination: PaginationResult{
			Total:   total,
			Limit:   q.Limit,
			Offset:  q.Offset,
			HasMore: q.Offset+len(list) < total,
		},
	})
}

// MarkNotificationRead sets the read flag of a notification.
// @Summary Mark a notification read
// @Description Sets is_read of a notification; the body may pass is_read=false to unset it
// @Tags Notifications
// @Accept json
// @Param id path string true "Notification ID"
// @Param request body MarkReadRequest false "Read flag"
// @Success 204 "Updated"
// @Failure 400 {object} ErrorResponse "Invalid body"
// @Failure 404 {object} ErrorResponse "Notification not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /notifications/{id}/read [post]
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	read := true
	if r.ContentLength != 0 {
		var req MarkReadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.IsRead != nil {
			read = *req.IsRead
		}
	}

	found, err := notification.MarkRead(r.Context(), h.db, id, read)
	if err != nil {
		h.log.Errorf("Failed to mark notification %s: %v", id, err)
		respondError(w, http.StatusInternalServerError, "failed to update notification")
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, fmt.Sprintf("notification '%s' not found", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SendRawTransaction relays a signed transaction to an executable contract.
// @Summary Relay a signed transaction
// @Description Submits a signed transaction to the node. Rejected while no node is in sync or when the destination is not an executable contract.
// @Tags Relay
// @Accept json
// @Produce json
// @Param request body SendRawTransactionRequest true "Signed transaction"
// @Success 200 {object} SendRawTransactionResponse "Transaction hash"
// @Failure 400 {object} ErrorResponse "Invalid or rejected transaction"
// @Failure 503 {object} ErrorResponse "Block synchronization is down"
// @Router /relay/send-raw-transaction [post]
func (h *Handler) SendRawTransaction(w http.ResponseWriter, r *http.Request) {
	synced, err := h.nodes.AnySynced(r.Context())
	if err != nil {
		h.log.Errorf("Failed to read node status: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read node status")
		return
	}
	if !synced {
		respondError(w, http.StatusServiceUnavailable, MsgBlockSyncDown)
		return
	}

	var req SendRawTransactionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRelayBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	raw, err := hexutil.Decode(req.RawTxHex)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid raw_tx_hex: %v", err))
		return
	}

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid raw transaction: %v", err))
		return
	}
	if tx.To() == nil {
		respondError(w, http.StatusBadRequest, "contract creation cannot be relayed")
		return
	}

	executable, err := h.isExecutable(r, *tx.To())
	if err != nil {
		h.log.Errorf("Failed to look up executable contract: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to look up destination")
		return
	}
	if !executable {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("%s is not an executable contract", tx.To().Hex()))
		return
	}

	hash, err := h.rpc.SendRawTransaction(r.Context(), raw)
	if errors.Is(err, internalrpc.ErrServiceUnavailable) {
		h.log.Warnf("service unavailable: relay of %s: %v", tx.Hash().Hex(), err)
		respondError(w, http.StatusServiceUnavailable, "node unavailable")
		return
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("transaction rejected: %v", err))
		return
	}

	h.log.Infof("Relayed transaction %s to %s", hash.Hex(), tx.To().Hex())
	respondJSON(w, http.StatusOK, SendRawTransactionResponse{TransactionHash: hash.Hex()})
}

func (h *Handler) isExecutable(r *http.Request, to common.Address) (bool, error) {
	var one int
	err := h.db.QueryRowContext(r.Context(),
		`SELECT 1 FROM executable_contract WHERE lower(contract_address) = lower(?)`, to.Hex(),
	).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, err
	}
}

// Health returns the health status of the API and the indexed data.
// @Summary Health check
// @Description Node sync status and the number of indexed events per kind
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse "Health status"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /health [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	total, synced, err := h.nodes.Count(r.Context())
	if err != nil {
		h.log.Errorf("Failed to read node status: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read node status")
		return
	}

	counts, err := h.events.EventCounts(r.Context())
	if err != nil {
		h.log.Errorf("Failed to count events: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to count events")
		return
	}

	status := "ok"
	if total > 0 && synced == 0 {
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Nodes:       NodeStatus{Total: total, Synced: synced},
		EventCounts: counts,
	})
}

// parseQueryParams parses HTTP query parameters into QueryParams.
func parseQueryParams(r *http.Request) (*indexer.QueryParams, error) {
	params := indexer.NewDefaultQueryParams()
	query := r.URL.Query()

	if limitStr := query.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > 1000 {
			return params, errors.New("invalid limit: must be between 1 and 1000")
		}
		params.Limit = limit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return params, errors.New("invalid offset: must be non-negative")
		}
		params.Offset = offset
	}

	if fromBlockStr := query.Get("from_block"); fromBlockStr != "" {
		fromBlock, err := strconv.ParseUint(fromBlockStr, 10, 64)
		if err != nil {
			return params, errors.New("invalid from_block")
		}
		params.FromBlock = &fromBlock
	}

	if toBlockStr := query.Get("to_block"); toBlockStr != "" {
		toBlock, err := strconv.ParseUint(toBlockStr, 10, 64)
		if err != nil {
			return params, errors.New("invalid to_block")
		}
		params.ToBlock = &toBlock
	}

	if params.FromBlock != nil && params.ToBlock != nil && *params.FromBlock > *params.ToBlock {
		return params, errors.New("from_block cannot be greater than to_block")
	}

	if token := query.Get("token"); token != "" {
		addr, err := parseAddress(token)
		if err != nil {
			return params, fmt.Errorf("invalid token: %w", err)
		}
		params.Token = addr
	}

	if account := query.Get("account"); account != "" {
		addr, err := parseAddress(account)
		if err != nil {
			return params, fmt.Errorf("invalid account: %w", err)
		}
		params.Account = addr
	}

	if sortOrder := query.Get("sort_order"); sortOrder != "" {
		sortOrder = strings.ToLower(sortOrder)
		if sortOrder != "asc" && sortOrder != "desc" {
			return params, errors.New("invalid sort_order: must be 'asc' or 'desc'")
		}
		params.SortOrder = sortOrder
	}

	return params, nil
}

// parseAddress validates a hex address and returns it in the checksummed form rows are stored in.
func parseAddress(s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%q is not a hex address", s)
	}

	return common.HexToAddress(s).Hex(), nil
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	// Encode first so an encoding failure can still change the status
	encoded, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)

	// headers are sent, a failed write cannot be reported
	_, _ = w.Write(encoded)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	respondJSON(w, status, response)
}
