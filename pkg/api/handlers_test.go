package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/goran-ethernal/SecTokenIndexer/internal/notification"
	internalrpc "github.com/goran-ethernal/SecTokenIndexer/internal/rpc"
	rpcmocks "github.com/goran-ethernal/SecTokenIndexer/internal/rpc/mocks"
	"github.com/goran-ethernal/SecTokenIndexer/internal/testutil"
	"github.com/goran-ethernal/SecTokenIndexer/pkg/config"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testToken    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testAccount  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testExchange = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

type testAPI struct {
	db      *sql.DB
	rpc     *rpcmocks.EthClient
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	database := testutil.NewTestDB(t, "api.db")
	rpcClient := rpcmocks.NewEthClient(t)

	cfg := &config.APIConfig{Enabled: true}
	cfg.ApplyDefaults()

	return &testAPI{
		db:      database,
		rpc:     rpcClient,
		handler: NewServer(cfg, database, rpcClient, logger.NewNopLogger()).Handler(),
	}
}

func (a *testAPI) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	return w
}

func (a *testAPI) exec(t *testing.T, query string, args ...any) {
	t.Helper()

	_, err := a.db.Exec(query, args...)
	require.NoError(t, err)
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	return out
}

// signedTx returns a signed legacy transaction to the given address.
func signedTx(t *testing.T, to common.Address) (string, common.Hash) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tx, err := types.SignNewTx(key, types.LatestSignerForChainID(big.NewInt(1)), &types.LegacyTx{
		Nonce:    1,
		To:       &to,
		Gas:      21_000,
		GasPrice: big.NewInt(1),
		Value:    big.NewInt(0),
	})
	require.NoError(t, err)

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	return hexutil.Encode(raw), tx.Hash()
}

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		status         int
		data           any
		expectedBody   string
		expectedStatus int
	}{
		{
			name:           "success with simple data",
			status:         http.StatusOK,
			data:           map[string]string{"message": "success"},
			expectedBody:   `{"message":"success"}`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "success with array",
			status:         http.StatusOK,
			data:           []string{"item1", "item2"},
			expectedBody:   `["item1","item2"]`,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "success with nil",
			status:         http.StatusOK,
			data:           nil,
			expectedBody:   "null",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "error status",
			status:         http.StatusBadRequest,
			data:           map[string]string{"error": "bad request"},
			expectedBody:   `{"error":"bad request"}`,
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			respondJSON(w, tt.status, tt.data)

			require.Equal(t, tt.expectedStatus, w.Code)
			require.Equal(t, "application/json", w.Header().Get("Content-Type"))
			require.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestRespondJSON_EncodingError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()

	// Channel cannot be JSON encoded
	respondJSON(w, http.StatusOK, make(chan int))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "Failed to encode response")
}

func TestRespondError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	respondError(w, http.StatusServiceUnavailable, MsgBlockSyncDown)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeBody[ErrorResponse](t, w)
	require.Equal(t, "Service Unavailable", resp.Error)
	require.Equal(t, MsgBlockSyncDown, resp.Message)
	require.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestParseQueryParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{name: "defaults", query: ""},
		{name: "full", query: "?limit=10&offset=5&from_block=1&to_block=9&sort_order=ASC&token=" + testToken.Hex()},
		{name: "limit too large", query: "?limit=1001", wantErr: "invalid limit"},
		{name: "negative offset", query: "?offset=-1", wantErr: "invalid offset"},
		{name: "bad from_block", query: "?from_block=abc", wantErr: "invalid from_block"},
		{name: "inverted range", query: "?from_block=9&to_block=1", wantErr: "cannot be greater"},
		{name: "bad sort order", query: "?sort_order=up", wantErr: "invalid sort_order"},
		{name: "bad account", query: "?account=0x12", wantErr: "invalid account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			params, err := parseQueryParams(httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil))
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, params)
		})
	}

	params, err := parseQueryParams(httptest.NewRequest(http.MethodGet,
		"/x?token="+testToken.Hex()[2:]+"&sort_order=ASC", nil))
	require.NoError(t, err)
	require.Equal(t, testToken.Hex(), params.Token)
	require.Equal(t, "asc", params.SortOrder)
	require.Equal(t, 100, params.Limit)
}

func TestHandler_Health(t *testing.T) {
	api := newTestAPI(t)

	w := api.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[HealthResponse](t, w)
	require.Equal(t, "ok", resp.Status)
	require.Contains(t, resp.EventCounts, "Transfer")

	api.exec(t, `INSERT INTO node (endpoint_uri, is_synced) VALUES ('http://node', 0)`)
	resp = decodeBody[HealthResponse](t, api.do(t, http.MethodGet, "/health", nil))
	require.Equal(t, "degraded", resp.Status)
	require.Equal(t, NodeStatus{Total: 1, Synced: 0}, resp.Nodes)
}

func TestHandler_ListCheckpoints(t *testing.T) {
	api := newTestAPI(t)

	resp := decodeBody[CheckpointsResponse](t, api.do(t, http.MethodGet, "/api/v1/checkpoints", nil))
	require.Empty(t, resp.Checkpoints)

	api.exec(t, `INSERT INTO sync_checkpoint VALUES (?, 'Transfer', 120, 1700000000)`, testToken.Hex())

	resp = decodeBody[CheckpointsResponse](t, api.do(t, http.MethodGet, "/api/v1/checkpoints", nil))
	require.Len(t, resp.Checkpoints, 1)
	require.Equal(t, testToken.Hex(), resp.Checkpoints[0].ContractAddress)
	require.Equal(t, "Transfer", resp.Checkpoints[0].EventCategory)
	require.Equal(t, uint64(120), resp.Checkpoints[0].LatestBlockNumber)
}

func TestHandler_GetEvents(t *testing.T) {
	api := newTestAPI(t)

	for i, block := range []uint64{10, 20, 30} {
		api.exec(t, `
INSERT INTO idx_transfer (transaction_hash, log_index, transaction_index, block_number,
	block_timestamp, token_address, from_address, to_address, value)
VALUES (?, ?, 0, ?, 0, ?, ?, ?, '5')`,
			common.BigToHash(big.NewInt(int64(i))).Hex(), i, block, testToken.Hex(), testAccount.Hex(), testExchange.Hex())
	}

	w := api.do(t, http.MethodGet, "/api/v1/events/Transfer?limit=2&sort_order=asc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Kind   string `json:"kind"`
		Events []struct {
			BlockNumber uint64 `json:"block_number"`
			Value       string `json:"value"`
		} `json:"events"`
		Pagination PaginationResult `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Transfer", resp.Kind)
	require.Len(t, resp.Events, 2)
	require.Equal(t, uint64(10), resp.Events[0].BlockNumber)
	require.Equal(t, "5", resp.Events[0].Value)
	require.Equal(t, PaginationResult{Total: 3, Limit: 2, Offset: 0, HasMore: true}, resp.Pagination)

	lower := api.do(t, http.MethodGet, "/api/v1/events/transfer?account="+testAccount.Hex(), nil)
	require.Equal(t, http.StatusOK, lower.Code)

	w = api.do(t, http.MethodGet, "/api/v1/events/Mint", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/events/Transfer?limit=0", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_GetPositions(t *testing.T) {
	api := newTestAPI(t)

	api.exec(t, `
INSERT INTO idx_locked_position (token_address, lock_address, account_address, value, modified)
VALUES (?, ?, ?, '120', 30)`, testToken.Hex(), testExchange.Hex(), testAccount.Hex())

	// lower case input matches the checksummed rows
	w := api.do(t, http.MethodGet, "/api/v1/positions/"+common.Bytes2Hex(testAccount.Bytes()), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Account   string `json:"account"`
		Positions []struct {
			Value string `json:"value"`
		} `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, testAccount.Hex(), resp.Account)
	require.Len(t, resp.Positions, 1)
	require.Equal(t, "120", resp.Positions[0].Value)

	w = api.do(t, http.MethodGet, "/api/v1/positions/not-an-address", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Notifications(t *testing.T) {
	api := newTestAPI(t)

	for i, id := range []string{notification.AssignID(1, 0, 0, 0), notification.AssignID(2, 0, 0, 0)} {
		api.exec(t, `
INSERT INTO notification (notification_id, notification_type, priority, address, is_deleted,
	block_timestamp, args, metainfo, created_at)
VALUES (?, 'Transfer', 0, ?, ?, 0, '{}', '{}', 0)`, id, testAccount.Hex(), i == 1)
	}

	target := "/api/v1/notifications/" + testAccount.Hex()
	resp := decodeBody[NotificationsResponse](t, api.do(t, http.MethodGet, target, nil))
	require.Equal(t, 1, resp.Pagination.Total)

	resp = decodeBody[NotificationsResponse](t, api.do(t, http.MethodGet, target+"?include_deleted=true", nil))
	require.Equal(t, 2, resp.Pagination.Total)

	id := notification.AssignID(1, 0, 0, 0)
	w := api.do(t, http.MethodPost, "/api/v1/notifications/"+id+"/read", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	var read bool
	require.NoError(t, api.db.QueryRow(`SELECT is_read FROM notification WHERE notification_id = ?`, id).Scan(&read))
	require.True(t, read)

	w = api.do(t, http.MethodPost, "/api/v1/notifications/"+id+"/read", map[string]bool{"is_read": false})
	require.Equal(t, http.StatusNoContent, w.Code)
	require.NoError(t, api.db.QueryRow(`SELECT is_read FROM notification WHERE notification_id = ?`, id).Scan(&read))
	require.False(t, read)

	w = api.do(t, http.MethodPost, "/api/v1/notifications/missing/read", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Relay_BlockSyncDown(t *testing.T) {
	api := newTestAPI(t)
	api.exec(t, `INSERT INTO node (endpoint_uri, is_synced) VALUES ('http://node', 0)`)
	api.exec(t, `INSERT INTO executable_contract (contract_address) VALUES (?)`, testExchange.Hex())

	raw, _ := signedTx(t, testExchange)
	w := api.do(t, http.MethodPost, "/api/v1/relay/send-raw-transaction", SendRawTransactionRequest{RawTxHex: raw})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, MsgBlockSyncDown, decodeBody[ErrorResponse](t, w).Message)
	api.rpc.AssertNotCalled(t, "SendRawTransaction", mock.Anything, mock.Anything)
}

func TestHandler_Relay_NoNodes(t *testing.T) {
	api := newTestAPI(t)

	raw, _ := signedTx(t, testExchange)
	w := api.do(t, http.MethodPost, "/api/v1/relay/send-raw-transaction", SendRawTransactionRequest{RawTxHex: raw})

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, MsgBlockSyncDown, decodeBody[ErrorResponse](t, w).Message)
}

func TestHandler_Relay(t *testing.T) {
	api := newTestAPI(t)
	api.exec(t, `INSERT INTO node (endpoint_uri, is_synced) VALUES ('http://node', 1)`)
	api.exec(t, `INSERT INTO executable_contract (contract_address) VALUES (?)`, testExchange.Hex())

	raw, hash := signedTx(t, testExchange)
	api.rpc.EXPECT().SendRawTransaction(mock.Anything, hexutil.MustDecode(raw)).Return(hash, nil).Once()

	w := api.do(t, http.MethodPost, "/api/v1/relay/send-raw-transaction", SendRawTransactionRequest{RawTxHex: raw})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, hash.Hex(), decodeBody[SendRawTransactionResponse](t, w).TransactionHash)
}

func TestHandler_Relay_Rejections(t *testing.T) {
	api := newTestAPI(t)
	api.exec(t, `INSERT INTO node (endpoint_uri, is_synced) VALUES ('http://node', 1)`)
	api.exec(t, `INSERT INTO executable_contract (contract_address) VALUES (?)`, testExchange.Hex())

	relay := func(raw string) *httptest.ResponseRecorder {
		return api.do(t, http.MethodPost, "/api/v1/relay/send-raw-transaction", SendRawTransactionRequest{RawTxHex: raw})
	}

	t.Run("not executable", func(t *testing.T) {
		raw, _ := signedTx(t, testToken)
		w := relay(raw)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, decodeBody[ErrorResponse](t, w).Message, "not an executable contract")
	})

	t.Run("not hex", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, relay("zz").Code)
	})

	t.Run("not a transaction", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, relay("0x0102").Code)
	})

	t.Run("node unavailable", func(t *testing.T) {
		raw, _ := signedTx(t, testExchange)
		api.rpc.EXPECT().SendRawTransaction(mock.Anything, mock.Anything).
			Return(common.Hash{}, errors.Join(internalrpc.ErrServiceUnavailable, errors.New("dial tcp"))).Once()

		require.Equal(t, http.StatusServiceUnavailable, relay(raw).Code)
	})

	t.Run("node rejects", func(t *testing.T) {
		raw, _ := signedTx(t, testExchange)
		api.rpc.EXPECT().SendRawTransaction(mock.Anything, mock.Anything).
			Return(common.Hash{}, errors.New("nonce too low")).Once()

		w := relay(raw)
		require.Equal(t, http.StatusBadRequest, w.Code)
		require.Contains(t, decodeBody[ErrorResponse](t, w).Message, "nonce too low")
	})
}
