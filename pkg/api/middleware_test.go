package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goran-ethernal/SecTokenIndexer/internal/logger"
	"github.com/stretchr/testify/require"
)

const (
	dappOrigin   = "https://trade.sectoken.example"
	walletOrigin = "https://wallet.sectoken.example"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		allowedOrigins []string
		origin         string
		method         string
		wantOrigin     string
		wantVary       bool
		wantBody       string
	}{
		{
			name:           "wildcard echoes the request origin",
			allowedOrigins: []string{"*"},
			origin:         dappOrigin,
			method:         http.MethodGet,
			wantOrigin:     dappOrigin,
			wantVary:       true,
			wantBody:       "OK",
		},
		{
			name:           "wildcard without origin header",
			allowedOrigins: []string{"*"},
			method:         http.MethodGet,
			wantOrigin:     "*",
			wantBody:       "OK",
		},
		{
			name:           "listed origin",
			allowedOrigins: []string{dappOrigin, walletOrigin},
			origin:         walletOrigin,
			method:         http.MethodPost,
			wantOrigin:     walletOrigin,
			wantVary:       true,
			wantBody:       "OK",
		},
		{
			name:           "unlisted origin still reaches the handler",
			allowedOrigins: []string{dappOrigin},
			origin:         "https://phishing.example",
			method:         http.MethodGet,
			wantBody:       "OK",
		},
		{
			name:           "empty list allows nothing",
			allowedOrigins: nil,
			origin:         dappOrigin,
			method:         http.MethodGet,
			wantBody:       "OK",
		},
		{
			name:           "preflight is answered without calling the handler",
			allowedOrigins: []string{dappOrigin},
			origin:         dappOrigin,
			method:         http.MethodOptions,
			wantOrigin:     dappOrigin,
			wantVary:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := CORSMiddleware(tt.allowedOrigins)(http.HandlerFunc(okHandler))

			req := httptest.NewRequest(tt.method, "/api/v1/relay/send-raw-transaction", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			require.Equal(t, tt.wantBody, w.Body.String())
			require.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			require.Equal(t, tt.wantVary, w.Header().Get("Vary") == "Origin")
			require.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			require.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
			require.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
		})
	}
}

func TestResponseWriter(t *testing.T) {
	t.Parallel()

	t.Run("first status wins", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

		rw.WriteHeader(http.StatusServiceUnavailable)
		rw.WriteHeader(http.StatusBadRequest)

		require.Equal(t, http.StatusServiceUnavailable, rw.statusCode)
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("write without header keeps 200", func(t *testing.T) {
		rw := &responseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}

		n, err := rw.Write([]byte(`{"status":"ok"}`))
		require.NoError(t, err)
		require.Equal(t, 15, n)
		require.True(t, rw.wroteHeader)

		rw.WriteHeader(http.StatusTeapot)
		require.Equal(t, http.StatusOK, rw.statusCode)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "events query", method: http.MethodGet, path: "/api/v1/events/Transfer", status: http.StatusOK},
		{name: "rejected relay", method: http.MethodPost, path: "/api/v1/relay/send-raw-transaction", status: http.StatusBadRequest},
		{name: "sync down", method: http.MethodPost, path: "/api/v1/relay/send-raw-transaction", status: http.StatusServiceUnavailable},
		{name: "missing notification", method: http.MethodPost, path: "/api/v1/notifications/x/read", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := LoggingMiddleware(logger.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		panic any
	}{
		{name: "string", panic: "decoder exploded"},
		{name: "error", panic: errors.New("nil pointer in handler")},
		{name: "int", panic: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := RecoveryMiddleware(logger.NewNopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(tt.panic)
			}))

			w := httptest.NewRecorder()
			require.NotPanics(t, func() {
				h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/positions/0x01", nil))
			})
			require.Equal(t, http.StatusInternalServerError, w.Code)
			require.Equal(t, "Internal Server Error", strings.TrimSpace(w.Body.String()))
		})
	}

	t.Run("no panic passes through", func(t *testing.T) {
		t.Parallel()

		w := httptest.NewRecorder()
		RecoveryMiddleware(logger.NewNopLogger())(http.HandlerFunc(okHandler)).
			ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)
		require.Equal(t, "OK", w.Body.String())
	})
}

func TestMiddlewareChain(t *testing.T) {
	t.Parallel()

	log := logger.NewNopLogger()
	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			panic("boom")
		}
		okHandler(w, r)
	})
	h = RecoveryMiddleware(log)(h)
	h = LoggingMiddleware(log)(h)
	h = CORSMiddleware([]string{dappOrigin})(h)

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("Origin", dappOrigin)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, dappOrigin, w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
